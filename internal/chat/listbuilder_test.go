// ABOUTME: Tests for the conversation list builder
// ABOUTME: Covers duplicate collapsing, lookup fallbacks, and live preview updates

package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgmarket/pulse-client/internal/rest"
	"github.com/sgmarket/pulse-client/internal/session"
)

type fakeDirectory struct {
	mu            sync.Mutex
	conversations []rest.ConversationRecord
	listings      map[string]rest.ListingRecord
	users         map[string]rest.UserRecord
	listingErr    error
	userErr       error
	listingCalls  int
	userCalls     int
}

func (f *fakeDirectory) ListConversations(ctx context.Context) ([]rest.ConversationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conversations, nil
}

func (f *fakeDirectory) GetListing(ctx context.Context, id string) (rest.ListingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listingCalls++
	if f.listingErr != nil {
		return rest.ListingRecord{}, f.listingErr
	}
	if l, ok := f.listings[id]; ok {
		return l, nil
	}
	return rest.ListingRecord{}, rest.ErrNotFound
}

func (f *fakeDirectory) GetUser(ctx context.Context, id string) (rest.UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userCalls++
	if f.userErr != nil {
		return rest.UserRecord{}, f.userErr
	}
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return rest.UserRecord{}, rest.ErrNotFound
}

func newTestBuilder(t *testing.T, api *fakeDirectory, sess *session.Context) *ListBuilder {
	t.Helper()
	b := NewListBuilder(api, sess, testLogger())
	t.Cleanup(b.Close)
	return b
}

func TestListBuilder_LoadEnrichesEntries(t *testing.T) {
	api := &fakeDirectory{
		conversations: []rest.ConversationRecord{
			{ID: "c-1", ListingID: "l-1", BuyerID: "B-7", SellerID: "S-2", LastMessage: "hi", UnreadCount: 2},
		},
		listings: map[string]rest.ListingRecord{"l-1": {ID: "l-1", Title: "Vintage camera"}},
		users:    map[string]rest.UserRecord{"S-2": {ID: "S-2", DisplayName: "Anh Tuấn"}},
	}
	b := newTestBuilder(t, api, buyerSession(t))

	list, err := b.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)

	conv := list[0]
	assert.Equal(t, "c-1", conv.ID)
	assert.Equal(t, "S-2", conv.CounterpartyID)
	assert.Equal(t, "Anh Tuấn", conv.CounterpartyDisplayName)
	assert.Equal(t, "Vintage camera", conv.ListingTitle)
	assert.Equal(t, "hi", conv.LastMessageSummary)
	assert.Equal(t, 2, conv.UnreadCount)
}

func TestListBuilder_DuplicateIDFirstWins(t *testing.T) {
	api := &fakeDirectory{
		conversations: []rest.ConversationRecord{
			{ID: "c-1", SellerID: "S-2", LastMessage: "first"},
			{ID: "c-1", SellerID: "S-3", LastMessage: "second"},
			{ID: "c-2", SellerID: "S-4", LastMessage: "other"},
		},
	}
	b := newTestBuilder(t, api, buyerSession(t))

	list, err := b.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].LastMessageSummary)
	assert.Equal(t, "c-2", list[1].ID)
}

func TestListBuilder_RecordWithoutIDIsSkipped(t *testing.T) {
	api := &fakeDirectory{
		conversations: []rest.ConversationRecord{
			{ID: "", SellerID: "S-2"},
			{ID: "c-1", SellerID: "S-2"},
		},
	}
	b := newTestBuilder(t, api, buyerSession(t))

	list, err := b.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "c-1", list[0].ID)
}

func TestListBuilder_CounterpartyDependsOnLocalIdentity(t *testing.T) {
	rec := rest.ConversationRecord{ID: "c-1", BuyerID: "B-7", SellerID: "S-7"}

	buyer := buyerSession(t) // active id B-7
	b := newTestBuilder(t, &fakeDirectory{conversations: []rest.ConversationRecord{rec}}, buyer)
	list, err := b.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "S-7", list[0].CounterpartyID)

	seller := session.New(nil)
	seller.SetCredential("opaque-test-token", "B-7", "S-7")
	seller.SetRole(session.RoleSeller) // active id S-7
	b2 := newTestBuilder(t, &fakeDirectory{conversations: []rest.ConversationRecord{rec}}, seller)
	list2, err := b2.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "B-7", list2[0].CounterpartyID)
}

func TestListBuilder_LookupFailuresAreNonFatal(t *testing.T) {
	api := &fakeDirectory{
		conversations: []rest.ConversationRecord{
			{ID: "c-1", ListingID: "l-1", BuyerID: "B-7", SellerID: "S-2", LastMessage: "hi"},
		},
		listingErr: errors.New("listing service down"),
		userErr:    errors.New("user service down"),
	}
	b := newTestBuilder(t, api, buyerSession(t))

	list, err := b.Load(context.Background())
	require.NoError(t, err, "auxiliary lookups never fail the load")
	require.Len(t, list, 1)
	assert.Empty(t, list[0].ListingTitle)
	assert.Equal(t, "S-2", list[0].CounterpartyDisplayName, "id stands in for the display name")
}

func TestListBuilder_LookupsAreCached(t *testing.T) {
	api := &fakeDirectory{
		conversations: []rest.ConversationRecord{
			{ID: "c-1", ListingID: "l-1", SellerID: "S-2"},
			{ID: "c-2", ListingID: "l-1", SellerID: "S-2"},
		},
		listings: map[string]rest.ListingRecord{"l-1": {ID: "l-1", Title: "Camera"}},
		users:    map[string]rest.UserRecord{"S-2": {ID: "S-2", DisplayName: "Tuấn"}},
	}
	b := newTestBuilder(t, api, buyerSession(t))

	_, err := b.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, api.listingCalls)
	assert.Equal(t, 1, api.userCalls)
}

func TestListBuilder_ApplyLiveUpdate(t *testing.T) {
	api := &fakeDirectory{
		conversations: []rest.ConversationRecord{
			{ID: "c-1", SellerID: "S-2", LastMessage: "old"},
		},
	}
	b := newTestBuilder(t, api, buyerSession(t))
	_, err := b.Load(context.Background())
	require.NoError(t, err)

	now := time.Now()
	b.ApplyLiveUpdate("c-1", "new preview", now)

	conv, ok := b.Get("c-1")
	require.True(t, ok)
	assert.Equal(t, "new preview", conv.LastMessageSummary)
	assert.Equal(t, now, conv.LastMessageAt)

	// Updates for unknown conversations are dropped silently.
	b.ApplyLiveUpdate("c-404", "ghost", now)
	_, ok = b.Get("c-404")
	assert.False(t, ok)
}

func TestListBuilder_SnapshotPreservesLoadOrder(t *testing.T) {
	api := &fakeDirectory{
		conversations: []rest.ConversationRecord{
			{ID: "c-3", SellerID: "S-1"},
			{ID: "c-1", SellerID: "S-2"},
			{ID: "c-2", SellerID: "S-3"},
		},
	}
	b := newTestBuilder(t, api, buyerSession(t))
	_, err := b.Load(context.Background())
	require.NoError(t, err)

	snap := b.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, []string{"c-3", "c-1", "c-2"}, []string{snap[0].ID, snap[1].ID, snap[2].ID})
}
