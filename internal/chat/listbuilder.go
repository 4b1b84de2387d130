// ABOUTME: Conversation list builder: fetch, dedupe by id, enrich with listing and counterparty lookups
// ABOUTME: Lookup failures are non-fatal; entries fall back to bare display values

package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sgmarket/pulse-client/internal/cache"
	"github.com/sgmarket/pulse-client/internal/rest"
	"github.com/sgmarket/pulse-client/internal/session"
)

// Conversation is the canonical conversation list entry.
type Conversation struct {
	ID                      string
	CounterpartyID          string
	CounterpartyDisplayName string
	ListingID               string
	ListingTitle            string
	LastMessageSummary      string
	LastMessageAt           time.Time
	UnreadCount             int
}

// Directory is the REST surface the list builder consumes.
type Directory interface {
	ListConversations(ctx context.Context) ([]rest.ConversationRecord, error)
	GetListing(ctx context.Context, id string) (rest.ListingRecord, error)
	GetUser(ctx context.Context, id string) (rest.UserRecord, error)
}

const (
	lookupTTL     = 5 * time.Minute
	lookupMaxSize = 256
)

// ListBuilder materializes the conversation list: it collapses duplicate
// conversation ids (a backend anomaly, first occurrence wins) and enriches
// each entry with the referenced listing's metadata and the counterparty's
// display identity.
type ListBuilder struct {
	api     Directory
	sess    *session.Context
	lookups *cache.Cache
	logger  *slog.Logger

	mu      sync.RWMutex
	entries map[string]*Conversation
	order   []string
}

// NewListBuilder creates a list builder. Pass nil logger for the default.
func NewListBuilder(api Directory, sess *session.Context, logger *slog.Logger) *ListBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &ListBuilder{
		api:     api,
		sess:    sess,
		lookups: cache.New(lookupTTL, lookupMaxSize),
		logger:  logger.With("component", "chatlist"),
		entries: make(map[string]*Conversation),
	}
}

// Load fetches and rebuilds the conversation list.
func (b *ListBuilder) Load(ctx context.Context) ([]Conversation, error) {
	records, err := b.api.ListConversations(ctx)
	if err != nil {
		return nil, err
	}

	localID := b.sess.Identity().ActiveID()

	entries := make(map[string]*Conversation, len(records))
	order := make([]string, 0, len(records))

	for _, rec := range records {
		id := string(rec.ID)
		if id == "" {
			b.logger.Warn("dropping conversation record without id")
			continue
		}
		if _, dup := entries[id]; dup {
			// Duplicate ids are a backend anomaly, not a valid state.
			b.logger.Warn("duplicate conversation id from backend", "conversation_id", id)
			continue
		}

		conv := b.buildEntry(ctx, rec, localID)
		entries[id] = conv
		order = append(order, id)
	}

	b.mu.Lock()
	b.entries = entries
	b.order = order
	b.mu.Unlock()

	return b.Snapshot(), nil
}

// buildEntry maps one raw record and resolves its auxiliary lookups.
func (b *ListBuilder) buildEntry(ctx context.Context, rec rest.ConversationRecord, localID string) *Conversation {
	// The counterparty is whichever party the local identity is not.
	counterpartyID := string(rec.SellerID)
	if localID != "" && localID == string(rec.SellerID) {
		counterpartyID = string(rec.BuyerID)
	}

	conv := &Conversation{
		ID:                      string(rec.ID),
		CounterpartyID:          counterpartyID,
		CounterpartyDisplayName: counterpartyID, // fallback until the lookup lands
		ListingID:               string(rec.ListingID),
		LastMessageSummary:      rec.LastMessage,
		LastMessageAt:           rec.LastMessageAt.Time,
		UnreadCount:             rec.UnreadCount,
	}

	if listing, ok := b.lookupListing(ctx, string(rec.ListingID)); ok {
		conv.ListingTitle = listing.Title
	}
	if user, ok := b.lookupUser(ctx, counterpartyID); ok && user.DisplayName != "" {
		conv.CounterpartyDisplayName = user.DisplayName
	}

	return conv
}

// lookupListing resolves listing metadata through the TTL cache.
// Failures are logged and absorbed; the entry keeps fallback values.
func (b *ListBuilder) lookupListing(ctx context.Context, id string) (rest.ListingRecord, bool) {
	if id == "" {
		return rest.ListingRecord{}, false
	}
	if v, ok := b.lookups.Get("listing:" + id); ok {
		return v.(rest.ListingRecord), true
	}

	listing, err := b.api.GetListing(ctx, id)
	if err != nil {
		b.logger.Warn("listing lookup failed", "listing_id", id, "error", err)
		return rest.ListingRecord{}, false
	}
	b.lookups.Put("listing:"+id, listing)
	return listing, true
}

// lookupUser resolves a counterparty's display identity through the TTL cache.
func (b *ListBuilder) lookupUser(ctx context.Context, id string) (rest.UserRecord, bool) {
	if id == "" {
		return rest.UserRecord{}, false
	}
	if v, ok := b.lookups.Get("user:" + id); ok {
		return v.(rest.UserRecord), true
	}

	user, err := b.api.GetUser(ctx, id)
	if err != nil {
		b.logger.Warn("counterparty lookup failed", "user_id", id, "error", err)
		return rest.UserRecord{}, false
	}
	b.lookups.Put("user:"+id, user)
	return user, true
}

// ApplyLiveUpdate refreshes a single entry's preview fields after a push
// message, without a full reload.
func (b *ListBuilder) ApplyLiveUpdate(conversationID, summary string, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	conv, ok := b.entries[conversationID]
	if !ok {
		return
	}
	conv.LastMessageSummary = summary
	conv.LastMessageAt = at
}

// Get returns a copy of one entry.
func (b *ListBuilder) Get(conversationID string) (Conversation, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	conv, ok := b.entries[conversationID]
	if !ok {
		return Conversation{}, false
	}
	return *conv, true
}

// Snapshot returns a copy of the list in load order.
func (b *ListBuilder) Snapshot() []Conversation {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Conversation, 0, len(b.order))
	for _, id := range b.order {
		if conv, ok := b.entries[id]; ok {
			out = append(out, *conv)
		}
	}
	return out
}

// Close releases the lookup cache.
func (b *ListBuilder) Close() {
	b.lookups.Close()
}
