// ABOUTME: Tests for the session context
// ABOUTME: Covers role-scoped identity, credential lifecycle, and expiry inspection

package session

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentity_ActiveID(t *testing.T) {
	id := Identity{BuyerID: "B-1", SellerID: "S-1"}

	id.Role = RoleBuyer
	assert.Equal(t, "B-1", id.ActiveID())

	id.Role = RoleSeller
	assert.Equal(t, "S-1", id.ActiveID())

	id.Role = RoleAdmin
	assert.Empty(t, id.ActiveID(), "admin sessions have no marketplace identity")
}

func TestContext_DefaultsToBuyer(t *testing.T) {
	c := New(nil)
	assert.Equal(t, RoleBuyer, c.Role())
}

func TestContext_TokenLifecycle(t *testing.T) {
	c := New(nil)

	_, err := c.Token()
	assert.ErrorIs(t, err, ErrNoCredential)

	c.SetCredential("opaque-token", "B-1", "S-1")
	token, err := c.Token()
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", token)

	c.ClearCredential()
	_, err = c.Token()
	assert.ErrorIs(t, err, ErrNoCredential)
	assert.Empty(t, c.Identity().BuyerID)
}

func TestContext_ExpiredJWTIsRejected(t *testing.T) {
	c := New(nil)
	c.SetCredential(unsignedJWT(t, time.Now().Add(-time.Hour)), "B-1", "S-1")

	_, err := c.Token()
	assert.ErrorIs(t, err, ErrExpiredCredential)
}

func TestContext_ValidJWTPasses(t *testing.T) {
	c := New(nil)
	token := unsignedJWT(t, time.Now().Add(time.Hour))
	c.SetCredential(token, "B-1", "S-1")

	got, err := c.Token()
	require.NoError(t, err)
	assert.Equal(t, token, got)
}

func TestContext_OpaqueTokenIsPassedThrough(t *testing.T) {
	c := New(nil)
	c.SetCredential("not.a-jwt", "B-1", "S-1")

	got, err := c.Token()
	require.NoError(t, err)
	assert.Equal(t, "not.a-jwt", got)
}

func TestContext_Subject(t *testing.T) {
	c := New(nil)
	assert.Empty(t, c.Subject(), "no credential yet")

	c.SetCredential("opaque-token", "B-1", "S-1")
	assert.Empty(t, c.Subject(), "opaque tokens carry no claims")

	c.SetCredential(unsignedJWTWithSub(t, "B-1", time.Now().Add(time.Hour)), "B-1", "S-1")
	assert.Equal(t, "B-1", c.Subject())
}

func TestContext_SetRoleEmitsOnlyOnChange(t *testing.T) {
	c := New(nil)
	var events []Event
	c.Events().Subscribe(func(ev Event) { events = append(events, ev) })

	c.SetRole(RoleBuyer) // already buyer
	assert.Empty(t, events)

	c.SetRole(RoleSeller)
	require.Len(t, events, 1)
	assert.Equal(t, RoleChanged, events[0].Kind)
	assert.Equal(t, RoleSeller, events[0].Role)
}

func TestContext_SetCredentialEmits(t *testing.T) {
	c := New(nil)
	var kinds []EventKind
	c.Events().Subscribe(func(ev Event) { kinds = append(kinds, ev.Kind) })

	c.SetCredential("tok", "B-1", "S-1")
	c.ClearCredential()

	assert.Equal(t, []EventKind{CredentialChanged, CredentialChanged}, kinds)
}

func TestEmitter_SubscribeAndRemove(t *testing.T) {
	e := NewEmitter()

	var calls []string
	e.Subscribe(func(Event) { calls = append(calls, "a") })
	removeB := e.Subscribe(func(Event) { calls = append(calls, "b") })

	e.publish(Event{})
	assert.Equal(t, []string{"a", "b"}, calls, "subscribers fire in registration order")

	removeB()
	removeB() // removal is idempotent
	e.publish(Event{})
	assert.Equal(t, []string{"a", "b", "a"}, calls)
}

func TestEmitter_UnsubscribeFromWithinHandler(t *testing.T) {
	e := NewEmitter()

	count := 0
	var remove func()
	remove = e.Subscribe(func(Event) {
		count++
		remove()
	})

	e.publish(Event{})
	e.publish(Event{})
	assert.Equal(t, 1, count)
}

// unsignedJWT builds a syntactically valid JWT with the given exp claim and
// an empty signature segment. Claim inspection never verifies signatures.
func unsignedJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	return buildJWT(t, map[string]any{"exp": exp.Unix()})
}

func unsignedJWTWithSub(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	return buildJWT(t, map[string]any{"sub": sub, "exp": exp.Unix()})
}

func buildJWT(t *testing.T, claims map[string]any) string {
	t.Helper()

	encode := func(v any) string {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		return base64.RawURLEncoding.EncodeToString(data)
	}

	header := encode(map[string]string{"alg": "none", "typ": "JWT"})
	return fmt.Sprintf("%s.%s.", header, encode(claims))
}
