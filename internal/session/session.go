// ABOUTME: Session context holding the bearer credential, role-scoped identity ids, and active role
// ABOUTME: Replaces ambient global session state with an explicit, observable object

package session

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role identifies which marketplace identity the session is acting as.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	// RoleAdmin sessions never use the push channel.
	RoleAdmin Role = "admin"
)

// Credential errors.
var (
	ErrNoCredential      = errors.New("no credential available")
	ErrExpiredCredential = errors.New("credential expired")
)

// Identity is a read-only snapshot of the session's own ids.
// BuyerID and SellerID may both be set; the active role selects which one
// counts as "me" for authorship resolution.
type Identity struct {
	BuyerID  string
	SellerID string
	Role     Role
}

// ActiveID returns the identity id scoped to the snapshot's role, or ""
// when the role has no identity (admin sessions, missing id).
func (id Identity) ActiveID() string {
	switch id.Role {
	case RoleBuyer:
		return id.BuyerID
	case RoleSeller:
		return id.SellerID
	default:
		return ""
	}
}

// Context holds the mutable session state shared by the realtime core.
// It is safe for concurrent use.
type Context struct {
	mu       sync.RWMutex
	token    string
	buyerID  string
	sellerID string
	role     Role
	emitter  *Emitter
}

// New creates a session context with the given emitter. A nil emitter is
// replaced with a fresh one.
func New(emitter *Emitter) *Context {
	if emitter == nil {
		emitter = NewEmitter()
	}
	return &Context{
		role:    RoleBuyer,
		emitter: emitter,
	}
}

// Events returns the emitter carrying role and credential change events.
func (c *Context) Events() *Emitter {
	return c.emitter
}

// SetCredential stores the bearer token and the role-scoped identity ids,
// then notifies subscribers.
func (c *Context) SetCredential(token, buyerID, sellerID string) {
	c.mu.Lock()
	c.token = token
	c.buyerID = buyerID
	c.sellerID = sellerID
	c.mu.Unlock()

	c.emitter.publish(Event{Kind: CredentialChanged})
}

// ClearCredential drops the token and identity ids (logout).
func (c *Context) ClearCredential() {
	c.mu.Lock()
	c.token = ""
	c.buyerID = ""
	c.sellerID = ""
	c.mu.Unlock()

	c.emitter.publish(Event{Kind: CredentialChanged})
}

// SetRole switches the active role and notifies subscribers. Identity
// snapshots taken before the switch are stale and must be re-derived.
func (c *Context) SetRole(role Role) {
	c.mu.Lock()
	changed := c.role != role
	c.role = role
	c.mu.Unlock()

	if changed {
		c.emitter.publish(Event{Kind: RoleChanged, Role: role})
	}
}

// Role returns the active role.
func (c *Context) Role() Role {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.role
}

// Token returns the bearer token, or ErrNoCredential / ErrExpiredCredential
// when it is absent or past its exp claim.
func (c *Context) Token() (string, error) {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()

	if token == "" {
		return "", ErrNoCredential
	}
	if expired, err := tokenExpired(token); err == nil && expired {
		return "", ErrExpiredCredential
	}
	return token, nil
}

// Subject returns the sub claim of the bearer token, or "" for opaque tokens
// and tokens without the claim. Callers use it to sanity-check the credential
// against the configured identity ids.
func (c *Context) Subject() string {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()

	if strings.Count(token, ".") != 2 {
		return ""
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return ""
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil {
		return ""
	}
	return sub
}

// Identity returns a read-only snapshot of the session's ids and role.
func (c *Context) Identity() Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Identity{
		BuyerID:  c.buyerID,
		SellerID: c.sellerID,
		Role:     c.role,
	}
}

// tokenExpired inspects the exp claim without verifying the signature.
// Verification is the backend's job; the client only avoids dialing with a
// credential the backend is guaranteed to reject.
func tokenExpired(token string) (bool, error) {
	// Opaque (non-JWT) tokens are passed through untouched.
	if strings.Count(token, ".") != 2 {
		return false, nil
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return false, err
	}

	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false, err
	}
	return exp.Before(time.Now()), nil
}
