// ABOUTME: Typed event emitter for session-level signals (role and credential changes)
// ABOUTME: Replaces the original ambient event-bus coupling with explicit subscriptions

package session

import (
	"sync"

	"github.com/google/uuid"
)

// EventKind identifies the session-level signal being broadcast.
type EventKind int

const (
	// RoleChanged fires when the active role switches.
	RoleChanged EventKind = iota
	// CredentialChanged fires when the bearer credential is set or cleared.
	CredentialChanged
)

// Event is a session-level signal delivered to subscribers.
type Event struct {
	Kind EventKind
	Role Role // set for RoleChanged
}

// Emitter delivers session events to registered subscribers. Subscribers are
// invoked synchronously in registration order; a subscriber must not block.
type Emitter struct {
	mu   sync.RWMutex
	subs map[string]func(Event)
	ids  []string
}

// NewEmitter creates an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{subs: make(map[string]func(Event))}
}

// Subscribe registers fn for every future event. The returned closure removes
// exactly this subscription.
func (e *Emitter) Subscribe(fn func(Event)) func() {
	id := uuid.New().String()

	e.mu.Lock()
	e.subs[id] = fn
	e.ids = append(e.ids, id)
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if _, ok := e.subs[id]; !ok {
			return
		}
		delete(e.subs, id)
		for i, sid := range e.ids {
			if sid == id {
				e.ids = append(e.ids[:i], e.ids[i+1:]...)
				break
			}
		}
	}
}

// publish delivers ev to every subscriber. Callbacks are copied under the
// read lock so a subscriber may unsubscribe from within its handler.
func (e *Emitter) publish(ev Event) {
	e.mu.RLock()
	fns := make([]func(Event), 0, len(e.ids))
	for _, id := range e.ids {
		if fn, ok := e.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	e.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
