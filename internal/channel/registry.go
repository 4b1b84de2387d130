// ABOUTME: Topic-to-handler subscription registry for the push channel
// ABOUTME: Dispatches inbound frames in registration order, isolating handler panics

package channel

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/sgmarket/pulse-client/internal/metrics"
)

// Handler consumes the payload of one inbound frame on a topic.
type Handler func(topic string, payload json.RawMessage)

// topicSubs holds the handlers of one topic in registration order.
type topicSubs struct {
	handlers map[string]Handler
	order    []string
}

// Registry maps topics to handler sets. The first handler on a topic triggers
// the onFirst callback (wire SUBSCRIBE); removing the last triggers onLast
// (wire UNSUBSCRIBE). Both callbacks may be nil.
type Registry struct {
	mu      sync.RWMutex
	topics  map[string]*topicSubs
	onFirst func(topic string)
	onLast  func(topic string)
	logger  *slog.Logger
}

// NewRegistry creates a registry. Pass nil logger for the default.
func NewRegistry(onFirst, onLast func(topic string), logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		topics:  make(map[string]*topicSubs),
		onFirst: onFirst,
		onLast:  onLast,
		logger:  logger.With("component", "registry"),
	}
}

// Subscribe registers handler for topic and returns a closure that removes
// exactly this handler.
func (r *Registry) Subscribe(topic string, handler Handler) func() {
	id := uuid.New().String()

	r.mu.Lock()
	subs, ok := r.topics[topic]
	if !ok {
		subs = &topicSubs{handlers: make(map[string]Handler)}
		r.topics[topic] = subs
	}
	first := len(subs.order) == 0
	subs.handlers[id] = handler
	subs.order = append(subs.order, id)
	r.mu.Unlock()

	r.logger.Debug("handler subscribed", "topic", topic, "sub_id", id)

	if first && r.onFirst != nil {
		r.onFirst(topic)
	}

	return func() { r.remove(topic, id) }
}

// remove drops one handler; removing the topic's last handler releases the
// underlying channel subscription.
func (r *Registry) remove(topic, id string) {
	r.mu.Lock()
	subs, ok := r.topics[topic]
	if !ok {
		r.mu.Unlock()
		return
	}
	if _, exists := subs.handlers[id]; !exists {
		r.mu.Unlock()
		return
	}
	delete(subs.handlers, id)
	for i, sid := range subs.order {
		if sid == id {
			subs.order = append(subs.order[:i], subs.order[i+1:]...)
			break
		}
	}
	last := len(subs.order) == 0
	if last {
		delete(r.topics, topic)
	}
	r.mu.Unlock()

	r.logger.Debug("handler unsubscribed", "topic", topic, "sub_id", id)

	if last && r.onLast != nil {
		r.onLast(topic)
	}
}

// Dispatch delivers a frame payload to every handler registered for topic, in
// registration order. A panicking handler is recovered so the remaining
// handlers still run. Invalid JSON payloads are logged and dropped.
func (r *Registry) Dispatch(topic string, payload json.RawMessage) {
	if len(payload) == 0 || !json.Valid(payload) {
		metrics.FramesDropped.Inc()
		r.logger.Warn("dropping frame with invalid payload", "topic", topic)
		return
	}

	r.mu.RLock()
	subs, ok := r.topics[topic]
	if !ok {
		r.mu.RUnlock()
		return
	}
	handlers := make([]Handler, 0, len(subs.order))
	for _, id := range subs.order {
		if h, exists := subs.handlers[id]; exists {
			handlers = append(handlers, h)
		}
	}
	r.mu.RUnlock()

	metrics.FramesDispatched.Inc()

	for _, h := range handlers {
		r.invoke(topic, payload, h)
	}
}

// invoke runs one handler with panic isolation.
func (r *Registry) invoke(topic string, payload json.RawMessage, h Handler) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("handler panicked", "topic", topic, "panic", rec)
		}
	}()
	h(topic, payload)
}

// Topics returns every topic that currently has at least one handler.
func (r *Registry) Topics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	topics := make([]string, 0, len(r.topics))
	for t := range r.topics {
		topics = append(topics, t)
	}
	return topics
}

// HasHandlers reports whether topic has at least one handler.
func (r *Registry) HasHandlers(topic string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.topics[topic]
	return ok
}

// Clear drops every subscription without invoking onLast.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = make(map[string]*topicSubs)
}
