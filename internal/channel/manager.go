// ABOUTME: Push channel connection manager: dial, heartbeat, reconnect, resubscribe
// ABOUTME: Owns the single WebSocket per session and raises lifecycle events

package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sgmarket/pulse-client/internal/config"
	"github.com/sgmarket/pulse-client/internal/metrics"
	"github.com/sgmarket/pulse-client/internal/session"
)

// Close reasons reported through Listener.OnClosed.
const (
	ReasonDegraded         = "reconnect attempts exhausted"
	ReasonClientDisconnect = "client disconnect"
)

// Listener observes channel lifecycle events. All callbacks run on internal
// goroutines and must not block.
type Listener interface {
	OnConnected()
	OnError(err error)
	OnClosed(reason string)
}

// Manager owns the session's single push channel. It dials with the session's
// bearer credential, keeps the socket alive with ping/pong heartbeats,
// reconnects with a fixed delay up to a bounded attempt count, and
// re-subscribes every registered topic after each successful (re)connect.
type Manager struct {
	cfg      config.ChannelConfig
	url      string
	sess     *session.Context
	dialer   Dialer
	logger   *slog.Logger
	registry *Registry

	mu        sync.Mutex
	writeMu   sync.Mutex
	state     State
	conn      Conn
	gen       int // connection generation; stale goroutines bail out
	attempts  int
	done      chan struct{}
	listeners []Listener
}

// Option customizes a Manager.
type Option func(*Manager)

// WithDialer substitutes the production WebSocket dialer (used by tests).
func WithDialer(d Dialer) Option {
	return func(m *Manager) { m.dialer = d }
}

// NewManager creates a channel manager bound to a session. The manager
// subscribes to session events: a switch to the administrative role tears the
// channel down, and a credential refresh recreates it.
func NewManager(cfg config.ChannelConfig, url string, sess *session.Context, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		cfg:    cfg,
		url:    url,
		sess:   sess,
		dialer: newWSDialer(),
		logger: logger.With("component", "channel"),
	}
	m.registry = NewRegistry(m.announceSubscribe, m.announceUnsubscribe, logger)

	for _, opt := range opts {
		opt(m)
	}

	sess.Events().Subscribe(func(ev session.Event) {
		switch ev.Kind {
		case session.RoleChanged:
			if ev.Role == session.RoleAdmin {
				go m.Disconnect()
			}
		case session.CredentialChanged:
			go m.refreshCredential()
		}
	})

	return m
}

// AddListener registers a lifecycle listener.
func (m *Manager) AddListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// State returns the current channel state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers a handler for a topic. When the topic gains its first
// handler while the channel is connected, the wire subscription is issued.
// The returned closure removes exactly this handler.
func (m *Manager) Subscribe(topic string, handler Handler) func() {
	return m.registry.Subscribe(topic, handler)
}

// Registry exposes the subscription registry (for dispatch inspection).
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Connect establishes the channel. It is a silent no-op when no valid
// credential is available or when the active role is administrative:
// admin sessions never use the push channel.
func (m *Manager) Connect(ctx context.Context) {
	if m.sess.Role() == session.RoleAdmin {
		m.logger.Debug("administrative session, push channel disabled")
		return
	}
	token, err := m.sess.Token()
	if err != nil {
		m.logger.Debug("push channel not started", "reason", err)
		return
	}

	m.mu.Lock()
	switch m.state {
	case StateConnecting, StateConnected, StateReconnecting:
		m.mu.Unlock()
		return
	}
	m.state = StateConnecting
	m.attempts = 0
	m.mu.Unlock()

	if err := m.dial(ctx, token); err != nil {
		m.mu.Lock()
		m.state = StateDisconnected
		m.mu.Unlock()
		m.logger.Warn("channel connect failed", "error", err)
		m.emitError(err)
	}
}

// Disconnect tears down the channel, clears all registry state, and cancels
// the heartbeat and any in-flight reconnect. Idempotent.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.state == StateDisconnected && m.conn == nil {
		m.mu.Unlock()
		return
	}
	m.state = StateDisconnected
	m.gen++
	if m.done != nil {
		close(m.done)
		m.done = nil
	}
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.mu.Unlock()

	m.registry.Clear()
	m.logger.Info("channel disconnected")
	m.emitClosed(ReasonClientDisconnect)
}

// Send writes a SEND frame to the channel. Failures are logged and dropped;
// sending while not connected is never fatal.
func (m *Manager) Send(topic string, payload any) {
	m.mu.Lock()
	conn := m.conn
	state := m.state
	m.mu.Unlock()

	if state != StateConnected || conn == nil {
		m.logger.Warn("send dropped: channel not connected",
			"topic", topic,
			"state", state.String())
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		m.logger.Warn("send dropped: payload not serializable", "topic", topic, "error", err)
		return
	}
	m.writeFrame(conn, Frame{Type: FrameSend, Topic: topic, Payload: data})
}

// dial performs the handshake and, on success, transitions to Connected,
// re-subscribes every registered topic, and starts the pump goroutines.
// The generation is reserved before the handshake: a dial that finishes after
// a newer dial has started (or after an explicit Disconnect) discards its
// socket instead of installing a second live connection.
func (m *Manager) dial(ctx context.Context, token string) error {
	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, err := m.dialer.DialContext(ctx, m.url, header)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", m.url, err)
	}

	m.mu.Lock()
	if gen != m.gen || m.state == StateDisconnected {
		m.mu.Unlock()
		m.logger.Debug("discarding superseded dial")
		conn.Close()
		return nil
	}
	if m.conn != nil {
		m.conn.Close()
	}
	m.conn = conn
	m.state = StateConnected
	m.attempts = 0
	done := make(chan struct{})
	m.done = done
	m.mu.Unlock()

	// A missed pong trips the read deadline and forces a reconnect.
	deadline := 2 * m.cfg.HeartbeatInterval
	_ = conn.SetReadDeadline(time.Now().Add(deadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(deadline))
	})

	metrics.ChannelConnects.Inc()
	m.logger.Info("channel connected", "url", m.url)

	m.emitConnected()
	m.resubscribe(conn)

	go m.heartbeat(conn, done)
	go m.readLoop(conn, gen)
	return nil
}

// resubscribe re-issues the wire subscription for every topic that still has
// handlers, preserving consumer-visible continuity across reconnects.
func (m *Manager) resubscribe(conn Conn) {
	for _, topic := range m.registry.Topics() {
		m.writeFrame(conn, Frame{Type: FrameSubscribe, Topic: topic})
	}
}

// readLoop consumes inbound frames until the connection dies or a newer
// connection supersedes it. Frames from a superseded connection are never
// dispatched; exactly one read loop feeds the registry at a time.
func (m *Manager) readLoop(conn Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.handleReadError(gen, err)
			return
		}

		m.mu.Lock()
		stale := gen != m.gen
		m.mu.Unlock()
		if stale {
			conn.Close()
			return
		}

		frame, err := decodeFrame(data)
		if err != nil {
			metrics.FramesDropped.Inc()
			m.logger.Warn("dropping unparseable frame", "error", err)
			continue
		}
		if frame.Type == FrameMessage {
			m.registry.Dispatch(frame.Topic, frame.Payload)
		}
	}
}

// handleReadError reacts to an unexpected close by entering Reconnecting.
// Reads that fail because of an explicit Disconnect or a superseded
// connection are ignored.
func (m *Manager) handleReadError(gen int, err error) {
	m.mu.Lock()
	if gen != m.gen || m.state == StateDisconnected {
		m.mu.Unlock()
		return
	}
	m.state = StateReconnecting
	if m.done != nil {
		close(m.done)
		m.done = nil
	}
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.mu.Unlock()

	m.logger.Warn("channel closed unexpectedly", "error", err)
	m.emitClosed(err.Error())
	go m.reconnect()
}

// reconnect retries the dial with a fixed delay until it succeeds, the
// attempt budget is exhausted (Degraded), or an explicit Disconnect lands.
func (m *Manager) reconnect() {
	for {
		m.mu.Lock()
		if m.state != StateReconnecting {
			m.mu.Unlock()
			return
		}
		if m.attempts >= m.cfg.MaxReconnects {
			m.state = StateDegraded
			attempts := m.attempts
			m.mu.Unlock()
			m.logger.Error("reconnect attempts exhausted, channel degraded", "attempts", attempts)
			m.emitClosed(ReasonDegraded)
			return
		}
		m.attempts++
		attempt := m.attempts
		m.mu.Unlock()

		time.Sleep(m.cfg.ReconnectDelay)

		m.mu.Lock()
		cancelled := m.state != StateReconnecting
		m.mu.Unlock()
		if cancelled {
			return
		}

		token, err := m.sess.Token()
		if err != nil {
			m.logger.Warn("reconnect skipped: no valid credential", "attempt", attempt)
			m.emitError(err)
			continue
		}

		metrics.ChannelReconnects.Inc()
		m.logger.Info("reconnecting channel", "attempt", attempt, "max", m.cfg.MaxReconnects)

		if err := m.dial(context.Background(), token); err != nil {
			m.logger.Warn("reconnect attempt failed", "attempt", attempt, "error", err)
			m.emitError(err)
			continue
		}
		return
	}
}

// heartbeat pings the peer at a fixed interval. A failed ping closes the
// connection, which the read loop turns into a reconnect.
func (m *Manager) heartbeat(conn Conn, done chan struct{}) {
	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				m.logger.Warn("heartbeat ping failed", "error", err)
				conn.Close()
				return
			}
		}
	}
}

// refreshCredential recreates the channel after a token refresh, keeping the
// registry intact so consumers stay subscribed.
func (m *Manager) refreshCredential() {
	m.mu.Lock()
	active := m.state == StateConnected || m.state == StateReconnecting
	m.mu.Unlock()
	if !active {
		return
	}

	token, err := m.sess.Token()
	if err != nil {
		m.Disconnect()
		return
	}

	m.mu.Lock()
	m.gen++
	if m.done != nil {
		close(m.done)
		m.done = nil
	}
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.state = StateConnecting
	m.mu.Unlock()

	m.logger.Info("recreating channel after credential refresh")

	if err := m.dial(context.Background(), token); err != nil {
		m.mu.Lock()
		m.state = StateReconnecting
		m.mu.Unlock()
		m.emitError(err)
		go m.reconnect()
	}
}

// announceSubscribe issues the wire SUBSCRIBE when a topic gains its first
// handler while connected. Offline subscriptions are replayed on connect.
func (m *Manager) announceSubscribe(topic string) {
	m.mu.Lock()
	conn := m.conn
	connected := m.state == StateConnected
	m.mu.Unlock()

	if connected && conn != nil {
		m.writeFrame(conn, Frame{Type: FrameSubscribe, Topic: topic})
	}
}

// announceUnsubscribe releases the wire subscription when a topic loses its
// last handler.
func (m *Manager) announceUnsubscribe(topic string) {
	m.mu.Lock()
	conn := m.conn
	connected := m.state == StateConnected
	m.mu.Unlock()

	if connected && conn != nil {
		m.writeFrame(conn, Frame{Type: FrameUnsubscribe, Topic: topic})
	}
}

// writeFrame serializes one frame onto the socket. Write failures are logged;
// the read loop owns failure recovery.
func (m *Manager) writeFrame(conn Conn, f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		m.logger.Error("marshaling frame", "type", string(f.Type), "error", err)
		return
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		m.logger.Warn("writing frame failed", "type", string(f.Type), "topic", f.Topic, "error", err)
	}
}

func (m *Manager) snapshotListeners() []Listener {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Listener, len(m.listeners))
	copy(out, m.listeners)
	return out
}

func (m *Manager) emitConnected() {
	for _, l := range m.snapshotListeners() {
		l.OnConnected()
	}
}

func (m *Manager) emitError(err error) {
	for _, l := range m.snapshotListeners() {
		l.OnError(err)
	}
}

func (m *Manager) emitClosed(reason string) {
	for _, l := range m.snapshotListeners() {
		l.OnClosed(reason)
	}
}
