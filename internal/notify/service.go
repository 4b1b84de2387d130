// ABOUTME: Dual-strategy notification delivery: push via the channel, poll via REST
// ABOUTME: Normalizes, deduplicates against the latest unread id, and fans out one canonical stream

package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sgmarket/pulse-client/internal/channel"
	"github.com/sgmarket/pulse-client/internal/config"
	"github.com/sgmarket/pulse-client/internal/metrics"
	"github.com/sgmarket/pulse-client/internal/rest"
	"github.com/sgmarket/pulse-client/internal/session"
)

// Mode selects the notification source.
type Mode string

const (
	ModePush Mode = "push"
	ModePoll Mode = "poll"
)

// Consumer receives canonical notifications. Consumers own their display
// lifetime (auto-dismiss timers and the like).
type Consumer func(Notification)

// Poller is the REST surface the poll mode consumes.
type Poller interface {
	ListNotifications(ctx context.Context, page, size int) ([]rest.NotificationRecord, error)
}

// Channel is the push surface the service subscribes through.
type Channel interface {
	Subscribe(topic string, h channel.Handler) func()
	AddListener(l channel.Listener)
}

// Service delivers notifications to UI consumers from whichever source is
// healthy. It prefers push; a channel error before the first connection or a
// degraded channel latches the service into poll mode for the rest of the
// session, so the source never oscillates.
type Service struct {
	cfg    config.NotifyConfig
	ch     Channel
	api    Poller
	sess   *session.Context
	logger *slog.Logger

	mu            sync.Mutex
	running       bool
	mode          Mode
	fellBack      bool // sticky: poll for the remainder of the session
	parked        bool // push wanted but no identity; a covering poll runs meanwhile
	connectedOnce bool
	lastUnreadID  string // id of the most recently emitted unread notification
	unsubPush     func()
	cancelPoll    context.CancelFunc
	consumers     map[string]Consumer
	order         []string
}

// New creates a delivery service wired to the channel and the REST poller.
// The service listens to channel lifecycle events to drive its fallback and
// to session role changes to re-derive the personal topic.
func New(cfg config.NotifyConfig, ch Channel, api Poller, sess *session.Context, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		cfg:       cfg,
		ch:        ch,
		api:       api,
		sess:      sess,
		logger:    logger.With("component", "notify"),
		consumers: make(map[string]Consumer),
	}
	ch.AddListener(s)

	sess.Events().Subscribe(func(ev session.Event) {
		if ev.Kind == session.RoleChanged {
			go s.rebindPush()
		}
	})

	return s
}

// OnNotification registers a consumer for the canonical event stream. The
// returned closure removes it.
func (s *Service) OnNotification(c Consumer) func() {
	id := uuid.New().String()

	s.mu.Lock()
	s.consumers[id] = c
	s.order = append(s.order, id)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.consumers[id]; !ok {
			return
		}
		delete(s.consumers, id)
		for i, cid := range s.order {
			if cid == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
}

// Start begins delivery in the requested mode. A session that has already
// fallen back to polling stays in poll regardless of the requested mode.
func (s *Service) Start(mode Mode) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.parked = false
	if s.fellBack {
		mode = ModePoll
	}
	s.mode = mode
	s.mu.Unlock()

	switch mode {
	case ModePush:
		s.startPush()
	default:
		s.startPoll()
	}
}

// Stop cancels the poll timer and releases the push subscription. Safe to
// call multiple times.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.parked = false
	unsub := s.unsubPush
	s.unsubPush = nil
	cancel := s.cancelPoll
	s.cancelPoll = nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if cancel != nil {
		cancel()
	}
	s.logger.Debug("delivery stopped")
}

// OnConnected implements channel.Listener.
func (s *Service) OnConnected() {
	s.mu.Lock()
	s.connectedOnce = true
	s.mu.Unlock()
}

// OnError implements channel.Listener. An error before the first successful
// connection means push is unavailable; fall back to polling.
func (s *Service) OnError(err error) {
	s.mu.Lock()
	neverConnected := !s.connectedOnce
	s.mu.Unlock()

	if neverConnected {
		s.fallBack("channel error before first connection", err)
	}
}

// OnClosed implements channel.Listener. A degraded channel also latches the
// poll fallback.
func (s *Service) OnClosed(reason string) {
	if reason == channel.ReasonDegraded {
		s.fallBack(reason, nil)
	}
}

// startPush subscribes the recipient's personal notification topic. Without a
// usable identity the subscription is parked behind a covering poll until a
// role change supplies one; parking is not the sticky session fallback.
func (s *Service) startPush() {
	recipient := s.sess.Identity().ActiveID()
	if recipient == "" {
		s.mu.Lock()
		if !s.running || s.mode != ModePush {
			s.mu.Unlock()
			return
		}
		s.parked = true
		s.mu.Unlock()

		s.logger.Warn("no identity for push topic, parking push and polling meanwhile")
		s.startPoll()
		return
	}

	topic := channel.NotificationTopic(recipient)
	unsub := s.ch.Subscribe(topic, s.handleFrame)

	s.mu.Lock()
	if !s.running || s.mode != ModePush {
		// Stopped or fell back while subscribing.
		s.mu.Unlock()
		unsub()
		return
	}
	s.unsubPush = unsub
	s.mu.Unlock()

	s.logger.Info("push delivery started", "topic", topic)
}

// startPoll launches the fixed-interval REST poll loop.
func (s *Service) startPoll() {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		cancel()
		return
	}
	if s.cancelPoll != nil {
		// A poll loop is already running.
		s.mu.Unlock()
		cancel()
		return
	}
	s.cancelPoll = cancel
	s.mu.Unlock()

	s.logger.Info("poll delivery started", "interval", s.cfg.PollInterval)

	go s.pollLoop(ctx)
}

// pollLoop fetches the most recent page on a fixed interval and routes the
// newest unread record through the dedup gate.
func (s *Service) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollOnce(ctx)
		}
	}
}

// pollOnce runs one fetch cycle. Only the newest unread record is a delivery
// candidate: older entries are history the badge list already shows, and the
// latest-id dedup is sized for exactly this candidate stream.
func (s *Service) pollOnce(ctx context.Context) {
	metrics.PollCycles.Inc()

	records, err := s.api.ListNotifications(ctx, 0, s.cfg.PageSize)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("notification poll failed", "error", err)
		}
		return
	}

	newest, ok := newestUnread(records)
	if !ok {
		return
	}
	s.deliver(newest)
}

// newestUnread picks the unread record with the latest creation time.
func newestUnread(records []rest.NotificationRecord) (rest.NotificationRecord, bool) {
	var newest rest.NotificationRecord
	found := false
	for _, rec := range records {
		if rec.Read() {
			continue
		}
		if !found || rec.CreatedAt.After(newest.CreatedAt.Time) {
			newest = rec
			found = true
		}
	}
	return newest, found
}

// handleFrame consumes one push frame from the personal notification topic.
func (s *Service) handleFrame(topic string, payload json.RawMessage) {
	var rec rest.NotificationRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		s.logger.Warn("dropping malformed notification frame", "topic", topic, "error", err)
		return
	}
	s.deliver(rec)
}

// deliver runs the dedup gate and emits the canonical notification.
// A candidate is suppressed when the backend already marked it read or when
// its id matches the most recently emitted unread id: the one failure mode
// this guards is the same latest notification re-observed across consecutive
// polls or across a push-then-poll switch.
func (s *Service) deliver(rec rest.NotificationRecord) {
	if string(rec.ID) == "" {
		s.logger.Warn("dropping notification without id")
		return
	}
	if rec.Read() {
		metrics.NotificationsSuppressed.Inc()
		return
	}

	s.mu.Lock()
	if string(rec.ID) == s.lastUnreadID {
		s.mu.Unlock()
		metrics.NotificationsSuppressed.Inc()
		s.logger.Debug("suppressed duplicate notification", "id", string(rec.ID))
		return
	}
	s.lastUnreadID = string(rec.ID)
	consumers := make([]Consumer, 0, len(s.order))
	for _, id := range s.order {
		if c, ok := s.consumers[id]; ok {
			consumers = append(consumers, c)
		}
	}
	s.mu.Unlock()

	n := fromRecord(rec, s.cfg.RecencyWindow)
	metrics.NotificationsEmitted.Inc()

	for _, c := range consumers {
		c(n)
	}
}

// fallBack latches poll mode for the remainder of the session and, when push
// delivery is active, swaps the source without dropping the stream.
func (s *Service) fallBack(reason string, cause error) {
	s.mu.Lock()
	if s.fellBack {
		s.mu.Unlock()
		return
	}
	s.fellBack = true
	swap := s.running && s.mode == ModePush
	s.mode = ModePoll
	unsub := s.unsubPush
	s.unsubPush = nil
	s.mu.Unlock()

	if cause != nil {
		s.logger.Info("falling back to poll delivery", "reason", reason, "cause", cause)
	} else {
		s.logger.Info("falling back to poll delivery", "reason", reason)
	}

	if unsub != nil {
		unsub()
	}
	if swap {
		s.startPoll()
	}
}

// rebindPush re-derives the personal topic after a role change: the local
// identity id the topic is scoped by differs per role. A parked subscription
// gets another chance here; its covering poll is cancelled first.
func (s *Service) rebindPush() {
	s.mu.Lock()
	if !s.running || s.mode != ModePush {
		s.mu.Unlock()
		return
	}
	s.parked = false
	unsub := s.unsubPush
	s.unsubPush = nil
	cancel := s.cancelPoll
	s.cancelPoll = nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if cancel != nil {
		cancel()
	}
	s.startPush()
}
