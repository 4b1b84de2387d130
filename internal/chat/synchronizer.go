// ABOUTME: Per-conversation message store merging REST history with push-delivered messages
// ABOUTME: Handles optimistic local sends, authorship resolution, and sentAt ordering

package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sgmarket/pulse-client/internal/metrics"
	"github.com/sgmarket/pulse-client/internal/rest"
	"github.com/sgmarket/pulse-client/internal/session"
)

// Messenger is the REST surface the synchronizer consumes.
type Messenger interface {
	ListMessages(ctx context.Context, conversationID string) ([]rest.MessageRecord, error)
	SendMessage(ctx context.Context, req rest.SendMessageRequest) (rest.MessageRecord, error)
}

// Synchronizer owns the in-memory message lists of the conversations the UI
// currently tracks. It merges REST-fetched history with push-delivered
// messages and reconciles optimistic local sends. UI layers read snapshots
// and never mutate the lists directly.
type Synchronizer struct {
	api    Messenger
	sess   *session.Context
	list   *ListBuilder // may be nil when no list view is open
	logger *slog.Logger

	mu            sync.RWMutex
	conversations map[string][]Message
}

// NewSynchronizer creates a synchronizer. A role change re-derives authorship
// for every tracked message, since the comparison id differs by role context.
func NewSynchronizer(api Messenger, sess *session.Context, list *ListBuilder, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Synchronizer{
		api:           api,
		sess:          sess,
		list:          list,
		logger:        logger.With("component", "chatsync"),
		conversations: make(map[string][]Message),
	}

	sess.Events().Subscribe(func(ev session.Event) {
		if ev.Kind == session.RoleChanged {
			s.rederiveAuthorship()
		}
	})

	return s
}

// LoadHistory fetches the conversation's messages and replaces the tracked
// list wholesale. A full reload, not an incremental merge: it guarantees
// consistency after any external mutation such as marking read.
func (s *Synchronizer) LoadHistory(ctx context.Context, conversationID string) ([]Message, error) {
	records, err := s.api.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	msgs := make([]Message, 0, len(records))
	for _, rec := range records {
		// Authorship is resolved per message against the identity id active
		// right now; buyer and seller ids can both belong to this account.
		msgs = append(msgs, mapMessage(rec, s.sess.Identity().ActiveID()))
	}

	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].SentAt.Before(msgs[j].SentAt)
	})

	s.mu.Lock()
	s.conversations[conversationID] = msgs
	s.mu.Unlock()

	return append([]Message(nil), msgs...), nil
}

// HandleFrame consumes one push frame from the chat inbox topic. It matches
// channel.Handler so it can be subscribed directly.
func (s *Synchronizer) HandleFrame(topic string, payload json.RawMessage) {
	var rec rest.MessageRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		s.logger.Warn("dropping malformed message frame", "topic", topic, "error", err)
		return
	}
	s.onPushMessage(rec)
}

// onPushMessage appends a push-delivered message to its conversation when
// tracked and forwards the preview to the list builder. The authoritative
// echo of an optimistic send lands here too; both entries may coexist.
func (s *Synchronizer) onPushMessage(rec rest.MessageRecord) {
	msg := mapMessage(rec, s.sess.Identity().ActiveID())
	if msg.ConversationID == "" {
		s.logger.Warn("dropping message frame without conversation id")
		return
	}

	s.mu.Lock()
	if msgs, tracked := s.conversations[msg.ConversationID]; tracked {
		s.conversations[msg.ConversationID] = insertOrdered(msgs, msg)
	}
	s.mu.Unlock()

	if s.list != nil {
		s.list.ApplyLiveUpdate(msg.ConversationID, preview(msg), msg.SentAt)
	}
}

// SendMessage appends an optimistic local echo immediately, then issues the
// REST send. On failure the optimistic entry is intentionally left in place
// and the error surfaces to the caller: the backend is the source of truth,
// and a blind rollback could remove a message that succeeded after a timeout.
func (s *Synchronizer) SendMessage(ctx context.Context, conversationID, body string, attachment *rest.Attachment) (Message, error) {
	if body == "" && attachment == nil {
		return Message{}, rest.ErrEmptyMessage
	}

	senderID := s.sess.Identity().ActiveID()

	optimistic := Message{
		ID:             "local-" + uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           body,
		SentAt:         time.Now(),
		IsMine:         true,
		Pending:        true,
	}
	if attachment != nil {
		optimistic.AttachmentURL = attachment.Filename
	}

	s.mu.Lock()
	s.conversations[conversationID] = append(s.conversations[conversationID], optimistic)
	s.mu.Unlock()

	if s.list != nil {
		s.list.ApplyLiveUpdate(conversationID, preview(optimistic), optimistic.SentAt)
	}

	var listingID string
	if s.list != nil {
		if conv, ok := s.list.Get(conversationID); ok {
			listingID = conv.ListingID
		}
	}

	metrics.MessagesSent.Inc()
	rec, err := s.api.SendMessage(ctx, rest.SendMessageRequest{
		ConversationID: conversationID,
		SenderID:       senderID,
		ListingID:      listingID,
		Body:           body,
		Attachment:     attachment,
	})
	if err != nil {
		s.logger.Warn("message send failed, optimistic entry kept",
			"conversation_id", conversationID,
			"error", err)
		return optimistic, err
	}

	s.markAcknowledged(conversationID, optimistic.ID)

	return mapMessage(rec, s.sess.Identity().ActiveID()), nil
}

// markAcknowledged clears the pending flag on an optimistic entry once the
// REST send succeeds. The entry itself stays; the authoritative copy may
// arrive under a different id before, during, or after this call.
func (s *Synchronizer) markAcknowledged(conversationID, localID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.conversations[conversationID] {
		if s.conversations[conversationID][i].ID == localID {
			s.conversations[conversationID][i].Pending = false
			return
		}
	}
}

// Snapshot returns a copy of a tracked conversation's messages. The second
// return reports whether the conversation is tracked at all.
func (s *Synchronizer) Snapshot(conversationID string) ([]Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs, ok := s.conversations[conversationID]
	if !ok {
		return nil, false
	}
	return append([]Message(nil), msgs...), true
}

// Release drops a conversation's tracked list when its view closes. The
// shared channel is untouched: the connection manager is session-scoped,
// not view-scoped.
func (s *Synchronizer) Release(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, conversationID)
}

// rederiveAuthorship recomputes IsMine for every tracked message after a
// role change invalidates identity snapshots.
func (s *Synchronizer) rederiveAuthorship() {
	localID := s.sess.Identity().ActiveID()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, msgs := range s.conversations {
		for i := range msgs {
			msgs[i].IsMine = localID != "" && msgs[i].SenderID == localID
		}
	}
}

// insertOrdered appends msg, restoring the non-decreasing sentAt order when
// the new message arrived out of order.
func insertOrdered(msgs []Message, msg Message) []Message {
	msgs = append(msgs, msg)
	if n := len(msgs); n > 1 && msgs[n-1].SentAt.Before(msgs[n-2].SentAt) {
		sort.SliceStable(msgs, func(i, j int) bool {
			return msgs[i].SentAt.Before(msgs[j].SentAt)
		})
	}
	return msgs
}
