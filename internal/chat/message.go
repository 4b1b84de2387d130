// ABOUTME: Canonical chat message shape and raw-record mapping
// ABOUTME: Authorship (isMine) is derived per message from the role-active identity id

package chat

import (
	"time"

	"github.com/sgmarket/pulse-client/internal/rest"
)

// Message is the canonical, normalized chat message.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	ReceiverID     string
	Body           string
	AttachmentURL  string
	SentAt         time.Time
	// IsMine is derived, never transmitted: senderId == the identity id
	// active for the session's current role.
	IsMine bool
	// Pending marks an optimistic local echo whose REST send has not been
	// acknowledged yet.
	Pending bool
}

// mapMessage converts a raw record, resolving authorship against localID,
// the identity id active for the session's role at mapping time.
func mapMessage(rec rest.MessageRecord, localID string) Message {
	return Message{
		ID:             string(rec.ID),
		ConversationID: string(rec.ConversationID),
		SenderID:       string(rec.SenderID),
		ReceiverID:     string(rec.ReceiverID),
		Body:           rec.Body,
		AttachmentURL:  rec.AttachmentURL,
		SentAt:         rec.SentAt.Time,
		IsMine:         localID != "" && string(rec.SenderID) == localID,
	}
}

// preview renders the one-line conversation preview for a message.
func preview(m Message) string {
	if m.Body != "" {
		return m.Body
	}
	if m.AttachmentURL != "" {
		return "[attachment]"
	}
	return ""
}
