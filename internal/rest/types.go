// ABOUTME: Wire-level record types returned by the marketplace REST API
// ABOUTME: Tolerant of backend quirks like numeric ids and mixed timestamp formats

package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// StringID is an identifier that the backend serializes sometimes as a JSON
// string and sometimes as a number. It always normalizes to a string.
type StringID string

// UnmarshalJSON accepts both `"42"` and `42`.
func (s *StringID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = StringID(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("id is neither string nor number: %w", err)
	}
	*s = StringID(num.String())
	return nil
}

// FlexTime is a timestamp the backend serializes either as RFC3339 or as
// epoch milliseconds.
type FlexTime struct {
	time.Time
}

// UnmarshalJSON accepts RFC3339 strings, epoch milliseconds, and null.
func (t *FlexTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339, str)
		if err != nil {
			return fmt.Errorf("parsing timestamp %q: %w", str, err)
		}
		t.Time = parsed
		return nil
	}
	millis, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("timestamp is neither RFC3339 nor epoch millis: %w", err)
	}
	t.Time = time.UnixMilli(millis)
	return nil
}

// NotificationRecord is a raw notification as the backend serializes it.
type NotificationRecord struct {
	ID          StringID  `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Category    string    `json:"category"`
	IsRead      bool      `json:"is_read"`
	ReadAt      *FlexTime `json:"read_at"`
	CreatedAt   FlexTime  `json:"created_at"`
	RecipientID StringID  `json:"recipient_id"`
}

// Read reports whether the backend already marked this notification read.
func (n NotificationRecord) Read() bool {
	return n.IsRead || (n.ReadAt != nil && !n.ReadAt.IsZero())
}

// ConversationRecord is a raw conversation as the backend serializes it.
type ConversationRecord struct {
	ID            StringID `json:"id"`
	ListingID     StringID `json:"listing_id"`
	BuyerID       StringID `json:"buyer_id"`
	SellerID      StringID `json:"seller_id"`
	LastMessage   string   `json:"last_message"`
	LastMessageAt FlexTime `json:"last_message_at"`
	UnreadCount   int      `json:"unread_count"`
}

// MessageRecord is a raw chat message as the backend serializes it.
type MessageRecord struct {
	ID             StringID `json:"id"`
	ConversationID StringID `json:"conversation_id"`
	SenderID       StringID `json:"sender_id"`
	ReceiverID     StringID `json:"receiver_id"`
	Body           string   `json:"body"`
	AttachmentURL  string   `json:"attachment_url"`
	SentAt         FlexTime `json:"sent_at"`
}

// ListingRecord is the display metadata of a referenced listing.
type ListingRecord struct {
	ID       StringID `json:"id"`
	Title    string   `json:"title"`
	ImageURL string   `json:"image_url"`
	SellerID StringID `json:"seller_id"`
}

// UserRecord is the display identity of a marketplace user.
type UserRecord struct {
	ID          StringID `json:"id"`
	DisplayName string   `json:"display_name"`
	AvatarURL   string   `json:"avatar_url"`
}
