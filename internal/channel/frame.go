// ABOUTME: Wire frame codec and topic helpers for the push channel
// ABOUTME: All frames are JSON envelopes with a type, a topic, and an optional payload

package channel

import (
	"encoding/json"
	"fmt"
)

// FrameType discriminates the JSON frames carried over the channel.
type FrameType string

const (
	FrameSubscribe   FrameType = "SUBSCRIBE"
	FrameUnsubscribe FrameType = "UNSUBSCRIBE"
	FrameMessage     FrameType = "MESSAGE"
	FrameSend        FrameType = "SEND"
)

// Frame is the JSON envelope exchanged over the channel.
type Frame struct {
	Type    FrameType       `json:"type"`
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// decodeFrame parses a raw inbound frame, rejecting envelopes without a type
// or topic.
func decodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("parsing frame: %w", err)
	}
	if f.Type == "" {
		return Frame{}, fmt.Errorf("frame missing type")
	}
	if f.Topic == "" {
		return Frame{}, fmt.Errorf("frame missing topic")
	}
	return f, nil
}

// NotificationTopic returns the personal notification topic for a user.
func NotificationTopic(userID string) string {
	return "/user/" + userID + "/notifications"
}

// ChatInboxTopic returns the personal chat inbox topic for a user.
func ChatInboxTopic(userID string) string {
	return "/user/" + userID + "/chat"
}
