// ABOUTME: Tests for message mapping and preview rendering
// ABOUTME: Authorship derivation against the active identity id

package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sgmarket/pulse-client/internal/rest"
)

func TestMapMessage_Authorship(t *testing.T) {
	rec := rest.MessageRecord{ID: "m-1", SenderID: "B-7"}

	assert.True(t, mapMessage(rec, "B-7").IsMine)
	assert.False(t, mapMessage(rec, "S-7").IsMine)
	assert.False(t, mapMessage(rec, "").IsMine, "no local identity means nothing is mine")
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "hello", preview(Message{Body: "hello", AttachmentURL: "x.jpg"}))
	assert.Equal(t, "[attachment]", preview(Message{AttachmentURL: "x.jpg"}))
	assert.Equal(t, "", preview(Message{}))
}
