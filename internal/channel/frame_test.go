// ABOUTME: Tests for the frame codec and topic helpers
// ABOUTME: Frames without a type or topic are rejected before dispatch

package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrame(t *testing.T) {
	f, err := decodeFrame([]byte(`{"type":"MESSAGE","topic":"/user/1/notifications","payload":{"id":"7"}}`))
	require.NoError(t, err)
	assert.Equal(t, FrameMessage, f.Type)
	assert.Equal(t, "/user/1/notifications", f.Topic)
	assert.JSONEq(t, `{"id":"7"}`, string(f.Payload))
}

func TestDecodeFrame_Rejections(t *testing.T) {
	cases := map[string]string{
		"not json":      `{oops`,
		"missing type":  `{"topic":"/user/1/chat"}`,
		"missing topic": `{"type":"MESSAGE"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decodeFrame([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestTopicHelpers(t *testing.T) {
	assert.Equal(t, "/user/B-1/notifications", NotificationTopic("B-1"))
	assert.Equal(t, "/user/B-1/chat", ChatInboxTopic("B-1"))
}
