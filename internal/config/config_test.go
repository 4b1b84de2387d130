// ABOUTME: Tests for configuration loading, env expansion, and duration parsing
// ABOUTME: Verifies defaults and validation failures

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `
gateway:
  rest_base_url: https://api.example.com
  push_url: wss://push.example.com/ws
`

func TestParse_MinimalConfigAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.Gateway.RESTBaseURL)
	assert.Equal(t, DefaultHeartbeatInterval, cfg.Channel.HeartbeatInterval)
	assert.Equal(t, DefaultReconnectDelay, cfg.Channel.ReconnectDelay)
	assert.Equal(t, DefaultMaxReconnects, cfg.Channel.MaxReconnects)
	assert.Equal(t, DefaultPollInterval, cfg.Notify.PollInterval)
	assert.Equal(t, DefaultRecencyWindow, cfg.Notify.RecencyWindow)
	assert.Equal(t, DefaultPageSize, cfg.Notify.PageSize)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestParse_FullConfig(t *testing.T) {
	data := `
gateway:
  rest_base_url: https://api.example.com
  push_url: wss://push.example.com/ws
channel:
  heartbeat_interval: 10s
  reconnect_delay: 2s
  max_reconnects: 8
notify:
  poll_interval: 30s
  recency_window: 5m
  page_size: 50
logging:
  level: debug
  format: json
metrics:
  enabled: true
  addr: :9091
  path: /prom
`
	cfg, err := Parse([]byte(data))
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Channel.HeartbeatInterval)
	assert.Equal(t, 2*time.Second, cfg.Channel.ReconnectDelay)
	assert.Equal(t, 8, cfg.Channel.MaxReconnects)
	assert.Equal(t, 30*time.Second, cfg.Notify.PollInterval)
	assert.Equal(t, 5*time.Minute, cfg.Notify.RecencyWindow)
	assert.Equal(t, 50, cfg.Notify.PageSize)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9091", cfg.Metrics.Addr)
	assert.Equal(t, "/prom", cfg.Metrics.Path)
}

func TestParse_ExpandsEnvVars(t *testing.T) {
	t.Setenv("PULSE_TEST_API", "https://staging.example.com")

	data := `
gateway:
  rest_base_url: ${PULSE_TEST_API}
  push_url: wss://push.example.com/ws
`
	cfg, err := Parse([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, "https://staging.example.com", cfg.Gateway.RESTBaseURL)
}

func TestParse_UnsetEnvVarFailsValidation(t *testing.T) {
	data := `
gateway:
  rest_base_url: ${PULSE_TEST_UNSET_VAR}
  push_url: wss://push.example.com/ws
`
	_, err := Parse([]byte(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rest_base_url is required")
}

func TestParse_InvalidDuration(t *testing.T) {
	data := minimalConfig + `
channel:
  heartbeat_interval: not-a-duration
`
	_, err := Parse([]byte(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "heartbeat_interval")
}

func TestParse_MissingPushURL(t *testing.T) {
	data := `
gateway:
  rest_base_url: https://api.example.com
`
	_, err := Parse([]byte(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "push_url is required")
}

func TestParse_ExplicitZeroMaxReconnects(t *testing.T) {
	data := minimalConfig + `
channel:
  max_reconnects: 0
`
	cfg, err := Parse([]byte(data))
	require.NoError(t, err)
	assert.Zero(t, cfg.Channel.MaxReconnects, "explicit zero disables reconnects, not the default")
}

func TestParse_NegativeMaxReconnects(t *testing.T) {
	data := minimalConfig + `
channel:
  max_reconnects: -1
`
	_, err := Parse([]byte(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_reconnects")
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalConfig), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "wss://push.example.com/ws", cfg.Gateway.PushURL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}
