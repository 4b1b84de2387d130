// ABOUTME: Configuration loading and parsing for the pulse client
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete pulse client configuration.
type Config struct {
	Gateway GatewayConfig `yaml:"gateway"`
	Channel ChannelConfig `yaml:"channel"`
	Notify  NotifyConfig  `yaml:"notify"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// GatewayConfig holds the backend endpoints the client talks to.
type GatewayConfig struct {
	// RESTBaseURL is the base URL of the marketplace REST API.
	RESTBaseURL string `yaml:"rest_base_url"`
	// PushURL is the WebSocket endpoint carrying push frames.
	PushURL string `yaml:"push_url"`
}

// ChannelConfig holds timing knobs for the push channel lifecycle.
type ChannelConfig struct {
	HeartbeatInterval time.Duration `yaml:"-"`
	ReconnectDelay    time.Duration `yaml:"-"`
	// MaxReconnects bounds reconnect attempts before the channel degrades.
	// An explicit zero disables reconnects entirely.
	MaxReconnects int `yaml:"-"`

	// Raw values for YAML unmarshaling
	HeartbeatIntervalRaw string `yaml:"heartbeat_interval"`
	ReconnectDelayRaw    string `yaml:"reconnect_delay"`
	MaxReconnectsRaw     *int   `yaml:"max_reconnects"`
}

// NotifyConfig holds delivery-service tuning.
type NotifyConfig struct {
	PollInterval  time.Duration `yaml:"-"`
	RecencyWindow time.Duration `yaml:"-"`
	PageSize      int           `yaml:"page_size"`

	// Raw string values for YAML unmarshaling
	PollIntervalRaw  string `yaml:"poll_interval"`
	RecencyWindowRaw string `yaml:"recency_window"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds the optional metrics endpoint configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// Defaults applied when the corresponding field is absent from the file.
const (
	DefaultHeartbeatInterval = 25 * time.Second
	DefaultReconnectDelay    = 5 * time.Second
	DefaultMaxReconnects     = 5
	DefaultPollInterval      = 15 * time.Second
	DefaultRecencyWindow     = 3 * time.Minute
	DefaultPageSize          = 10
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse parses raw YAML config bytes, expanding env vars and durations.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment
// variable values. Unset variables expand to the empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Gateway.RESTBaseURL == "" {
		return fmt.Errorf("gateway.rest_base_url is required")
	}
	if c.Gateway.PushURL == "" {
		return fmt.Errorf("gateway.push_url is required")
	}
	if c.Channel.MaxReconnects < 0 {
		return fmt.Errorf("channel.max_reconnects must not be negative")
	}
	if c.Notify.PageSize < 0 {
		return fmt.Errorf("notify.page_size must not be negative")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Channel.HeartbeatInterval == 0 {
		c.Channel.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Channel.ReconnectDelay == 0 {
		c.Channel.ReconnectDelay = DefaultReconnectDelay
	}
	if c.Channel.MaxReconnectsRaw != nil {
		c.Channel.MaxReconnects = *c.Channel.MaxReconnectsRaw
	} else {
		c.Channel.MaxReconnects = DefaultMaxReconnects
	}
	if c.Notify.PollInterval == 0 {
		c.Notify.PollInterval = DefaultPollInterval
	}
	if c.Notify.RecencyWindow == 0 {
		c.Notify.RecencyWindow = DefaultRecencyWindow
	}
	if c.Notify.PageSize == 0 {
		c.Notify.PageSize = DefaultPageSize
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Channel.HeartbeatIntervalRaw != "" {
		cfg.Channel.HeartbeatInterval, err = time.ParseDuration(cfg.Channel.HeartbeatIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing heartbeat_interval %q: %w", cfg.Channel.HeartbeatIntervalRaw, err)
		}
	}

	if cfg.Channel.ReconnectDelayRaw != "" {
		cfg.Channel.ReconnectDelay, err = time.ParseDuration(cfg.Channel.ReconnectDelayRaw)
		if err != nil {
			return fmt.Errorf("parsing reconnect_delay %q: %w", cfg.Channel.ReconnectDelayRaw, err)
		}
	}

	if cfg.Notify.PollIntervalRaw != "" {
		cfg.Notify.PollInterval, err = time.ParseDuration(cfg.Notify.PollIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing poll_interval %q: %w", cfg.Notify.PollIntervalRaw, err)
		}
	}

	if cfg.Notify.RecencyWindowRaw != "" {
		cfg.Notify.RecencyWindow, err = time.ParseDuration(cfg.Notify.RecencyWindowRaw)
		if err != nil {
			return fmt.Errorf("parsing recency_window %q: %w", cfg.Notify.RecencyWindowRaw, err)
		}
	}

	return nil
}
