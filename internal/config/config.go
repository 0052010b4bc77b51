// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backoff policy names accepted by TUTOR_RECONNECT_BACKOFF.
const (
	BackoffFlat        = "flat"
	BackoffExponential = "exponential"
)

// Config holds all application configuration.
type Config struct {
	WSURL       string // Base URL of the tutor WebSocket endpoint, e.g. ws://localhost:8000
	APIURL      string // Base URL of the REST collaborators, e.g. http://localhost:8000
	SessionDB   string
	LogLevel    slog.Level
	MetricsAddr string // Empty disables the metrics listener
	Reconnect   ReconnectConfig
	Timeouts    TimeoutConfig
	Stub        StubConfig
}

// ReconnectConfig controls how a dropped connection is re-established.
type ReconnectConfig struct {
	Policy   string
	Delay    time.Duration
	MaxDelay time.Duration
}

// TimeoutConfig groups the controller's time-based knobs.
type TimeoutConfig struct {
	DeferredSend time.Duration
	Request      time.Duration
	Dial         time.Duration
	HTTP         time.Duration
}

// StubConfig configures the loopback tutor server.
type StubConfig struct {
	Port         string
	ThinkingTime time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		WSURL:       strings.TrimRight(getEnv("TUTOR_WS_URL", "ws://localhost:8000"), "/"),
		APIURL:      strings.TrimRight(getEnv("TUTOR_API_URL", "http://localhost:8000"), "/"),
		SessionDB:   getEnv("TUTOR_SESSION_DB", "./data/session.db"),
		LogLevel:    getEnvLevel("TUTOR_LOG_LEVEL", slog.LevelInfo),
		MetricsAddr: getEnv("TUTOR_METRICS_ADDR", ""),
		Reconnect: ReconnectConfig{
			Policy:   strings.ToLower(getEnv("TUTOR_RECONNECT_BACKOFF", BackoffFlat)),
			Delay:    getEnvDuration("TUTOR_RECONNECT_DELAY", 2*time.Second),
			MaxDelay: getEnvDuration("TUTOR_RECONNECT_MAX_DELAY", 30*time.Second),
		},
		Timeouts: TimeoutConfig{
			DeferredSend: getEnvDuration("TUTOR_DEFERRED_SEND_DELAY", 3*time.Second),
			Request:      getEnvDuration("TUTOR_REQUEST_TIMEOUT", 90*time.Second),
			Dial:         getEnvDuration("TUTOR_DIAL_TIMEOUT", 10*time.Second),
			HTTP:         getEnvDuration("TUTOR_HTTP_TIMEOUT", 15*time.Second),
		},
		Stub: StubConfig{
			Port:         getEnv("TUTOR_STUB_PORT", "8000"),
			ThinkingTime: getEnvDuration("TUTOR_STUB_THINKING_TIME", 300*time.Millisecond),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if err := validateURL("TUTOR_WS_URL", c.WSURL, "ws", "wss"); err != nil {
		return err
	}
	if err := validateURL("TUTOR_API_URL", c.APIURL, "http", "https"); err != nil {
		return err
	}
	if c.SessionDB == "" {
		return fmt.Errorf("TUTOR_SESSION_DB cannot be empty")
	}
	switch c.Reconnect.Policy {
	case BackoffFlat, BackoffExponential:
	default:
		return fmt.Errorf("TUTOR_RECONNECT_BACKOFF must be %q or %q, got %q", BackoffFlat, BackoffExponential, c.Reconnect.Policy)
	}
	if c.Reconnect.Delay <= 0 {
		return fmt.Errorf("TUTOR_RECONNECT_DELAY must be > 0")
	}
	if c.Reconnect.MaxDelay < c.Reconnect.Delay {
		return fmt.Errorf("TUTOR_RECONNECT_MAX_DELAY must be >= TUTOR_RECONNECT_DELAY")
	}
	if c.Timeouts.DeferredSend <= 0 {
		return fmt.Errorf("TUTOR_DEFERRED_SEND_DELAY must be > 0")
	}
	if c.Timeouts.Request < 0 {
		return fmt.Errorf("TUTOR_REQUEST_TIMEOUT cannot be negative")
	}
	if c.Timeouts.Dial <= 0 || c.Timeouts.HTTP <= 0 {
		return fmt.Errorf("TUTOR_DIAL_TIMEOUT and TUTOR_HTTP_TIMEOUT must be > 0")
	}
	if c.Stub.Port == "" {
		return fmt.Errorf("TUTOR_STUB_PORT cannot be empty")
	}
	return nil
}

// IsDevelopment returns true when the client talks to a local server.
func (c *Config) IsDevelopment() bool {
	return strings.Contains(c.WSURL, "localhost") ||
		strings.Contains(c.WSURL, "127.0.0.1")
}

func validateURL(key, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", key, err)
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%s must be a %s URL with a host, got %q", key, strings.Join(schemes, "/"), raw)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go duration strings ("2s", "1m30s") or a bare
// number of milliseconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms := getEnvInt(key, -1); ms >= 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fallback
	}
	return level
}
