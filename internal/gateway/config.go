package gateway

import (
	"time"

	"github.com/wardenproj/warden/internal/security"
)

// Config holds WebSocket gateway configuration.
type Config struct {
	Bind            string        `yaml:"bind"`
	Auth            AuthConfig    `yaml:"auth"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// RateLimit bounds connection and message rates at the transport.
	// Zero values fall back to the limiter's defaults.
	RateLimit security.RateLimitConfig `yaml:"rate_limit"`

	// MaxMessageBytes caps inbound WebSocket frame size.
	MaxMessageBytes int64 `yaml:"max_message_bytes"`

	// SessionIdleTimeout is how long a session entry may sit idle before
	// the cleanup job removes it.
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"`
}

// defaults fills zero values with sensible defaults.
func (c *Config) defaults() {
	if c.Bind == "" {
		c.Bind = "127.0.0.1:8080"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = 1 << 20
	}
	if c.SessionIdleTimeout <= 0 {
		c.SessionIdleTimeout = 30 * time.Minute
	}
}

// AuthConfig configures bearer-token authentication. An empty token
// disables auth: every handshake is accepted.
type AuthConfig struct {
	BearerToken string `yaml:"bearer_token"`
}

// IsConfigured returns true if a bearer token is set.
func (a AuthConfig) IsConfigured() bool {
	return a.BearerToken != ""
}
