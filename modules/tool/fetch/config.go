package fetch

import (
	"errors"
	"time"
)

const (
	defaultMaxResponseBytes = 512 * 1024
	defaultTimeout          = 30 * time.Second
	defaultUserAgent        = "warden/1.0"
)

// Config holds the fetch tool configuration.
type Config struct {
	// AllowedDomains is the egress allowlist. Empty means the tool
	// refuses every URL.
	AllowedDomains []string `yaml:"allowed_domains"`

	// MaxResponseBytes caps how much of a response body the model sees.
	MaxResponseBytes int64 `yaml:"max_response_bytes"`

	// Timeout bounds the whole request.
	Timeout time.Duration `yaml:"timeout"`

	// UserAgent overrides the request User-Agent header.
	UserAgent string `yaml:"user_agent"`
}

func (c *Config) defaults() {
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = defaultMaxResponseBytes
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
}

func (c *Config) validate() error {
	if c.Timeout < 0 {
		return errors.New("fetch: timeout cannot be negative")
	}
	return nil
}
