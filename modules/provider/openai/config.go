package openai

import (
	"fmt"
	"time"
)

// Config is the provider.openai module configuration.
type Config struct {
	APIKey        string   `yaml:"api_key"`
	Model         string   `yaml:"model"`
	BaseURL       string   `yaml:"base_url"`
	MaxTokens     int      `yaml:"max_tokens"`
	Temperature   *float64 `yaml:"temperature"`
	TopP          *float64 `yaml:"top_p"`
	Timeout       string   `yaml:"timeout"`
	ContextWindow int      `yaml:"context_window"`

	// InlineToolResults rewrites tool-role messages as user messages
	// before sending. Some OpenAI-compatible endpoints reject the tool
	// role outright.
	InlineToolResults bool `yaml:"inline_tool_results"`
}

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 30 * time.Second
)

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Timeout == "" {
		c.Timeout = defaultTimeout.String()
	}
}

// requestTimeout parses the configured timeout. Validate has already
// rejected unparseable values, so the fallback only covers bare
// structs built in tests.
func (c *Config) requestTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return defaultTimeout
	}
	return d
}

func (c *Config) checkTimeout() error {
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("provider.openai: invalid timeout %q: %w", c.Timeout, err)
	}
	return nil
}

// modelWindows carries context window sizes for models we know about.
// Unknown models need context_window set explicitly.
var modelWindows = map[string]int{
	"gpt-3.5-turbo":       16385,
	"gpt-4":               8192,
	"gpt-4-turbo":         128000,
	"gpt-4-turbo-preview": 128000,
	"gpt-4o":              128000,
	"gpt-4o-mini":         128000,
	"gpt-4.1":             1048576,
	"gpt-4.1-mini":        1048576,
	"gpt-4.1-nano":        1048576,
	"o1":                  200000,
	"o1-mini":             128000,
	"o1-preview":          128000,
	"o3":                  200000,
	"o3-mini":             200000,
	"o4-mini":             200000,
}
