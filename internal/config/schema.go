// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for warden.
package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Security holds the action-control policy applied to every tool call.
	Security SecurityConfig `yaml:"security"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "gateway.ws").
	Modules map[string]yaml.Node `yaml:"modules"`
}

// SecurityConfig holds the action-control policy settings.
type SecurityConfig struct {
	// Autonomy is the agent autonomy level: "read_only", "supervised"
	// or "full". Defaults to "supervised".
	Autonomy string `yaml:"autonomy"`

	// MaxActionsPerHour caps sensitive actions in a sliding one-hour
	// window. 0 blocks all sensitive actions. Omit the field (nil) for
	// no cap.
	MaxActionsPerHour *int `yaml:"max_actions_per_hour,omitempty"`

	// ApprovalTimeout bounds how long a pending approval waits for a
	// human decision before it is denied. Defaults to 120s.
	ApprovalTimeout time.Duration `yaml:"approval_timeout"`

	// ToolSensitivity overrides the sensitivity a tool declares for
	// itself. Keys are tool names, values are "low" or "high".
	ToolSensitivity map[string]string `yaml:"tool_sensitivity,omitempty"`
}

// applyDefaults fills zero values with operational defaults.
func (c *SecurityConfig) applyDefaults() {
	if c.Autonomy == "" {
		c.Autonomy = "supervised"
	}
	if c.ApprovalTimeout == 0 {
		c.ApprovalTimeout = 120 * time.Second
	}
}
