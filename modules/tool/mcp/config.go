package mcp

import (
	"errors"
	"fmt"
	"time"
)

const defaultInitTimeout = 30 * time.Second

// ServerConfig describes one MCP server to launch over stdio.
type ServerConfig struct {
	// Name prefixes the bridged tool names, e.g. "files" yields
	// mcp_files_read_file.
	Name string `yaml:"name"`

	// Command is the server executable.
	Command string `yaml:"command"`

	// Args are passed to the command.
	Args []string `yaml:"args"`

	// Env entries (KEY=VALUE) are added to the server's environment.
	Env []string `yaml:"env"`
}

// Config holds the MCP module configuration.
type Config struct {
	// Servers lists the MCP servers to connect at startup.
	Servers []ServerConfig `yaml:"servers"`

	// InitTimeout bounds the connect/initialize/list handshake per
	// server.
	InitTimeout time.Duration `yaml:"init_timeout"`

	// Sensitivity sets the declared sensitivity for every bridged
	// tool: "low" or "high". Defaults to high because bridged tools
	// run arbitrary external code.
	Sensitivity string `yaml:"sensitivity"`
}

func (c *Config) defaults() {
	if c.InitTimeout <= 0 {
		c.InitTimeout = defaultInitTimeout
	}
	if c.Sensitivity == "" {
		c.Sensitivity = "high"
	}
}

func (c *Config) validate() error {
	seen := make(map[string]struct{}, len(c.Servers))
	for i, srv := range c.Servers {
		if srv.Name == "" {
			return fmt.Errorf("mcp: servers[%d] has no name", i)
		}
		if srv.Command == "" {
			return fmt.Errorf("mcp: server %q has no command", srv.Name)
		}
		if _, dup := seen[srv.Name]; dup {
			return fmt.Errorf("mcp: duplicate server name %q", srv.Name)
		}
		seen[srv.Name] = struct{}{}
	}
	if c.Sensitivity != "" && c.Sensitivity != "low" && c.Sensitivity != "high" {
		return errors.New("mcp: sensitivity must be low or high")
	}
	return nil
}
