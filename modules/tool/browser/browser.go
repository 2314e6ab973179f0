// Package browser is the warden browser tool module. It registers a
// browser_open tool that hands a validated HTTPS URL to the operating
// system's default browser. The tool never fetches or reads page
// content; it only launches the platform opener.
package browser

import (
	"errors"
	"log/slog"

	"github.com/wardenproj/warden/internal/core"
	"github.com/wardenproj/warden/internal/tool"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Module{})
}

// Config holds the browser tool configuration.
type Config struct {
	// AllowedDomains is the egress allowlist for browser_open. Empty
	// means the tool refuses every URL.
	AllowedDomains []string `yaml:"allowed_domains"`
}

// Module wires the browser_open tool into the shared registry.
type Module struct {
	config Config
	logger *slog.Logger
	appCtx *core.AppContext
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "tool.browser",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	return node.Decode(&m.config)
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.logger = ctx.Logger
	m.appCtx = ctx
	return nil
}

// Start implements core.Starter.
func (m *Module) Start() error {
	svc, ok := m.appCtx.Service("tool.registry")
	if !ok {
		return errors.New("browser: tool.registry service not available")
	}
	registry, ok := svc.(*tool.Registry)
	if !ok {
		return errors.New("browser: tool.registry service has unexpected type")
	}

	t := &openTool{
		allowedDomains: m.config.AllowedDomains,
		launch:         platformLaunch,
	}
	if err := registry.Register(t); err != nil {
		return err
	}

	if len(m.config.AllowedDomains) == 0 {
		m.logger.Warn("browser_open registered with an empty allowlist, every URL will be refused")
	} else {
		m.logger.Info("browser_open registered", "allowed_domains", m.config.AllowedDomains)
	}
	return nil
}
