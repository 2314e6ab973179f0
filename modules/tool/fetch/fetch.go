// Package fetch is the warden fetch tool module. It registers an
// HTTPS GET tool that runs every URL through the egress guard before
// any network traffic happens and caps how much of the response body
// reaches the model.
package fetch

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/wardenproj/warden/internal/core"
	"github.com/wardenproj/warden/internal/tool"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Module{})
}

// Module wires the fetch tool into the shared registry.
type Module struct {
	config Config
	logger *slog.Logger
	appCtx *core.AppContext
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "tool.fetch",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return err
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger
	m.appCtx = ctx
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Start implements core.Starter. Tool registration happens here so the
// registry service is guaranteed to exist.
func (m *Module) Start() error {
	svc, ok := m.appCtx.Service("tool.registry")
	if !ok {
		return errors.New("fetch: tool.registry service not available")
	}
	registry, ok := svc.(*tool.Registry)
	if !ok {
		return errors.New("fetch: tool.registry service has unexpected type")
	}

	t := &fetchTool{
		client:         &http.Client{Timeout: m.config.Timeout},
		allowedDomains: m.config.AllowedDomains,
		maxBytes:       m.config.MaxResponseBytes,
		userAgent:      m.config.UserAgent,
	}
	if err := registry.Register(t); err != nil {
		return err
	}

	if len(m.config.AllowedDomains) == 0 {
		m.logger.Warn("fetch tool registered with an empty allowlist, every URL will be refused")
	} else {
		m.logger.Info("fetch tool registered", "allowed_domains", m.config.AllowedDomains)
	}
	return nil
}
