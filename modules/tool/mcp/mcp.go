// Package mcp is the warden MCP bridge module. It launches configured
// Model Context Protocol servers over stdio and registers their tools
// in the shared registry, so external capabilities flow through the
// same policy and approval gates as built-in tools.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/wardenproj/warden/internal/core"
	"github.com/wardenproj/warden/internal/security"
	"github.com/wardenproj/warden/internal/tool"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Module{})
}

// Module connects MCP servers and bridges their tools.
type Module struct {
	config  Config
	logger  *slog.Logger
	appCtx  *core.AppContext
	clients []*mcpclient.Client
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "tool.mcp",
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

// Start implements core.Starter. Each configured server is launched,
// initialized and its tools registered. A server that fails to come up
// fails startup; a half-connected tool surface is worse than none.
func (m *Module) Start() error {
	if len(m.config.Servers) == 0 {
		return nil
	}

	svc, ok := m.appCtx.Service("tool.registry")
	if !ok {
		return errors.New("mcp: tool.registry service not available")
	}
	registry, ok := svc.(*tool.Registry)
	if !ok {
		return errors.New("mcp: tool.registry service has unexpected type")
	}

	sensitivity := security.SensitivityHigh
	if m.config.Sensitivity == "low" {
		sensitivity = security.SensitivityLow
	}

	for _, srv := range m.config.Servers {
		if err := m.connectServer(srv, registry, sensitivity); err != nil {
			m.closeClients()
			return err
		}
	}
	return nil
}

// connectServer launches one server and registers its tools.
func (m *Module) connectServer(srv ServerConfig, registry *tool.Registry, sensitivity security.Sensitivity) error {
	c, err := mcpclient.NewStdioMCPClient(srv.Command, srv.Env, srv.Args...)
	if err != nil {
		return fmt.Errorf("mcp: launch server %q: %w", srv.Name, err)
	}
	m.clients = append(m.clients, c)

	ctx, cancel := context.WithTimeout(context.Background(), m.config.InitTimeout)
	defer cancel()

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "warden", Version: "1.0"}

	if _, err := c.Initialize(ctx, initReq); err != nil {
		return fmt.Errorf("mcp: initialize server %q: %w", srv.Name, err)
	}

	tools, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return fmt.Errorf("mcp: list tools on server %q: %w", srv.Name, err)
	}

	for _, remote := range tools.Tools {
		bridged := newServerTool(c, srv.Name, remote, sensitivity)
		if err := registry.Register(bridged); err != nil {
			return fmt.Errorf("mcp: register %s: %w", bridged.Name(), err)
		}
		m.logger.Info("mcp tool registered",
			"server", srv.Name,
			"tool", bridged.Name(),
		)
	}
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	m.closeClients()
	return nil
}

func (m *Module) closeClients() {
	for _, c := range m.clients {
		if err := c.Close(); err != nil {
			m.logger.Warn("mcp client close failed", "error", err)
		}
	}
	m.clients = nil
}
