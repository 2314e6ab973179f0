// Package openai implements the provider.openai module: Chat
// Completions with streaming and function calling, usable against any
// OpenAI-compatible endpoint via base_url.
package openai

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/wardenproj/warden/internal/core"
	"github.com/wardenproj/warden/internal/provider"
	"github.com/wardenproj/warden/internal/security"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Provider{})
}

var (
	_ provider.Provider      = (*Provider)(nil)
	_ provider.HealthChecker = (*Provider)(nil)
	_ core.Module            = (*Provider)(nil)
	_ core.Configurable      = (*Provider)(nil)
	_ core.Provisioner       = (*Provider)(nil)
	_ core.Validator         = (*Provider)(nil)
)

// Provider is the OpenAI-backed completion provider.
type Provider struct {
	config        Config
	logger        *slog.Logger
	client        *http.Client
	streamClient  *http.Client
	contextWindow int
}

// ModuleInfo implements core.Module.
func (p *Provider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.openai",
		New: func() core.Module { return &Provider{} },
	}
}

// Configure implements core.Configurable.
func (p *Provider) Configure(node *yaml.Node) error {
	if err := node.Decode(&p.config); err != nil {
		return err
	}
	p.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (p *Provider) Provision(ctx *core.AppContext) error {
	p.logger = ctx.Logger

	// Two clients: the plain one carries a hard deadline, but that
	// deadline covers the whole body and would kill long SSE streams.
	// The stream client has none; streams end via context.
	p.client = &http.Client{Timeout: p.config.requestTimeout()}
	p.streamClient = &http.Client{}

	p.contextWindow = p.config.ContextWindow
	if p.contextWindow == 0 {
		p.contextWindow = modelWindows[p.config.Model]
	}

	// Hand the key to the credential store so the redactor scrubs it
	// from every log line.
	if svc, ok := ctx.Service("security.credentials"); ok {
		if store, ok := svc.(*security.CredentialStore); ok {
			store.Set("provider.openai.api_key", p.config.APIKey)
		}
	}

	ctx.RegisterService("provider.openai", p)
	return nil
}

// Validate implements core.Validator.
func (p *Provider) Validate() error {
	if p.config.APIKey == "" {
		return errors.New("provider.openai: api_key is required")
	}
	if p.config.Model == "" {
		return errors.New("provider.openai: model is required")
	}
	if p.contextWindow <= 0 {
		return errors.New("provider.openai: context_window must be set for unknown models")
	}
	return p.config.checkTimeout()
}
