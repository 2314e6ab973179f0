// Package gateway implements the WebSocket session gateway. Each
// connection gets its own session with an isolated policy and approval
// state; user messages drive the agent loop and the loop's events
// stream back as typed frames.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/wardenproj/warden/internal/agent"
	"github.com/wardenproj/warden/internal/approval"
	"github.com/wardenproj/warden/internal/core"
	"github.com/wardenproj/warden/internal/event"
	"github.com/wardenproj/warden/internal/memory"
	"github.com/wardenproj/warden/internal/provider"
	"github.com/wardenproj/warden/internal/security"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// AgentRunner runs one conversational turn for a session.
type AgentRunner interface {
	RunStream(ctx context.Context, req agent.Request) (<-chan agent.StreamEvent, error)
}

// SessionFactory builds a per-session runner. Each runner carries its
// own security policy and approval state so sessions never share an
// action budget. The requester routes approval prompts back to the
// session's client; a nil requester falls back to the factory's
// default (deny or console, per configuration).
type SessionFactory interface {
	NewSession(sessionID string, requester approval.Requester) (AgentRunner, error)
}

// Gateway is the WebSocket gateway module. It exposes the session
// endpoint plus health, status, and metrics. It is a leaf module —
// nothing imports it.
type Gateway struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	server    *http.Server
	metrics   *Metrics
	sessions  *SessionRegistry
	events    *event.Broadcaster
	limiter   *security.RateLimiter
	startedAt time.Time

	// Resolved lazily at Start() via service registry.
	factory      SessionFactory
	history      memory.HistoryStore
	audit        *security.AuditLogger
	tracer       trace.Tracer
	providerInfo provider.Info
	health       *provider.HealthTracker
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.ws",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.metrics = NewMetrics()
	g.sessions = NewSessionRegistry()
	g.events = event.NewBroadcaster(0)
	g.tracer = noop.NewTracerProvider().Tracer("gateway")
	g.limiter = security.NewRateLimiter(g.config.RateLimit)

	// The pairing token is a runtime secret like any provider key.
	if g.config.Auth.IsConfigured() {
		if svc, ok := ctx.Service("security.credentials"); ok {
			if store, ok := svc.(*security.CredentialStore); ok {
				store.Set("gateway.bearer_token", g.config.Auth.BearerToken)
			}
		}
	}

	// Register services for cross-module discovery. The cron cleanup
	// job prunes gateway.sessions; monitoring surfaces subscribe to
	// gateway.events.
	ctx.RegisterService("gateway.metrics", g.metrics)
	ctx.RegisterService("gateway.sessions", g.sessions)
	ctx.RegisterService("gateway.events", g.events)

	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	return nil
}

// Start implements core.Starter. It resolves dependencies from the
// service registry (lazy binding) and starts the HTTP server.
func (g *Gateway) Start() error {
	if svc, ok := g.appCtx.Service("agent.factory"); ok {
		if factory, ok := svc.(SessionFactory); ok {
			g.factory = factory
		}
	}
	if svc, ok := g.appCtx.Service("memory.history"); ok {
		if store, ok := svc.(memory.HistoryStore); ok {
			g.history = store
		}
	}
	if svc, ok := g.appCtx.Service("security.audit"); ok {
		if logger, ok := svc.(*security.AuditLogger); ok {
			g.audit = logger
		}
	}
	if svc, ok := g.appCtx.Service("telemetry.tracer"); ok {
		if tracer, ok := svc.(trace.Tracer); ok {
			g.tracer = tracer
		}
	}
	if svc, ok := g.appCtx.Service("agent.provider"); ok {
		if info, ok := svc.(provider.Info); ok {
			g.providerInfo = info
		}
	}
	if svc, ok := g.appCtx.Service("provider.health"); ok {
		if tracker, ok := svc.(*provider.HealthTracker); ok {
			g.health = tracker
		}
	}

	if g.factory == nil {
		return errors.New("gateway: agent.factory service not available")
	}

	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", g.config.Bind)
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
