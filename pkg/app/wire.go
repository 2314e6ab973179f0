package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/wardenproj/warden/internal/agent"
	"github.com/wardenproj/warden/internal/approval"
	"github.com/wardenproj/warden/internal/config"
	"github.com/wardenproj/warden/internal/core"
	"github.com/wardenproj/warden/internal/cron"
	"github.com/wardenproj/warden/internal/gateway"
	"github.com/wardenproj/warden/internal/hook"
	"github.com/wardenproj/warden/internal/memory"
	"github.com/wardenproj/warden/internal/provider"
	"github.com/wardenproj/warden/internal/security"
	"github.com/wardenproj/warden/internal/tool"
)

// Background maintenance defaults.
const (
	sessionMaxIdle      = 30 * time.Minute
	transcriptRetention = 30 * 24 * time.Hour
)

// wireAgent builds the shared tool registry and the per-session agent
// factory. Must be called after LoadModules and before Start: tool
// modules register into tool.registry during their Start, and the
// gateway resolves agent.factory during its Start.
func wireAgent(
	app *core.App,
	appCtx *core.AppContext,
	cfg *config.Config,
	ids []string,
	logger *slog.Logger,
	auditLogger *security.AuditLogger,
	turnLog io.Writer,
) error {
	registry := tool.NewRegistry()
	registry.SetAuditLogger(auditLogger)
	appCtx.RegisterService("tool.registry", registry)

	var defaultProvider provider.Provider
	var providerName string
	for _, id := range ids {
		mod, ok := app.Module(id)
		if !ok {
			continue
		}
		if p, ok := mod.(provider.Provider); ok {
			defaultProvider = p
			providerName = strings.TrimPrefix(id, "provider.")
			logger.Info("agent: discovered provider", "module", id)
		}
	}
	if defaultProvider == nil {
		return fmt.Errorf("agent: at least one provider module is required")
	}

	// Track provider availability so the status endpoint can report
	// cooldown and dead states.
	health := provider.NewHealthTracker(provider.HealthConfig{})
	health.OnStateChange = func(from, to provider.HealthState) {
		logger.Warn("provider health changed", "from", from.String(), "to", to.String())
	}
	defaultProvider = provider.WithHealth(defaultProvider, health)
	appCtx.RegisterService("provider.health", health)

	appCtx.RegisterService("agent.provider", provider.Info{
		Name:  providerName,
		Model: defaultProvider.ModelName(),
	})

	factory, err := newSessionFactory(sessionFactoryConfig{
		Provider: defaultProvider,
		Registry: registry,
		Security: cfg.Security,
		Audit:    auditLogger,
		Logger:   logger,
		TurnLog:  turnLog,
	})
	if err != nil {
		return err
	}
	appCtx.RegisterService("agent.factory", factory)

	logger.Info("agent: factory wired",
		"autonomy", cfg.Security.Autonomy,
		"approval_timeout", cfg.Security.ApprovalTimeout,
	)
	return nil
}

// cronModule wraps the scheduler so it participates in the app
// lifecycle like any other module.
type cronModule struct {
	scheduler *cron.Scheduler
}

func (m *cronModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "cron"}
}

func (m *cronModule) Start() error { return m.scheduler.Start() }

func (m *cronModule) Stop(ctx context.Context) error { return m.scheduler.Stop(ctx) }

// wireCron registers background maintenance jobs for whichever
// services the loaded modules provide. With no eligible services the
// scheduler is skipped entirely.
func wireCron(app *core.App, appCtx *core.AppContext, logger *slog.Logger) error {
	scheduler := cron.NewScheduler(logger)
	jobs := 0

	if svc, ok := appCtx.Service("gateway.sessions"); ok {
		if sessions, ok := svc.(cron.SessionPruner); ok {
			job := &cron.SessionCleanupJob{
				Sessions: sessions,
				MaxIdle:  sessionMaxIdle,
				Logger:   logger,
			}
			if err := scheduler.RegisterJob(job); err != nil {
				return err
			}
			jobs++
		}
	}

	if svc, ok := appCtx.Service("memory.history"); ok {
		if history, ok := svc.(memory.HistoryStore); ok {
			job := &cron.TranscriptPruneJob{
				History:   history,
				Retention: transcriptRetention,
				Logger:    logger,
			}
			if err := scheduler.RegisterJob(job); err != nil {
				return err
			}
			jobs++
		}
	}

	if jobs == 0 {
		logger.Debug("cron: no maintenance jobs to schedule")
		return nil
	}

	app.AppendModule("cron", &cronModule{scheduler: scheduler})
	logger.Info("cron: maintenance jobs wired", "jobs", jobs)
	return nil
}

// sessionFactoryConfig holds the fixed dependencies shared by every
// session.
type sessionFactoryConfig struct {
	Provider provider.Provider
	Registry *tool.Registry
	Security config.SecurityConfig
	Audit    *security.AuditLogger
	Logger   *slog.Logger

	// TurnLog receives one JSON Lines record per tool outcome and per
	// completed turn. Nil disables turn logging.
	TurnLog io.Writer
}

// sessionFactory builds one agent loop per gateway session. Each
// session gets a fresh policy and approval manager so action budgets
// and approval state never leak across connections.
type sessionFactory struct {
	cfg       sessionFactoryConfig
	autonomy  security.AutonomyLevel
	budget    int
	overrides map[string]security.Sensitivity
	hooks     *hook.Pipeline
}

func newSessionFactory(cfg sessionFactoryConfig) (*sessionFactory, error) {
	autonomy, err := security.ParseAutonomyLevel(cfg.Security.Autonomy)
	if err != nil {
		return nil, fmt.Errorf("agent: %w", err)
	}

	budget := security.Unlimited
	if cfg.Security.MaxActionsPerHour != nil {
		budget = *cfg.Security.MaxActionsPerHour
	}

	var overrides map[string]security.Sensitivity
	if len(cfg.Security.ToolSensitivity) > 0 {
		overrides = make(map[string]security.Sensitivity, len(cfg.Security.ToolSensitivity))
		for name, raw := range cfg.Security.ToolSensitivity {
			s, err := security.ParseSensitivity(raw)
			if err != nil {
				return nil, fmt.Errorf("agent: tool_sensitivity[%q]: %w", name, err)
			}
			overrides[name] = s
		}
	}

	hooks := hook.NewPipeline()
	if cfg.TurnLog != nil {
		hooks.Register(hook.NewAuditHook(cfg.TurnLog, hook.ToolEnd))
		hooks.Register(hook.NewAuditHook(cfg.TurnLog, hook.TurnEnd))
	}

	return &sessionFactory{
		cfg:       cfg,
		autonomy:  autonomy,
		budget:    budget,
		overrides: overrides,
		hooks:     hooks,
	}, nil
}

// NewSession implements gateway.SessionFactory. A nil requester falls
// back to the local terminal prompt.
func (f *sessionFactory) NewSession(sessionID string, requester approval.Requester) (gateway.AgentRunner, error) {
	policy := security.NewPolicy(f.autonomy, f.budget, f.overrides)

	if requester == nil {
		requester = approval.ConsoleRequester{}
	}
	approvals := approval.NewManager(policy, requester, f.cfg.Security.ApprovalTimeout, f.cfg.Audit)

	executor := agent.NewToolExecutor(agent.ToolExecutorConfig{
		Registry:  f.cfg.Registry,
		Policy:    policy,
		Approvals: approvals,
		Audit:     f.cfg.Audit,
	})

	loop := agent.NewLoop(
		f.cfg.Provider,
		executor,
		agent.LoopConfig{},
		f.hooks,
		f.cfg.Logger.With("session_id", sessionID),
	)
	return loop, nil
}

// Interface guard.
var _ gateway.SessionFactory = (*sessionFactory)(nil)
