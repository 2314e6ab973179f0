// Package app provides the shared entry point for the warden binary:
// configuration loading, security wiring, module lifecycle, and the
// signal-driven run loop.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/wardenproj/warden/internal/config"
	"github.com/wardenproj/warden/internal/core"
	"github.com/wardenproj/warden/internal/reload"
	"github.com/wardenproj/warden/internal/security"
)

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides the default persistent data directory.
	DataDir string

	// LogLevel sets the minimum log level. Defaults to slog.LevelInfo.
	LogLevel slog.Level
}

// Run loads configuration, starts all modules, and blocks until a
// shutdown signal is received. SIGHUP and config file changes trigger a
// live reload for modules that implement core.Reloader.
func Run(params RunParams) error {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	// Security foundation first: credentials, redaction, audit.
	credStore := security.NewCredentialStore()
	redactor := security.NewRedactor()

	innerHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: params.LogLevel,
	})
	logger := slog.New(security.NewRedactingHandler(innerHandler, redactor))

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	auditFile, err := openAppendLog(dataDir, "audit.jsonl")
	if err != nil {
		return err
	}
	defer func() { _ = auditFile.Close() }()

	auditLogger := security.NewAuditLogger(security.AuditLoggerConfig{
		Writer:   auditFile,
		Redactor: redactor,
	})

	// Turn records (tool outcomes, iteration counts) go to their own
	// file; the audit log keeps the security event schema.
	turnFile, err := openAppendLog(dataDir, "turns.jsonl")
	if err != nil {
		return err
	}
	defer func() { _ = turnFile.Close() }()

	appCtx := core.NewAppContext(logger, dataDir)
	appCtx = appCtx.WithModuleConfigs(cfg.Modules)

	// Register security services for cross-module discovery.
	appCtx.RegisterService("security.credentials", credStore)
	appCtx.RegisterService("security.redactor", redactor)
	appCtx.RegisterService("security.audit", auditLogger)
	appCtx.RegisterService("config.path", cfgPath)

	application := core.NewApp(appCtx)
	ids := config.Resolve(cfg)
	if err := application.LoadModules(ids); err != nil {
		return err
	}

	// Wire the agent between LoadModules and Start: discover the
	// provider, build the shared tool registry and the per-session
	// factory, and register agent.factory for the gateway.
	if err := wireAgent(application, appCtx, cfg, ids, logger, auditLogger, turnFile); err != nil {
		return err
	}
	if err := wireCron(application, appCtx, logger); err != nil {
		return err
	}

	// Build and register the reload handler before Start so modules can
	// discover it.
	handler := reload.NewHandler(application, logger, dataDir)
	appCtx.RegisterService("reload.handler", handler)

	if err := application.Start(); err != nil {
		return err
	}

	// Sync the redactor with credentials registered by modules during
	// Start so runtime secrets never reach the logs.
	redactor.SyncCredentials(credStore)

	// --- signal handling ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	// --- config file watcher ---
	watcher := reload.NewWatcher(reload.WatcherConfig{
		ConfigPath: cfgPath,
	})
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	watcher.Start(watchCtx)
	defer watcher.Stop()

	logger.Info("warden started", "version", params.Version, "config", cfgPath)

	reloadNow := func(trigger string) {
		logger.Info("reloading configuration", "trigger", trigger)
		if err := handler.HandleReload(watchCtx, cfgPath); err != nil {
			logger.Error("reload failed", "error", err)
		}
	}

	// --- main event loop ---
	for {
		select {
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				reloadNow("SIGHUP")
				continue
			}
			logger.Info("shutdown signal received", "signal", sig.String())
			application.Stop()
			logger.Info("shutdown complete")
			return nil
		case <-watcher.Events():
			reloadNow("config file change")
		}
	}
}

// openAppendLog opens an append-only log file under dir, creating it
// with owner-only permissions.
func openAppendLog(dir, name string) (*os.File, error) {
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	return f, nil
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/warden/warden.yaml →
// ~/.config/warden/warden.yaml → ./warden.yaml
func ResolveConfigPath() (string, error) {
	candidates := configCandidates()
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

func configCandidates() []string {
	var paths []string
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		paths = append(paths, filepath.Join(xdg, "warden", "warden.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "warden", "warden.yaml"))
	}
	return append(paths, "warden.yaml")
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/warden if set, otherwise ~/.local/share/warden.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok {
		return filepath.Join(dir, "warden")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "warden")
}
