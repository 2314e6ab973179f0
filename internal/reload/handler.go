package reload

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wardenproj/warden/internal/config"
	"github.com/wardenproj/warden/internal/core"
)

// Handler applies a fresh on-disk configuration to a running app. It is
// driven by the SIGHUP path and the config watcher.
type Handler struct {
	app     *core.App
	logger  *slog.Logger
	dataDir string
}

// NewHandler creates a reload handler bound to the running app.
func NewHandler(app *core.App, logger *slog.Logger, dataDir string) *Handler {
	return &Handler{app: app, logger: logger, dataDir: dataDir}
}

// HandleReload loads and validates the config at configPath, then calls
// Reload on every module implementing core.Reloader. A config that does
// not load or validate leaves the running modules untouched.
func (h *Handler) HandleReload(ctx context.Context, configPath string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before reload: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	appCtx := core.NewAppContext(h.logger, h.dataDir).WithModuleConfigs(cfg.Modules)
	if err := h.app.ReloadModules(appCtx); err != nil {
		return fmt.Errorf("reloading modules: %w", err)
	}

	h.logger.Info("configuration reloaded", "config", configPath)
	return nil
}
