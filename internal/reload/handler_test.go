package reload

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/wardenproj/warden/internal/core"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app := core.NewApp(core.NewAppContext(logger, t.TempDir()))
	return NewHandler(app, logger, t.TempDir())
}

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "warden.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestHandler_MissingConfigFile(t *testing.T) {
	h := newTestHandler(t)
	if err := h.HandleReload(context.Background(), "/nonexistent/warden.yaml"); err == nil {
		t.Error("a missing config file must fail the reload")
	}
}

func TestHandler_InvalidConfigRejected(t *testing.T) {
	h := newTestHandler(t)
	path := writeYAML(t, "modules: {}")

	if err := h.HandleReload(context.Background(), path); err == nil {
		t.Error("a config that fails validation must not reach the modules")
	}
}

func TestHandler_UnknownModuleRejected(t *testing.T) {
	h := newTestHandler(t)
	path := writeYAML(t, "version: \"1\"\nmodules:\n  gateway.bogus: {}\n")

	if err := h.HandleReload(context.Background(), path); err == nil {
		t.Error("a config naming an unregistered module must fail")
	}
}

func TestHandler_CancelledContext(t *testing.T) {
	h := newTestHandler(t)
	path := writeYAML(t, "version: \"1\"\nmodules: {}\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := h.HandleReload(ctx, path); err == nil {
		t.Error("a cancelled context must abort the reload")
	}
}
