// Package sqlite implements memory.sqlite, the persistent transcript
// store. It rides on modernc.org/sqlite (pure Go, no CGO) with WAL on
// by default.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/wardenproj/warden/internal/core"
	"github.com/wardenproj/warden/internal/memory"
	"gopkg.in/yaml.v3"

	_ "modernc.org/sqlite" // driver registration
)

func init() {
	core.RegisterModule(&Module{})
}

var (
	_ memory.HistoryStore = (*historyStore)(nil)
	_ core.Configurable   = (*Module)(nil)
	_ core.Provisioner    = (*Module)(nil)
	_ core.Validator      = (*Module)(nil)
	_ core.Stopper        = (*Module)(nil)
)

// Module owns the database handle and exposes the transcript store as
// the memory.history service.
type Module struct {
	config  Config
	db      *sql.DB
	logger  *slog.Logger
	history *historyStore
}

type historyStore struct {
	db *sql.DB
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "memory.sqlite",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("sqlite: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner. It opens the database, applies
// pragmas and schema, and registers the memory.history service.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if m.config.Path == "" {
		m.config.Path = filepath.Join(ctx.DataDir, defaultDBFile)
	}

	db, err := m.openDatabase()
	if err != nil {
		return err
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return err
	}

	m.db = db
	m.history = &historyStore{db: db}
	ctx.RegisterService("memory.history", m.history)

	m.logger.Info("transcript store ready",
		"path", m.config.Path,
		"wal", m.config.walEnabled(),
	)
	return nil
}

func (m *Module) openDatabase() (*sql.DB, error) {
	if dir := filepath.Dir(m.config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", m.config.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", m.config.Path, err)
	}

	// One connection only. SQLite serializes writers anyway, and a
	// single connection guarantees the pragmas below govern every
	// statement.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout=%d", m.config.BusyTimeout),
	}
	if m.config.walEnabled() {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(context.TODO(), pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}
	return db, nil
}

// Validate implements core.Validator. It confirms the handle answers
// and the schema actually landed.
func (m *Module) Validate() error {
	if err := m.config.validate(); err != nil {
		return err
	}
	if err := m.db.PingContext(context.TODO()); err != nil {
		return fmt.Errorf("sqlite: ping failed: %w", err)
	}
	var n int
	if err := m.db.QueryRowContext(context.TODO(), "SELECT count(*) FROM messages").Scan(&n); err != nil {
		return fmt.Errorf("sqlite: messages table not available: %w", err)
	}
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("transcript store closing")
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

// History returns the transcript store.
func (m *Module) History() memory.HistoryStore {
	return m.history
}
