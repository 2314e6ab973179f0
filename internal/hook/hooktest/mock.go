// Package hooktest provides a test double for the hook package.
package hooktest

import (
	"context"
	"sync/atomic"

	"github.com/wardenproj/warden/internal/hook"
)

// MockHook is a hook.Hook that counts executions.
type MockHook struct {
	PositionVal hook.Position
	PriorityVal int
	ExecuteFunc func(ctx context.Context, hctx *hook.Context) error

	calls atomic.Int32
}

var _ hook.Hook = (*MockHook)(nil)

func (m *MockHook) Position() hook.Position { return m.PositionVal }
func (m *MockHook) Priority() int           { return m.PriorityVal }

func (m *MockHook) Execute(ctx context.Context, hctx *hook.Context) error {
	m.calls.Add(1)
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, hctx)
	}
	return nil
}

// Calls reports how many times the pipeline ran the hook.
func (m *MockHook) Calls() int { return int(m.calls.Load()) }
