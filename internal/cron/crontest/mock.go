// Package crontest provides test doubles for the cron package.
package crontest

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/wardenproj/warden/internal/cron"
)

// MockJob is a cron.Job whose name and schedule are plain fields.
type MockJob struct {
	NameVal     string
	ScheduleVal string
	RunFunc     func(ctx context.Context) error

	runs atomic.Int32
}

var _ cron.Job = (*MockJob)(nil)

func (m *MockJob) Name() string     { return m.NameVal }
func (m *MockJob) Schedule() string { return m.ScheduleVal }

func (m *MockJob) Run(ctx context.Context) error {
	m.runs.Add(1)
	if m.RunFunc != nil {
		return m.RunFunc(ctx)
	}
	return nil
}

// Runs reports how many times the scheduler fired the job.
func (m *MockJob) Runs() int { return int(m.runs.Load()) }

// MockSessionPruner is a cron.SessionPruner that counts invocations.
type MockSessionPruner struct {
	PruneFunc  func(maxIdle time.Duration) int
	PruneCalls atomic.Int32
}

func (m *MockSessionPruner) Prune(maxIdle time.Duration) int {
	m.PruneCalls.Add(1)
	if m.PruneFunc != nil {
		return m.PruneFunc(maxIdle)
	}
	return 0
}
