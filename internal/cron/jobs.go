package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wardenproj/warden/internal/memory"
)

// SessionPruner is the subset of the gateway session registry needed by
// cron jobs. Defined here to avoid a circular dependency on the gateway.
type SessionPruner interface {
	Prune(maxIdle time.Duration) int
}

// SessionCleanupJob removes sessions that have been idle longer than MaxIdle.
type SessionCleanupJob struct {
	Sessions     SessionPruner
	MaxIdle      time.Duration
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "*/5 * * * *"
}

// Compile-time interface check.
var _ Job = (*SessionCleanupJob)(nil)

// Name implements Job.
func (j *SessionCleanupJob) Name() string {
	return "session_cleanup"
}

// Schedule implements Job.
func (j *SessionCleanupJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/5 * * * *"
}

// Run prunes sessions idle longer than MaxIdle.
func (j *SessionCleanupJob) Run(_ context.Context) error {
	pruned := j.Sessions.Prune(j.MaxIdle)
	if pruned > 0 {
		j.Logger.Info("cron: pruned idle sessions", "count", pruned)
	}
	return nil
}

// TranscriptPruneJob deletes transcript messages older than Retention
// from the history store.
type TranscriptPruneJob struct {
	History      memory.HistoryStore
	Retention    time.Duration
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "0 * * * *"

	now func() time.Time // test hook
}

// Compile-time interface check.
var _ Job = (*TranscriptPruneJob)(nil)

// Name implements Job.
func (j *TranscriptPruneJob) Name() string {
	return "transcript_prune"
}

// Schedule implements Job.
func (j *TranscriptPruneJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 * * * *"
}

// Run deletes messages whose append time is older than Retention.
// A zero or negative Retention disables pruning.
func (j *TranscriptPruneJob) Run(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("cron: transcript prune cancelled: %w", ctx.Err())
	}
	if j.Retention <= 0 {
		return nil
	}

	now := time.Now
	if j.now != nil {
		now = j.now
	}

	removed, err := j.History.PruneBefore(now().Add(-j.Retention))
	if err != nil {
		return fmt.Errorf("cron: transcript prune: %w", err)
	}
	if removed > 0 {
		j.Logger.Info("cron: pruned old transcript messages", "count", removed)
	}
	return nil
}
