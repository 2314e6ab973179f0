// Package cron schedules the gateway's periodic maintenance: idle
// session cleanup and transcript pruning.
package cron

import "context"

// Job is one periodic task.
type Job interface {
	// Name uniquely identifies the job in logs and for duplicate checks.
	Name() string

	// Schedule is a 5-field cron expression, for example "*/5 * * * *".
	Schedule() string

	// Run does the work. Long jobs should watch ctx.Done().
	Run(ctx context.Context) error
}
