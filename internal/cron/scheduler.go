package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Scheduler runs registered maintenance jobs on their cron schedules.
// A slow job never overlaps itself: each job carries its own mutex and
// a tick that finds it held is skipped.
type Scheduler struct {
	mu     sync.Mutex
	runner *cron.Cron
	jobs   map[string]Job
	order  []string
	busy   map[string]*sync.Mutex
	logger *slog.Logger
	cancel context.CancelFunc
}

// NewScheduler builds an empty scheduler. Register jobs before Start.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		jobs:   make(map[string]Job),
		busy:   make(map[string]*sync.Mutex),
		logger: logger,
	}
}

// RegisterJob adds a job under its Name. Names must be unique.
func (s *Scheduler) RegisterJob(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := j.Name()
	if _, dup := s.jobs[name]; dup {
		return fmt.Errorf("cron: duplicate job name %q", name)
	}
	s.jobs[name] = j
	s.busy[name] = &sync.Mutex{}
	s.order = append(s.order, name)
	return nil
}

// Start parses every schedule and begins ticking. A single bad
// expression fails the whole start so misconfiguration surfaces at
// boot, not at 3 AM.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	// Standard 5-field expressions only. Descriptors like @hourly are
	// rejected so every schedule in a config file reads the same way.
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	s.runner = cron.New(cron.WithParser(parser))

	for _, name := range s.order {
		job := s.jobs[name]
		gate := s.busy[name]
		if _, err := s.runner.AddFunc(job.Schedule(), func() {
			s.tick(ctx, job, gate)
		}); err != nil {
			cancel()
			return fmt.Errorf("cron: invalid schedule for job %q: %w", job.Name(), err)
		}
	}

	s.runner.Start()
	s.logger.Info("cron: scheduler started", "jobs", len(s.order))
	return nil
}

func (s *Scheduler) tick(ctx context.Context, job Job, gate *sync.Mutex) {
	// TryLock keeps the check and the acquire atomic. A held gate means
	// the previous tick is still pruning; drop this one.
	if !gate.TryLock() {
		s.logger.Warn("cron: job still running, skipping tick", "job", job.Name())
		return
	}
	defer gate.Unlock()

	s.logger.Debug("cron: job started", "job", job.Name())
	if err := job.Run(ctx); err != nil {
		s.logger.Error("cron: job failed", "job", job.Name(), "error", err)
		return
	}
	s.logger.Debug("cron: job completed", "job", job.Name())
}

// Stop cancels the job context and waits for in-flight runs to finish.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.runner != nil {
		<-s.runner.Stop().Done()
		s.logger.Info("cron: scheduler stopped")
	}
	return nil
}
