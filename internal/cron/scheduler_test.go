package cron

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type maintenanceJob struct {
	name     string
	schedule string
	run      func(ctx context.Context) error
	runs     atomic.Int32
}

func (j *maintenanceJob) Name() string     { return j.name }
func (j *maintenanceJob) Schedule() string { return j.schedule }
func (j *maintenanceJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.run != nil {
		return j.run(ctx)
	}
	return nil
}

func TestScheduler_RejectsDuplicateJobName(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default())
	if err := s.RegisterJob(&maintenanceJob{name: "session-cleanup", schedule: "*/30 * * * *"}); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if err := s.RegisterJob(&maintenanceJob{name: "session-cleanup", schedule: "0 * * * *"}); err == nil {
		t.Fatal("second registration under the same name should fail")
	}
}

func TestScheduler_BadScheduleFailsStart(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default())
	_ = s.RegisterJob(&maintenanceJob{name: "transcript-prune", schedule: "every day at noon"})

	if err := s.Start(); err == nil {
		t.Fatal("unparseable schedule should fail Start")
	}
}

func TestScheduler_DescriptorSchedulesRejected(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default())
	_ = s.RegisterJob(&maintenanceJob{name: "prune", schedule: "@hourly"})

	if err := s.Start(); err == nil {
		t.Fatal("descriptor schedules are not accepted")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default())
	_ = s.RegisterJob(&maintenanceJob{name: "session-cleanup", schedule: "*/30 * * * *"})

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestScheduler_NilLoggerDefaults(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil)
	if s.logger == nil {
		t.Fatal("nil logger should fall back to slog.Default")
	}
}

func TestScheduler_TickSkipsWhileJobHeld(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32

	s := NewScheduler(slog.Default())
	job := &maintenanceJob{
		name:     "slow-prune",
		schedule: "* * * * *",
		run: func(_ context.Context) error {
			c := inFlight.Add(1)
			for {
				old := peak.Load()
				if c <= old || peak.CompareAndSwap(old, c) {
					break
				}
			}
			time.Sleep(50 * time.Millisecond)
			inFlight.Add(-1)
			return nil
		},
	}
	_ = s.RegisterJob(job)

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	gate := s.busy["slow-prune"]
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.tick(context.Background(), job, gate)
		}()
	}
	wg.Wait()

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if peak.Load() > 1 {
		t.Errorf("job overlapped itself: peak concurrency %d", peak.Load())
	}
	if job.runs.Load() == 0 {
		t.Error("no tick ran the job")
	}
}

func TestScheduler_JobErrorDoesNotStopScheduler(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default())
	job := &maintenanceJob{
		name:     "flaky-prune",
		schedule: "* * * * *",
		run: func(_ context.Context) error {
			return errors.New("store unavailable")
		},
	}
	_ = s.RegisterJob(job)

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	s.tick(context.Background(), job, s.busy["flaky-prune"])

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop after job error: %v", err)
	}
	if job.runs.Load() != 1 {
		t.Errorf("runs = %d, want 1", job.runs.Load())
	}
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default())
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop without start: %v", err)
	}
}
