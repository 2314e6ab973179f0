package provider

import (
	"sync"
	"testing"
	"time"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func trackerWithClock(cfg HealthConfig) (*HealthTracker, *testClock) {
	h := NewHealthTracker(cfg)
	clk := &testClock{now: time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)}
	h.now = clk.Now
	return h, clk
}

func TestHealthTracker_StartsHealthy(t *testing.T) {
	t.Parallel()

	h, _ := trackerWithClock(HealthConfig{})
	if h.State() != StateHealthy || !h.IsAvailable() {
		t.Errorf("fresh tracker: state %v, available %v", h.State(), h.IsAvailable())
	}
	if h.ShouldHealthCheck() {
		t.Error("a healthy provider needs no probe")
	}
}

func TestHealthTracker_CooldownGatesRequests(t *testing.T) {
	t.Parallel()

	h, clk := trackerWithClock(HealthConfig{InitialBackoff: time.Second})
	h.RecordFailure()

	if h.State() != StateCooldown {
		t.Fatalf("state = %v, want cooldown", h.State())
	}
	if h.IsAvailable() {
		t.Error("available inside the backoff window")
	}

	clk.Advance(2 * time.Second)
	if !h.IsAvailable() {
		t.Error("still gated after the backoff elapsed")
	}
}

func TestHealthTracker_AvailableAtExactExpiry(t *testing.T) {
	t.Parallel()

	h, clk := trackerWithClock(HealthConfig{InitialBackoff: time.Second})
	h.RecordFailure()

	clk.Advance(time.Second)
	if !h.IsAvailable() {
		t.Error("the boundary instant counts as elapsed")
	}
	if !h.ShouldHealthCheck() {
		t.Error("an elapsed cooldown warrants a probe")
	}
}

func TestHealthTracker_BackoffDoubles(t *testing.T) {
	t.Parallel()

	h, clk := trackerWithClock(HealthConfig{
		InitialBackoff: time.Second,
		MaxBackoff:     60 * time.Second,
		MaxFailures:    10,
	})

	for i, want := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second} {
		h.RecordFailure()
		if got := h.CurrentBackoff(); got != want {
			t.Fatalf("failure %d: backoff = %v, want %v", i+1, got, want)
		}
		if h.IsAvailable() {
			t.Errorf("failure %d: available before backoff", i+1)
		}
		clk.Advance(want + time.Millisecond)
		if !h.IsAvailable() {
			t.Errorf("failure %d: gated after backoff", i+1)
		}
	}
}

func TestHealthTracker_BackoffStopsAtCap(t *testing.T) {
	t.Parallel()

	h, clk := trackerWithClock(HealthConfig{
		InitialBackoff: 4 * time.Second,
		MaxBackoff:     10 * time.Second,
		MaxFailures:    10,
	})

	h.RecordFailure() // 4s
	clk.Advance(5 * time.Second)
	h.RecordFailure() // 8s
	clk.Advance(9 * time.Second)
	h.RecordFailure() // doubling would give 16s; cap holds it at 10s

	if got := h.CurrentBackoff(); got != 10*time.Second {
		t.Fatalf("backoff = %v, want the 10s cap", got)
	}
	if h.IsAvailable() {
		t.Error("available inside the capped window")
	}
	clk.Advance(11 * time.Second)
	if !h.IsAvailable() {
		t.Error("gated after the capped window elapsed")
	}
}

func TestHealthTracker_DeadAfterMaxFailures(t *testing.T) {
	t.Parallel()

	h, _ := trackerWithClock(HealthConfig{MaxFailures: 3})
	for range 3 {
		h.RecordFailure()
	}

	if h.State() != StateDead {
		t.Fatalf("state = %v, want dead", h.State())
	}
	if h.IsAvailable() {
		t.Error("a dead provider takes no requests")
	}
	if !h.ShouldHealthCheck() {
		t.Error("only a probe can revive a dead provider")
	}
}

func TestHealthTracker_SuccessRevivesAndResets(t *testing.T) {
	t.Parallel()

	h, clk := trackerWithClock(HealthConfig{InitialBackoff: time.Second, MaxFailures: 2})
	h.RecordFailure()
	h.RecordFailure()
	if h.State() != StateDead {
		t.Fatal("setup: tracker should be dead")
	}

	h.RecordSuccess()
	if h.State() != StateHealthy || !h.IsAvailable() || h.Failures() != 0 {
		t.Errorf("after success: state %v, failures %d", h.State(), h.Failures())
	}

	// The streak reset means the next failure starts from the initial
	// backoff, not where the doubling left off.
	h.RecordFailure()
	clk.Advance(500 * time.Millisecond)
	if h.IsAvailable() {
		t.Error("available at 500ms with a 1s initial backoff")
	}
	clk.Advance(600 * time.Millisecond)
	if !h.IsAvailable() {
		t.Error("gated past the initial backoff")
	}
}

func TestHealthTracker_ShouldHealthCheckDuringCooldown(t *testing.T) {
	t.Parallel()

	h, clk := trackerWithClock(HealthConfig{MaxFailures: 3})
	h.RecordFailure()
	if h.ShouldHealthCheck() {
		t.Error("no probe while the cooldown is running")
	}
	clk.Advance(2 * time.Second)
	if !h.ShouldHealthCheck() {
		t.Error("elapsed cooldown warrants a probe")
	}
}

func TestHealthTracker_StateChangeCallback(t *testing.T) {
	t.Parallel()

	h, _ := trackerWithClock(HealthConfig{MaxFailures: 2})

	type hop struct{ from, to HealthState }
	var hops []hop
	h.OnStateChange = func(from, to HealthState) {
		hops = append(hops, hop{from, to})
	}

	h.RecordFailure()
	h.RecordFailure()
	h.RecordSuccess()

	want := []hop{
		{StateHealthy, StateCooldown},
		{StateCooldown, StateDead},
		{StateDead, StateHealthy},
	}
	if len(hops) != len(want) {
		t.Fatalf("got %d transitions, want %d", len(hops), len(want))
	}
	for i := range want {
		if hops[i] != want[i] {
			t.Errorf("transition %d = %v->%v, want %v->%v", i, hops[i].from, hops[i].to, want[i].from, want[i].to)
		}
	}
}

func TestHealthTracker_NoCallbackWithoutTransition(t *testing.T) {
	t.Parallel()

	h, _ := trackerWithClock(HealthConfig{})
	called := false
	h.OnStateChange = func(_, _ HealthState) { called = true }

	h.RecordSuccess()
	if called {
		t.Error("healthy to healthy is not a transition")
	}
}

func TestHealthTracker_ConcurrentUse(t *testing.T) {
	t.Parallel()

	h, clk := trackerWithClock(HealthConfig{MaxFailures: 100})

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(3)
		go func() {
			defer wg.Done()
			h.RecordFailure()
		}()
		go func() {
			defer wg.Done()
			_ = h.IsAvailable()
		}()
		go func() {
			defer wg.Done()
			clk.Advance(time.Millisecond)
			h.RecordSuccess()
		}()
	}
	wg.Wait()
}

func TestHealthConfig_Defaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  HealthConfig
		want HealthConfig
	}{
		{
			name: "zero values filled",
			cfg:  HealthConfig{},
			want: HealthConfig{InitialBackoff: time.Second, MaxBackoff: 60 * time.Second, MaxFailures: 5},
		},
		{
			name: "negative values replaced",
			cfg:  HealthConfig{InitialBackoff: -time.Second, MaxBackoff: -2 * time.Second, MaxFailures: -3},
			want: HealthConfig{InitialBackoff: time.Second, MaxBackoff: 60 * time.Second, MaxFailures: 5},
		},
		{
			name: "explicit values kept",
			cfg:  HealthConfig{InitialBackoff: 500 * time.Millisecond, MaxBackoff: 30 * time.Second, MaxFailures: 3},
			want: HealthConfig{InitialBackoff: 500 * time.Millisecond, MaxBackoff: 30 * time.Second, MaxFailures: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.cfg.defaults()
			if tt.cfg != tt.want {
				t.Errorf("defaults() = %+v, want %+v", tt.cfg, tt.want)
			}
		})
	}
}

func TestHealthState_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state HealthState
		want  string
	}{
		{StateHealthy, "healthy"},
		{StateCooldown, "cooldown"},
		{StateDead, "dead"},
		{HealthState(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("HealthState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
