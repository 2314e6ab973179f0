package provider

import (
	"sync"
	"time"
)

// HealthState is the availability of the upstream LLM.
type HealthState int

const (
	StateHealthy HealthState = iota
	StateCooldown
	StateDead
)

var stateLabels = map[HealthState]string{
	StateHealthy:  "healthy",
	StateCooldown: "cooldown",
	StateDead:     "dead",
}

func (s HealthState) String() string {
	if label, ok := stateLabels[s]; ok {
		return label
	}
	return "unknown"
}

// HealthConfig tunes failure handling.
type HealthConfig struct {
	// InitialBackoff is the first cooldown. Doubles per consecutive
	// failure. Default 1s.
	InitialBackoff time.Duration

	// MaxBackoff caps the doubling. Default 60s.
	MaxBackoff time.Duration

	// MaxFailures in a row before the provider is declared dead and
	// only active probes can revive it. Default 5.
	MaxFailures int
}

func (c *HealthConfig) defaults() {
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 60 * time.Second
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = 5
	}
}

// HealthTracker follows one provider's availability. The agent loop
// records outcomes; the gateway's status endpoint and the health-check
// job read the state back.
type HealthTracker struct {
	cfg HealthConfig

	// OnStateChange fires outside the lock on every transition, which
	// lets callers log or export metrics without the tracker knowing.
	OnStateChange func(from, to HealthState)

	mu       sync.Mutex
	state    HealthState
	failures int
	backoff  time.Duration
	retryAt  time.Time

	now func() time.Time
}

// NewHealthTracker starts healthy.
func NewHealthTracker(cfg HealthConfig) *HealthTracker {
	cfg.defaults()
	return &HealthTracker{cfg: cfg, state: StateHealthy, now: time.Now}
}

// IsAvailable reports whether requests may be sent. Cooldown counts as
// available once its backoff has elapsed.
func (h *HealthTracker) IsAvailable() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.state {
	case StateHealthy:
		return true
	case StateCooldown:
		return h.backoffElapsed()
	}
	return false
}

// ShouldHealthCheck reports whether an active probe is warranted: the
// provider is dead, or its cooldown has run out and a cheap request
// would confirm recovery.
func (h *HealthTracker) ShouldHealthCheck() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.state {
	case StateDead:
		return true
	case StateCooldown:
		return h.backoffElapsed()
	}
	return false
}

// RecordSuccess clears the failure streak and returns to healthy.
func (h *HealthTracker) RecordSuccess() {
	h.mu.Lock()
	prev := h.state
	h.state = StateHealthy
	h.failures = 0
	h.backoff = 0
	h.mu.Unlock()

	h.announce(prev, StateHealthy)
}

// RecordFailure extends the streak: cooldown with doubled backoff, or
// dead at MaxFailures.
func (h *HealthTracker) RecordFailure() {
	h.mu.Lock()
	prev := h.state
	h.failures++

	next := StateCooldown
	if h.failures >= h.cfg.MaxFailures {
		next = StateDead
	} else {
		h.backoff = h.nextBackoff()
		h.retryAt = h.now().Add(h.backoff)
	}
	h.state = next
	h.mu.Unlock()

	h.announce(prev, next)
}

// State returns the current health state.
func (h *HealthTracker) State() HealthState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Failures returns the consecutive failure count.
func (h *HealthTracker) Failures() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.failures
}

// CurrentBackoff returns the cooldown currently in force.
func (h *HealthTracker) CurrentBackoff() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.backoff
}

func (h *HealthTracker) backoffElapsed() bool {
	return !h.now().Before(h.retryAt)
}

func (h *HealthTracker) nextBackoff() time.Duration {
	b := h.backoff * 2
	if h.backoff == 0 {
		b = h.cfg.InitialBackoff
	}
	return min(b, h.cfg.MaxBackoff)
}

func (h *HealthTracker) announce(from, to HealthState) {
	if from != to && h.OnStateChange != nil {
		h.OnStateChange(from, to)
	}
}
