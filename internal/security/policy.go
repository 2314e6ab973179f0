package security

import (
	"fmt"
	"sync"
	"time"
)

// AutonomyLevel is the session-wide policy tier controlling whether agent
// actions are blocked, gated behind approval, or unrestricted.
type AutonomyLevel int

const (
	// AutonomyReadOnly forbids all tool actions.
	AutonomyReadOnly AutonomyLevel = iota

	// AutonomySupervised requires human approval for sensitive tools.
	AutonomySupervised

	// AutonomyFull executes without approval.
	AutonomyFull
)

// ParseAutonomyLevel converts a config string to an AutonomyLevel.
func ParseAutonomyLevel(s string) (AutonomyLevel, error) {
	switch s {
	case "read_only":
		return AutonomyReadOnly, nil
	case "supervised", "":
		return AutonomySupervised, nil
	case "full":
		return AutonomyFull, nil
	default:
		return 0, fmt.Errorf("unknown autonomy level %q", s)
	}
}

// String returns the config spelling of the level.
func (l AutonomyLevel) String() string {
	switch l {
	case AutonomyReadOnly:
		return "read_only"
	case AutonomySupervised:
		return "supervised"
	case AutonomyFull:
		return "full"
	default:
		return fmt.Sprintf("AutonomyLevel(%d)", int(l))
	}
}

// Sensitivity classifies how dangerous a tool invocation is. Low
// sensitivity tools run without approval under supervised autonomy,
// high sensitivity tools need a human decision.
type Sensitivity int

const (
	SensitivityLow Sensitivity = iota
	SensitivityHigh
)

// ParseSensitivity converts a config string to a Sensitivity.
func ParseSensitivity(s string) (Sensitivity, error) {
	switch s {
	case "low":
		return SensitivityLow, nil
	case "high":
		return SensitivityHigh, nil
	default:
		return 0, fmt.Errorf("unknown sensitivity %q", s)
	}
}

// Unlimited disables the hourly action budget. Distinct from 0, which
// blocks every action.
const Unlimited = -1

// Policy gates agent actions by autonomy level and an hourly action
// budget. One Policy instance belongs to one session; counters are not
// shared across sessions.
type Policy struct {
	autonomy AutonomyLevel
	budget   int

	mu      sync.Mutex
	actions []time.Time
	now     func() time.Time

	sensitivity map[string]Sensitivity
}

// NewPolicy creates a policy with the given autonomy level and hourly
// action budget. A budget of Unlimited disables the cap, a budget of 0
// blocks every action. overrides maps tool names to a sensitivity that
// replaces whatever the tool declares for itself; it may be nil.
func NewPolicy(autonomy AutonomyLevel, maxActionsPerHour int, overrides map[string]Sensitivity) *Policy {
	return &Policy{
		autonomy:    autonomy,
		budget:      maxActionsPerHour,
		now:         time.Now,
		sensitivity: overrides,
	}
}

// Autonomy returns the level this policy was built with. Immutable for
// the lifetime of the instance.
func (p *Policy) Autonomy() AutonomyLevel {
	return p.autonomy
}

// CanAct reports whether the session may attempt actions at all.
// Pure predicate, no side effect.
func (p *Policy) CanAct() bool {
	return p.autonomy != AutonomyReadOnly
}

// RecordAction consumes one unit of the hourly action budget. It returns
// false and leaves state unchanged when the budget for the current
// sliding window is exhausted. Safe for concurrent in-flight tool
// executions; the check and increment are atomic under the lock.
func (p *Policy) RecordAction() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.budget == Unlimited {
		return true
	}

	now := p.now()
	p.evict(now)

	if len(p.actions) >= p.budget {
		return false
	}
	p.actions = append(p.actions, now)
	return true
}

// Sensitivity resolves the effective sensitivity for a tool: the config
// override when one exists, otherwise what the tool declares.
func (p *Policy) Sensitivity(toolName string, declared Sensitivity) Sensitivity {
	if s, ok := p.sensitivity[toolName]; ok {
		return s
	}
	return declared
}

// evict drops actions outside the sliding one-hour window.
// Caller must hold the lock.
func (p *Policy) evict(now time.Time) {
	cutoff := now.Add(-time.Hour)
	i := 0
	for i < len(p.actions) && p.actions[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		p.actions = p.actions[i:]
	}
}
