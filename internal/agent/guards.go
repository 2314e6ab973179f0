package agent

import (
	"encoding/json"

	"github.com/wardenproj/warden/internal/provider"
)

// repeatGuard spots a model stuck replaying the same action. Each tool
// call is keyed by name plus canonical arguments; once a key has been
// seen limit times the guard trips.
type repeatGuard struct {
	limit int
	seen  map[string]int
}

func newRepeatGuard(limit int) *repeatGuard {
	return &repeatGuard{limit: limit, seen: make(map[string]int)}
}

// canonicalJSON re-marshals args so key order cannot split one logical
// call into several keys. Invalid JSON keys on its raw bytes.
func canonicalJSON(args json.RawMessage) string {
	var v any
	if err := json.Unmarshal(args, &v); err != nil {
		return string(args)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return string(args)
	}
	return string(out)
}

// observe counts one call and reports whether this exact call signature
// has now hit the limit.
func (g *repeatGuard) observe(name string, args json.RawMessage) bool {
	key := name + ":" + canonicalJSON(args)
	g.seen[key]++
	return g.seen[key] >= g.limit
}

// clear forgets every observed signature.
func (g *repeatGuard) clear() {
	g.seen = make(map[string]int)
}

// budgetMeter adds up token usage across a turn and flags when the
// spend reaches the configured budget. Single-goroutine use only; one
// meter lives inside one Run or RunStream invocation.
type budgetMeter struct {
	budget int
	usage  provider.TokenUsage
}

func newBudgetMeter(budget int) *budgetMeter {
	return &budgetMeter{budget: budget}
}

func (m *budgetMeter) spend(u provider.TokenUsage) {
	m.usage.PromptTokens += u.PromptTokens
	m.usage.CompletionTokens += u.CompletionTokens
	m.usage.TotalTokens += u.TotalTokens
}

// depleted reports whether total spend reached the budget. A zero
// budget means no cap.
func (m *budgetMeter) depleted() bool {
	return m.budget > 0 && m.usage.TotalTokens >= m.budget
}

func (m *budgetMeter) spent() provider.TokenUsage {
	return m.usage
}
