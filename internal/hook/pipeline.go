package hook

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Pipeline manages hook registration and execution.
// Hooks are grouped by position and sorted by (priority, registration order).
// Thread-safe: registrations use a write lock, executions use a read lock.
type Pipeline struct {
	mu    sync.RWMutex
	hooks map[Position][]Hook
	// order tracks registration sequence for stable sorting.
	order map[Hook]int
	seq   int
}

// NewPipeline creates a new empty hook pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{
		hooks: make(map[Position][]Hook),
		order: make(map[Hook]int),
	}
}

// Register adds a hook to the pipeline. Hooks within the same position
// are sorted by priority (ascending), with registration order as tiebreaker.
func (p *Pipeline) Register(h Hook) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos := h.Position()
	p.order[h] = p.seq
	p.seq++

	p.hooks[pos] = append(p.hooks[pos], h)
	slices.SortStableFunc(p.hooks[pos], func(a, b Hook) int {
		if a.Priority() != b.Priority() {
			return a.Priority() - b.Priority()
		}
		return p.order[a] - p.order[b]
	})
}

// Run executes all hooks registered for the given position in order.
// Fire-and-forget: errors and panics are logged and never propagated,
// so a misbehaving hook cannot stall or abort the agent loop.
func (p *Pipeline) Run(ctx context.Context, hctx *Context) {
	if p == nil {
		return
	}

	p.mu.RLock()
	hooks := p.hooks[hctx.Position]
	p.mu.RUnlock()

	for _, h := range hooks {
		p.runOne(ctx, h, hctx)
	}
}

func (p *Pipeline) runOne(ctx context.Context, h Hook, hctx *Context) {
	defer func() {
		if r := recover(); r != nil && hctx.Logger != nil {
			hctx.Logger.Error("hook panicked",
				"position", string(hctx.Position),
				"panic", fmt.Sprintf("%v", r),
			)
		}
	}()

	if err := h.Execute(ctx, hctx); err != nil && hctx.Logger != nil {
		hctx.Logger.Warn("hook error",
			"position", string(hctx.Position),
			"priority", h.Priority(),
			"error", err,
		)
	}
}
