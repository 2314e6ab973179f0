// Package hook provides lifecycle observation points for the agent loop.
// Hooks fire at three positions: when a tool starts, when a tool finishes,
// and when a turn completes. Execution is fire-and-forget: hook errors and
// panics are logged and never reach the loop.
package hook

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/wardenproj/warden/internal/tool"
)

// Position identifies where in the loop a hook executes.
type Position string

const (
	// ToolStart fires after the gates pass, before the tool executes.
	ToolStart Position = "tool_start"

	// ToolEnd fires after a tool outcome is available, including
	// synthesized outcomes for blocked or unknown tools.
	ToolEnd Position = "tool_end"

	// TurnEnd fires once per loop run, after the terminal state is known.
	TurnEnd Position = "turn_end"
)

// Context carries data available to hooks. ToolName, ToolID, Arguments
// and Outcome are set for tool positions; Iterations and StopReason are
// set for TurnEnd.
type Context struct {
	Position  Position
	SessionID string

	ToolName  string
	ToolID    string
	Arguments json.RawMessage
	Outcome   *tool.Outcome
	Duration  time.Duration

	Iterations int
	StopReason string

	// Metadata is shared across positions within one turn, allowing
	// hooks to communicate through the pipeline.
	Metadata map[string]any

	Logger *slog.Logger
}

// Hook is the extension point interface for loop observation.
type Hook interface {
	// Position returns where this hook should execute.
	Position() Position

	// Priority determines execution order within a position.
	// Lower values run first.
	Priority() int

	// Execute runs the hook logic. Errors are logged by the pipeline
	// and never propagated.
	Execute(ctx context.Context, hctx *Context) error
}
