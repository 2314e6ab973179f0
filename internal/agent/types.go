// Package agent implements the multi-turn tool-call orchestration loop
// that drives the model-tool conversation: call the provider, execute
// the gated tool calls it emits, feed the outcomes back, repeat until a
// terminal state.
package agent

import (
	"encoding/json"
	"time"

	"github.com/wardenproj/warden/internal/approval"
	"github.com/wardenproj/warden/internal/provider"
	"github.com/wardenproj/warden/internal/tool"
)

// StopReason describes why the agent loop terminated.
type StopReason string

// StopReason constants for agent loop termination.
const (
	StopReasonComplete      StopReason = "complete"
	StopReasonMaxIterations StopReason = "max_iterations"
	StopReasonLoopDetected  StopReason = "loop_detected"
	StopReasonTokenBudget   StopReason = "token_budget"
	StopReasonTimeout       StopReason = "timeout"
	StopReasonCancelled     StopReason = "cancelled"
	StopReasonError         StopReason = "error"
)

// ToolCallRecord tracks one tool invocation during the agent loop,
// including invocations that were blocked before execution.
type ToolCallRecord struct {
	ID        string
	Name      string
	Arguments json.RawMessage
	Outcome   tool.Outcome
	Decision  approval.Decision
	Duration  time.Duration
	Panicked  bool
}

// StreamEventType identifies the kind of streaming event.
type StreamEventType string

// StreamEventType constants for streaming events.
const (
	StreamEventText      StreamEventType = "text"
	StreamEventToolStart StreamEventType = "tool_start"
	StreamEventToolEnd   StreamEventType = "tool_end"
	StreamEventDone      StreamEventType = "done"
	StreamEventError     StreamEventType = "error"
	StreamEventUsage     StreamEventType = "usage"
)

// StreamEvent is a single event emitted during a streaming agent loop.
type StreamEvent struct {
	Type     StreamEventType
	Content  string
	ToolCall *ToolCallRecord
	Usage    *provider.TokenUsage
	// Final is set on StreamEventDone with the aggregated loop response.
	Final *Response
	Err   error
}

// Request is the input to the agent loop.
type Request struct {
	SessionID    string
	Messages     []provider.LLMMessage
	SystemPrompt string
}

// Response is the output of the agent loop. Messages carries the full
// augmented transcript: the input history plus every assistant and
// tool-role message appended during the run.
type Response struct {
	Content    string
	Messages   []provider.LLMMessage
	ToolCalls  []ToolCallRecord
	TotalUsage provider.TokenUsage
	Iterations int
	StopReason StopReason
}
