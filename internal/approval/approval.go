// Package approval implements the human-in-the-loop checkpoint for
// sensitive tool invocations. A Manager is built once per session from
// the autonomy configuration in effect at session start, so approval
// semantics stay stable within a conversation.
package approval

import (
	"context"
	"encoding/json"
	"errors"
)

// Decision is the result of the approval gate for one tool invocation.
type Decision int

const (
	// DecisionNotRequired means the invocation may proceed without a
	// human in the loop.
	DecisionNotRequired Decision = iota

	// DecisionApproved means a human explicitly approved the invocation.
	DecisionApproved

	// DecisionDenied means the invocation must not execute.
	DecisionDenied
)

// String returns a human-readable label for the decision.
func (d Decision) String() string {
	switch d {
	case DecisionNotRequired:
		return "not_required"
	case DecisionApproved:
		return "approved"
	case DecisionDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// Request is sent to a Requester when a tool needs user confirmation.
type Request struct {
	// ID is a unique identifier for this approval request.
	ID string

	// ToolName is the name of the tool requesting approval.
	ToolName string

	// Description is a human-readable summary of what the tool will do.
	Description string

	// Arguments are the raw JSON arguments that will be passed to the tool.
	Arguments json.RawMessage
}

// Response is the result of an approval request.
type Response struct {
	// Approved indicates whether the user approved the tool execution.
	Approved bool

	// Reason is an optional explanation for the decision.
	Reason string
}

// Requester performs the blocking human-approval handshake.
// Implementations provide different UX per surface (console prompt,
// gateway frame) via interface polymorphism.
type Requester interface {
	// RequestApproval sends an approval request and blocks until a
	// response is received or the context is cancelled.
	RequestApproval(ctx context.Context, req Request) (Response, error)
}

// ErrApprovalTimeout is returned when an approval request times out.
// A timed-out approval is always treated as denied, never as approved.
var ErrApprovalTimeout = errors.New("approval request timed out")
