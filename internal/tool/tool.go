// Package tool defines the capability interface, the outcome model, and
// the registry that owns a session's executable tools. Tools are the
// primary security boundary: every action the agent takes goes through a
// registered tool gated by the security policy and the approval manager.
package tool

import (
	"context"
	"encoding/json"

	"github.com/wardenproj/warden/internal/security"
)

// Tool is the capability contract every warden tool implements.
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what the tool does.
	Description() string

	// Schema returns a JSON Schema describing the tool's parameters.
	Schema() json.RawMessage

	// Sensitivity declares how dangerous this tool is. High sensitivity
	// tools require human approval under supervised autonomy. The
	// security policy may override the declared value per configuration.
	Sensitivity() security.Sensitivity

	// Execute runs the tool with the given arguments. Failures should be
	// reported through the Outcome; a returned error is treated as a
	// tool fault and converted to a failed Outcome by the registry.
	Execute(ctx context.Context, args json.RawMessage) (Outcome, error)
}

// Outcome is the result of a tool execution. Exactly one of Output
// (non-empty) or Error (present) is the meaningful payload.
type Outcome struct {
	// Success reports whether the tool ran to completion.
	Success bool `json:"success"`

	// Output is the text produced by the tool on success.
	Output string `json:"output"`

	// Error carries the failure description when Success is false.
	Error string `json:"error,omitempty"`
}

// Succeed builds a successful Outcome with the given output.
func Succeed(output string) Outcome {
	return Outcome{Success: true, Output: output}
}

// Fail builds the canonical failure Outcome: success=false, empty
// output, populated error.
func Fail(msg string) Outcome {
	return Outcome{Success: false, Error: msg}
}

// Text returns the message the model should see for this outcome: the
// output on success, the error text otherwise.
func (o Outcome) Text() string {
	if o.Success {
		return o.Output
	}
	return o.Error
}
