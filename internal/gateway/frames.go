package gateway

import "encoding/json"

// Frame types exchanged over the WebSocket session endpoint. The client
// sends "message" and "approval_response" frames; everything else flows
// server to client.
const (
	frameMessage          = "message"
	frameApprovalResponse = "approval_response"

	frameAgentStart      = "agent_start"
	frameChunk           = "chunk"
	frameToolCall        = "tool_call"
	frameToolResult      = "tool_result"
	frameApprovalRequest = "approval_request"
	frameDone            = "done"
	frameAgentEnd        = "agent_end"
	frameError           = "error"
)

// inboundFrame is a client-to-server frame.
type inboundFrame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`

	// Approval response fields.
	RequestID string `json:"request_id,omitempty"`
	Approved  bool   `json:"approved,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// outboundFrame is a server-to-client frame. Fields are populated
// depending on Type; unused fields are omitted from the JSON.
type outboundFrame struct {
	Type string `json:"type"`

	// agent_start
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	// chunk
	Content string `json:"content,omitempty"`

	// tool_call / tool_result / approval_request
	Name      string          `json:"name,omitempty"`
	ToolID    string          `json:"tool_id,omitempty"`
	Args      json.RawMessage `json:"args,omitempty"`
	Output    string          `json:"output,omitempty"`
	Success   *bool           `json:"success,omitempty"`
	RequestID string          `json:"request_id,omitempty"`

	// done
	FullResponse string `json:"full_response,omitempty"`
	StopReason   string `json:"stop_reason,omitempty"`
	Iterations   int    `json:"iterations,omitempty"`

	// error / approval_request prompt text
	Message string `json:"message,omitempty"`
}

// errorFrame builds an error frame. Error frames never close the
// connection; the client may keep sending messages.
func errorFrame(message string) outboundFrame {
	return outboundFrame{Type: frameError, Message: message}
}
