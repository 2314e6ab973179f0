package approval

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wardenproj/warden/internal/security"
)

// defaultTimeout bounds the approval handshake when no timeout is
// configured. An unanswered approval is denied.
const defaultTimeout = 120 * time.Second

// Manager decides whether a specific tool invocation needs explicit
// human sign-off before execution, and performs that handshake.
type Manager struct {
	policy    *security.Policy
	requester Requester
	timeout   time.Duration
	audit     *security.AuditLogger
}

// NewManager builds a manager from the session's security policy.
// requester may be nil, in which case every handshake is denied.
func NewManager(policy *security.Policy, requester Requester, timeout time.Duration, audit *security.AuditLogger) *Manager {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Manager{
		policy:    policy,
		requester: requester,
		timeout:   timeout,
		audit:     audit,
	}
}

// Decide computes the approval decision for one tool invocation.
// Full-autonomy sessions never require approval. Supervised sessions
// require the human handshake for tools whose effective sensitivity is
// high; the handshake blocks until a decision, cancellation or timeout.
// A timed-out or unanswered handshake is denied, never approved.
//
// Read-only sessions are blocked earlier by the security policy and do
// not normally reach this gate; if one does, the decision is denied.
func (m *Manager) Decide(ctx context.Context, toolName string, declared security.Sensitivity, args json.RawMessage) (Decision, string) {
	switch m.policy.Autonomy() {
	case security.AutonomyFull:
		return DecisionNotRequired, ""
	case security.AutonomyReadOnly:
		return DecisionDenied, "autonomy is read-only"
	}

	if m.policy.Sensitivity(toolName, declared) == security.SensitivityLow {
		return DecisionNotRequired, ""
	}

	if m.requester == nil {
		m.logDecision(toolName, DecisionDenied, "no approval requester configured")
		return DecisionDenied, "no approval requester configured"
	}

	pending := NewPending()
	resp, err := pending.Begin(ctx, m.requester, Request{
		ID:          fmt.Sprintf("approve-%s-%d", toolName, time.Now().UnixNano()),
		ToolName:    toolName,
		Description: toolName,
		Arguments:   args,
	}, m.timeout)
	if err != nil {
		reason := resp.Reason
		if reason == "" {
			reason = err.Error()
		}
		m.logDecision(toolName, DecisionDenied, reason)
		return DecisionDenied, reason
	}

	if !resp.Approved {
		reason := resp.Reason
		if reason == "" {
			reason = "denied by user"
		}
		m.logDecision(toolName, DecisionDenied, reason)
		return DecisionDenied, reason
	}

	m.logDecision(toolName, DecisionApproved, resp.Reason)
	return DecisionApproved, resp.Reason
}

func (m *Manager) logDecision(toolName string, d Decision, reason string) {
	if m.audit == nil {
		return
	}
	m.audit.Log(security.AuditEvent{
		Type:     security.EventApproval,
		ToolName: toolName,
		Decision: d.String(),
		Detail:   reason,
	})
}
