package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/wardenproj/warden/internal/approval"
	"github.com/wardenproj/warden/internal/provider"
	"github.com/wardenproj/warden/internal/security"
	"github.com/wardenproj/warden/internal/tool"
)

// Blocked-outcome messages returned to the model when a gate rejects a
// tool call. They are ordinary tool outcomes, never errors, so the
// conversation continues and the model can explain the block.
const (
	blockedReadOnly  = "Action blocked: autonomy is read-only"
	blockedRateLimit = "Action blocked: rate limit exceeded"
)

// ToolExecutorConfig holds the dependencies for gated tool execution.
type ToolExecutorConfig struct {
	Registry  *tool.Registry
	Policy    *security.Policy
	Approvals *approval.Manager
	Audit     *security.AuditLogger

	// Exclude lists tool names hidden from the model for this session.
	Exclude []string
}

// ToolExecutor runs the tool calls emitted by the model, in emission
// order, with every call passing the policy and approval gates. Gate
// rejections and tool faults become failed outcomes so a single bad
// call cannot abort the loop.
type ToolExecutor struct {
	registry  *tool.Registry
	policy    *security.Policy
	approvals *approval.Manager
	audit     *security.AuditLogger
	exclude   []string
}

// NewToolExecutor creates a ToolExecutor from the given configuration.
func NewToolExecutor(cfg ToolExecutorConfig) *ToolExecutor {
	return &ToolExecutor{
		registry:  cfg.Registry,
		policy:    cfg.Policy,
		approvals: cfg.Approvals,
		audit:     cfg.Audit,
		exclude:   cfg.Exclude,
	}
}

// Definitions returns the provider-facing tool definitions visible to
// this session.
func (e *ToolExecutor) Definitions() []provider.ToolDefinition {
	return e.registry.Definitions(e.exclude)
}

// Execute runs the tool calls sequentially in emission order and
// returns one record per call. If ctx is cancelled mid-batch, the
// in-flight tool finishes and keeps its result; remaining calls get a
// synthesized cancelled outcome.
func (e *ToolExecutor) Execute(ctx context.Context, calls []provider.ToolCall) []ToolCallRecord {
	records := make([]ToolCallRecord, len(calls))
	cancelled := false

	for i, call := range calls {
		if cancelled || ctx.Err() != nil {
			cancelled = true
			records[i] = ToolCallRecord{
				ID:        call.ID,
				Name:      call.Name,
				Arguments: call.Arguments,
				Outcome:   tool.Fail("Action cancelled before execution"),
			}
			continue
		}
		records[i] = e.executeSingle(ctx, call)
	}

	return records
}

func (e *ToolExecutor) executeSingle(ctx context.Context, tc provider.ToolCall) (record ToolCallRecord) {
	record.ID = tc.ID
	record.Name = tc.Name
	record.Arguments = tc.Arguments

	start := time.Now()
	defer func() {
		record.Duration = time.Since(start)
		if r := recover(); r != nil {
			record.Panicked = true
			record.Outcome = tool.Fail(fmt.Sprintf("panic: %v", r))
		}
	}()

	t, err := e.registry.Get(tc.Name)
	if err != nil {
		record.Outcome = tool.Fail(fmt.Sprintf("unknown tool: %s", tc.Name))
		return record
	}

	if e.policy != nil {
		if !e.policy.CanAct() {
			record.Outcome = tool.Fail(blockedReadOnly)
			e.auditBlock(security.EventPolicyBlock, tc.Name, blockedReadOnly)
			return record
		}
		if !e.policy.RecordAction() {
			record.Outcome = tool.Fail(blockedRateLimit)
			e.auditBlock(security.EventRateLimit, tc.Name, blockedRateLimit)
			return record
		}
	}

	if e.approvals != nil {
		decision, reason := e.approvals.Decide(ctx, tc.Name, t.Sensitivity(), tc.Arguments)
		record.Decision = decision
		if decision == approval.DecisionDenied {
			record.Outcome = tool.Fail("Action blocked: " + reason)
			return record
		}
	}

	record.Outcome = e.registry.Execute(ctx, tc.Name, tc.Arguments)
	return record
}

func (e *ToolExecutor) auditBlock(eventType security.EventType, toolName, detail string) {
	if e.audit == nil {
		return
	}
	e.audit.Log(security.AuditEvent{
		Type:     eventType,
		ToolName: toolName,
		Detail:   detail,
	})
}
