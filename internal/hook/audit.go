package hook

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"sync"
	"time"
)

// AuditRecord is one JSON Lines entry written by AuditHook.
type AuditRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	SessionID  string    `json:"session_id"`
	ToolName   string    `json:"tool_name,omitempty"`
	ToolID     string    `json:"tool_id,omitempty"`
	Success    *bool     `json:"success,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	Iterations int       `json:"iterations,omitempty"`
	StopReason string    `json:"stop_reason,omitempty"`
}

// AuditHook writes a JSON Lines entry for every tool outcome and every
// completed turn. It runs with the lowest priority (runs last).
type AuditHook struct {
	writer io.Writer
	pos    Position
	mu     sync.Mutex
	now    func() time.Time
}

// NewAuditHook creates an audit hook for the given position writing
// JSON Lines to w. In production, w is typically an *os.File; in tests,
// a *bytes.Buffer.
func NewAuditHook(w io.Writer, pos Position) *AuditHook {
	return &AuditHook{
		writer: w,
		pos:    pos,
		now:    time.Now,
	}
}

// Compile-time interface check.
var _ Hook = (*AuditHook)(nil)

// Position returns the position this audit hook was created for.
func (a *AuditHook) Position() Position { return a.pos }

// Priority returns math.MaxInt so the audit hook runs last.
func (a *AuditHook) Priority() int { return math.MaxInt }

// Execute writes one JSON Lines record for the observed event.
func (a *AuditHook) Execute(_ context.Context, hctx *Context) error {
	record := AuditRecord{
		Timestamp: a.now(),
		SessionID: hctx.SessionID,
		ToolName:  hctx.ToolName,
		ToolID:    hctx.ToolID,
	}

	if hctx.Outcome != nil {
		success := hctx.Outcome.Success
		record.Success = &success
		record.DurationMs = hctx.Duration.Milliseconds()
	}

	if hctx.Position == TurnEnd {
		record.Iterations = hctx.Iterations
		record.StopReason = hctx.StopReason
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	return json.NewEncoder(a.writer).Encode(record)
}
