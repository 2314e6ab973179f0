package security

import (
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// EventType categorizes audit events.
type EventType string

// Every action-control decision leaves one of these in the audit log.
const (
	EventMessage       EventType = "message"
	EventToolCall      EventType = "tool_call"
	EventToolResult    EventType = "tool_result"
	EventPolicyBlock   EventType = "policy_block"
	EventApproval      EventType = "approval"
	EventEgressDenied  EventType = "egress_denied"
	EventAuthSuccess   EventType = "auth_success"
	EventAuthFailure   EventType = "auth_failure"
	EventSessionCreate EventType = "session_create"
	EventSessionClose  EventType = "session_close"
	EventRateLimit     EventType = "rate_limit"
)

// AuditEvent is one line of the audit trail.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      EventType         `json:"type"`
	SessionID string            `json:"session_id,omitempty"`
	ToolName  string            `json:"tool_name,omitempty"`
	Decision  string            `json:"decision,omitempty"`
	Detail    string            `json:"detail,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditLoggerConfig configures an AuditLogger.
type AuditLoggerConfig struct {
	// Writer receives one JSON line per event. With a nil Writer events
	// still reach OnEvent, which is how tests capture them.
	Writer io.Writer

	// Redactor scrubs Detail and Metadata values before they are
	// written. Optional.
	Redactor *Redactor

	// OnEvent observes every logged event. Optional.
	OnEvent func(AuditEvent)

	// Now stamps events; defaults to time.Now.
	Now func() time.Time
}

// AuditLogger appends redacted action-control events as JSON Lines.
type AuditLogger struct {
	cfg         AuditLoggerConfig
	mu          sync.Mutex
	writeErrors atomic.Int64
}

// NewAuditLogger builds a logger from cfg.
func NewAuditLogger(cfg AuditLoggerConfig) *AuditLogger {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &AuditLogger{cfg: cfg}
}

// Log stamps, redacts, and records one event. The caller's Metadata
// map is copied, never mutated.
func (l *AuditLogger) Log(event AuditEvent) {
	event.Timestamp = l.cfg.Now()

	if len(event.Metadata) > 0 {
		cp := make(map[string]string, len(event.Metadata))
		for k, v := range event.Metadata {
			cp[k] = v
		}
		event.Metadata = cp
	}

	if r := l.cfg.Redactor; r != nil {
		event.Detail = r.Redact(event.Detail)
		for k, v := range event.Metadata {
			event.Metadata[k] = r.Redact(v)
		}
	}

	// The callback and the stream see events in the same order.
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cfg.OnEvent != nil {
		l.cfg.OnEvent(event)
	}
	if l.cfg.Writer != nil {
		if err := json.NewEncoder(l.cfg.Writer).Encode(event); err != nil {
			l.writeErrors.Add(1)
		}
	}
}

// WriteErrors counts events that failed to reach the writer. Surfaced
// through the status endpoint.
func (l *AuditLogger) WriteErrors() int64 {
	return l.writeErrors.Load()
}
