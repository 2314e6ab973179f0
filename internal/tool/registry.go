package tool

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/wardenproj/warden/internal/provider"
	"github.com/wardenproj/warden/internal/security"
)

// Registry holds the tools available to a session. It exclusively owns
// the descriptor set; the loop only borrows it. The registry is
// read-only during loop execution, registration happens at startup.
type Registry struct {
	mu          sync.RWMutex
	tools       map[string]Tool
	auditLogger *security.AuditLogger
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// SetAuditLogger configures audit logging for tool executions.
func (r *Registry) SetAuditLogger(logger *security.AuditLogger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auditLogger = logger
}

// Register adds a tool to the registry.
// It returns ErrEmptyToolName for blank names and ErrDuplicateTool if a
// tool with the same name is already registered.
func (r *Registry) Register(t Tool) error {
	name := strings.TrimSpace(t.Name())
	if name == "" {
		return ErrEmptyToolName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}

	r.tools[name] = t
	return nil
}

// Get returns the tool with the given name, or ErrToolNotFound.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return t, nil
}

// Names returns all registered tool names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Definitions returns the provider-facing definitions of all registered
// tools except those named in exclude, sorted by name.
func (r *Registry) Definitions(exclude []string) []provider.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]provider.ToolDefinition, 0, len(r.tools))
	for name, t := range r.tools {
		if slices.Contains(exclude, name) {
			continue
		}
		defs = append(defs, provider.ToolDefinition{
			Name:        name,
			Description: t.Description(),
			Parameters:  t.Schema(),
		})
	}
	slices.SortFunc(defs, func(a, b provider.ToolDefinition) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return defs
}

// Execute looks up and runs a tool, converting any execution fault into
// a failed Outcome so a misbehaving tool cannot crash the loop. The call
// and its result are audited with truncated payloads.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) Outcome {
	t, err := r.Get(name)
	if err != nil {
		return Fail(fmt.Sprintf("unknown tool: %s", name))
	}

	// Argument payloads come straight from the model; bound them before
	// any tool sees them.
	if err := security.ValidateMessageSize(args, 0); err != nil {
		return Fail("arguments rejected: " + err.Error())
	}
	if err := security.ValidateJSONDepth(args, 0); err != nil {
		return Fail("arguments rejected: " + err.Error())
	}

	r.auditCall(name, args)

	outcome, err := t.Execute(ctx, args)
	if err != nil {
		outcome = Fail(fmt.Sprintf("tool %s failed: %v", name, err))
	}

	r.auditResult(name, outcome)
	return outcome
}

func (r *Registry) audit() *security.AuditLogger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.auditLogger
}

func (r *Registry) auditCall(name string, args json.RawMessage) {
	al := r.audit()
	if al == nil {
		return
	}
	al.Log(security.AuditEvent{
		Type:     security.EventToolCall,
		ToolName: name,
		Detail:   truncateForAudit(string(args)),
	})
}

func (r *Registry) auditResult(name string, outcome Outcome) {
	al := r.audit()
	if al == nil {
		return
	}
	detail := truncateForAudit(outcome.Output)
	if !outcome.Success {
		detail = "error: " + truncateForAudit(outcome.Error)
	}
	al.Log(security.AuditEvent{
		Type:     security.EventToolResult,
		ToolName: name,
		Detail:   detail,
		Metadata: map[string]string{
			"success": fmt.Sprintf("%v", outcome.Success),
		},
	})
}

// maxAuditDetailLen is the maximum length of audit detail strings.
// Longer values are truncated to prevent log bloat from large tool outputs.
const maxAuditDetailLen = 4096

// truncateForAudit truncates a string to maxAuditDetailLen, appending
// a truncation indicator if the string was shortened.
// It walks back to a valid UTF-8 rune boundary to avoid splitting multi-byte
// characters when the cut falls mid-rune.
func truncateForAudit(s string) string {
	if len(s) <= maxAuditDetailLen {
		return s
	}
	i := maxAuditDetailLen
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return s[:i] + "...(truncated)"
}
