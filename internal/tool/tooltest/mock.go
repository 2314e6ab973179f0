// Package tooltest provides test helpers and mocks for the tool package.
package tooltest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/wardenproj/warden/internal/security"
	"github.com/wardenproj/warden/internal/tool"
)

// MockTool is a configurable mock implementation of tool.Tool.
type MockTool struct {
	NameFunc        func() string
	DescriptionFunc func() string
	SchemaFunc      func() json.RawMessage
	SensitivityFunc func() security.Sensitivity
	ExecuteFunc     func(ctx context.Context, args json.RawMessage) (tool.Outcome, error)

	mu           sync.Mutex
	ExecuteCalls int
}

// Name implements tool.Tool.
func (m *MockTool) Name() string {
	if m.NameFunc != nil {
		return m.NameFunc()
	}
	return "mock-tool"
}

// Description implements tool.Tool.
func (m *MockTool) Description() string {
	if m.DescriptionFunc != nil {
		return m.DescriptionFunc()
	}
	return "a mock tool"
}

// Schema implements tool.Tool.
func (m *MockTool) Schema() json.RawMessage {
	if m.SchemaFunc != nil {
		return m.SchemaFunc()
	}
	return json.RawMessage(`{}`)
}

// Sensitivity implements tool.Tool.
func (m *MockTool) Sensitivity() security.Sensitivity {
	if m.SensitivityFunc != nil {
		return m.SensitivityFunc()
	}
	return security.SensitivityLow
}

// Execute implements tool.Tool.
func (m *MockTool) Execute(ctx context.Context, args json.RawMessage) (tool.Outcome, error) {
	m.mu.Lock()
	m.ExecuteCalls++
	m.mu.Unlock()

	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, args)
	}
	return tool.Succeed("ok"), nil
}

// Calls returns the number of Execute invocations.
func (m *MockTool) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ExecuteCalls
}

// SimpleTool creates a minimal tool for testing with the given name and
// declared sensitivity.
func SimpleTool(name string, sensitivity security.Sensitivity) *MockTool {
	return &MockTool{
		NameFunc:        func() string { return name },
		DescriptionFunc: func() string { return "simple test tool: " + name },
		SchemaFunc:      func() json.RawMessage { return json.RawMessage(`{"type":"object"}`) },
		SensitivityFunc: func() security.Sensitivity { return sensitivity },
		ExecuteFunc: func(_ context.Context, _ json.RawMessage) (tool.Outcome, error) {
			return tool.Succeed("executed: " + name), nil
		},
	}
}

// Interface guard.
var _ tool.Tool = (*MockTool)(nil)
