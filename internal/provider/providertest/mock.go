// Package providertest provides a scriptable provider.Provider double.
package providertest

import (
	"context"

	"github.com/wardenproj/warden/internal/provider"
)

// MockProvider routes each interface method to the matching Func
// field. A call lands on a nil Func only when the test forgot to
// script it, so that panics loudly.
type MockProvider struct {
	CompleteFunc          func(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error)
	StreamFunc            func(ctx context.Context, req provider.CompletionRequest) (<-chan provider.StreamChunk, error)
	ContextWindowSizeFunc func() int
	ModelNameFunc         func() string
	HealthCheckFunc       func(ctx context.Context) error
}

var (
	_ provider.Provider      = (*MockProvider)(nil)
	_ provider.HealthChecker = (*MockProvider)(nil)
)

func (m *MockProvider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	return m.CompleteFunc(ctx, req)
}

func (m *MockProvider) Stream(ctx context.Context, req provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
	return m.StreamFunc(ctx, req)
}

func (m *MockProvider) ContextWindowSize() int { return m.ContextWindowSizeFunc() }

func (m *MockProvider) ModelName() string { return m.ModelNameFunc() }

func (m *MockProvider) HealthCheck(ctx context.Context) error { return m.HealthCheckFunc(ctx) }
