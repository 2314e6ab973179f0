package provider

import (
	"context"
	"errors"
)

// WithHealth wraps p so every request outcome feeds the tracker.
// Cancellation does not count against the provider's health.
func WithHealth(p Provider, t *HealthTracker) Provider {
	return &trackedProvider{inner: p, tracker: t}
}

type trackedProvider struct {
	inner   Provider
	tracker *HealthTracker
}

func (tp *trackedProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	resp, err := tp.inner.Complete(ctx, req)
	tp.record(err)
	return resp, err
}

func (tp *trackedProvider) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	ch, err := tp.inner.Stream(ctx, req)
	if err != nil {
		tp.record(err)
		return nil, err
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		var streamErr error
		for chunk := range ch {
			if chunk.Err != nil {
				streamErr = chunk.Err
			}
			out <- chunk
		}
		tp.record(streamErr)
	}()
	return out, nil
}

func (tp *trackedProvider) ContextWindowSize() int { return tp.inner.ContextWindowSize() }

func (tp *trackedProvider) ModelName() string { return tp.inner.ModelName() }

// HealthCheck delegates to the wrapped provider when it supports active
// probing, and feeds the result into the tracker.
func (tp *trackedProvider) HealthCheck(ctx context.Context) error {
	hc, ok := tp.inner.(HealthChecker)
	if !ok {
		return nil
	}
	err := hc.HealthCheck(ctx)
	tp.record(err)
	return err
}

func (tp *trackedProvider) record(err error) {
	switch {
	case err == nil:
		tp.tracker.RecordSuccess()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// The caller gave up; the provider is not at fault.
	default:
		tp.tracker.RecordFailure()
	}
}
