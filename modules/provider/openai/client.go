package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/wardenproj/warden/internal/channel"
	"github.com/wardenproj/warden/internal/provider"
)

const (
	// Responses larger than this are truncated at the reader. Keeps a
	// malformed upstream from ballooning memory.
	maxResponseBytes = 10 << 20

	chunkChannelBuffer = 64

	completionsPath = "/chat/completions"
)

// buildRequest assembles the wire request. Per-request knobs win over
// config-level defaults; unset knobs stay off the wire entirely.
func (p *Provider) buildRequest(req provider.CompletionRequest, stream bool) completionsRequest {
	msgs := req.Messages
	if p.config.InlineToolResults {
		msgs = channel.NormalizeToolResults(msgs)
	}

	out := completionsRequest{
		Model:    p.config.Model,
		Messages: encodeMessages(msgs),
		Stream:   stream,
		Stop:     req.Stop,
	}
	if len(req.Tools) > 0 {
		out.Tools = encodeTools(req.Tools)
	}

	out.MaxTokens = p.config.MaxTokens
	if req.MaxTokens > 0 {
		out.MaxTokens = req.MaxTokens
	}
	out.Temperature = p.config.Temperature
	if req.Temperature != nil {
		out.Temperature = req.Temperature
	}
	out.TopP = p.config.TopP
	if req.TopP != nil {
		out.TopP = req.TopP
	}

	if stream {
		out.StreamOptions = &streamOptions{IncludeUsage: true}
	}
	return out
}

func (p *Provider) newHTTPRequest(ctx context.Context, path string, payload any) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	return httpReq, nil
}

func (p *Provider) postJSON(ctx context.Context, path string, payload any) ([]byte, int, error) {
	httpReq, err := p.newHTTPRequest(ctx, path, payload)
	if err != nil {
		return nil, 0, err
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, 0, errorFromTransport(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("openai: read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// Complete runs one non-streaming completion.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	body, status, err := p.postJSON(ctx, completionsPath, p.buildRequest(req, false))
	if err != nil {
		return provider.CompletionResponse{}, err
	}
	if err := errorFromStatus(status, body); err != nil {
		return provider.CompletionResponse{}, err
	}

	var resp completionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return provider.CompletionResponse{}, fmt.Errorf("openai: unmarshal response: %w", err)
	}
	return decodeCompletion(&resp), nil
}

// Stream runs a streaming completion. Errors establishing the stream
// are returned here; errors mid-stream arrive as StreamChunk.Err.
func (p *Provider) Stream(ctx context.Context, req provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
	httpReq, err := p.newHTTPRequest(ctx, completionsPath, p.buildRequest(req, true))
	if err != nil {
		return nil, err
	}

	resp, err := p.streamClient.Do(httpReq)
	if err != nil {
		return nil, errorFromTransport(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func() { _ = resp.Body.Close() }()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		return nil, errorFromStatus(resp.StatusCode, body)
	}

	ch := make(chan provider.StreamChunk, chunkChannelBuffer)
	go readStream(ctx, resp.Body, ch)
	return ch, nil
}

// HealthCheck sends a one-token completion. It exercises the whole
// path that real turns take: auth, model access, quota.
func (p *Provider) HealthCheck(ctx context.Context) error {
	_, err := p.Complete(ctx, provider.CompletionRequest{
		Messages:  []provider.LLMMessage{{Role: provider.MessageRoleUser, Content: "hi"}},
		MaxTokens: 1,
	})
	return err
}

// ContextWindowSize reports the resolved context window in tokens.
func (p *Provider) ContextWindowSize() int {
	return p.contextWindow
}

// ModelName reports the configured model identifier.
func (p *Provider) ModelName() string {
	return p.config.Model
}
