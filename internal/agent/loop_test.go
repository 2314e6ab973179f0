package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/wardenproj/warden/internal/channel"
	"github.com/wardenproj/warden/internal/hook"
	"github.com/wardenproj/warden/internal/hook/hooktest"
	"github.com/wardenproj/warden/internal/provider"
	"github.com/wardenproj/warden/internal/provider/providertest"
	"github.com/wardenproj/warden/internal/security"
	"github.com/wardenproj/warden/internal/tool"
	"github.com/wardenproj/warden/internal/tool/tooltest"
)

func newTestLoop(t *testing.T, p provider.Provider, autonomy security.AutonomyLevel, cfg LoopConfig, tools ...tool.Tool) *Loop {
	t.Helper()
	executor := newTestExecutor(t, autonomy, security.Unlimited, nil, tools...)
	return NewLoop(p, executor, cfg, nil, nil)
}

// scriptedProvider returns canned responses in sequence.
func scriptedProvider(responses ...provider.CompletionResponse) *providertest.MockProvider {
	i := 0
	return &providertest.MockProvider{
		CompleteFunc: func(_ context.Context, _ provider.CompletionRequest) (provider.CompletionResponse, error) {
			if i >= len(responses) {
				return provider.CompletionResponse{Content: "out of script"}, nil
			}
			resp := responses[i]
			i++
			return resp, nil
		},
	}
}

func TestLoop_TextOnlyCompletes(t *testing.T) {
	t.Parallel()

	p := scriptedProvider(provider.CompletionResponse{Content: "hello there"})
	l := newTestLoop(t, p, security.AutonomyFull, LoopConfig{})

	resp, err := l.Run(context.Background(), Request{
		Messages: []provider.LLMMessage{{Role: provider.MessageRoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StopReason != StopReasonComplete {
		t.Errorf("stop reason = %q, want complete", resp.StopReason)
	}
	if resp.Content != "hello there" {
		t.Errorf("content = %q, want %q", resp.Content, "hello there")
	}
	if resp.Iterations != 1 {
		t.Errorf("iterations = %d, want 1", resp.Iterations)
	}

	last := resp.Messages[len(resp.Messages)-1]
	if last.Role != provider.MessageRoleAssistant || last.Content != "hello there" {
		t.Errorf("final transcript message = %+v, want assistant text", last)
	}
}

func TestLoop_SystemPromptFirst(t *testing.T) {
	t.Parallel()

	var seen []provider.LLMMessage
	p := &providertest.MockProvider{
		CompleteFunc: func(_ context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
			seen = req.Messages
			return provider.CompletionResponse{Content: "ok"}, nil
		},
	}
	l := newTestLoop(t, p, security.AutonomyFull, LoopConfig{})

	_, err := l.Run(context.Background(), Request{
		SystemPrompt: "be helpful",
		Messages:     []provider.LLMMessage{{Role: provider.MessageRoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seen) != 2 || seen[0].Role != provider.MessageRoleSystem || seen[0].Content != "be helpful" {
		t.Errorf("messages = %+v, want system prompt first", seen)
	}
}

func TestLoop_ToolCallRoundTrip(t *testing.T) {
	t.Parallel()

	p := scriptedProvider(
		provider.CompletionResponse{
			ToolCalls: []provider.ToolCall{{ID: "call-1", Name: "read_file", Arguments: json.RawMessage(`{"path":"a.txt"}`)}},
		},
		provider.CompletionResponse{Content: "the file says 42"},
	)
	mock := tooltest.SimpleTool("read_file", security.SensitivityLow)
	l := newTestLoop(t, p, security.AutonomyFull, LoopConfig{}, mock)

	resp, err := l.Run(context.Background(), Request{
		Messages: []provider.LLMMessage{{Role: provider.MessageRoleUser, Content: "read it"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StopReason != StopReasonComplete {
		t.Errorf("stop reason = %q, want complete", resp.StopReason)
	}
	if resp.Content != "the file says 42" {
		t.Errorf("content = %q", resp.Content)
	}
	if mock.Calls() != 1 {
		t.Errorf("tool executed %d times, want 1", mock.Calls())
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].ID != "call-1" {
		t.Fatalf("tool call records = %+v", resp.ToolCalls)
	}

	// The transcript must contain a tool-role message carrying the
	// JSON envelope for call-1.
	var toolMsg *provider.LLMMessage
	for i := range resp.Messages {
		if resp.Messages[i].Role == provider.MessageRoleTool {
			toolMsg = &resp.Messages[i]
		}
	}
	if toolMsg == nil {
		t.Fatal("no tool-role message in transcript")
	}
	var envelope struct {
		ToolCallID string `json:"tool_call_id"`
		Content    string `json:"content"`
	}
	if err := json.Unmarshal([]byte(toolMsg.Content), &envelope); err != nil {
		t.Fatalf("tool message is not a JSON envelope: %v", err)
	}
	if envelope.ToolCallID != "call-1" {
		t.Errorf("envelope tool_call_id = %q, want call-1", envelope.ToolCallID)
	}
	if envelope.Content != "executed: read_file" {
		t.Errorf("envelope content = %q", envelope.Content)
	}
}

func TestLoop_ReadOnlyBlockedOutcomeContinuesConversation(t *testing.T) {
	t.Parallel()

	p := scriptedProvider(
		provider.CompletionResponse{
			ToolCalls: []provider.ToolCall{{ID: "call-1", Name: "fetch_url", Arguments: json.RawMessage(`{}`)}},
		},
		provider.CompletionResponse{Content: "I cannot act in read-only mode."},
	)
	mock := tooltest.SimpleTool("fetch_url", security.SensitivityLow)
	l := newTestLoop(t, p, security.AutonomyReadOnly, LoopConfig{}, mock)

	resp, err := l.Run(context.Background(), Request{
		Messages: []provider.LLMMessage{{Role: provider.MessageRoleUser, Content: "fetch it"}},
	})
	if err != nil {
		t.Fatalf("blocked action must not error the loop: %v", err)
	}
	if resp.StopReason != StopReasonComplete {
		t.Errorf("stop reason = %q, want complete", resp.StopReason)
	}
	if mock.Calls() != 0 {
		t.Errorf("tool executed %d times, want 0", mock.Calls())
	}

	found := false
	for _, msg := range resp.Messages {
		if msg.Role == provider.MessageRoleTool && strings.Contains(msg.Content, "read-only") {
			found = true
			if !msg.IsError {
				t.Error("blocked tool message should carry IsError")
			}
		}
	}
	if !found {
		t.Error("transcript should contain the read-only blocked outcome")
	}
}

func TestLoop_MaxIterationsReturnsBestText(t *testing.T) {
	t.Parallel()

	// The model never stops calling tools; each response varies the
	// arguments so the loop detector stays quiet.
	i := 0
	p := &providertest.MockProvider{
		CompleteFunc: func(_ context.Context, _ provider.CompletionRequest) (provider.CompletionResponse, error) {
			i++
			return provider.CompletionResponse{
				Content: "working on it",
				ToolCalls: []provider.ToolCall{
					{ID: "c", Name: "read_file", Arguments: json.RawMessage(`{"n":` + string(rune('0'+i)) + `}`)},
				},
			}, nil
		},
	}
	mock := tooltest.SimpleTool("read_file", security.SensitivityLow)
	l := newTestLoop(t, p, security.AutonomyFull, LoopConfig{MaxIterations: 3}, mock)

	resp, err := l.Run(context.Background(), Request{
		Messages: []provider.LLMMessage{{Role: provider.MessageRoleUser, Content: "go"}},
	})
	if err != nil {
		t.Fatalf("iteration ceiling is a defined terminal state, got error: %v", err)
	}
	if resp.StopReason != StopReasonMaxIterations {
		t.Errorf("stop reason = %q, want max_iterations", resp.StopReason)
	}
	if resp.Content != "working on it" {
		t.Errorf("content = %q, want best available text", resp.Content)
	}
	if resp.Iterations != 3 {
		t.Errorf("iterations = %d, want 3", resp.Iterations)
	}
}

func TestLoop_RetryOnRetryableError(t *testing.T) {
	t.Parallel()

	attempts := 0
	p := &providertest.MockProvider{
		CompleteFunc: func(_ context.Context, _ provider.CompletionRequest) (provider.CompletionResponse, error) {
			attempts++
			if attempts == 1 {
				return provider.CompletionResponse{}, provider.ErrRateLimit
			}
			return provider.CompletionResponse{Content: "recovered"}, nil
		},
	}
	l := newTestLoop(t, p, security.AutonomyFull, LoopConfig{RetryBackoff: time.Millisecond})

	resp, err := l.Run(context.Background(), Request{
		Messages: []provider.LLMMessage{{Role: provider.MessageRoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "recovered" {
		t.Errorf("content = %q, want recovered", resp.Content)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestLoop_NonRetryableErrorStops(t *testing.T) {
	t.Parallel()

	boom := errors.New("invalid api key")
	attempts := 0
	p := &providertest.MockProvider{
		CompleteFunc: func(_ context.Context, _ provider.CompletionRequest) (provider.CompletionResponse, error) {
			attempts++
			return provider.CompletionResponse{}, boom
		},
	}
	l := newTestLoop(t, p, security.AutonomyFull, LoopConfig{RetryBackoff: time.Millisecond})

	resp, err := l.Run(context.Background(), Request{
		Messages: []provider.LLMMessage{{Role: provider.MessageRoleUser, Content: "hi"}},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if resp.StopReason != StopReasonError {
		t.Errorf("stop reason = %q, want error", resp.StopReason)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry for non-retryable)", attempts)
	}
}

func TestLoop_RetriesExhausted(t *testing.T) {
	t.Parallel()

	attempts := 0
	p := &providertest.MockProvider{
		CompleteFunc: func(_ context.Context, _ provider.CompletionRequest) (provider.CompletionResponse, error) {
			attempts++
			return provider.CompletionResponse{}, provider.ErrProviderDown
		},
	}
	l := newTestLoop(t, p, security.AutonomyFull, LoopConfig{MaxRetries: 2, RetryBackoff: time.Millisecond})

	_, err := l.Run(context.Background(), Request{
		Messages: []provider.LLMMessage{{Role: provider.MessageRoleUser, Content: "hi"}},
	})
	if !errors.Is(err, provider.ErrProviderDown) {
		t.Fatalf("expected ErrProviderDown, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3 (initial + 2 retries)", attempts)
	}
}

func TestLoop_LoopDetection(t *testing.T) {
	t.Parallel()

	p := &providertest.MockProvider{
		CompleteFunc: func(_ context.Context, _ provider.CompletionRequest) (provider.CompletionResponse, error) {
			return provider.CompletionResponse{
				ToolCalls: []provider.ToolCall{{ID: "c", Name: "read_file", Arguments: json.RawMessage(`{"path":"same.txt"}`)}},
			}, nil
		},
	}
	mock := tooltest.SimpleTool("read_file", security.SensitivityLow)
	l := newTestLoop(t, p, security.AutonomyFull, LoopConfig{LoopThreshold: 3}, mock)

	resp, err := l.Run(context.Background(), Request{
		Messages: []provider.LLMMessage{{Role: provider.MessageRoleUser, Content: "go"}},
	})
	if !errors.Is(err, ErrLoopDetected) {
		t.Fatalf("expected ErrLoopDetected, got %v", err)
	}
	if resp.StopReason != StopReasonLoopDetected {
		t.Errorf("stop reason = %q, want loop_detected", resp.StopReason)
	}
}

func TestLoop_TokenBudget(t *testing.T) {
	t.Parallel()

	p := &providertest.MockProvider{
		CompleteFunc: func(_ context.Context, _ provider.CompletionRequest) (provider.CompletionResponse, error) {
			return provider.CompletionResponse{
				ToolCalls: []provider.ToolCall{{ID: "c", Name: "read_file", Arguments: json.RawMessage(`{}`)}},
				Usage:     provider.TokenUsage{TotalTokens: 600},
			}, nil
		},
	}
	mock := tooltest.SimpleTool("read_file", security.SensitivityLow)
	l := newTestLoop(t, p, security.AutonomyFull, LoopConfig{TokenBudget: 500, LoopThreshold: 100}, mock)

	resp, err := l.Run(context.Background(), Request{
		Messages: []provider.LLMMessage{{Role: provider.MessageRoleUser, Content: "go"}},
	})
	if !errors.Is(err, ErrTokenBudgetExceeded) {
		t.Fatalf("expected ErrTokenBudgetExceeded, got %v", err)
	}
	if resp.StopReason != StopReasonTokenBudget {
		t.Errorf("stop reason = %q, want token_budget", resp.StopReason)
	}
}

func TestLoop_CancellationKeepsInFlightResult(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	p := &providertest.MockProvider{
		CompleteFunc: func(_ context.Context, _ provider.CompletionRequest) (provider.CompletionResponse, error) {
			return provider.CompletionResponse{
				ToolCalls: []provider.ToolCall{{ID: "c1", Name: "slow", Arguments: json.RawMessage(`{}`)}},
			}, nil
		},
	}
	slow := &tooltest.MockTool{
		NameFunc: func() string { return "slow" },
		ExecuteFunc: func(_ context.Context, _ json.RawMessage) (tool.Outcome, error) {
			cancel() // Cancellation arrives while the tool is running.
			return tool.Succeed("slow result"), nil
		},
	}
	l := newTestLoop(t, p, security.AutonomyFull, LoopConfig{}, slow)

	resp, err := l.Run(ctx, Request{
		Messages: []provider.LLMMessage{{Role: provider.MessageRoleUser, Content: "go"}},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if resp.StopReason != StopReasonCancelled {
		t.Errorf("stop reason = %q, want cancelled", resp.StopReason)
	}

	// The in-flight tool result must still be in the transcript.
	found := false
	for _, msg := range resp.Messages {
		if msg.Role == provider.MessageRoleTool && strings.Contains(msg.Content, "slow result") {
			found = true
		}
	}
	if !found {
		t.Error("in-flight tool result missing from transcript")
	}
}

func TestLoop_Timeout(t *testing.T) {
	t.Parallel()

	p := &providertest.MockProvider{
		CompleteFunc: func(ctx context.Context, _ provider.CompletionRequest) (provider.CompletionResponse, error) {
			<-ctx.Done()
			return provider.CompletionResponse{}, ctx.Err()
		},
	}
	l := newTestLoop(t, p, security.AutonomyFull, LoopConfig{Timeout: 30 * time.Millisecond})

	resp, err := l.Run(context.Background(), Request{
		Messages: []provider.LLMMessage{{Role: provider.MessageRoleUser, Content: "hi"}},
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
	if resp.StopReason != StopReasonTimeout {
		t.Errorf("stop reason = %q, want timeout", resp.StopReason)
	}
}

func TestLoop_RunStream_TextAndDone(t *testing.T) {
	t.Parallel()

	p := &providertest.MockProvider{
		StreamFunc: func(_ context.Context, _ provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
			ch := make(chan provider.StreamChunk, 3)
			ch <- provider.StreamChunk{Content: "hel"}
			ch <- provider.StreamChunk{Content: "lo"}
			ch <- provider.StreamChunk{Usage: &provider.TokenUsage{TotalTokens: 10}}
			close(ch)
			return ch, nil
		},
	}
	l := newTestLoop(t, p, security.AutonomyFull, LoopConfig{})

	events, err := l.RunStream(context.Background(), Request{
		Messages: []provider.LLMMessage{{Role: provider.MessageRoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var text strings.Builder
	var final *Response
	for ev := range events {
		switch ev.Type {
		case StreamEventText:
			text.WriteString(ev.Content)
		case StreamEventDone:
			final = ev.Final
		case StreamEventError:
			t.Fatalf("unexpected error event: %v", ev.Err)
		}
	}

	if text.String() != "hello" {
		t.Errorf("streamed text = %q, want hello", text.String())
	}
	if final == nil {
		t.Fatal("no done event with final response")
	}
	if final.Content != "hello" || final.StopReason != StopReasonComplete {
		t.Errorf("final = %+v", final)
	}
}

func TestLoop_RunStream_ToolEvents(t *testing.T) {
	t.Parallel()

	turn := 0
	p := &providertest.MockProvider{
		StreamFunc: func(_ context.Context, _ provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
			ch := make(chan provider.StreamChunk, 2)
			turn++
			if turn == 1 {
				ch <- provider.StreamChunk{ToolCalls: []provider.ToolCall{
					{ID: "c1", Name: "read_file", Arguments: json.RawMessage(`{}`)},
				}}
			} else {
				ch <- provider.StreamChunk{Content: "done reading"}
			}
			close(ch)
			return ch, nil
		},
	}
	mock := tooltest.SimpleTool("read_file", security.SensitivityLow)
	l := newTestLoop(t, p, security.AutonomyFull, LoopConfig{}, mock)

	events, err := l.RunStream(context.Background(), Request{
		Messages: []provider.LLMMessage{{Role: provider.MessageRoleUser, Content: "read"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var starts, ends int
	var final *Response
	for ev := range events {
		switch ev.Type {
		case StreamEventToolStart:
			starts++
		case StreamEventToolEnd:
			ends++
			if !ev.ToolCall.Outcome.Success {
				t.Errorf("tool end outcome = %+v", ev.ToolCall.Outcome)
			}
		case StreamEventDone:
			final = ev.Final
		case StreamEventError:
			t.Fatalf("unexpected error event: %v", ev.Err)
		}
	}

	if starts != 1 || ends != 1 {
		t.Errorf("tool events = %d starts / %d ends, want 1/1", starts, ends)
	}
	if final == nil || final.Content != "done reading" {
		t.Errorf("final = %+v", final)
	}
}

func TestLoop_RunStream_MaxIterationsEmitsDone(t *testing.T) {
	t.Parallel()

	turn := 0
	p := &providertest.MockProvider{
		StreamFunc: func(_ context.Context, _ provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
			ch := make(chan provider.StreamChunk, 2)
			turn++
			ch <- provider.StreamChunk{Content: "still going"}
			ch <- provider.StreamChunk{ToolCalls: []provider.ToolCall{
				{ID: "c", Name: "read_file", Arguments: json.RawMessage(`{"turn":` + string(rune('0'+turn)) + `}`)},
			}}
			close(ch)
			return ch, nil
		},
	}
	mock := tooltest.SimpleTool("read_file", security.SensitivityLow)
	l := newTestLoop(t, p, security.AutonomyFull, LoopConfig{MaxIterations: 2}, mock)

	events, err := l.RunStream(context.Background(), Request{
		Messages: []provider.LLMMessage{{Role: provider.MessageRoleUser, Content: "go"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var final *Response
	for ev := range events {
		if ev.Type == StreamEventError {
			t.Fatalf("iteration ceiling must end with done, got error: %v", ev.Err)
		}
		if ev.Type == StreamEventDone {
			final = ev.Final
		}
	}
	if final == nil {
		t.Fatal("no done event")
	}
	if final.StopReason != StopReasonMaxIterations {
		t.Errorf("stop reason = %q, want max_iterations", final.StopReason)
	}
	if final.Content != "still going" {
		t.Errorf("content = %q, want best available text", final.Content)
	}
}

func TestLoop_EmptyModelTextFallsBackToToolOutput(t *testing.T) {
	t.Parallel()

	p := scriptedProvider(
		provider.CompletionResponse{ToolCalls: []provider.ToolCall{
			{ID: "c1", Name: "read_file", Arguments: json.RawMessage(`{"path":"a"}`)},
		}},
		provider.CompletionResponse{Content: ""},
	)
	l := newTestLoop(t, p, security.AutonomyFull, LoopConfig{},
		tooltest.SimpleTool("read_file", security.SensitivityLow))

	resp, err := l.Run(context.Background(), Request{
		Messages: []provider.LLMMessage{{Role: provider.MessageRoleUser, Content: "read it"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(resp.Content, "Latest tool output:") {
		t.Errorf("content = %q, want tool-output fallback", resp.Content)
	}
	if !strings.Contains(resp.Content, "executed: read_file") {
		t.Errorf("content = %q, want excerpt of the tool result", resp.Content)
	}
}

func TestLoop_EmptyModelTextNoToolsUsesStaticFallback(t *testing.T) {
	t.Parallel()

	p := scriptedProvider(provider.CompletionResponse{Content: ""})
	l := newTestLoop(t, p, security.AutonomyFull, LoopConfig{})

	resp, err := l.Run(context.Background(), Request{
		Messages: []provider.LLMMessage{{Role: provider.MessageRoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != channel.EmptyResponseFallback {
		t.Errorf("content = %q, want static fallback", resp.Content)
	}
}

func TestLoop_RunsRegisteredHooks(t *testing.T) {
	t.Parallel()

	toolEnd := &hooktest.MockHook{PositionVal: hook.ToolEnd}
	turnEnd := &hooktest.MockHook{PositionVal: hook.TurnEnd}
	hooks := hook.NewPipeline()
	hooks.Register(toolEnd)
	hooks.Register(turnEnd)

	p := scriptedProvider(
		provider.CompletionResponse{ToolCalls: []provider.ToolCall{
			{ID: "c1", Name: "read_file", Arguments: json.RawMessage(`{"path":"a"}`)},
		}},
		provider.CompletionResponse{Content: "all done"},
	)
	executor := newTestExecutor(t, security.AutonomyFull, security.Unlimited, nil,
		tooltest.SimpleTool("read_file", security.SensitivityLow))
	l := NewLoop(p, executor, LoopConfig{}, hooks, nil)

	if _, err := l.Run(context.Background(), Request{
		Messages: []provider.LLMMessage{{Role: provider.MessageRoleUser, Content: "read it"}},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if toolEnd.Calls() != 1 {
		t.Errorf("tool end hook ran %d times, want 1", toolEnd.Calls())
	}
	if turnEnd.Calls() != 1 {
		t.Errorf("turn end hook ran %d times, want 1", turnEnd.Calls())
	}
}
