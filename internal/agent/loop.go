package agent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/wardenproj/warden/internal/channel"
	"github.com/wardenproj/warden/internal/hook"
	"github.com/wardenproj/warden/internal/provider"
)

// Sentinel errors for agent loop termination.
var (
	ErrTokenBudgetExceeded = errors.New("agent: token budget exceeded")
	ErrLoopDetected        = errors.New("agent: loop detected")
)

// Loop drives the multi-turn conversation between the model and the
// gated tool executor.
type Loop struct {
	provider provider.Provider
	executor *ToolExecutor
	config   LoopConfig
	hooks    *hook.Pipeline
	logger   *slog.Logger
}

// NewLoop creates a Loop with the given provider, executor, and config.
// hooks may be nil.
func NewLoop(p provider.Provider, executor *ToolExecutor, cfg LoopConfig, hooks *hook.Pipeline, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		provider: p,
		executor: executor,
		config:   cfg.withDefaults(),
		hooks:    hooks,
		logger:   logger,
	}
}

// toolNames lists the registered tool names so the sanitizer can scope
// its bare-JSON removal to real invocations.
func (l *Loop) toolNames() []string {
	defs := l.executor.Definitions()
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	return names
}

// turnState carries everything a run accumulates across iterations.
type turnState struct {
	guard    *repeatGuard
	meter    *budgetMeter
	messages []provider.LLMMessage
	records  []ToolCallRecord
	bestText string
}

func (l *Loop) newTurnState(req Request) *turnState {
	var messages []provider.LLMMessage
	if req.SystemPrompt != "" {
		messages = append(messages, provider.LLMMessage{
			Role:    provider.MessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	return &turnState{
		guard:    newRepeatGuard(l.config.LoopThreshold),
		meter:    newBudgetMeter(l.config.TokenBudget),
		messages: append(messages, req.Messages...),
	}
}

// noteText remembers the latest non-empty assistant text so terminal
// states can surface something useful even after an abort.
func (s *turnState) noteText(content string) {
	if content != "" {
		s.bestText = content
	}
}

// repeated reports whether any call in the batch trips the repeat
// guard. Checked before the assistant message is appended, so an abort
// never leaves an orphan assistant message without tool results.
func (s *turnState) repeated(calls []provider.ToolCall) bool {
	for _, tc := range calls {
		if s.guard.observe(tc.Name, tc.Arguments) {
			return true
		}
	}
	return false
}

func (s *turnState) appendAssistant(content string, calls []provider.ToolCall) {
	s.messages = append(s.messages, provider.LLMMessage{
		Role:      provider.MessageRoleAssistant,
		Content:   content,
		ToolCalls: calls,
	})
}

// toolResultEnvelope is the JSON body of a tool-role transcript message.
type toolResultEnvelope struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
}

// appendToolResults adds one tool-role message per record, in record
// order, each carrying the JSON envelope with the raw outcome text.
func (s *turnState) appendToolResults(records []ToolCallRecord) {
	s.records = append(s.records, records...)
	for _, rec := range records {
		body, err := json.Marshal(toolResultEnvelope{
			ToolCallID: rec.ID,
			Content:    rec.Outcome.Text(),
		})
		if err != nil {
			// Envelope fields are plain strings; this cannot happen.
			body = []byte(`{}`)
		}
		s.messages = append(s.messages, provider.LLMMessage{
			Role:    provider.MessageRoleTool,
			Content: string(body),
			ToolID:  rec.ID,
			IsError: !rec.Outcome.Success,
		})
	}
}

func (s *turnState) response(content string, iterations int, reason StopReason) Response {
	return Response{
		Content:    content,
		Messages:   s.messages,
		ToolCalls:  s.records,
		TotalUsage: s.meter.spent(),
		Iterations: iterations,
		StopReason: reason,
	}
}

// complete calls the provider with bounded retry on retryable errors.
func (l *Loop) complete(ctx context.Context, messages []provider.LLMMessage) (provider.CompletionResponse, error) {
	req := provider.CompletionRequest{
		Messages: messages,
		Tools:    l.executor.Definitions(),
	}

	var lastErr error
	for attempt := 0; attempt <= l.config.MaxRetries; attempt++ {
		if attempt > 0 {
			l.logger.Warn("retrying provider call",
				"attempt", attempt,
				"error", lastErr,
			)
			select {
			case <-time.After(l.config.RetryBackoff * time.Duration(attempt)):
			case <-ctx.Done():
				return provider.CompletionResponse{}, ctx.Err()
			}
		}

		resp, err := l.provider.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !provider.IsRetryable(err) {
			break
		}
	}
	return provider.CompletionResponse{}, lastErr
}

// cancelStopReason maps a context error to the matching stop reason.
func cancelStopReason(err error) StopReason {
	if errors.Is(err, context.DeadlineExceeded) {
		return StopReasonTimeout
	}
	return StopReasonCancelled
}

// Run executes the loop synchronously and returns the final response.
//
// A context.WithTimeout is applied using l.config.Timeout. If the caller's
// context already carries a shorter deadline, the shorter one takes effect.
//
// Reaching the iteration ceiling is a defined terminal state, not an
// error: the response carries the best text produced so far.
func (l *Loop) Run(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, l.config.Timeout)
	defer cancel()

	state := l.newTurnState(req)

	finish := func(content string, iterations int, reason StopReason, err error) (Response, error) {
		// Terminal states surface text to the caller; run it through the
		// sanitizer and its fallback tiers. Error returns keep the raw
		// text since the caller reports the error instead.
		if err == nil {
			content = channel.FinalizeResponse(content, state.messages, l.toolNames())
		}
		resp := state.response(content, iterations, reason)
		l.runTurnEndHooks(req.SessionID, resp)
		return resp, err
	}

	for i := 0; i < l.config.MaxIterations; i++ {
		// Cancellation is observed at the top of every iteration.
		if err := ctx.Err(); err != nil {
			return finish(state.bestText, i, cancelStopReason(err), err)
		}

		if state.meter.depleted() {
			return finish(state.bestText, i, StopReasonTokenBudget, ErrTokenBudgetExceeded)
		}

		resp, err := l.complete(ctx, state.messages)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return finish(state.bestText, i, cancelStopReason(ctxErr), ctxErr)
			}
			return finish(state.bestText, i, StopReasonError, err)
		}

		state.meter.spend(resp.Usage)
		state.noteText(resp.Content)

		// Only text, no tool calls: the conversation is complete.
		if len(resp.ToolCalls) == 0 {
			state.appendAssistant(resp.Content, nil)
			return finish(resp.Content, i+1, StopReasonComplete, nil)
		}

		if state.repeated(resp.ToolCalls) {
			return finish(state.bestText, i+1, StopReasonLoopDetected, ErrLoopDetected)
		}

		state.appendAssistant(resp.Content, resp.ToolCalls)
		l.runToolStartHooks(req.SessionID, resp.ToolCalls)

		// An in-flight tool finishes even if ctx is cancelled mid-batch;
		// its result is appended before the next iteration observes the
		// cancellation.
		records := l.executor.Execute(ctx, resp.ToolCalls)
		l.runToolEndHooks(req.SessionID, records)
		state.appendToolResults(records)
	}

	return finish(state.bestText, l.config.MaxIterations, StopReasonMaxIterations, nil)
}

// streamedTurn is one provider stream fully consumed.
type streamedTurn struct {
	content   string
	toolCalls []provider.ToolCall
	usage     *provider.TokenUsage
	err       error
}

// consumeStream drains one provider stream, forwarding text chunks to
// out as they arrive. On a chunk error the rest of the stream is
// drained so the provider goroutine never leaks.
func consumeStream(streamCh <-chan provider.StreamChunk, out chan<- StreamEvent) streamedTurn {
	var turn streamedTurn
	for chunk := range streamCh {
		if chunk.Err != nil {
			turn.err = chunk.Err
			for range streamCh { //nolint:revive
			}
			return turn
		}
		if chunk.Content != "" {
			turn.content += chunk.Content
			out <- StreamEvent{Type: StreamEventText, Content: chunk.Content}
		}
		if len(chunk.ToolCalls) > 0 {
			turn.toolCalls = append(turn.toolCalls, chunk.ToolCalls...)
		}
		if chunk.Usage != nil {
			turn.usage = chunk.Usage
		}
	}
	return turn
}

// RunStream executes the loop and streams events over a channel. The
// channel is closed after the terminal event (done or error).
//
// A context.WithTimeout is applied using l.config.Timeout. If the caller's
// context already carries a shorter deadline, the shorter one takes effect.
func (l *Loop) RunStream(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	ch := make(chan StreamEvent, 16)

	go func() {
		defer close(ch)

		ctx, cancel := context.WithTimeout(ctx, l.config.Timeout)
		defer cancel()

		state := l.newTurnState(req)

		emitDone := func(content string, iterations int, reason StopReason) {
			content = channel.FinalizeResponse(content, state.messages, l.toolNames())
			final := state.response(content, iterations, reason)
			l.runTurnEndHooks(req.SessionID, final)
			ch <- StreamEvent{Type: StreamEventDone, Content: content, Final: &final}
		}
		emitErr := func(err error) {
			ch <- StreamEvent{Type: StreamEventError, Err: err}
		}

		for i := 0; i < l.config.MaxIterations; i++ {
			if err := ctx.Err(); err != nil {
				emitErr(err)
				return
			}
			if state.meter.depleted() {
				emitErr(ErrTokenBudgetExceeded)
				return
			}

			streamCh, err := l.provider.Stream(ctx, provider.CompletionRequest{
				Messages: state.messages,
				Tools:    l.executor.Definitions(),
			})
			if err != nil {
				emitErr(err)
				return
			}

			turn := consumeStream(streamCh, ch)
			if turn.err != nil {
				emitErr(turn.err)
				return
			}

			if turn.usage != nil {
				state.meter.spend(*turn.usage)
				ch <- StreamEvent{Type: StreamEventUsage, Usage: turn.usage}
			}
			state.noteText(turn.content)

			// No tool calls: done.
			if len(turn.toolCalls) == 0 {
				state.appendAssistant(turn.content, nil)
				emitDone(turn.content, i+1, StopReasonComplete)
				return
			}

			if state.repeated(turn.toolCalls) {
				emitErr(ErrLoopDetected)
				return
			}

			state.appendAssistant(turn.content, turn.toolCalls)

			for _, tc := range turn.toolCalls {
				ch <- StreamEvent{
					Type:     StreamEventToolStart,
					ToolCall: &ToolCallRecord{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments},
				}
			}
			l.runToolStartHooks(req.SessionID, turn.toolCalls)

			records := l.executor.Execute(ctx, turn.toolCalls)
			l.runToolEndHooks(req.SessionID, records)

			for idx := range records {
				ch <- StreamEvent{
					Type:     StreamEventToolEnd,
					ToolCall: &records[idx],
				}
			}
			state.appendToolResults(records)
		}

		emitDone(state.bestText, l.config.MaxIterations, StopReasonMaxIterations)
	}()

	return ch, nil
}

func (l *Loop) runToolStartHooks(sessionID string, calls []provider.ToolCall) {
	if l.hooks == nil {
		return
	}
	for _, tc := range calls {
		l.hooks.Run(context.Background(), &hook.Context{
			Position:  hook.ToolStart,
			SessionID: sessionID,
			ToolName:  tc.Name,
			ToolID:    tc.ID,
			Arguments: tc.Arguments,
			Metadata:  make(map[string]any),
			Logger:    l.logger,
		})
	}
}

func (l *Loop) runToolEndHooks(sessionID string, records []ToolCallRecord) {
	if l.hooks == nil {
		return
	}
	for i := range records {
		rec := &records[i]
		l.hooks.Run(context.Background(), &hook.Context{
			Position:  hook.ToolEnd,
			SessionID: sessionID,
			ToolName:  rec.Name,
			ToolID:    rec.ID,
			Arguments: rec.Arguments,
			Outcome:   &rec.Outcome,
			Duration:  rec.Duration,
			Metadata:  make(map[string]any),
			Logger:    l.logger,
		})
	}
}

func (l *Loop) runTurnEndHooks(sessionID string, resp Response) {
	if l.hooks == nil {
		return
	}
	l.hooks.Run(context.Background(), &hook.Context{
		Position:   hook.TurnEnd,
		SessionID:  sessionID,
		Iterations: resp.Iterations,
		StopReason: string(resp.StopReason),
		Metadata:   make(map[string]any),
		Logger:     l.logger,
	})
}
