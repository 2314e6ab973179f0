package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/wardenproj/warden/internal/provider"
)

// Caps on what the stream decoder will accumulate. A broken or hostile
// upstream must not be able to grow memory without bound.
const (
	maxCallArgsBytes = 1 << 20
	maxLineBytes     = 1 << 20
)

// callBuilder collects the indexed fragments of one streamed tool call.
type callBuilder struct {
	id   string
	name string
	args strings.Builder
}

// streamDecoder turns an SSE body into StreamChunks. One decoder per
// response; not reused.
type streamDecoder struct {
	ctx      context.Context
	out      chan<- provider.StreamChunk
	building map[int]*callBuilder
}

// readStream decodes the SSE body onto ch, closing both when the
// stream ends. Ends are [DONE], a decode or transport error, or ctx
// cancellation.
func readStream(ctx context.Context, body io.ReadCloser, ch chan<- provider.StreamChunk) {
	defer close(ch)
	defer func() { _ = body.Close() }()

	// The scanner blocks in Read; closing the body is the only way to
	// unstick it when the caller gives up.
	unblock := make(chan struct{})
	defer close(unblock)
	go func() {
		select {
		case <-ctx.Done():
			_ = body.Close()
		case <-unblock:
		}
	}()

	d := &streamDecoder{ctx: ctx, out: ch, building: make(map[int]*callBuilder)}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, maxLineBytes), maxLineBytes)

	for scanner.Scan() {
		if ctx.Err() != nil {
			d.emit(provider.StreamChunk{Err: ctx.Err()})
			return
		}

		data, ok := ssePayload(scanner.Text())
		if !ok {
			continue
		}
		if data == "[DONE]" {
			d.finish()
			return
		}
		if !d.handleEvent(data) {
			return
		}
	}

	if ctx.Err() != nil {
		d.emit(provider.StreamChunk{Err: ctx.Err()})
		return
	}
	if err := scanner.Err(); err != nil {
		// Through errorFromTransport so a dropped connection degrades
		// provider health like any other network failure.
		d.emit(provider.StreamChunk{Err: errorFromTransport(err)})
	}
}

// ssePayload extracts the payload of a data line. Comments (leading
// ":"), blank keep-alives, and other fields are skipped.
func ssePayload(line string) (string, bool) {
	if strings.HasPrefix(line, ":") {
		return "", false
	}
	rest, found := strings.CutPrefix(line, "data:")
	if !found {
		return "", false
	}
	data := strings.TrimSpace(rest)
	return data, data != ""
}

// handleEvent decodes one data payload. Returns false when the stream
// should stop.
func (d *streamDecoder) handleEvent(data string) bool {
	var ev streamEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		d.emit(provider.StreamChunk{Err: err})
		return false
	}

	var usage *provider.TokenUsage
	if ev.Usage != nil {
		usage = &provider.TokenUsage{
			PromptTokens:     ev.Usage.PromptTokens,
			CompletionTokens: ev.Usage.CompletionTokens,
			TotalTokens:      ev.Usage.TotalTokens,
		}
	}

	if len(ev.Choices) == 0 {
		// The usage-only event sent under stream_options.include_usage.
		if usage != nil {
			d.emit(provider.StreamChunk{Usage: usage})
		}
		return true
	}

	choice := ev.Choices[0]

	for _, frag := range choice.Delta.ToolCalls {
		if !d.absorb(frag) {
			return false
		}
	}

	if choice.Delta.Content != "" {
		return d.emit(provider.StreamChunk{Content: choice.Delta.Content, Usage: usage})
	}

	if choice.FinishReason != nil {
		chunk := provider.StreamChunk{
			FinishReason: finishReasonFromWire(choice.FinishReason),
			Usage:        usage,
		}
		if len(d.building) > 0 {
			chunk.ToolCalls = d.completedCalls()
			d.building = make(map[int]*callBuilder)
		}
		return d.emit(chunk)
	}

	if usage != nil {
		d.emit(provider.StreamChunk{Usage: usage})
	}
	return true
}

// absorb folds one tool-call fragment into its builder, enforcing the
// per-call argument cap.
func (d *streamDecoder) absorb(frag streamToolDelta) bool {
	b, ok := d.building[frag.Index]
	if !ok {
		b = &callBuilder{}
		d.building[frag.Index] = b
	}
	if frag.ID != "" {
		b.id = frag.ID
	}
	if frag.Function.Name != "" {
		b.name = frag.Function.Name
	}
	if frag.Function.Arguments != "" {
		if b.args.Len()+len(frag.Function.Arguments) > maxCallArgsBytes {
			d.emit(provider.StreamChunk{
				Err: fmt.Errorf("openai: tool call arguments exceeded %d bytes", maxCallArgsBytes),
			})
			return false
		}
		b.args.WriteString(frag.Function.Arguments)
	}
	return true
}

// finish handles [DONE], flushing calls that never saw a finish_reason.
func (d *streamDecoder) finish() {
	if len(d.building) > 0 {
		d.emit(provider.StreamChunk{ToolCalls: d.completedCalls()})
	}
}

// completedCalls assembles the builders in stream-index order.
func (d *streamDecoder) completedCalls() []provider.ToolCall {
	indexes := make([]int, 0, len(d.building))
	for idx := range d.building {
		indexes = append(indexes, idx)
	}
	slices.Sort(indexes)

	out := make([]provider.ToolCall, len(indexes))
	for i, idx := range indexes {
		b := d.building[idx]
		out[i] = provider.ToolCall{
			ID:        b.id,
			Name:      b.name,
			Arguments: json.RawMessage(b.args.String()),
		}
	}
	return out
}

// emit sends one chunk unless the context has been cancelled.
func (d *streamDecoder) emit(chunk provider.StreamChunk) bool {
	select {
	case d.out <- chunk:
		return true
	case <-d.ctx.Done():
		return false
	}
}
