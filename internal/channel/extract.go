package channel

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wardenproj/warden/internal/provider"
)

// EmptyResponseFallback is the static last-resort reply when the model
// produced no text and the transcript holds no tool output to show.
const EmptyResponseFallback = "Tool execution completed, but the model returned no final text response. Please ask me to summarize the result."

// toolResultsPrefix marks user messages that carry inlined tool output
// for providers without a native tool role.
const toolResultsPrefix = "[Tool results]"

// maxExcerptLen caps the tool-output excerpt shown in a fallback reply.
const maxExcerptLen = 1200

// FinalizeResponse produces the text shown to the client, degrading in
// three tiers: the sanitized model reply, then an excerpt of the most
// recent tool output in the transcript, then the static fallback.
// toolNames scopes the sanitizer's bare-JSON removal. It never returns
// an empty string.
func FinalizeResponse(raw string, history []provider.LLMMessage, toolNames []string) string {
	if strings.TrimSpace(raw) != "" {
		if s := Sanitize(raw, toolNames); s != "" {
			return s
		}
	}

	if output := latestToolOutput(history); output != "" {
		return fmt.Sprintf(
			"Tool execution completed, but the model returned no final text response.\n\nLatest tool output:\n%s",
			TruncateWithEllipsis(output, maxExcerptLen),
		)
	}

	return EmptyResponseFallback
}

// latestToolOutput scans the transcript newest-first for tool output:
// either a tool-role message (JSON envelope preferred, raw content
// otherwise) or a "[Tool results]" user message with its tags stripped.
func latestToolOutput(history []provider.LLMMessage) string {
	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		switch msg.Role {
		case provider.MessageRoleTool:
			var envelope struct {
				Content string `json:"content"`
			}
			if err := json.Unmarshal([]byte(msg.Content), &envelope); err == nil {
				if c := strings.TrimSpace(envelope.Content); c != "" {
					return c
				}
				continue
			}
			if c := strings.TrimSpace(msg.Content); c != "" {
				return c
			}
		case provider.MessageRoleUser:
			trimmed := strings.TrimSpace(msg.Content)
			if !strings.HasPrefix(trimmed, toolResultsPrefix) {
				continue
			}
			body := strings.TrimPrefix(trimmed, toolResultsPrefix)
			body = orphanTagRe.ReplaceAllString(body, "")
			if b := strings.TrimSpace(body); b != "" {
				return b
			}
		}
	}
	return ""
}

// NormalizeToolResults rewrites tool-role messages as "[Tool results]"
// user messages for providers that reject the tool role. The envelope
// content is unwrapped when present.
func NormalizeToolResults(messages []provider.LLMMessage) []provider.LLMMessage {
	out := make([]provider.LLMMessage, 0, len(messages))
	for _, msg := range messages {
		if msg.Role != provider.MessageRoleTool {
			out = append(out, msg)
			continue
		}

		content := msg.Content
		var envelope struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal([]byte(msg.Content), &envelope); err == nil && envelope.Content != "" {
			content = envelope.Content
		}

		out = append(out, provider.LLMMessage{
			Role:    provider.MessageRoleUser,
			Content: toolResultsPrefix + "\n<tool_result>\n" + content + "\n</tool_result>",
		})
	}
	return out
}
