// Package channel processes model output on its way to a client
// surface: it strips leaked tool-call markup, recovers fallback text
// from the transcript when the model goes silent, and splits long
// replies into transport-sized chunks.
package channel

import (
	"encoding/json"
	"regexp"
	"strings"
)

// MalformedNotice replaces a reply that contained nothing but tool-call
// markup. Returning it instead of an empty string keeps the client from
// rendering a blank message.
const MalformedNotice = "I encountered malformed tool-call output and could not produce a safe reply. Please try again."

var (
	// Tags may carry attributes, e.g. <tool_result name="fetch_url">.
	toolCallBlockRe   = regexp.MustCompile(`(?s)<tool_call\b[^>]*>.*?</tool_call>`)
	toolResultBlockRe = regexp.MustCompile(`(?s)<tool_result\b[^>]*>.*?</tool_result>`)
	orphanTagRe       = regexp.MustCompile(`</?tool_(?:call|result)\b[^>]*>`)
	blankRunRe        = regexp.MustCompile(`\n[ \t]*\n[ \t]*\n+`)
)

// Sanitize removes tool-call artifacts the model may leak into its
// visible reply: tagged tool-call and tool-result blocks, bare JSON
// invocations of registered tools, and result envelopes. toolNames
// scopes the bare-JSON removal; an object naming an unknown tool is
// treated as prose and kept. Runs of blank lines left by the removals
// are collapsed. If a non-empty input is reduced to nothing,
// MalformedNotice is returned so the reply never silently disappears.
func Sanitize(text string, toolNames []string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	known := make(map[string]struct{}, len(toolNames))
	for _, name := range toolNames {
		known[name] = struct{}{}
	}

	s := toolCallBlockRe.ReplaceAllString(text, "")
	s = toolResultBlockRe.ReplaceAllString(s, "")
	s = orphanTagRe.ReplaceAllString(s, "")
	s = dropToolInvocationJSON(s, known)
	s = blankRunRe.ReplaceAllString(s, "\n\n")
	s = strings.TrimSpace(s)

	if s == "" {
		return MalformedNotice
	}
	return s
}

// dropToolInvocationJSON removes standalone JSON objects that look like
// tool invocations or result envelopes. Objects may span multiple lines;
// anything that does not parse as such an object is left untouched.
func dropToolInvocationJSON(text string, known map[string]struct{}) string {
	lines := strings.Split(text, "\n")
	var out []string

	for i := 0; i < len(lines); i++ {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), "{") {
			block, end := collectJSONBlock(lines, i)
			if end >= i && isToolInvocationJSON(block, known) {
				i = end
				continue
			}
		}
		out = append(out, lines[i])
	}

	return strings.Join(out, "\n")
}

// maxJSONBlockLines bounds the multi-line JSON scan so a pathological
// reply full of open braces stays cheap.
const maxJSONBlockLines = 50

// collectJSONBlock accumulates lines from start until braces balance.
// Returns the block and the index of its last line, or (-1) when no
// balanced block is found within the scan window.
func collectJSONBlock(lines []string, start int) (string, int) {
	depth := 0
	var b strings.Builder

	for i := start; i < len(lines) && i-start < maxJSONBlockLines; i++ {
		for _, r := range lines[i] {
			switch r {
			case '{':
				depth++
			case '}':
				depth--
			}
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(lines[i])
		if depth <= 0 {
			return b.String(), i
		}
	}
	return "", start - 1
}

// isToolInvocationJSON reports whether s parses as a JSON object shaped
// like an invocation of a registered tool ({"name":..., "arguments":...}
// with the name in known) or a result envelope ({"result":{...}}).
func isToolInvocationJSON(s string, known map[string]struct{}) bool {
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &m); err != nil {
		return false
	}

	if _, ok := m["tool_call"]; ok {
		return true
	}
	if raw, ok := m["name"]; ok {
		var name string
		if err := json.Unmarshal(raw, &name); err == nil {
			if _, registered := known[name]; registered {
				if _, ok := m["arguments"]; ok {
					return true
				}
				if _, ok := m["parameters"]; ok {
					return true
				}
			}
		}
	}
	if raw, ok := m["result"]; ok && len(m) == 1 {
		var inner map[string]json.RawMessage
		return json.Unmarshal(raw, &inner) == nil
	}
	return false
}
