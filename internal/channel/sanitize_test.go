package channel

import (
	"strings"
	"testing"
)

// registeredTools mirrors a typical registry for sanitizer tests.
var registeredTools = []string{"read_file", "browser_open", "fetch_url", "run_query"}

func TestSanitize_RemovesToolCallBlocks(t *testing.T) {
	t.Parallel()

	in := "Here is the answer.\n<tool_call>{\"name\":\"read_file\",\"arguments\":{}}</tool_call>\nDone."
	got := Sanitize(in, registeredTools)

	if strings.Contains(got, "<tool_call>") || strings.Contains(got, "read_file") {
		t.Errorf("tool call block not removed: %q", got)
	}
	if !strings.Contains(got, "Here is the answer.") || !strings.Contains(got, "Done.") {
		t.Errorf("surrounding text lost: %q", got)
	}
}

func TestSanitize_RemovesToolResultBlocks(t *testing.T) {
	t.Parallel()

	in := "Summary:\n<tool_result>\nraw output here\n</tool_result>\nAll good."
	got := Sanitize(in, registeredTools)

	if strings.Contains(got, "raw output here") {
		t.Errorf("tool result block not removed: %q", got)
	}
	if !strings.Contains(got, "All good.") {
		t.Errorf("trailing text lost: %q", got)
	}
}

func TestSanitize_RemovesAttributedTagBlocks(t *testing.T) {
	t.Parallel()

	in := "Before\n<tool_result name=\"run_query\">\nrows: 3\n</tool_result>\nAfter"
	got := Sanitize(in, registeredTools)

	if strings.Contains(got, "<tool_result") {
		t.Errorf("attributed result tag leaked: %q", got)
	}
	if strings.Contains(got, "rows: 3") {
		t.Errorf("result payload leaked: %q", got)
	}
	if !strings.Contains(got, "Before") || !strings.Contains(got, "After") {
		t.Errorf("surrounding text lost: %q", got)
	}
}

func TestSanitize_RemovesMultilineTaggedBlock(t *testing.T) {
	t.Parallel()

	in := "Before\n<tool_call>\n{\n  \"name\": \"fetch_url\",\n  \"arguments\": {\"url\": \"https://example.com\"}\n}\n</tool_call>\nAfter"
	got := Sanitize(in, registeredTools)

	if strings.Contains(got, "fetch_url") {
		t.Errorf("multiline block not removed: %q", got)
	}
	if got != "Before\n\nAfter" && got != "Before\nAfter" {
		t.Errorf("unexpected result: %q", got)
	}
}

func TestSanitize_RemovesBareJSONInvocation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
	}{
		{"name-arguments", `I will call the tool.
{"name":"browser_open","arguments":{"url":"https://example.com"}}
Calling now.`},
		{"name-parameters", `{"name":"run_query","parameters":{"sql":"select 1"}}
That was the plan.`},
		{"multiline-invocation", `Let me check.
{
  "name": "read_file",
  "arguments": {"path": "a.txt"}
}
Checking.`},
		{"result-envelope", `{"result":{"status":"ok","rows":3}}
The query succeeded.`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Sanitize(tt.in, registeredTools)
			if strings.Contains(got, `"name"`) || strings.Contains(got, `"result"`) {
				t.Errorf("JSON shape not removed: %q", got)
			}
			if got == "" || got == MalformedNotice {
				t.Errorf("surrounding text lost: %q", got)
			}
		})
	}
}

func TestSanitize_KeepsJSONNamingUnknownTool(t *testing.T) {
	t.Parallel()

	// Invocation-shaped JSON about a tool that is not registered is
	// prose, e.g. the user asked for a schema example.
	in := "A call would look like this:\n{\"name\":\"deploy_service\",\"arguments\":{\"env\":\"prod\"}}\nAdjust as needed."
	got := Sanitize(in, registeredTools)

	if !strings.Contains(got, "deploy_service") {
		t.Errorf("unregistered tool example deleted: %q", got)
	}
}

func TestSanitize_KeepsOrdinaryJSON(t *testing.T) {
	t.Parallel()

	in := "Here is the config:\n{\"debug\": true, \"port\": 8080}\nSet it in warden.yaml."
	got := Sanitize(in, registeredTools)

	if !strings.Contains(got, `"port": 8080`) {
		t.Errorf("ordinary JSON should be kept: %q", got)
	}
}

func TestSanitize_CollapsesBlankLines(t *testing.T) {
	t.Parallel()

	in := "First.\n\n\n\n\nSecond."
	got := Sanitize(in, registeredTools)

	if got != "First.\n\nSecond." {
		t.Errorf("blank lines not collapsed: %q", got)
	}
}

func TestSanitize_EmptyInputStaysEmpty(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "   ", "\n\t\n"} {
		if got := Sanitize(in, registeredTools); got != "" {
			t.Errorf("Sanitize(%q) = %q, want empty", in, got)
		}
	}
}

func TestSanitize_EmptiedInputBecomesMalformedNotice(t *testing.T) {
	t.Parallel()

	in := `<tool_call>{"name":"x","arguments":{}}</tool_call>`
	got := Sanitize(in, registeredTools)

	if got != MalformedNotice {
		t.Errorf("got %q, want the malformed notice", got)
	}
}

func TestSanitize_PlainTextUntouched(t *testing.T) {
	t.Parallel()

	in := "Just a normal reply with no markup."
	if got := Sanitize(in, registeredTools); got != in {
		t.Errorf("plain text changed: %q", got)
	}
}

func TestSanitize_OrphanTagsStripped(t *testing.T) {
	t.Parallel()

	in := "Partial output <tool_result> with no closing tag."
	got := Sanitize(in, registeredTools)

	if strings.Contains(got, "<tool_result>") {
		t.Errorf("orphan tag not stripped: %q", got)
	}
	if !strings.Contains(got, "Partial output") {
		t.Errorf("text lost: %q", got)
	}
}

func TestSanitize_OrphanAttributedTagStripped(t *testing.T) {
	t.Parallel()

	in := "Partial <tool_result name=\"fetch_url\"> output without a close."
	got := Sanitize(in, registeredTools)

	if strings.Contains(got, "<tool_result") {
		t.Errorf("attributed orphan tag not stripped: %q", got)
	}
	if !strings.Contains(got, "output without a close.") {
		t.Errorf("text lost: %q", got)
	}
}
