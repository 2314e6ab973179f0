package browser

import (
	"context"
	"encoding/json"
	"os/exec"
	"runtime"

	"github.com/wardenproj/warden/internal/security"
	"github.com/wardenproj/warden/internal/tool"
)

// openTool opens a URL in the user's default browser. launch is
// injectable for tests.
type openTool struct {
	allowedDomains []string
	launch         func(ctx context.Context, url string) error
}

func (t *openTool) Name() string { return "browser_open" }

func (t *openTool) Description() string {
	return "Open an HTTPS URL in the user's default browser. Does not read or return page content."
}

func (t *openTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"url": {
				"type": "string",
				"description": "The https:// URL to open"
			}
		},
		"required": ["url"]
	}`)
}

// Sensitivity is high: opening a URL is a visible action on the user's
// machine and must be approved under supervised autonomy.
func (t *openTool) Sensitivity() security.Sensitivity {
	return security.SensitivityHigh
}

func (t *openTool) Execute(ctx context.Context, args json.RawMessage) (tool.Outcome, error) {
	var input struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return tool.Fail("invalid arguments: " + err.Error()), nil
	}

	validated, err := security.ValidateEgressURL(input.URL, t.allowedDomains)
	if err != nil {
		return tool.Fail(err.Error()), nil
	}

	if err := t.launch(ctx, validated); err != nil {
		return tool.Fail("browser_open: " + err.Error()), nil
	}
	return tool.Succeed("Opened " + validated + " in the default browser."), nil
}

// platformLaunch invokes the OS opener for the current platform. The
// URL is passed as a single argument, never through a shell line.
func platformLaunch(ctx context.Context, url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	case "windows":
		cmd = exec.CommandContext(ctx, "cmd", "/c", "start", "", url)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	}
	return cmd.Start()
}
