package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/wardenproj/warden/internal/security"
	"github.com/wardenproj/warden/internal/tool"
)

// fetchTool performs a single HTTPS GET against an allowlisted host.
type fetchTool struct {
	client         *http.Client
	allowedDomains []string
	maxBytes       int64
	userAgent      string
}

func (t *fetchTool) Name() string { return "fetch" }

func (t *fetchTool) Description() string {
	return "Fetch the contents of an HTTPS URL. Only hosts on the configured allowlist are reachable."
}

func (t *fetchTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"url": {
				"type": "string",
				"description": "The https:// URL to fetch"
			}
		},
		"required": ["url"]
	}`)
}

func (t *fetchTool) Sensitivity() security.Sensitivity {
	return security.SensitivityLow
}

// Execute validates the URL against the egress rules, then issues the
// GET. The validated URL is used verbatim; redirects re-enter the
// guard through checkRedirect.
func (t *fetchTool) Execute(ctx context.Context, args json.RawMessage) (tool.Outcome, error) {
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

	return t.get(ctx, validated)
}

// get issues the request and reads at most maxBytes of the body.
func (t *fetchTool) get(ctx context.Context, url string) (tool.Outcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return tool.Fail("fetch: build request: " + err.Error()), nil
	}
	req.Header.Set("User-Agent", t.userAgent)

	client := *t.client
	client.CheckRedirect = func(req *http.Request, _ []*http.Request) error {
		if _, err := security.ValidateEgressURL(req.URL.String(), t.allowedDomains); err != nil {
			return err
		}
		return nil
	}

	resp, err := client.Do(req)
	if err != nil {
		return tool.Fail("fetch failed: " + err.Error()), nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return tool.Fail(fmt.Sprintf("fetch failed: HTTP %d", resp.StatusCode)), nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBytes+1))
	if err != nil {
		return tool.Fail("fetch: read body: " + err.Error()), nil
	}

	if int64(len(body)) > t.maxBytes {
		body = body[:t.maxBytes]
		return tool.Succeed(string(body) + "\n...(response truncated)"), nil
	}
	return tool.Succeed(string(body)), nil
}
