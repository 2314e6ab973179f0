package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/wardenproj/warden/internal/security"
	"github.com/wardenproj/warden/internal/tool"
)

// toolCaller is the slice of the MCP client the bridge needs.
// *client.Client satisfies it.
type toolCaller interface {
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// serverTool exposes one remote MCP tool through the warden tool
// contract.
type serverTool struct {
	caller      toolCaller
	serverName  string
	remoteName  string
	name        string
	description string
	schema      json.RawMessage
	sensitivity security.Sensitivity
}

func newServerTool(caller toolCaller, serverName string, remote mcp.Tool, sensitivity security.Sensitivity) *serverTool {
	schema, err := json.Marshal(remote.InputSchema)
	if err != nil || len(schema) == 0 {
		schema = json.RawMessage(`{"type":"object"}`)
	}

	return &serverTool{
		caller:      caller,
		serverName:  serverName,
		remoteName:  remote.Name,
		name:        bridgedToolName(serverName, remote.Name),
		description: bridgedDescription(serverName, remote),
		schema:      schema,
		sensitivity: sensitivity,
	}
}

func (t *serverTool) Name() string                      { return t.name }
func (t *serverTool) Description() string               { return t.description }
func (t *serverTool) Schema() json.RawMessage           { return t.schema }
func (t *serverTool) Sensitivity() security.Sensitivity { return t.sensitivity }

// Execute forwards the call to the MCP server and flattens the text
// content of the result.
func (t *serverTool) Execute(ctx context.Context, args json.RawMessage) (tool.Outcome, error) {
	var arguments map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &arguments); err != nil {
			return tool.Fail("invalid arguments: " + err.Error()), nil
		}
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = t.remoteName
	req.Params.Arguments = arguments

	result, err := t.caller.CallTool(ctx, req)
	if err != nil {
		return tool.Fail(fmt.Sprintf("mcp %s: %v", t.serverName, err)), nil
	}

	text := flattenContent(result)
	if result.IsError {
		if text == "" {
			text = fmt.Sprintf("mcp %s: tool %s reported an error", t.serverName, t.remoteName)
		}
		return tool.Fail(text), nil
	}
	return tool.Succeed(text), nil
}

// bridgedToolName builds a provider-safe name for a remote tool.
func bridgedToolName(serverName, toolName string) string {
	return "mcp_" + sanitizeNamePart(serverName) + "_" + sanitizeNamePart(toolName)
}

func bridgedDescription(serverName string, remote mcp.Tool) string {
	desc := strings.TrimSpace(remote.Description)
	if desc == "" {
		return fmt.Sprintf("MCP tool %s from server %s", remote.Name, serverName)
	}
	return fmt.Sprintf("MCP tool %s from server %s: %s", remote.Name, serverName, desc)
}

// sanitizeNamePart lowercases and replaces runs of non-alphanumerics
// with a single underscore.
func sanitizeNamePart(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	underscore := false
	for _, r := range strings.ToLower(value) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore {
			b.WriteByte('_')
			underscore = true
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "tool"
	}
	return out
}

// flattenContent joins all text content items with newlines. Non-text
// content is represented as its JSON encoding.
func flattenContent(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}

	var parts []string
	for _, item := range result.Content {
		if tc, ok := item.(mcp.TextContent); ok {
			if tc.Text != "" {
				parts = append(parts, tc.Text)
			}
			continue
		}
		if raw, err := json.Marshal(item); err == nil {
			parts = append(parts, string(raw))
		}
	}
	return strings.Join(parts, "\n")
}
