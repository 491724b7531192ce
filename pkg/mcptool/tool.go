package mcptool

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/loomkit/loom/pkg/core"
	lerrors "github.com/loomkit/loom/pkg/errors"
	"github.com/loomkit/loom/pkg/value"
)

// ToolCaller abstracts MCP tool execution for adapters.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
}

// Tool proxies one MCP tool behind the core invocation contract. A
// transport error surfaces as TransportFailure, a tool-reported error as
// ToolFailure and a caller abort as Cancelled, so composing programs can
// react to each the same way they would for a local tool.
type Tool struct {
	def    mcp.Tool
	caller ToolCaller
}

var _ core.Tool = (*Tool)(nil)

// NewTool builds a proxy for the given MCP tool definition and caller.
func NewTool(def mcp.Tool, caller ToolCaller) (*Tool, error) {
	if def.Name == "" {
		return nil, errors.New("mcp tool name is required")
	}
	if caller == nil {
		return nil, errors.New("tool caller is required")
	}
	return &Tool{def: def, caller: caller}, nil
}

// Name returns the MCP tool name.
func (t *Tool) Name() string {
	return t.def.Name
}

// ToolInfo exposes the advertised description and schema.
func (t *Tool) ToolInfo() core.Info {
	return core.Info{
		Description: t.def.Description,
		Schema:      rawSchema(t.def),
	}
}

// Invoke sends the input to the MCP server and maps the result back into
// the invocation contract. The environment is unused: remote tools do not
// resolve names on this side of the boundary.
func (t *Tool) Invoke(ctx context.Context, input any, _ *core.Env) (any, error) {
	args, err := normalizeArgs(input)
	if err != nil {
		return nil, err
	}
	if err := validateRequiredArgs(t.def, args); err != nil {
		return nil, err
	}

	result, err := t.caller.CallTool(ctx, t.def.Name, args)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, lerrors.New(lerrors.KindCancelled, "mcp call aborted", err).
				WithPayload("tool", t.def.Name)
		}
		return nil, lerrors.New(lerrors.KindTransportFailure, "mcp call failed", err).
			WithPayload("tool", t.def.Name)
	}
	return resultToOutput(t.def.Name, result)
}

// Toolset lists the server's tools and wraps each as a loom tool. Names
// are prefixed "<prefix>.<tool>" when prefix is non-empty, so several
// servers can share one environment without collisions.
func Toolset(ctx context.Context, name string, client *Client, prefix string) (core.Toolset, error) {
	defs, err := client.ListTools(ctx)
	if err != nil {
		return nil, lerrors.New(lerrors.KindTransportFailure, "mcp tool discovery failed", err).
			WithPayload("server", name)
	}
	tools := make(map[string]core.Tool, len(defs))
	for _, def := range defs {
		proxy, err := NewTool(def, client)
		if err != nil {
			return nil, lerrors.New(lerrors.KindInternal, "invalid mcp tool definition", err).
				WithPayload("server", name)
		}
		bound := def.Name
		if prefix != "" {
			bound = prefix + "." + def.Name
		}
		tools[bound] = proxy
	}
	return core.NewToolset(name, tools), nil
}

func normalizeArgs(input any) (map[string]any, error) {
	switch v := value.Normalize(input).(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return map[string]any{}, nil
		}
		if strings.HasPrefix(trimmed, "{") {
			var decoded map[string]any
			if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
				return decoded, nil
			}
		}
		return map[string]any{"input": v}, nil
	default:
		return nil, lerrors.New(lerrors.KindInvalidInput, "mcp tool input must be an object", nil).
			WithPayload("input", v)
	}
}

func validateRequiredArgs(def mcp.Tool, args map[string]any) error {
	schema := def.InputSchema
	if schema.Type != "" && schema.Type != "object" {
		return nil
	}
	for _, key := range schema.Required {
		if _, ok := args[key]; !ok {
			return lerrors.New(lerrors.KindInvalidInput, "missing required field \""+key+"\"", nil).
				WithPayload("field", key).
				WithPayload("tool", def.Name)
		}
	}
	return nil
}

func resultToOutput(name string, result *mcp.CallToolResult) (any, error) {
	if result == nil {
		return nil, lerrors.New(lerrors.KindTransportFailure, "mcp tool result is nil", nil).
			WithPayload("tool", name)
	}
	if result.IsError {
		return nil, lerrors.New(lerrors.KindToolFailure, "mcp tool reported an error", nil).
			WithPayload("tool", name).
			WithPayload("detail", extractTextContent(result.Content))
	}
	if result.StructuredContent != nil {
		return value.Normalize(result.StructuredContent), nil
	}
	if text := extractTextContent(result.Content); text != "" {
		return text, nil
	}
	return nil, nil
}

func extractTextContent(items []mcp.Content) string {
	if len(items) == 0 {
		return ""
	}
	var parts []string
	for _, item := range items {
		switch content := item.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func rawSchema(def mcp.Tool) json.RawMessage {
	if def.RawInputSchema != nil {
		return def.RawInputSchema
	}
	raw, err := json.Marshal(def.InputSchema)
	if err != nil {
		return nil
	}
	return raw
}
