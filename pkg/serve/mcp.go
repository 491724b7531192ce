package serve

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/loomkit/loom/pkg/core"
	lerrors "github.com/loomkit/loom/pkg/errors"
	"github.com/loomkit/loom/pkg/value"
)

// MCPServer exposes an environment's tools to MCP clients: every binding
// visible at registration time becomes an advertised MCP tool. Invocation
// goes through the standard contract, so defined and remote tools serve
// the same way native ones do.
type MCPServer struct {
	srv *server.MCPServer
	env *core.Env
}

// NewMCPServer wraps env for MCP serving and registers its tools.
func NewMCPServer(name, version string, env *core.Env) *MCPServer {
	s := &MCPServer{
		srv: server.NewMCPServer(name, version),
		env: env,
	}
	s.registerTools()
	return s
}

func (s *MCPServer) registerTools() {
	for _, name := range s.env.Names() {
		tool, ok := s.env.Lookup(name)
		if !ok {
			continue
		}
		info := core.InfoOf(tool)
		opts := []mcp.ToolOption{}
		if info.Description != "" {
			opts = append(opts, mcp.WithDescription(info.Description))
		}
		def := mcp.NewTool(name, opts...)
		if len(info.Schema) > 0 {
			// mcp-go marshals either InputSchema or RawInputSchema; clear
			// the default typed schema so the raw one is used.
			def.InputSchema.Type = ""
			def.RawInputSchema = info.Schema
		}
		s.srv.AddTool(def, s.handlerFor(name))
	}
}

func (s *MCPServer) handlerFor(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		// Resolve at call time so redefinitions after registration win.
		tool, ok := s.env.Lookup(name)
		if !ok {
			te := lerrors.New(lerrors.KindUnknownTool, "unknown tool \""+name+"\"", nil)
			return errorResult(te), nil
		}
		input := value.Normalize(request.Params.Arguments)
		out, err := tool.Invoke(ctx, input, s.env)
		if err != nil {
			return errorResult(lerrors.AsToolError(err)), nil
		}
		return outputResult(out)
	}
}

// errorResult carries the full tool error as the MCP error text, kind
// and payload included.
func errorResult(te *lerrors.ToolError) *mcp.CallToolResult {
	raw, err := json.Marshal(te.ToValue())
	if err != nil {
		return mcp.NewToolResultError(te.Error())
	}
	return mcp.NewToolResultError(string(raw))
}

func outputResult(out any) (*mcp.CallToolResult, error) {
	if text, ok := out.(string); ok {
		return mcp.NewToolResultText(text), nil
	}
	raw, err := json.Marshal(value.Normalize(out))
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(raw)), nil
}

// ServeStdio blocks serving MCP over stdin/stdout.
func (s *MCPServer) ServeStdio() error {
	return server.ServeStdio(s.srv)
}

// Underlying exposes the wrapped mcp-go server for alternative
// transports.
func (s *MCPServer) Underlying() *server.MCPServer {
	return s.srv
}
