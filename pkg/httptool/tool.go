package httptool

import (
	"context"
	"errors"

	"github.com/loomkit/loom/pkg/core"
	lerrors "github.com/loomkit/loom/pkg/errors"
)

// Invoker abstracts remote invocation for the proxy tool.
type Invoker interface {
	Invoke(ctx context.Context, tool string, input any) (any, error)
}

// Tool proxies one tool on a remote loom service.
type Tool struct {
	name    string
	info    core.Info
	invoker Invoker
}

var _ core.Tool = (*Tool)(nil)

// NewTool builds a proxy for the named remote tool.
func NewTool(name string, info core.Info, invoker Invoker) (*Tool, error) {
	if name == "" {
		return nil, errors.New("remote tool name is required")
	}
	if invoker == nil {
		return nil, errors.New("invoker is required")
	}
	return &Tool{name: name, info: info, invoker: invoker}, nil
}

// Name returns the remote tool name.
func (t *Tool) Name() string { return t.name }

// ToolInfo exposes the advertised description and schema.
func (t *Tool) ToolInfo() core.Info { return t.info }

// Invoke forwards the input to the remote service. The environment is
// unused: remote tools resolve names on their own side.
func (t *Tool) Invoke(ctx context.Context, input any, _ *core.Env) (any, error) {
	return t.invoker.Invoke(ctx, t.name, input)
}

// Toolset lists the remote service's tools and wraps each as a local
// proxy. Names are prefixed "<prefix>.<tool>" when prefix is non-empty.
func Toolset(ctx context.Context, name string, client *Client, prefix string) (core.Toolset, error) {
	summaries, err := client.ListTools(ctx)
	if err != nil {
		return nil, lerrors.New(lerrors.KindTransportFailure, "remote tool discovery failed", err).
			WithPayload("service", name)
	}
	tools := make(map[string]core.Tool, len(summaries))
	for _, summary := range summaries {
		proxy, err := NewTool(summary.Name, core.Info{
			Description: summary.Description,
			Schema:      summary.Schema,
		}, client)
		if err != nil {
			return nil, lerrors.New(lerrors.KindInternal, "invalid remote tool listing", err).
				WithPayload("service", name)
		}
		bound := summary.Name
		if prefix != "" {
			bound = prefix + "." + summary.Name
		}
		tools[bound] = proxy
	}
	return core.NewToolset(name, tools), nil
}
