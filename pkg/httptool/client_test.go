package httptool

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/loomkit/loom/pkg/core"
	lerrors "github.com/loomkit/loom/pkg/errors"
	"github.com/loomkit/loom/pkg/script"
	"github.com/loomkit/loom/pkg/serve"
	"github.com/loomkit/loom/pkg/toolkit"
)

func newRemoteService(t *testing.T) *httptest.Server {
	t.Helper()
	interp := script.New()
	env := interp.NewEnv()
	env.Install(toolkit.Math())
	env.Install(toolkit.Data())
	service := serve.NewService(env, interp)
	srv := httptest.NewServer(service.Router())
	t.Cleanup(srv.Close)
	return srv
}

func TestClientInvokesRemoteTool(t *testing.T) {
	srv := newRemoteService(t)
	client, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := client.Invoke(context.Background(), "multiply", []any{21.0, 2.0})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out != 42.0 {
		t.Fatalf("expected 42, got %v", out)
	}
}

func TestClientEscapesToolNameInPath(t *testing.T) {
	interp := script.New()
	env := interp.NewEnv()
	env.Define("ns/echo", core.ToolFunc(func(_ context.Context, input any, _ *core.Env) (any, error) {
		return input, nil
	}))
	srv := httptest.NewServer(serve.NewService(env, interp).Router())
	t.Cleanup(srv.Close)

	client, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := client.Invoke(context.Background(), "ns/echo", "ping")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out != "ping" {
		t.Fatalf("expected ping, got %v", out)
	}
}

func TestClientEvalRunsProgram(t *testing.T) {
	srv := newRemoteService(t)
	client, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	program := map[string]any{
		"let": "x", "value": 5.0, "in": map[string]any{"$": "x"},
	}
	out, err := client.Eval(context.Background(), program)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if out != 5.0 {
		t.Fatalf("expected 5, got %v", out)
	}
}

func TestClientPreservesErrorKinds(t *testing.T) {
	srv := newRemoteService(t)
	client, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = client.Invoke(context.Background(), "no-such-tool", nil)
	if !lerrors.IsKind(err, lerrors.KindUnknownTool) {
		t.Fatalf("expected UNKNOWN_TOOL, got %v", err)
	}
	te := lerrors.AsToolError(err)
	if te.Payload["tool"] != "no-such-tool" {
		t.Fatalf("expected tool payload to survive the hop, got %v", te.Payload)
	}

	_, err = client.Invoke(context.Background(), "multiply", map[string]any{"not": "numbers"})
	if !lerrors.IsKind(err, lerrors.KindInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

func TestClientTransportFailure(t *testing.T) {
	srv := newRemoteService(t)
	url := srv.URL
	srv.Close()

	client, err := New(url)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = client.Invoke(context.Background(), "multiply", []any{1.0})
	if !lerrors.IsKind(err, lerrors.KindTransportFailure) {
		t.Fatalf("expected TRANSPORT_FAILURE, got %v", err)
	}
}

func TestClientCancelledContext(t *testing.T) {
	srv := newRemoteService(t)
	client, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.Invoke(ctx, "multiply", []any{1.0})
	if !lerrors.IsKind(err, lerrors.KindCancelled) {
		t.Fatalf("expected CANCELLED, got %v", err)
	}
}

func TestToolsetBindsRemoteTools(t *testing.T) {
	srv := newRemoteService(t)
	client, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	set, err := Toolset(ctx, "remote", client, "remote")
	if err != nil {
		t.Fatalf("Toolset: %v", err)
	}

	env := core.NewEnv()
	env.Install(set)
	tool, ok := env.Lookup("remote.multiply")
	if !ok {
		t.Fatalf("expected remote.multiply binding, have %v", env.Names())
	}
	out, err := tool.Invoke(ctx, []any{6.0, 7.0}, env)
	if err != nil {
		t.Fatalf("Invoke via proxy: %v", err)
	}
	if out != 42.0 {
		t.Fatalf("expected 42, got %v", out)
	}
	info := core.InfoOf(tool)
	if info.Description == "" {
		t.Fatalf("expected remote description to be advertised")
	}
}
