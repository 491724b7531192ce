package core

import (
	"context"
	"testing"

	lerrors "github.com/loomkit/loom/pkg/errors"
	"github.com/loomkit/loom/pkg/value"
)

func TestConstantReturnsCopies(t *testing.T) {
	tool := Constant(map[string]any{"k": []any{1, 2}})
	env := NewEnv()

	first := invoke(t, tool, nil, env).(map[string]any)
	first["k"].([]any)[0] = 99.0

	second := invoke(t, tool, nil, env).(map[string]any)
	if !value.Equal(second, map[string]any{"k": []any{1, 2}}) {
		t.Fatalf("constant leaked mutable state: %v", second)
	}
}

func TestTypedDecodesInput(t *testing.T) {
	type in struct {
		N float64 `json:"n"`
	}
	tool := Typed(func(_ context.Context, i in, _ *Env) (float64, error) {
		return i.N * 2, nil
	})

	out := invoke(t, tool, map[string]any{"n": 21}, NewEnv())
	if out != float64(42) {
		t.Fatalf("typed tool = %v, want 42", out)
	}
}

func TestTypedRejectsBadShape(t *testing.T) {
	type in struct {
		N float64 `json:"n"`
	}
	tool := Typed(func(_ context.Context, i in, _ *Env) (float64, error) {
		return i.N, nil
	})

	_, err := tool.Invoke(context.Background(), "not an object", NewEnv())
	if err == nil {
		t.Fatalf("expected decode failure")
	}
	if !lerrors.IsKind(err, lerrors.KindInvalidInput) {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}

func TestPureNormalizesOutput(t *testing.T) {
	type out struct {
		Names []string `json:"names"`
	}
	tool := Pure(func(_ any) (out, error) {
		return out{Names: []string{"a", "b"}}, nil
	})

	got := invoke(t, tool, nil, NewEnv())
	want := map[string]any{"names": []any{"a", "b"}}
	if !value.Equal(got, want) {
		t.Fatalf("pure tool output = %#v, want %#v", got, want)
	}
}

func TestDescribeCarriesInfo(t *testing.T) {
	tool := Describe(Constant(1), Info{Description: "always one"})
	info := InfoOf(tool)
	if info.Description != "always one" {
		t.Fatalf("info lost: %+v", info)
	}
	if out := invoke(t, tool, nil, NewEnv()); out != float64(1) {
		t.Fatalf("described tool behavior changed: %v", out)
	}
	if got := InfoOf(Constant(1)); got.Description != "" || got.Schema != nil {
		t.Fatalf("undescribed tool should have zero info, got %+v", got)
	}
}

func TestValidateInputGatesInvocation(t *testing.T) {
	schema := []byte(`{
		"type": "object",
		"properties": {"n": {"type": "number"}},
		"required": ["n"],
		"additionalProperties": false
	}`)
	inner := ToolFunc(func(_ context.Context, input any, _ *Env) (any, error) {
		return input, nil
	})
	tool, err := ValidateInput(inner, "echo numbers", schema)
	if err != nil {
		t.Fatalf("schema compile: %v", err)
	}

	out := invoke(t, tool, map[string]any{"n": 3}, NewEnv())
	if !value.Equal(out, map[string]any{"n": 3}) {
		t.Fatalf("valid input altered: %v", out)
	}

	_, err = tool.Invoke(context.Background(), map[string]any{"x": true}, NewEnv())
	if err == nil {
		t.Fatalf("expected schema rejection")
	}
	te := lerrors.AsToolError(err)
	if te.Kind != lerrors.KindInvalidInput {
		t.Fatalf("expected InvalidInput, got %v", te.Kind)
	}
	if te.Payload["issues"] == nil {
		t.Fatalf("expected validation issues in payload")
	}

	if string(InfoOf(tool).Schema) == "" {
		t.Fatalf("expected schema to be advertised through InfoOf")
	}
}

func TestValidateInputRejectsBadSchema(t *testing.T) {
	if _, err := ValidateInput(Constant(1), "", []byte(`{"type": 12}`)); err == nil {
		t.Fatalf("expected schema compile error")
	}
}
