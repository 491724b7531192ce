// Package core defines the tool invocation contract and the environment
// name-resolution and binding model.
package core

import (
	"context"
	"encoding/json"

	"github.com/xeipuuv/gojsonschema"

	lerrors "github.com/loomkit/loom/pkg/errors"
	"github.com/loomkit/loom/pkg/value"
)

// Tool is a stateless unit of computation: given a JSON input and an
// environment, it produces a JSON output or fails with a ToolError. Tools
// are nameless; names are environment bindings. The contract is location
// transparent: callers cannot tell whether Invoke runs a local computation,
// spawns a subprocess or issues a network call, so every invocation must be
// treated as potentially blocking and potentially failing for reasons
// unrelated to program logic. Implementations must honor ctx cancellation
// and must not mutate env except through its Define/Undefine operations.
type Tool interface {
	Invoke(ctx context.Context, input any, env *Env) (any, error)
}

// ToolFunc adapts a plain function to the Tool interface.
type ToolFunc func(ctx context.Context, input any, env *Env) (any, error)

// Invoke implements Tool.
func (f ToolFunc) Invoke(ctx context.Context, input any, env *Env) (any, error) {
	return f(ctx, input, env)
}

var _ Tool = (ToolFunc)(nil)

// Constant returns a tool that ignores its input and yields v. Binding
// forms use it to represent values as bindings. Callers receive a copy so
// shared bindings stay immutable.
func Constant(v any) Tool {
	v = value.Normalize(v)
	return ToolFunc(func(context.Context, any, *Env) (any, error) {
		return value.Clone(v), nil
	})
}

// Typed wraps a function whose input and output are Go types, decoding the
// JSON input into In and encoding Out back to a value. A mismatched input
// shape fails with InvalidInput.
func Typed[In, Out any](fn func(ctx context.Context, in In, env *Env) (Out, error)) Tool {
	return ToolFunc(func(ctx context.Context, input any, env *Env) (any, error) {
		in, err := decodeInput[In](input)
		if err != nil {
			return nil, err
		}
		out, err := fn(ctx, in, env)
		if err != nil {
			return nil, err
		}
		return value.Normalize(out), nil
	})
}

// Pure wraps a context-free function as a Tool.
func Pure[In, Out any](fn func(In) (Out, error)) Tool {
	return Typed(func(_ context.Context, in In, _ *Env) (Out, error) {
		return fn(in)
	})
}

func decodeInput[In any](input any) (In, error) {
	var in In
	data, err := json.Marshal(value.Normalize(input))
	if err != nil {
		return in, lerrors.New(lerrors.KindInvalidInput, "JSON input decode failed", err)
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return in, lerrors.New(lerrors.KindInvalidInput, "JSON input decode failed", err).
			WithPayload("input", value.Normalize(input))
	}
	return in, nil
}

// Info describes a tool for surfaces that advertise bindings, such as the
// MCP server and the HTTP tool listing.
type Info struct {
	Description string
	Schema      json.RawMessage
}

type describedTool struct {
	Tool
	info Info
}

func (d *describedTool) ToolInfo() Info { return d.info }

// Describe attaches advertisement info to a tool. The wrapped tool behaves
// identically under Invoke.
func Describe(t Tool, info Info) Tool {
	return &describedTool{Tool: t, info: info}
}

// InfoOf returns the advertisement info a tool carries, or a zero Info.
func InfoOf(t Tool) Info {
	if d, ok := t.(interface{ ToolInfo() Info }); ok {
		return d.ToolInfo()
	}
	return Info{}
}

type validatedTool struct {
	Tool
	info   Info
	schema *gojsonschema.Schema
}

func (v *validatedTool) ToolInfo() Info { return v.info }

func (v *validatedTool) Invoke(ctx context.Context, input any, env *Env) (any, error) {
	doc := gojsonschema.NewGoLoader(value.Normalize(input))
	result, err := v.schema.Validate(doc)
	if err != nil {
		return nil, lerrors.New(lerrors.KindInvalidInput, "input schema validation failed", err)
	}
	if !result.Valid() {
		issues := make([]any, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			issues = append(issues, desc.String())
		}
		return nil, lerrors.New(lerrors.KindInvalidInput, "input does not match tool schema", nil).
			WithPayload("issues", issues)
	}
	return v.Tool.Invoke(ctx, input, env)
}

// ValidateInput gates a tool behind a JSON Schema: inputs that do not match
// fail with InvalidInput before the tool runs. The schema is also exposed
// through InfoOf so dispatch surfaces can advertise it.
func ValidateInput(t Tool, description string, schemaJSON []byte) (Tool, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	if err != nil {
		return nil, err
	}
	return &validatedTool{
		Tool:   t,
		info:   Info{Description: description, Schema: json.RawMessage(schemaJSON)},
		schema: schema,
	}, nil
}

// MustValidateInput is ValidateInput for schemas known at compile time.
func MustValidateInput(t Tool, description string, schemaJSON []byte) Tool {
	wrapped, err := ValidateInput(t, description, schemaJSON)
	if err != nil {
		panic("core: invalid tool schema: " + err.Error())
	}
	return wrapped
}
