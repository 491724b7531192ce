// Copyright 2026 © The Loom Authors
// SPDX-License-Identifier: Apache-2.0

package script

import (
	"context"

	"github.com/loomkit/loom/pkg/core"
	lerrors "github.com/loomkit/loom/pkg/errors"
	"github.com/loomkit/loom/pkg/value"
)

// Names of the builtin tools every standard root environment carries.
const (
	DefineToolName   = "define-tool"
	UndefineToolName = "undefine-tool"
	ListToolsName    = "list-tools"
	EvalToolName     = "eval"
)

// Builtins returns the toolset backing the definition machinery. The tools
// operate on the environment they are invoked against, so installing them
// into a child environment scopes their effects to that child.
func (it *Interp) Builtins() core.Toolset {
	return core.NewToolset("builtins", map[string]core.Tool{
		DefineToolName: core.Describe(core.ToolFunc(it.defineTool), core.Info{
			Description: "Bind a name to a new tool, either a scripted body with optional parameters or an alias of an existing tool.",
		}),
		UndefineToolName: core.Describe(core.ToolFunc(it.undefineTool), core.Info{
			Description: "Remove a binding from the current scope. Returns whether a binding was removed.",
		}),
		ListToolsName: core.Describe(core.ToolFunc(it.listTools), core.Info{
			Description: "List the names bound in the current scope and its ancestors.",
		}),
		EvalToolName: core.Describe(core.ToolFunc(it.evalTool), core.Info{
			Description: "Evaluate the input as a program against the current scope. String input is parsed as program text first.",
		}),
	})
}

func (it *Interp) defineTool(ctx context.Context, input any, env *core.Env) (any, error) {
	obj, ok := value.Normalize(input).(map[string]any)
	if !ok {
		return nil, lerrors.New(lerrors.KindInvalidInput, "define-tool input must be an object", nil)
	}
	name, ok := obj["name"].(string)
	if !ok || name == "" {
		return nil, lerrors.New(lerrors.KindInvalidInput, "define-tool requires a non-empty \"name\"", nil)
	}

	if src, aliased := obj["tool"]; aliased {
		srcName, ok := src.(string)
		if !ok {
			return nil, lerrors.New(lerrors.KindInvalidInput, "define-tool \"tool\" must name an existing tool", nil)
		}
		tool, found := env.Lookup(srcName)
		if !found {
			return nil, lerrors.New(lerrors.KindUnknownTool, "unknown tool \""+srcName+"\"", nil).
				WithPayload("tool", srcName)
		}
		env.Define(name, tool)
		it.emitter.Emit(ctx, core.NewEvent(ctx, core.EventToolDefined, name, map[string]any{"alias": srcName}))
		return nil, nil
	}

	script, ok := obj["script"]
	if !ok {
		return nil, lerrors.New(lerrors.KindInvalidInput, "define-tool requires \"script\" or \"tool\"", nil)
	}
	params, err := parameterNames(obj)
	if err != nil {
		return nil, err
	}
	if err := Check(script); err != nil {
		return nil, err
	}
	env.Define(name, it.NewDefinedTool(script, params, env))
	it.emitter.Emit(ctx, core.NewEvent(ctx, core.EventToolDefined, name, map[string]any{"parameters": params}))
	return nil, nil
}

func (it *Interp) undefineTool(ctx context.Context, input any, env *core.Env) (any, error) {
	var name string
	switch v := value.Normalize(input).(type) {
	case string:
		name = v
	case map[string]any:
		name, _ = v["name"].(string)
	}
	if name == "" {
		return nil, lerrors.New(lerrors.KindInvalidInput, "undefine-tool requires a tool name", nil)
	}
	return env.Undefine(name), nil
}

func (it *Interp) listTools(ctx context.Context, input any, env *core.Env) (any, error) {
	names := env.Names()
	out := make([]any, len(names))
	for i, n := range names {
		out[i] = n
	}
	return map[string]any{"names": out}, nil
}

// evalTool makes the interpreter itself available as a tool, so programs
// can build programs. Evaluation happens against the calling scope.
func (it *Interp) evalTool(ctx context.Context, input any, env *core.Env) (any, error) {
	program := value.Normalize(input)
	if text, ok := program.(string); ok {
		parsed, err := Parse([]byte(text))
		if err != nil {
			return nil, err
		}
		program = parsed
	} else if err := Check(program); err != nil {
		return nil, err
	}
	return it.eval(ctx, program, env)
}
