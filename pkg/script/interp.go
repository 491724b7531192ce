// Copyright 2026 © The Loom Authors
// SPDX-License-Identifier: Apache-2.0

package script

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/loomkit/loom/pkg/core"
	lerrors "github.com/loomkit/loom/pkg/errors"
	"github.com/loomkit/loom/pkg/telemetry"
	"github.com/loomkit/loom/pkg/value"
)

// DefaultMaxDepth bounds nested evaluation, counting defined-tool bodies.
const DefaultMaxDepth = 1000

// Option configures an interpreter.
type Option func(*Interp)

// WithEmitter routes evaluation events (tool invocations, definitions) to
// an emitter, typically an audit recorder.
func WithEmitter(emitter core.EventEmitter) Option {
	return func(it *Interp) {
		if emitter != nil {
			it.emitter = emitter
		}
	}
}

// WithMaxDepth overrides the evaluation depth bound.
func WithMaxDepth(n int) Option {
	return func(it *Interp) {
		if n > 0 {
			it.maxDepth = n
		}
	}
}

// Interp evaluates programs against environments. A single Interp is safe
// for concurrent use; each Evaluate call is single threaded with respect to
// its own program.
type Interp struct {
	tracer   trace.Tracer
	emitter  core.EventEmitter
	maxDepth int
}

// New creates an interpreter.
func New(opts ...Option) *Interp {
	it := &Interp{
		tracer:   otel.Tracer("loom/script"),
		emitter:  core.NoopEventEmitter{},
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(it)
	}
	return it
}

// NewEnv creates a root environment pre-populated with the builtin tools:
// define-tool, undefine-tool, list-tools and eval.
func (it *Interp) NewEnv() *core.Env {
	env := core.NewEnv()
	env.Install(it.Builtins())
	return env
}

// Evaluate runs a program against an environment and returns its value.
// Failures short-circuit and propagate unchanged: the returned error
// carries the kind and payload of the innermost failing evaluation.
func (it *Interp) Evaluate(ctx context.Context, program any, env *core.Env) (any, error) {
	ctx, span := it.tracer.Start(ctx, "Script.Evaluate")
	defer span.End()

	it.emitter.Emit(ctx, core.NewEvent(ctx, core.EventEvalStarted, "", nil))
	started := time.Now()
	out, err := it.eval(ctx, value.Normalize(program), env)
	done := core.NewEvent(ctx, core.EventEvalCompleted, "", nil)
	done.Duration = time.Since(started)
	if err != nil {
		done.Payload = map[string]any{"error": lerrors.AsToolError(err).ToValue()}
	}
	it.emitter.Emit(ctx, done)
	if err != nil {
		return nil, err
	}
	return out, nil
}

type depthKey struct{}

func evalDepth(ctx context.Context) int {
	d, _ := ctx.Value(depthKey{}).(int)
	return d
}

// eval dispatches one program node. Evaluation order is strictly left to
// right and depth first; there is no parallelism here, only specific tools
// introduce concurrency.
func (it *Interp) eval(ctx context.Context, program any, env *core.Env) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, lerrors.New(lerrors.KindCancelled, "evaluation aborted", err)
	}
	d := evalDepth(ctx) + 1
	if d > it.maxDepth {
		return nil, lerrors.New(lerrors.KindInternal, "max evaluation depth exceeded", nil).
			WithPayload("depth", d)
	}
	ctx = context.WithValue(ctx, depthKey{}, d)

	f, err := classify(program)
	if err != nil {
		return nil, err
	}
	switch f.kind {
	case formLiteral:
		return f.literal, nil
	case formVariable:
		return it.evalVariable(ctx, f, env)
	case formCall:
		return it.evalCall(ctx, f, env)
	case formSequence:
		return it.evalSequence(ctx, f, env)
	case formLet:
		return it.evalLet(ctx, f, env)
	default:
		return it.evalDefine(ctx, f, env)
	}
}

func (it *Interp) evalVariable(ctx context.Context, f form, env *core.Env) (any, error) {
	tool, ok := env.Lookup(f.name)
	if !ok {
		return nil, lerrors.New(lerrors.KindUnboundName, "unbound name \""+f.name+"\"", nil).
			WithPayload("name", f.name)
	}
	return tool.Invoke(ctx, nil, env)
}

func (it *Interp) evalCall(ctx context.Context, f form, env *core.Env) (any, error) {
	input, err := it.evalCallInput(ctx, f.input, env)
	if err != nil {
		return nil, err
	}
	tool, ok := env.Lookup(f.name)
	if !ok {
		return nil, lerrors.New(lerrors.KindUnknownTool, "unknown tool \""+f.name+"\"", nil).
			WithPayload("tool", f.name)
	}

	callCtx, span := it.tracer.Start(ctx, "Script.Call",
		trace.WithAttributes(
			attribute.String(telemetry.AttrToolName, f.name),
		),
	)
	started := time.Now()
	out, err := tool.Invoke(callCtx, input, env)
	duration := time.Since(started)
	span.SetAttributes(
		attribute.Float64(telemetry.AttrToolDurationMs, float64(duration)/float64(time.Millisecond)),
		attribute.Bool(telemetry.AttrToolSuccess, err == nil),
	)
	if err != nil {
		te := lerrors.AsToolError(err)
		span.SetAttributes(telemetry.ErrorAttributes(string(te.Kind), te.Recoverable)...)
	}
	span.End()

	event := core.NewEvent(ctx, core.EventToolInvoked, f.name, map[string]any{"input": input})
	event.Duration = duration
	if err != nil {
		event.Type = core.EventToolFailed
		event.Payload["error"] = lerrors.AsToolError(err).ToValue()
		it.emitter.Emit(ctx, event)
		return nil, err
	}
	event.Payload["output"] = out
	it.emitter.Emit(ctx, event)
	return out, nil
}

// evalCallInput evaluates a call's input program. An array in input
// position is an argument list: each element evaluates as its own program
// and the results keep their positions.
func (it *Interp) evalCallInput(ctx context.Context, input any, env *core.Env) (any, error) {
	items, ok := input.([]any)
	if !ok {
		return it.eval(ctx, input, env)
	}
	args := make([]any, len(items))
	for i, item := range items {
		arg, err := it.eval(ctx, item, env)
		if err != nil {
			return nil, err
		}
		args[i] = arg
	}
	return args, nil
}

func (it *Interp) evalSequence(ctx context.Context, f form, env *core.Env) (any, error) {
	var last any
	for _, item := range f.items {
		out, err := it.eval(ctx, item, env)
		if err != nil {
			return nil, err
		}
		last = out
	}
	return last, nil
}

func (it *Interp) evalLet(ctx context.Context, f form, env *core.Env) (any, error) {
	bound, err := it.eval(ctx, f.value, env)
	if err != nil {
		return nil, err
	}
	frame := env.Child()
	frame.Define(f.name, core.Constant(bound))
	return it.eval(ctx, f.in, frame)
}

// evalDefine delegates to the define-tool binding, so shadowing or
// undefining define-tool changes what the definition form does.
func (it *Interp) evalDefine(ctx context.Context, f form, env *core.Env) (any, error) {
	input := map[string]any{
		"name":   f.name,
		"script": f.script,
	}
	if f.params != nil {
		params := make([]any, len(f.params))
		for i, p := range f.params {
			params[i] = p
		}
		input["parameters"] = params
	}
	tool, ok := env.Lookup(DefineToolName)
	if !ok {
		return nil, lerrors.New(lerrors.KindUnknownTool, "unknown tool \""+DefineToolName+"\"", nil).
			WithPayload("tool", DefineToolName)
	}
	return tool.Invoke(ctx, input, env)
}

// EvaluateValue is a convenience for hosts that do not keep an interpreter:
// it evaluates program with a default Interp against env.
func EvaluateValue(ctx context.Context, program any, env *core.Env) (any, error) {
	return New().Evaluate(ctx, program, env)
}
