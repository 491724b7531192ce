// Copyright 2026 © The Loom Authors
// SPDX-License-Identifier: Apache-2.0

package script

import (
	"context"

	"github.com/loomkit/loom/pkg/core"
	lerrors "github.com/loomkit/loom/pkg/errors"
	"github.com/loomkit/loom/pkg/value"
)

// DefinedTool is a tool whose behavior is a program closed over the
// environment that was current at definition time. Because the capture is
// by reference, a defined tool sees later definitions in that environment,
// including its own binding, which is what makes recursion work.
type DefinedTool struct {
	interp   *Interp
	body     any
	params   []string
	captured *core.Env
}

// NewDefinedTool closes body over env. params lists the input members a
// call must provide; an empty list means the body only sees the implicit
// "input" binding.
func (it *Interp) NewDefinedTool(body any, params []string, env *core.Env) *DefinedTool {
	return &DefinedTool{
		interp:   it,
		body:     body,
		params:   append([]string(nil), params...),
		captured: env,
	}
}

// Body returns the program the tool evaluates.
func (d *DefinedTool) Body() any { return d.body }

// Params returns the declared parameter names in declaration order.
func (d *DefinedTool) Params() []string { return append([]string(nil), d.params...) }

// Invoke evaluates the captured body in a fresh child of the captured
// environment. The environment passed by the caller is deliberately
// ignored: a defined tool resolves names where it was defined, not where
// it is called.
func (d *DefinedTool) Invoke(ctx context.Context, input any, _ *core.Env) (any, error) {
	input = value.Normalize(input)
	frame := d.captured.Child()
	frame.Define("input", core.Constant(input))
	if err := d.bindParams(frame, input); err != nil {
		return nil, err
	}
	return d.interp.eval(ctx, d.body, frame)
}

func (d *DefinedTool) bindParams(frame *core.Env, input any) error {
	if len(d.params) == 0 {
		return nil
	}
	obj, isObject := input.(map[string]any)
	switch {
	case isObject:
		for _, p := range d.params {
			v, ok := obj[p]
			if !ok {
				return lerrors.New(lerrors.KindInvalidInput, "missing parameter \""+p+"\"", nil).
					WithPayload("parameter", p)
			}
			frame.Define(p, core.Constant(v))
		}
	case len(d.params) == 1:
		// A single declared parameter accepts a bare value.
		frame.Define(d.params[0], core.Constant(input))
	default:
		return lerrors.New(lerrors.KindInvalidInput, "input must be an object carrying the declared parameters", nil).
			WithPayload("parameters", d.params)
	}
	return nil
}
