// Copyright 2026 © The Loom Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry provides OpenTelemetry integration: SDK setup,
// trace-aware logging and the semantic attributes used on runtime spans.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Semantic conventions for runtime telemetry. These follow OpenTelemetry
// naming conventions where applicable.
const (
	// Tool invocation attributes
	AttrToolName       = "loom.tool.name"
	AttrToolCallID     = "loom.tool.call_id"
	AttrToolInput      = "loom.tool.input"
	AttrToolOutput     = "loom.tool.output"
	AttrToolDurationMs = "loom.tool.duration_ms"
	AttrToolSuccess    = "loom.tool.success"
	AttrToolSource     = "loom.tool.source" // "builtin", "toolkit", "defined", "mcp", "http"

	// Evaluation attributes
	AttrRunID       = "loom.run.id"
	AttrProgramPath = "loom.program.path"
	AttrEvalDepth   = "loom.eval.depth"

	// Environment attributes
	AttrEnvToolCount = "loom.env.tool_count"
	AttrEnvToolNames = "loom.env.tool_names"

	// Error attributes
	AttrErrorKind        = "loom.error.kind"
	AttrErrorRecoverable = "loom.error.recoverable"

	// Serving attributes
	AttrServeTransport = "loom.serve.transport" // "http", "mcp"
	AttrServeRoute     = "loom.serve.route"
)

// ToolCallAttributes returns attributes for a tool invocation span.
func ToolCallAttributes(name, callID, source string, durationMs float64, success bool) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrToolName, name),
		attribute.Float64(AttrToolDurationMs, durationMs),
		attribute.Bool(AttrToolSuccess, success),
	}
	if callID != "" {
		attrs = append(attrs, attribute.String(AttrToolCallID, callID))
	}
	if source != "" {
		attrs = append(attrs, attribute.String(AttrToolSource, source))
	}
	return attrs
}

// ToolPayloadAttributes returns input/output attributes, truncated so a
// large value cannot bloat the span.
func ToolPayloadAttributes(input, output string, maxLen int) []attribute.KeyValue {
	if maxLen <= 0 {
		maxLen = 500
	}
	attrs := []attribute.KeyValue{}
	if input != "" {
		if len(input) > maxLen {
			input = input[:maxLen] + "..."
		}
		attrs = append(attrs, attribute.String(AttrToolInput, input))
	}
	if output != "" {
		if len(output) > maxLen {
			output = output[:maxLen] + "..."
		}
		attrs = append(attrs, attribute.String(AttrToolOutput, output))
	}
	return attrs
}

// EnvAttributes returns attributes describing a bound environment.
func EnvAttributes(names []string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int(AttrEnvToolCount, len(names)),
	}
	if len(names) > 0 {
		attrs = append(attrs, attribute.StringSlice(AttrEnvToolNames, names))
	}
	return attrs
}

// ErrorAttributes returns attributes for a failed invocation.
func ErrorAttributes(kind string, recoverable bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrErrorKind, kind),
		attribute.Bool(AttrErrorRecoverable, recoverable),
	}
}

// RunAttributes returns attributes for a top-level evaluation span.
func RunAttributes(runID, programPath string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{}
	if runID != "" {
		attrs = append(attrs, attribute.String(AttrRunID, runID))
	}
	if programPath != "" {
		attrs = append(attrs, attribute.String(AttrProgramPath, programPath))
	}
	return attrs
}
