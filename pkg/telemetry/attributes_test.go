// Copyright 2026 © The Loom Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func attrMap(attrs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value, len(attrs))
	for _, kv := range attrs {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestToolCallAttributes(t *testing.T) {
	attrs := attrMap(ToolCallAttributes("multiply", "call-1", "toolkit", 12.5, true))

	if got := attrs[AttrToolName].AsString(); got != "multiply" {
		t.Errorf("tool name = %q, want multiply", got)
	}
	if got := attrs[AttrToolCallID].AsString(); got != "call-1" {
		t.Errorf("call id = %q, want call-1", got)
	}
	if got := attrs[AttrToolSource].AsString(); got != "toolkit" {
		t.Errorf("source = %q, want toolkit", got)
	}
	if got := attrs[AttrToolDurationMs].AsFloat64(); got != 12.5 {
		t.Errorf("duration = %v, want 12.5", got)
	}
	if !attrs[AttrToolSuccess].AsBool() {
		t.Error("success = false, want true")
	}

	// Optional members are omitted when empty.
	attrs = attrMap(ToolCallAttributes("multiply", "", "", 1.0, false))
	if _, ok := attrs[AttrToolCallID]; ok {
		t.Error("empty call id should be omitted")
	}
	if _, ok := attrs[AttrToolSource]; ok {
		t.Error("empty source should be omitted")
	}
}

func TestToolPayloadAttributesTruncates(t *testing.T) {
	long := strings.Repeat("x", 600)
	attrs := attrMap(ToolPayloadAttributes(long, long, 0))

	in := attrs[AttrToolInput].AsString()
	if len(in) != 503 || !strings.HasSuffix(in, "...") {
		t.Errorf("input not truncated to default: len=%d", len(in))
	}

	attrs = attrMap(ToolPayloadAttributes("short", "", 100))
	if got := attrs[AttrToolInput].AsString(); got != "short" {
		t.Errorf("input = %q, want short", got)
	}
	if _, ok := attrs[AttrToolOutput]; ok {
		t.Error("empty output should be omitted")
	}
}

func TestEnvAttributes(t *testing.T) {
	attrs := attrMap(EnvAttributes([]string{"add", "print"}))
	if got := attrs[AttrEnvToolCount].AsInt64(); got != 2 {
		t.Errorf("tool count = %d, want 2", got)
	}
	names := attrs[AttrEnvToolNames].AsStringSlice()
	if len(names) != 2 || names[0] != "add" {
		t.Errorf("names = %v", names)
	}

	attrs = attrMap(EnvAttributes(nil))
	if _, ok := attrs[AttrEnvToolNames]; ok {
		t.Error("empty env should omit names")
	}
}

func TestErrorAttributes(t *testing.T) {
	attrs := attrMap(ErrorAttributes("TRANSPORT_FAILURE", true))
	if got := attrs[AttrErrorKind].AsString(); got != "TRANSPORT_FAILURE" {
		t.Errorf("kind = %q", got)
	}
	if !attrs[AttrErrorRecoverable].AsBool() {
		t.Error("recoverable = false, want true")
	}
}

func TestRunAttributes(t *testing.T) {
	attrs := attrMap(RunAttributes("run-7", "examples/double.json"))
	if got := attrs[AttrRunID].AsString(); got != "run-7" {
		t.Errorf("run id = %q", got)
	}
	if got := attrs[AttrProgramPath].AsString(); got != "examples/double.json" {
		t.Errorf("program path = %q", got)
	}

	if got := RunAttributes("", ""); len(got) != 0 {
		t.Errorf("empty run attributes = %v, want none", got)
	}
}
