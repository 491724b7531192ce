// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/loomkit/loom/pkg/core"
	lerrors "github.com/loomkit/loom/pkg/errors"
)

func TestNewRuntimeMetrics(t *testing.T) {
	rm, err := NewRuntimeMetrics(context.Background())
	if err != nil {
		t.Fatalf("failed to create runtime metrics: %v", err)
	}
	if rm == nil {
		t.Fatal("expected non-nil RuntimeMetrics")
	}
}

func TestRecordToolInvocation(t *testing.T) {
	rm, _ := NewRuntimeMetrics(context.Background())
	ctx := context.Background()

	rm.RecordToolInvocation(ctx, "multiply", 3*time.Millisecond, nil)
	rm.RecordToolInvocation(ctx, "flaky", 12*time.Millisecond,
		lerrors.New(lerrors.KindTransportFailure, "unreachable", nil))

	var nilMetrics *RuntimeMetrics
	nilMetrics.RecordToolInvocation(ctx, "multiply", time.Millisecond, nil)
}

func TestRecordError(t *testing.T) {
	rm, _ := NewRuntimeMetrics(context.Background())
	ctx := context.Background()

	rm.RecordError(ctx, lerrors.New(lerrors.KindToolFailure, "tool failed", nil), "script")
	rm.RecordError(ctx, context.Canceled, "serve")
	rm.RecordError(ctx, nil, "serve")

	var nilMetrics *RuntimeMetrics
	nilMetrics.RecordError(ctx, context.Canceled, "serve")
}

func TestRecordEvaluationAndHealth(t *testing.T) {
	rm, _ := NewRuntimeMetrics(context.Background())
	ctx := context.Background()

	rm.RecordEvaluation(ctx, nil)
	rm.RecordEvaluation(ctx, lerrors.New(lerrors.KindInternal, "boom", nil))
	rm.RecordHealthStatus(ctx, "audit", 2)
	rm.RecordHealthStatus(ctx, "mcp", 0)

	var nilMetrics *RuntimeMetrics
	nilMetrics.RecordEvaluation(ctx, nil)
	nilMetrics.RecordHealthStatus(ctx, "audit", 1)
}

func TestMetricsEmitter(t *testing.T) {
	rm, _ := NewRuntimeMetrics(context.Background())
	emitter := NewMetricsEmitter(rm)
	ctx := context.Background()

	emitter.Emit(ctx, core.NewEvent(ctx, core.EventEvalStarted, "", nil))
	emitter.Emit(ctx, core.NewEvent(ctx, core.EventToolInvoked, "print", map[string]any{"input": "hi"}))
	failure := lerrors.New(lerrors.KindUnknownTool, "unknown tool", nil)
	emitter.Emit(ctx, core.NewEvent(ctx, core.EventToolFailed, "ghost", map[string]any{
		"error": failure.ToValue(),
	}))
	emitter.Emit(ctx, core.NewEvent(ctx, core.EventEvalCompleted, "", nil))

	// Emitters degrade to no-ops without metrics behind them.
	NewMetricsEmitter(nil).Emit(ctx, core.NewEvent(ctx, core.EventToolInvoked, "print", nil))
}

func TestConcurrentMetrics(t *testing.T) {
	rm, _ := NewRuntimeMetrics(context.Background())
	ctx := context.Background()

	done := make(chan bool, 3)

	go func() {
		err := lerrors.New(lerrors.KindTransportFailure, "endpoint flapping", nil)
		for i := 0; i < 10; i++ {
			rm.RecordError(ctx, err, "mcp")
			rm.RecordToolInvocation(ctx, "remote-search", time.Millisecond, err)
		}
		done <- true
	}()

	go func() {
		for i := 0; i < 10; i++ {
			rm.RecordToolInvocation(ctx, "multiply", time.Millisecond, nil)
			rm.RecordEvaluation(ctx, nil)
		}
		done <- true
	}()

	go func() {
		for i := 0; i < 10; i++ {
			rm.RecordHealthStatus(ctx, "audit", int64(i%3))
		}
		done <- true
	}()

	<-done
	<-done
	<-done
}
