// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/loomkit/loom/pkg/core"
	lerrors "github.com/loomkit/loom/pkg/errors"
)

// RuntimeMetrics tracks evaluations, tool invocations and error rates for
// production monitoring.
type RuntimeMetrics struct {
	// evalCounter tracks completed top-level evaluations by outcome
	evalCounter metric.Int64Counter

	// toolCounter tracks tool invocations by tool and outcome
	toolCounter metric.Int64Counter

	// toolDuration tracks tool invocation latency in milliseconds
	toolDuration metric.Float64Histogram

	// errorCounter tracks errors by kind and component
	errorCounter metric.Int64Counter

	// healthStatusGauge tracks component health (0=unhealthy, 1=degraded, 2=healthy)
	healthStatusGauge metric.Int64Gauge
}

// NewRuntimeMetrics creates a metrics tracker on the global meter provider.
func NewRuntimeMetrics(_ context.Context) (*RuntimeMetrics, error) {
	meter := otel.Meter("loom/runtime")

	evalCounter, err := meter.Int64Counter(
		"loom.evaluations.total",
		metric.WithDescription("Completed top-level evaluations by outcome"),
	)
	if err != nil {
		return nil, err
	}

	toolCounter, err := meter.Int64Counter(
		"loom.tool.invocations.total",
		metric.WithDescription("Tool invocations by tool name and outcome"),
	)
	if err != nil {
		return nil, err
	}

	toolDuration, err := meter.Float64Histogram(
		"loom.tool.duration_ms",
		metric.WithDescription("Tool invocation latency in milliseconds"),
	)
	if err != nil {
		return nil, err
	}

	errorCounter, err := meter.Int64Counter(
		"loom.errors.total",
		metric.WithDescription("Errors by kind and component"),
	)
	if err != nil {
		return nil, err
	}

	healthStatusGauge, err := meter.Int64Gauge(
		"loom.health.status",
		metric.WithDescription("Component health status (0=unhealthy, 1=degraded, 2=healthy)"),
	)
	if err != nil {
		return nil, err
	}

	return &RuntimeMetrics{
		evalCounter:       evalCounter,
		toolCounter:       toolCounter,
		toolDuration:      toolDuration,
		errorCounter:      errorCounter,
		healthStatusGauge: healthStatusGauge,
	}, nil
}

// RecordEvaluation counts a completed top-level evaluation.
func (rm *RuntimeMetrics) RecordEvaluation(ctx context.Context, err error) {
	if rm == nil {
		return
	}
	rm.evalCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome(err))),
	)
}

// RecordToolInvocation counts one tool invocation and its latency.
func (rm *RuntimeMetrics) RecordToolInvocation(ctx context.Context, tool string, duration time.Duration, err error) {
	if rm == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("outcome", outcome(err)),
	)
	rm.toolCounter.Add(ctx, 1, attrs)
	rm.toolDuration.Record(ctx, float64(duration)/float64(time.Millisecond),
		metric.WithAttributes(attribute.String("tool", tool)),
	)
}

// RecordError counts an error by kind for the given component.
func (rm *RuntimeMetrics) RecordError(ctx context.Context, err error, component string) {
	if rm == nil || err == nil {
		return
	}
	kind := string(lerrors.KindInternal)
	recoverable := "unknown"
	var te *lerrors.ToolError
	if errors.As(err, &te) {
		kind = string(te.Kind)
		if te.Recoverable {
			recoverable = "true"
		} else {
			recoverable = "false"
		}
	}
	rm.errorCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("error.kind", kind),
			attribute.String("component", component),
			attribute.String("recoverable", recoverable),
		),
	)
}

// RecordHealthStatus records the health status of a component
// (0=unhealthy, 1=degraded, 2=healthy).
func (rm *RuntimeMetrics) RecordHealthStatus(ctx context.Context, component string, status int64) {
	if rm == nil {
		return
	}
	rm.healthStatusGauge.Record(ctx, status,
		metric.WithAttributes(attribute.String("component", component)),
	)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// MetricsEmitter bridges interpreter events onto runtime metrics, so an
// interpreter configured with it feeds the counters without knowing about
// them.
type MetricsEmitter struct {
	metrics *RuntimeMetrics
}

// NewMetricsEmitter creates an event emitter backed by metrics.
func NewMetricsEmitter(metrics *RuntimeMetrics) *MetricsEmitter {
	return &MetricsEmitter{metrics: metrics}
}

// Emit implements core.EventEmitter.
func (m *MetricsEmitter) Emit(ctx context.Context, event core.Event) {
	if m == nil || m.metrics == nil {
		return
	}
	switch event.Type {
	case core.EventEvalCompleted:
		var err error
		if _, failed := event.Payload["error"]; failed {
			err = lerrors.New(lerrors.KindInternal, "evaluation failed", nil)
		}
		m.metrics.RecordEvaluation(ctx, err)
	case core.EventToolInvoked:
		m.metrics.RecordToolInvocation(ctx, event.Tool, event.Duration, nil)
	case core.EventToolFailed:
		failure := lerrors.New(lerrors.KindToolFailure, "tool failed", nil)
		if errValue, ok := event.Payload["error"].(map[string]any); ok {
			if kind, ok := errValue["kind"].(string); ok {
				failure = lerrors.New(lerrors.ErrorKind(kind), "tool failed", nil)
			}
		}
		m.metrics.RecordToolInvocation(ctx, event.Tool, event.Duration, failure)
		m.metrics.RecordError(ctx, failure, "script")
	}
}
