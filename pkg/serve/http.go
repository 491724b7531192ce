// Package serve exposes an environment over dispatch surfaces: an HTTP
// JSON API and an MCP server. Both turn an incoming request into a
// (tool name, input) pair or a program, run it against the environment,
// and serialize the value or the full tool error back out.
package serve

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/codes"

	"github.com/loomkit/loom/pkg/core"
	lerrors "github.com/loomkit/loom/pkg/errors"
	"github.com/loomkit/loom/pkg/script"
	"github.com/loomkit/loom/pkg/telemetry"
)

// Service is the HTTP dispatcher over a root environment.
type Service struct {
	env     *core.Env
	interp  *script.Interp
	logger  *slog.Logger
	tracer  trace.Tracer
	timeout time.Duration
	health  core.HealthCheckProvider
}

// Option configures the service.
type Option func(*Service)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRequestTimeout bounds each request's evaluation. Zero disables the
// per-request deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.timeout = d
	}
}

// WithHealthProvider makes /healthz report the provider's aggregated
// component status instead of a static ok.
func WithHealthProvider(provider core.HealthCheckProvider) Option {
	return func(s *Service) {
		s.health = provider
	}
}

// NewService creates a dispatcher over env. Programs posted to /v1/eval
// run through interp; tool invocations go straight through the
// environment.
func NewService(env *core.Env, interp *script.Interp, opts ...Option) *Service {
	s := &Service{
		env:     env,
		interp:  interp,
		logger:  slog.Default(),
		tracer:  otel.Tracer("loom/serve"),
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the chi router for the service.
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/tools", s.handleListTools)
		r.Post("/tools/{name}", s.handleInvoke)
		r.Post("/eval", s.handleEval)
	})
	return r
}

type toolSummary struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Schema      json.RawMessage `json:"schema,omitempty"`
}

type resultEnvelope struct {
	CallID string `json:"call_id"`
	Result any    `json:"result"`
}

type errorEnvelope struct {
	CallID string         `json:"call_id,omitempty"`
	Error  map[string]any `json:"error"`
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": string(core.HealthHealthy)})
		return
	}
	results, overall := s.health.CheckAll(r.Context())
	components := make([]map[string]any, 0, len(results))
	for _, result := range results {
		entry := map[string]any{
			"component": result.Component,
			"status":    string(result.Status),
		}
		if result.Message != "" {
			entry["message"] = result.Message
		}
		if result.Error != nil {
			entry["error"] = result.Error.Error()
		}
		components = append(components, entry)
	}
	status := http.StatusOK
	if overall == core.HealthUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status":     string(overall),
		"components": components,
	})
}

func (s *Service) handleListTools(w http.ResponseWriter, r *http.Request) {
	names := s.env.Names()
	out := make([]toolSummary, 0, len(names))
	for _, name := range names {
		summary := toolSummary{Name: name}
		if tool, ok := s.env.Lookup(name); ok {
			info := core.InfoOf(tool)
			summary.Description = info.Description
			summary.Schema = info.Schema
		}
		out = append(out, summary)
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": out})
}

func (s *Service) handleInvoke(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	ctx, callID := core.EnsureCallID(r.Context())
	if s.timeout > 0 {
		var cancel func()
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var input any
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.writeError(w, callID, lerrors.New(lerrors.KindInvalidInput, "request body is not valid JSON", err))
		return
	}

	tool, ok := s.env.Lookup(name)
	if !ok {
		s.writeError(w, callID, lerrors.New(lerrors.KindUnknownTool, "unknown tool \""+name+"\"", nil).
			WithPayload("tool", name))
		return
	}

	ctx, span := s.tracer.Start(ctx, "Serve.Invoke",
		trace.WithAttributes(
			attribute.String(telemetry.AttrToolName, name),
			attribute.String(telemetry.AttrToolCallID, callID),
			attribute.String(telemetry.AttrServeTransport, "http"),
		),
	)
	defer span.End()

	started := time.Now()
	out, err := tool.Invoke(ctx, input, s.env)
	s.logRequest(r, name, callID, time.Since(started), err)
	if err != nil {
		s.writeError(w, callID, err)
		return
	}
	writeJSON(w, http.StatusOK, resultEnvelope{CallID: callID, Result: out})
}

func (s *Service) handleEval(w http.ResponseWriter, r *http.Request) {
	ctx, callID := core.EnsureCallID(r.Context())
	if s.timeout > 0 {
		var cancel func()
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var program any
	if err := json.NewDecoder(r.Body).Decode(&program); err != nil {
		s.writeError(w, callID, lerrors.New(lerrors.KindInvalidInput, "request body is not valid JSON", err))
		return
	}
	if err := script.Check(program); err != nil {
		s.writeError(w, callID, err)
		return
	}

	ctx, span := s.tracer.Start(ctx, "Serve.Eval",
		trace.WithAttributes(
			attribute.String(telemetry.AttrToolCallID, callID),
			attribute.String(telemetry.AttrServeTransport, "http"),
		),
	)
	defer span.End()

	started := time.Now()
	out, err := s.interp.Evaluate(ctx, program, s.env)
	s.logRequest(r, "eval", callID, time.Since(started), err)
	if err != nil {
		s.writeError(w, callID, err)
		return
	}
	writeJSON(w, http.StatusOK, resultEnvelope{CallID: callID, Result: out})
}

// writeError emits the full tool error, kind and payload included, so
// clients can react to the exact failure rather than a generic message.
func (s *Service) writeError(w http.ResponseWriter, callID string, err error) {
	te := lerrors.AsToolError(err)
	writeJSON(w, te.StatusCode, errorEnvelope{CallID: callID, Error: te.ToValue()})
}

func (s *Service) logRequest(r *http.Request, operation, callID string, duration time.Duration, err error) {
	attrs := []any{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("operation", operation),
		slog.String("call_id", callID),
		slog.Duration("duration", duration),
	}
	if err != nil {
		te := lerrors.AsToolError(err)
		attrs = append(attrs,
			slog.String("error_kind", string(te.Kind)),
			slog.String("grpc_code", kindToGRPCCode(te.Kind).String()),
			slog.String("error", te.Message),
		)
		s.logger.Error("serve.request.failed", attrs...)
		return
	}
	s.logger.Info("serve.request", attrs...)
}

// kindToGRPCCode mirrors the error kind as a gRPC status code for
// structured logs and cross-transport consistency.
func kindToGRPCCode(kind lerrors.ErrorKind) codes.Code {
	switch kind {
	case lerrors.KindUnknownTool, lerrors.KindUnboundName:
		return codes.NotFound
	case lerrors.KindInvalidInput:
		return codes.InvalidArgument
	case lerrors.KindTransportFailure:
		return codes.Unavailable
	case lerrors.KindCancelled:
		return codes.Canceled
	case lerrors.KindToolFailure:
		return codes.Unknown
	default:
		return codes.Internal
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
