// Package runtime assembles a configured interpreter: the root
// environment with the standard toolkit, remote toolsets from MCP
// servers and HTTP services, the audit trail and telemetry. It owns the
// lifecycle of everything it opens.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/loomkit/loom/pkg/audit"
	"github.com/loomkit/loom/pkg/config"
	"github.com/loomkit/loom/pkg/core"
	"github.com/loomkit/loom/pkg/httptool"
	"github.com/loomkit/loom/pkg/mcptool"
	"github.com/loomkit/loom/pkg/script"
	"github.com/loomkit/loom/pkg/telemetry"
	"github.com/loomkit/loom/pkg/toolkit"
)

// Runtime wires configuration into a ready-to-evaluate environment.
type Runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	logLevel *slog.LevelVar

	interp *script.Interp
	env    *core.Env
	store  audit.Store
	health *core.DefaultHealthCheckProvider

	closers      []func() error
	teleShutdown telemetry.ShutdownFunc
	started      bool
}

// Option configures the runtime.
type Option func(*Runtime)

// WithLogger overrides the logger built from the log config.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
			r.logLevel = nil
		}
	}
}

// New creates a runtime for the given configuration. Nothing is opened
// until Start.
func New(cfg *config.Config, opts ...Option) *Runtime {
	if cfg == nil {
		cfg = &config.Config{}
	}
	r := &Runtime{
		cfg:    cfg,
		health: core.NewDefaultHealthCheckProvider(),
	}
	r.logger, r.logLevel = newLeveledLogger(cfg.Log)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewLogger builds an slog.Logger from the log configuration.
func NewLogger(cfg config.LogConfig) *slog.Logger {
	logger, _ := newLeveledLogger(cfg)
	return logger
}

// newLeveledLogger builds the trace-aware handler with the level behind
// a LevelVar so hot reload can adjust it without swapping handlers.
func newLeveledLogger(cfg config.LogConfig) (*slog.Logger, *slog.LevelVar) {
	level := new(slog.LevelVar)
	level.Set(telemetry.ParseLevel(cfg.Level))
	return slog.New(telemetry.NewSlogHandler(os.Stderr, level, cfg.Format)), level
}

// ApplyLogConfig adjusts the log level in place. No-op when the logger
// was injected with WithLogger.
func (r *Runtime) ApplyLogConfig(cfg config.LogConfig) {
	if r.logLevel == nil {
		return
	}
	r.logLevel.Set(telemetry.ParseLevel(cfg.Level))
}

// Start opens the audit store, initializes telemetry, builds the root
// environment and connects the configured remote toolsets.
func (r *Runtime) Start(ctx context.Context) error {
	if r.started {
		return errors.New("runtime already started")
	}

	if r.cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitWithConfig("loom", "0.1.0", telemetry.Config{
			Exporter:     r.cfg.Telemetry.Exporter,
			OTLPEndpoint: r.cfg.Telemetry.OTLPEndpoint,
			OTLPInsecure: r.cfg.Telemetry.OTLPInsecure,
			OTLPHeaders:  r.cfg.Telemetry.OTLPHeaders,
			OTLPUser:     r.cfg.Telemetry.OTLPUser,
			OTLPToken:    r.cfg.Telemetry.OTLPToken,
		})
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		r.teleShutdown = shutdown
	}

	emitters := make([]core.EventEmitter, 0, 2)
	if r.cfg.Audit.Enabled {
		store, err := openAuditStore(r.cfg.Audit)
		if err != nil {
			r.shutdown(ctx)
			return err
		}
		r.store = store
		if closer, ok := store.(interface{ Close() error }); ok {
			r.closers = append(r.closers, closer.Close)
		}
		emitters = append(emitters, audit.NewRecorder(store, r.logger))
		r.health.RegisterChecker("audit", auditChecker(store))
	}
	if r.cfg.Telemetry.Enabled {
		metrics, err := telemetry.NewRuntimeMetrics(ctx)
		if err != nil {
			r.shutdown(ctx)
			return fmt.Errorf("init metrics: %w", err)
		}
		emitters = append(emitters, telemetry.NewMetricsEmitter(metrics))
	}

	interpOpts := []script.Option{
		script.WithEmitter(core.CombineEmitters(emitters...)),
	}
	if r.cfg.Script.MaxDepth > 0 {
		interpOpts = append(interpOpts, script.WithMaxDepth(r.cfg.Script.MaxDepth))
	}
	r.interp = script.New(interpOpts...)
	r.env = r.interp.NewEnv()
	r.env.Install(toolkit.Default())

	if err := r.connectMCP(ctx); err != nil {
		r.shutdown(ctx)
		return err
	}
	if err := r.connectHTTP(ctx); err != nil {
		r.shutdown(ctx)
		return err
	}

	r.started = true
	r.logger.Info("runtime started",
		slog.Int("tools", len(r.env.Names())),
		slog.Bool("audit", r.cfg.Audit.Enabled),
		slog.Bool("telemetry", r.cfg.Telemetry.Enabled),
	)
	return nil
}

// Stop closes remote clients, the audit store and telemetry.
func (r *Runtime) Stop(ctx context.Context) error {
	if !r.started {
		return nil
	}
	r.started = false
	return r.shutdown(ctx)
}

// Env returns the root environment. Valid after Start.
func (r *Runtime) Env() *core.Env { return r.env }

// Interp returns the interpreter. Valid after Start.
func (r *Runtime) Interp() *script.Interp { return r.interp }

// AuditStore returns the audit store, or nil when auditing is disabled.
func (r *Runtime) AuditStore() audit.Store { return r.store }

// Health returns the provider aggregating the runtime's component
// checks: the audit store plus every connected MCP and HTTP toolset.
func (r *Runtime) Health() core.HealthCheckProvider { return r.health }

// Logger returns the runtime logger.
func (r *Runtime) Logger() *slog.Logger { return r.logger }

// Evaluate runs a program against the root environment.
func (r *Runtime) Evaluate(ctx context.Context, program any) (any, error) {
	if !r.started {
		return nil, errors.New("runtime not started")
	}
	return r.interp.Evaluate(ctx, program, r.env)
}

func (r *Runtime) connectMCP(ctx context.Context) error {
	for _, server := range r.cfg.MCP.Servers {
		client, err := dialMCP(server)
		if err != nil {
			return fmt.Errorf("mcp server %q: %w", server.Name, err)
		}
		r.closers = append(r.closers, client.Close)

		set, err := mcptool.Toolset(ctx, server.Name, client, server.Name)
		if err != nil {
			return fmt.Errorf("mcp server %q: %w", server.Name, err)
		}
		r.env.Install(set)
		r.health.RegisterChecker("mcp."+server.Name, mcpChecker(client))
		r.logger.Info("mcp toolset connected",
			slog.String("server", server.Name),
			slog.String("transport", server.Transport),
		)
	}
	return nil
}

func dialMCP(server config.MCPServerConfig) (*mcptool.Client, error) {
	switch server.Transport {
	case "", "stdio":
		if server.Command == "" {
			return nil, errors.New("stdio transport requires a command")
		}
		return mcptool.NewClientWithStdio(server.Command, server.Args)
	case "http":
		if server.URL == "" {
			return nil, errors.New("http transport requires a url")
		}
		return mcptool.NewClientWithHTTP(server.URL)
	default:
		return nil, fmt.Errorf("unknown mcp transport %q", server.Transport)
	}
}

func (r *Runtime) connectHTTP(ctx context.Context) error {
	for _, service := range r.cfg.HTTP.Services {
		opts := []httptool.Option{}
		if service.TimeoutMs > 0 {
			opts = append(opts, httptool.WithHTTPClient(&http.Client{
				Timeout: time.Duration(service.TimeoutMs) * time.Millisecond,
			}))
		}
		client, err := httptool.New(service.URL, opts...)
		if err != nil {
			return fmt.Errorf("http service %q: %w", service.Name, err)
		}
		set, err := httptool.Toolset(ctx, service.Name, client, service.Name)
		if err != nil {
			return fmt.Errorf("http service %q: %w", service.Name, err)
		}
		r.env.Install(set)
		r.health.RegisterChecker("http."+service.Name, httpChecker(client))
		r.logger.Info("http toolset connected", slog.String("service", service.Name))
	}
	return nil
}

func auditChecker(store audit.Store) core.HealthChecker {
	return core.HealthCheckFunc(func(ctx context.Context) core.HealthResult {
		if _, err := store.List(ctx, audit.Filter{Limit: 1}); err != nil {
			return core.HealthResult{
				Status:  core.HealthUnhealthy,
				Message: "audit store query failed",
				Error:   err,
			}
		}
		return core.HealthResult{Status: core.HealthHealthy}
	})
}

func mcpChecker(client *mcptool.Client) core.HealthChecker {
	return core.HealthCheckFunc(func(ctx context.Context) core.HealthResult {
		if _, err := client.ListTools(ctx); err != nil {
			return core.HealthResult{
				Status:  core.HealthUnhealthy,
				Message: "mcp session unreachable",
				Error:   err,
			}
		}
		return core.HealthResult{Status: core.HealthHealthy}
	})
}

func httpChecker(client *httptool.Client) core.HealthChecker {
	return core.HealthCheckFunc(func(ctx context.Context) core.HealthResult {
		if _, err := client.ListTools(ctx); err != nil {
			return core.HealthResult{
				Status:  core.HealthUnhealthy,
				Message: "service unreachable",
				Error:   err,
			}
		}
		return core.HealthResult{Status: core.HealthHealthy}
	})
}

func openAuditStore(cfg config.AuditConfig) (audit.Store, error) {
	switch cfg.Store {
	case "", "memory":
		return audit.NewMemoryStore(), nil
	case "sqlite":
		store, err := audit.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open audit store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown audit store %q", cfg.Store)
	}
}

func (r *Runtime) shutdown(ctx context.Context) error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	if r.teleShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := r.teleShutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		r.teleShutdown = nil
	}
	if len(errs) > 0 {
		return fmt.Errorf("runtime shutdown errors: %v", errs)
	}
	return nil
}
