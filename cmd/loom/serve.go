package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/loomkit/loom/pkg/config"
	"github.com/loomkit/loom/pkg/serve"
)

// runServe exposes the environment over the HTTP JSON API until the
// context is cancelled.
func runServe(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	cmd := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := cmd.String("addr", cfg.Serve.Addr, "listen address")
	watch := cmd.Bool("watch", false, "watch config files for changes and hot-reload")
	if err := cmd.Parse(args); err != nil {
		fatal(err, global.JSON)
	}
	ensureNoArgs(cmd.Args(), global.JSON)

	rt, stop := startRuntime(ctx, global, cfg)
	defer stop()

	reloadable := config.NewReloadableConfig(cfg)
	var watcher *config.Watcher
	if *watch {
		path := findConfigPath(global.ConfigArgs)
		if path == "" {
			rt.Logger().Warn("--watch needs a --config path, skipping")
		} else {
			var err error
			watcher, _, err = config.WatchConfig(ctx, path,
				config.WithWatchLogger(rt.Logger()),
			)
			if err != nil {
				rt.Logger().Warn("config watch unavailable", "error", err)
			} else {
				watcher.OnChange(func(next *config.Config) {
					reloadable.Update(next)
					rt.ApplyLogConfig(next.Log)
				})
				rt.Logger().Info("watching config", slog.String("path", path))
			}
		}
	}
	defer func() {
		if watcher != nil {
			watcher.Stop()
		}
	}()

	service := serve.NewService(rt.Env(), rt.Interp(),
		serve.WithLogger(rt.Logger()),
		serve.WithRequestTimeout(global.Timeout),
		serve.WithHealthProvider(rt.Health()),
	)
	server := &http.Server{
		Addr:              *addr,
		Handler:           service.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		rt.Logger().Info("http server listening", slog.String("addr", *addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			rt.Logger().Error("http shutdown", "error", err)
		}
		<-errCh
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			stop()
			fatal(fmt.Errorf("http server: %w", err), global.JSON)
		}
	}
}

// findConfigPath extracts the --config value from the raw config args.
func findConfigPath(args []string) string {
	for i, arg := range args {
		if arg == "--config" && i+1 < len(args) {
			return args[i+1]
		}
		if strings.HasPrefix(arg, "--config=") {
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	return ""
}

// runMCP exposes the environment as an MCP server on stdio.
func runMCP(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	ensureNoArgs(args, global.JSON)

	rt, stop := startRuntime(ctx, global, cfg)
	defer stop()

	srv := serve.NewMCPServer("loom", version, rt.Env())
	rt.Logger().Info("mcp server on stdio", slog.Int("tools", len(rt.Env().Names())))
	if err := srv.ServeStdio(); err != nil {
		stop()
		fatal(fmt.Errorf("mcp server: %w", err), global.JSON)
	}
}
