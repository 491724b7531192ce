// Package main implements the loom CLI.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/loomkit/loom/pkg/config"
	"github.com/loomkit/loom/pkg/runtime"
)

const version = "0.1.0"

type globalFlags struct {
	ConfigArgs []string
	Timeout    time.Duration
	JSON       bool
	Help       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	global, args, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		fatal(err, global.JSON)
	}
	if global.Help || len(args) == 0 {
		printUsage()
		return
	}

	cfg, err := config.LoadWithCLI(global.ConfigArgs)
	if err != nil {
		fatal(NewConfigError(err), global.JSON)
	}

	switch cmd := args[0]; cmd {
	case "run":
		runRun(ctx, global, cfg, args[1:])
	case "call":
		runCall(ctx, global, cfg, args[1:])
	case "tools":
		runTools(ctx, global, cfg, args[1:])
	case "repl":
		runREPL(ctx, global, cfg, args[1:])
	case "serve":
		runServe(ctx, global, cfg, args[1:])
	case "mcp":
		runMCP(ctx, global, cfg, args[1:])
	case "version":
		printVersion(global.JSON)
	case "help":
		printUsage()
	default:
		fatal(fmt.Errorf("unknown command %q", cmd), global.JSON)
	}
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	flags := globalFlags{
		Timeout: 30 * time.Second,
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return flags, args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		switch {
		case arg == "-h" || arg == "--help":
			flags.Help = true
			return flags, nil, nil
		case arg == "--json":
			flags.JSON = true
		case arg == "--config":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --config")
			}
			flags.ConfigArgs = append(flags.ConfigArgs, arg, args[i+1])
			i++
		case strings.HasPrefix(arg, "--config="):
			flags.ConfigArgs = append(flags.ConfigArgs, arg)
		case arg == "--profile" || arg == "--env":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for %s", arg)
			}
			flags.ConfigArgs = append(flags.ConfigArgs, arg, args[i+1])
			i++
		case strings.HasPrefix(arg, "--profile=") || strings.HasPrefix(arg, "--env="):
			flags.ConfigArgs = append(flags.ConfigArgs, arg)
		case arg == "--set":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --set")
			}
			flags.ConfigArgs = append(flags.ConfigArgs, arg, args[i+1])
			i++
		case strings.HasPrefix(arg, "--set="):
			flags.ConfigArgs = append(flags.ConfigArgs, arg)
		case arg == "--timeout":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --timeout")
			}
			value, err := time.ParseDuration(args[i+1])
			if err != nil {
				return flags, nil, fmt.Errorf("invalid --timeout: %w", err)
			}
			flags.Timeout = value
			i++
		case strings.HasPrefix(arg, "--timeout="):
			value, err := time.ParseDuration(strings.TrimPrefix(arg, "--timeout="))
			if err != nil {
				return flags, nil, fmt.Errorf("invalid --timeout: %w", err)
			}
			flags.Timeout = value
		default:
			return flags, nil, fmt.Errorf("unknown global flag %q", arg)
		}
	}
	return flags, nil, nil
}

// startRuntime builds and starts a runtime, exiting on failure. The
// returned stop function must run before the process exits normally.
func startRuntime(ctx context.Context, global globalFlags, cfg *config.Config) (*runtime.Runtime, func()) {
	rt := runtime.New(cfg)
	if err := rt.Start(ctx); err != nil {
		fatal(err, global.JSON)
	}
	return rt, func() {
		if err := rt.Stop(context.WithoutCancel(ctx)); err != nil {
			rt.Logger().Error("runtime stop", "error", err)
		}
	}
}

func printJSON(value any) {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		fatal(err, false)
	}
	fmt.Println(string(payload))
}

func newTabWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
}

func writeRow(writer *tabwriter.Writer, cols ...string) {
	for i, col := range cols {
		cols[i] = normalizeCell(col)
	}
	fmt.Fprintln(writer, strings.Join(cols, "\t"))
}

func normalizeCell(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return strings.Join(strings.Fields(value), " ")
}

func truncateCell(value string, limit int) string {
	value = normalizeCell(value)
	if limit <= 0 || len(value) <= limit {
		return value
	}
	if limit <= 3 {
		return value[:limit]
	}
	return value[:limit-3] + "..."
}

func printVersion(asJSON bool) {
	if asJSON {
		printJSON(map[string]string{"version": version})
		return
	}
	fmt.Println(version)
}

func printUsage() {
	fmt.Println(`loom - JSON composition runtime

Usage:
  loom [global flags] <command> [args]

Global flags:
  --config <path>      Path to config.yaml
  --profile <name>     Config profile overlay (alias --env)
  --set key=value      Override config (repeatable)
  --timeout <dur>      Evaluation timeout (default 30s)
  --json               JSON output

Commands:
  run <file>           Evaluate a program file (JSON or YAML, - for stdin)
  run -e <program>     Evaluate an inline JSON program
  call <tool> [input]  Invoke one tool with a JSON input (default null)
  tools                List environment bindings
  repl                 Interactive read-eval-print loop
  serve [--addr :p]    Serve the environment over HTTP
  mcp                  Serve the environment over MCP stdio
  version              Print the version`)
}

func ensureNoArgs(args []string, asJSON bool) {
	if len(args) > 0 {
		fatal(fmt.Errorf("unexpected args: %v", args), asJSON)
	}
}
