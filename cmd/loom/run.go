package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/loomkit/loom/pkg/config"
	"github.com/loomkit/loom/pkg/core"
	lerrors "github.com/loomkit/loom/pkg/errors"
	"github.com/loomkit/loom/pkg/script"
)

// runRun evaluates a program from a file, stdin or an inline argument.
func runRun(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	cmd := flag.NewFlagSet("run", flag.ContinueOnError)
	inline := cmd.String("e", "", "inline JSON program")
	if err := cmd.Parse(args); err != nil {
		fatal(err, global.JSON)
	}

	program, err := resolveProgram(*inline, cmd.Args())
	if err != nil {
		fatal(err, global.JSON)
	}

	rt, stop := startRuntime(ctx, global, cfg)
	defer stop()

	evalCtx, cancel := context.WithTimeout(ctx, global.Timeout)
	defer cancel()

	out, err := rt.Evaluate(evalCtx, program)
	if err != nil {
		stop()
		fatal(err, global.JSON)
	}
	printResult(out, global.JSON)
}

// runCall invokes a single tool: loom call <tool> [json-input].
func runCall(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	if len(args) == 0 {
		fatal(fmt.Errorf("usage: loom call <tool> [input]"), global.JSON)
	}
	name := args[0]
	var input any
	if len(args) > 1 {
		if err := json.Unmarshal([]byte(args[1]), &input); err != nil {
			fatal(lerrors.New(lerrors.KindInvalidInput, "input is not valid JSON", err), global.JSON)
		}
	}
	if len(args) > 2 {
		ensureNoArgs(args[2:], global.JSON)
	}

	rt, stop := startRuntime(ctx, global, cfg)
	defer stop()

	tool, ok := rt.Env().Lookup(name)
	if !ok {
		stop()
		fatal(lerrors.New(lerrors.KindUnknownTool, fmt.Sprintf("unknown tool %q", name), nil).
			WithPayload("tool", name), global.JSON)
	}

	callCtx, cancel := context.WithTimeout(ctx, global.Timeout)
	defer cancel()
	callCtx, _ = core.EnsureCallID(callCtx)

	out, err := tool.Invoke(callCtx, input, rt.Env())
	if err != nil {
		stop()
		fatal(err, global.JSON)
	}
	printResult(out, global.JSON)
}

// runTools lists the environment's bindings.
func runTools(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	ensureNoArgs(args, global.JSON)

	rt, stop := startRuntime(ctx, global, cfg)
	defer stop()

	env := rt.Env()
	names := env.Names()

	if global.JSON {
		type toolEntry struct {
			Name        string          `json:"name"`
			Description string          `json:"description,omitempty"`
			Schema      json.RawMessage `json:"schema,omitempty"`
		}
		out := make([]toolEntry, 0, len(names))
		for _, name := range names {
			entry := toolEntry{Name: name}
			if tool, ok := env.Lookup(name); ok {
				info := core.InfoOf(tool)
				entry.Description = info.Description
				entry.Schema = info.Schema
			}
			out = append(out, entry)
		}
		printJSON(out)
		return
	}

	writer := newTabWriter()
	writeRow(writer, "NAME", "DESCRIPTION")
	for _, name := range names {
		description := ""
		if tool, ok := env.Lookup(name); ok {
			description = core.InfoOf(tool).Description
		}
		writeRow(writer, name, truncateCell(description, 72))
	}
	_ = writer.Flush()
}

// runREPL reads one JSON program per line and prints each result.
func runREPL(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	ensureNoArgs(args, global.JSON)

	rt, stop := startRuntime(ctx, global, cfg)
	defer stop()

	fmt.Printf("loom %s - one JSON program per line, ctrl-d to exit\n", version)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		program, err := script.Parse([]byte(line))
		if err != nil {
			printError(err, global.JSON)
			continue
		}

		evalCtx, cancel := context.WithTimeout(ctx, global.Timeout)
		out, err := rt.Evaluate(evalCtx, program)
		cancel()
		if err != nil {
			printError(err, global.JSON)
			continue
		}
		printResult(out, true)
	}
	if err := scanner.Err(); err != nil {
		stop()
		fatal(err, global.JSON)
	}
}

// resolveProgram picks the program source: -e inline text, a file path,
// or "-" for stdin.
func resolveProgram(inline string, args []string) (any, error) {
	if inline != "" {
		if len(args) > 0 {
			return nil, fmt.Errorf("pass either -e or a file, not both")
		}
		return script.Parse([]byte(inline))
	}
	if len(args) != 1 {
		return nil, fmt.Errorf("usage: loom run <file> or loom run -e <program>")
	}
	if args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, err
		}
		return script.Parse(data)
	}
	return script.Load(args[0])
}

// printResult writes the value as JSON; bare strings stay bare in text
// mode so shell pipelines get the raw text.
func printResult(out any, asJSON bool) {
	if !asJSON {
		if s, ok := out.(string); ok {
			fmt.Println(s)
			return
		}
	}
	payload, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fatal(err, asJSON)
	}
	fmt.Println(string(payload))
}
