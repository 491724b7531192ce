// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"os"

	lerrors "github.com/loomkit/loom/pkg/errors"
)

// Exit codes distinguish the caller's mistakes from infrastructure
// trouble, so scripts can branch on them.
const (
	exitOK        = 0
	exitFailure   = 1
	exitLogic     = 2
	exitTransport = 3
	exitCancelled = 4
)

// exitCodeFor maps a failure to the process exit code.
func exitCodeFor(err error) int {
	if err == nil {
		return exitOK
	}
	switch lerrors.KindOf(err) {
	case lerrors.KindUnknownTool, lerrors.KindUnboundName, lerrors.KindInvalidInput:
		return exitLogic
	case lerrors.KindTransportFailure:
		return exitTransport
	case lerrors.KindCancelled:
		return exitCancelled
	default:
		return exitFailure
	}
}

// hintFor suggests a next step for the common failure kinds.
func hintFor(err error) string {
	switch lerrors.KindOf(err) {
	case lerrors.KindUnknownTool, lerrors.KindUnboundName:
		return "run 'loom tools' to list available bindings"
	case lerrors.KindInvalidInput:
		return "check the tool's schema with 'loom tools --json'"
	case lerrors.KindTransportFailure:
		return "check that the remote server is running and reachable"
	case lerrors.KindCancelled:
		return "try increasing the timeout with --timeout"
	default:
		return ""
	}
}

// NewConfigError wraps a configuration loading failure.
func NewConfigError(err error) error {
	return lerrors.New(lerrors.KindInvalidInput, "configuration error", err)
}

// printError renders the failure and its hint to stderr.
func printError(err error, asJSON bool) {
	te := lerrors.AsToolError(err)
	if asJSON {
		out := map[string]any{"error": te.ToValue()}
		if hint := hintFor(err); hint != "" {
			out["hint"] = hint
		}
		payload, merr := json.Marshal(out)
		if merr != nil {
			fmt.Fprintln(os.Stderr, te.Error())
			return
		}
		fmt.Fprintln(os.Stderr, string(payload))
		return
	}
	fmt.Fprintf(os.Stderr, "Error [%s]: %s\n", te.Kind, te.Message)
	if te.Err != nil {
		fmt.Fprintf(os.Stderr, "  Cause: %v\n", te.Err)
	}
	if hint := hintFor(err); hint != "" {
		fmt.Fprintf(os.Stderr, "  Hint: %s\n", hint)
	}
}

// fatal reports the error and exits with its mapped code.
func fatal(err error, asJSON bool) {
	printError(err, asJSON)
	os.Exit(exitCodeFor(err))
}
