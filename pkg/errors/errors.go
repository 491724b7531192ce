// SPDX-License-Identifier: Apache-2.0
// Package errors provides the typed tool error carried through environments,
// the interpreter and the dispatch surfaces.
package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorKind classifies tool errors for propagation and recovery.
type ErrorKind string

const (
	// KindUnknownTool indicates a lookup found no binding for a tool name.
	KindUnknownTool ErrorKind = "UNKNOWN_TOOL"

	// KindUnboundName indicates a variable reference did not resolve.
	KindUnboundName ErrorKind = "UNBOUND_NAME"

	// KindInvalidInput indicates a tool rejected the shape of its input.
	KindInvalidInput ErrorKind = "INVALID_INPUT"

	// KindToolFailure indicates a tool's own computation failed; the
	// payload is tool defined.
	KindToolFailure ErrorKind = "TOOL_FAILURE"

	// KindTransportFailure indicates a remote or process tool could not
	// complete its call (connection refused, process crash, timeout).
	KindTransportFailure ErrorKind = "TRANSPORT_FAILURE"

	// KindCancelled indicates a caller-initiated abort.
	KindCancelled ErrorKind = "CANCELLED"

	// KindInternal indicates an internal runtime error.
	KindInternal ErrorKind = "INTERNAL_ERROR"
)

// ToolError is the tagged failure result of a tool invocation. The Payload
// is a JSON value so composing tools can inspect, log or re-raise failures
// at the orchestration level. It implements the error interface and can be
// unwrapped with errors.As().
type ToolError struct {
	Kind        ErrorKind
	Message     string
	Err         error
	Payload     map[string]any
	Recoverable bool
	StatusCode  int // for HTTP responses
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *ToolError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *ToolError) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.ToValue())
}

// ToValue renders the error as a plain JSON value: kind, message and the
// payload members. This is the shape dispatchers emit and orchestration
// programs inspect.
func (e *ToolError) ToValue() map[string]any {
	out := map[string]any{
		"kind":    string(e.Kind),
		"message": e.Message,
	}
	if e.Err != nil {
		out["cause"] = e.Err.Error()
	}
	for k, v := range e.Payload {
		if _, taken := out[k]; !taken {
			out[k] = v
		}
	}
	return out
}

// New creates a new ToolError with the given kind, message, and cause.
func New(kind ErrorKind, msg string, cause error) *ToolError {
	return &ToolError{
		Kind:        kind,
		Message:     msg,
		Err:         cause,
		Payload:     make(map[string]any),
		Recoverable: kind == KindTransportFailure,
		StatusCode:  kindToStatusCode(kind),
	}
}

// WithPayload adds a key-value pair to the error payload.
// Returns the error for method chaining.
func (e *ToolError) WithPayload(key string, v any) *ToolError {
	if e.Payload == nil {
		e.Payload = make(map[string]any)
	}
	e.Payload[key] = v
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *ToolError) WithRecoverable(recoverable bool) *ToolError {
	e.Recoverable = recoverable
	return e
}

// AsToolError attempts to convert an error to a ToolError.
// Returns the error as ToolError if one is found in the chain, or wraps it
// as an internal error otherwise.
func AsToolError(err error) *ToolError {
	if err == nil {
		return nil
	}
	for e := err; e != nil; e = unwrap(e) {
		if te, ok := e.(*ToolError); ok {
			return te
		}
	}
	return New(KindInternal, "wrapped error", err)
}

// KindOf returns the kind of the ToolError in err's chain, or KindInternal
// when none is present.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	return AsToolError(err).Kind
}

// IsKind reports whether err carries a ToolError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	if err == nil {
		return false
	}
	for e := err; e != nil; e = unwrap(e) {
		if te, ok := e.(*ToolError); ok {
			return te.Kind == kind
		}
	}
	return false
}

func unwrap(err error) error {
	u, ok := err.(interface{ Unwrap() error })
	if !ok {
		return nil
	}
	return u.Unwrap()
}

// kindToStatusCode maps error kinds to HTTP status codes.
func kindToStatusCode(kind ErrorKind) int {
	switch kind {
	case KindUnknownTool, KindUnboundName:
		return 404 // NOT_FOUND
	case KindInvalidInput:
		return 400 // INVALID_ARGUMENT
	case KindTransportFailure:
		return 502 // UNAVAILABLE
	case KindCancelled:
		return 408 // CANCELLED
	default:
		return 500 // INTERNAL
	}
}
