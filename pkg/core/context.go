package core

import (
	"context"

	"github.com/google/uuid"
)

type callIDKey struct{}

// WithCallID attaches a top-level invocation id to the context.
func WithCallID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, callIDKey{}, id)
}

// CallID returns the invocation id if present.
func CallID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(callIDKey{}).(string)
	return id, ok
}

// EnsureCallID ensures an invocation id exists in the context. Dispatchers
// call it once per top-level invocation; the id threads through logs and
// audit records.
func EnsureCallID(ctx context.Context) (context.Context, string) {
	if id, ok := CallID(ctx); ok {
		return ctx, id
	}
	id := uuid.NewString()
	return WithCallID(ctx, id), id
}
