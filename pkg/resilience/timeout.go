// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"time"

	lerrors "github.com/loomkit/loom/pkg/errors"
)

// WithTimeout executes fn under a deadline. fn receives the bounded context
// and should honor its cancellation; a deadline hit returns a cancelled
// tool error even when fn is still draining in the background.
func WithTimeout(ctx context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	_, err := WithTimeoutResult(ctx, d, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}

// WithTimeoutResult executes fn under a deadline, returning its result.
func WithTimeoutResult(ctx context.Context, d time.Duration, fn func(ctx context.Context) (any, error)) (any, error) {
	if d <= 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		value any
		err   error
	}
	done := make(chan result, 1)
	go func() {
		value, err := fn(ctx)
		done <- result{value, err}
	}()

	select {
	case <-ctx.Done():
		return nil, lerrors.New(lerrors.KindCancelled, "operation exceeded timeout", ctx.Err()).
			WithPayload("timeout", d.String()).
			WithRecoverable(true)
	case res := <-done:
		return res.value, res.err
	}
}
