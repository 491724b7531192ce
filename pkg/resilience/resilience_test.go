// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	lerrors "github.com/loomkit/loom/pkg/errors"
)

func TestRetrySuccess(t *testing.T) {
	attempts := 0
	config := DefaultRetryConfig().WithInitialDelay(time.Millisecond)
	err := config.Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient error")
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected success, got error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	config := DefaultRetryConfig().WithMaxAttempts(2).WithInitialDelay(time.Millisecond)
	err := config.Do(context.Background(), func() error {
		attempts++
		return errors.New("always fails")
	})

	if err == nil {
		t.Errorf("expected error after max attempts")
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestRetryStopsOnUnrecoverableToolError(t *testing.T) {
	attempts := 0
	config := DefaultRetryConfig().WithInitialDelay(time.Millisecond)
	fatal := lerrors.New(lerrors.KindInvalidInput, "bad shape", nil)
	err := config.Do(context.Background(), func() error {
		attempts++
		return fatal
	})

	if !errors.Is(err, fatal) {
		t.Errorf("expected the original error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt for unrecoverable error, got %d", attempts)
	}
}

func TestRetryHonorsRecoverableToolError(t *testing.T) {
	attempts := 0
	config := DefaultRetryConfig().WithMaxAttempts(3).WithInitialDelay(time.Millisecond)
	err := config.Do(context.Background(), func() error {
		attempts++
		return lerrors.New(lerrors.KindTransportFailure, "connection reset", nil)
	})

	if err == nil {
		t.Errorf("expected error after exhausting attempts")
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts for recoverable error, got %d", attempts)
	}
}

func TestRetryContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	config := DefaultRetryConfig().WithMaxAttempts(5).WithInitialDelay(time.Hour)
	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := config.Do(ctx, func() error {
		attempts++
		return errors.New("keep trying")
	})

	if !lerrors.IsKind(err, lerrors.KindCancelled) {
		t.Errorf("expected cancelled error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt before cancellation, got %d", attempts)
	}
}

func TestRetryDoWithResult(t *testing.T) {
	config := DefaultRetryConfig().WithInitialDelay(time.Millisecond)
	attempts := 0
	result, err := config.DoWithResult(context.Background(), func() (any, error) {
		attempts++
		if attempts < 2 {
			return nil, errors.New("not yet")
		}
		return "done", nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "done" {
		t.Errorf("result = %v, want done", result)
	}
}

func TestWithTimeoutResult(t *testing.T) {
	value, err := WithTimeoutResult(context.Background(), 100*time.Millisecond, func(context.Context) (any, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != 42 {
		t.Errorf("value = %v, want 42", value)
	}

	_, err = WithTimeoutResult(context.Background(), 5*time.Millisecond, func(ctx context.Context) (any, error) {
		select {
		case <-time.After(time.Second):
			return "too slow", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	if !lerrors.IsKind(err, lerrors.KindCancelled) {
		t.Errorf("expected cancelled error on deadline, got %v", err)
	}
}

func TestWithTimeoutZeroDisablesDeadline(t *testing.T) {
	err := WithTimeout(context.Background(), 0, func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); ok {
			return errors.New("unexpected deadline")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		Timeout:          time.Hour,
		Name:             "backend",
	})
	boom := errors.New("backend down")

	for i := 0; i < 2; i++ {
		if err := cb.Call(context.Background(), func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("attempt %d: expected backend error, got %v", i, err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("state = %s, want open", cb.State())
	}

	err := cb.Call(context.Background(), func() error {
		t.Fatal("call executed while circuit open")
		return nil
	})
	if !lerrors.IsKind(err, lerrors.KindTransportFailure) {
		t.Errorf("expected transport failure while open, got %v", err)
	}
}

func TestCircuitBreakerRecovers(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          time.Millisecond,
	})

	_ = cb.Call(context.Background(), func() error { return errors.New("down") })
	if cb.State() != StateOpen {
		t.Fatalf("state = %s, want open", cb.State())
	}

	time.Sleep(5 * time.Millisecond)

	for i := 0; i < 2; i++ {
		if err := cb.Call(context.Background(), func() error { return nil }); err != nil {
			t.Fatalf("half-open probe %d failed: %v", i, err)
		}
	}
	if cb.State() != StateClosed {
		t.Fatalf("state = %s, want closed after recovery", cb.State())
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		Timeout:          time.Millisecond,
	})
	cb.Open()
	time.Sleep(5 * time.Millisecond)

	_ = cb.Call(context.Background(), func() error { return errors.New("still down") })
	if cb.State() != StateOpen {
		t.Fatalf("state = %s, want open after half-open failure", cb.State())
	}
}

func TestWithFallback(t *testing.T) {
	value, err := WithFallback(context.Background(), func() (any, error) {
		return nil, errors.New("primary failed")
	}, &StaticFallback{Value: "fallback value"})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "fallback value" {
		t.Errorf("value = %v, want fallback value", value)
	}
}

func TestChainedFallback(t *testing.T) {
	chain := &ChainedFallback{Fallbacks: []FallbackStrategy{
		FallbackFunc(func(_ context.Context, err error) (any, error) {
			return nil, errors.New("first fallback failed")
		}),
		&StaticFallback{Value: "second"},
	}}

	value, err := WithFallback(context.Background(), func() (any, error) {
		return nil, errors.New("primary failed")
	}, chain)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "second" {
		t.Errorf("value = %v, want second", value)
	}
}
