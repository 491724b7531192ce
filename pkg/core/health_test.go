// SPDX-License-Identifier: Apache-2.0
package core

import (
	"context"
	"testing"
	"time"
)

func TestStaticHealthChecker(t *testing.T) {
	tests := []struct {
		name   string
		status HealthStatus
	}{
		{"healthy", HealthHealthy},
		{"degraded", HealthDegraded},
		{"unhealthy", HealthUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewStaticHealthChecker(tt.status, "test message")
			result := checker.Check(context.Background())

			if result.Status != tt.status {
				t.Errorf("expected %v, got %v", tt.status, result.Status)
			}
			if result.Message != "test message" {
				t.Errorf("expected message 'test message', got %q", result.Message)
			}
			if result.LastCheck.IsZero() {
				t.Errorf("expected LastCheck to be set")
			}
		})
	}
}

func TestHealthCheckFunc(t *testing.T) {
	callCount := 0
	checker := HealthCheckFunc(func(ctx context.Context) HealthResult {
		callCount++
		return HealthResult{
			Status:  HealthHealthy,
			Message: "ok",
		}
	})

	result := checker.Check(context.Background())
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
	if result.Status != HealthHealthy {
		t.Errorf("expected Healthy")
	}
	if result.LastCheck.IsZero() {
		t.Errorf("expected LastCheck to be set by wrapper")
	}
}

func TestCheckAllOverallStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []HealthStatus
		overall  HealthStatus
	}{
		{"all healthy", []HealthStatus{HealthHealthy, HealthHealthy}, HealthHealthy},
		{"one degraded", []HealthStatus{HealthHealthy, HealthDegraded}, HealthDegraded},
		{"one unhealthy wins", []HealthStatus{HealthHealthy, HealthDegraded, HealthUnhealthy}, HealthUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := NewDefaultHealthCheckProvider()
			for i, status := range tt.statuses {
				name := "component" + string(rune('0'+i))
				provider.RegisterChecker(name, NewStaticHealthChecker(status, "x"))
			}

			results, overall := provider.CheckAll(context.Background())
			if len(results) != len(tt.statuses) {
				t.Errorf("expected %d results, got %d", len(tt.statuses), len(results))
			}
			if overall != tt.overall {
				t.Errorf("expected overall %v, got %v", tt.overall, overall)
			}
		})
	}
}

func TestCheckSpecific(t *testing.T) {
	provider := NewDefaultHealthCheckProvider()
	provider.RegisterChecker("audit", NewStaticHealthChecker(HealthHealthy, "ok"))

	result, err := provider.Check(context.Background(), "audit")
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if result.Status != HealthHealthy {
		t.Errorf("expected Healthy")
	}
	if result.Component != "audit" {
		t.Errorf("expected component name to be stamped, got %q", result.Component)
	}
}

func TestCheckSpecificNotFound(t *testing.T) {
	provider := NewDefaultHealthCheckProvider()

	_, err := provider.Check(context.Background(), "nonexistent")
	if err == nil {
		t.Errorf("expected error for nonexistent checker")
	}
}

func TestCheckWithContext(t *testing.T) {
	provider := NewDefaultHealthCheckProvider()

	checker := HealthCheckFunc(func(ctx context.Context) HealthResult {
		select {
		case <-ctx.Done():
			return HealthResult{
				Status:  HealthUnhealthy,
				Message: "context timeout",
			}
		case <-time.After(100 * time.Millisecond):
			return HealthResult{
				Status:  HealthHealthy,
				Message: "ok",
			}
		}
	})

	provider.RegisterChecker("slow_store", checker)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result, _ := provider.Check(ctx, "slow_store")
	if result.Status != HealthUnhealthy {
		t.Errorf("expected Unhealthy due to timeout")
	}
}
