// SPDX-License-Identifier: Apache-2.0
package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultHealthCheckProvider implements HealthCheckProvider.
type DefaultHealthCheckProvider struct {
	checkers map[string]HealthChecker
	mu       sync.RWMutex
}

// NewDefaultHealthCheckProvider creates a new health check provider.
func NewDefaultHealthCheckProvider() *DefaultHealthCheckProvider {
	return &DefaultHealthCheckProvider{
		checkers: make(map[string]HealthChecker),
	}
}

// RegisterChecker registers a health checker for a component.
func (p *DefaultHealthCheckProvider) RegisterChecker(name string, checker HealthChecker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkers[name] = checker
}

// Check checks the health of a specific component.
func (p *DefaultHealthCheckProvider) Check(ctx context.Context, name string) (HealthResult, error) {
	p.mu.RLock()
	checker, exists := p.checkers[name]
	p.mu.RUnlock()

	if !exists {
		return HealthResult{}, fmt.Errorf("checker not registered: %s", name)
	}

	result := checker.Check(ctx)
	result.Component = name
	return result, nil
}

// CheckAll checks the health of all registered components.
// Returns individual results and overall status (Healthy only if all Healthy).
func (p *DefaultHealthCheckProvider) CheckAll(ctx context.Context) ([]HealthResult, HealthStatus) {
	results := make([]HealthResult, 0)
	degradedCount := 0
	unhealthyCount := 0

	for name, checker := range p.snapshotCheckers() {
		result := checker.Check(ctx)
		result.Component = name
		results = append(results, result)

		switch result.Status {
		case HealthDegraded:
			degradedCount++
		case HealthUnhealthy:
			unhealthyCount++
		}
	}

	overallStatus := HealthHealthy
	if unhealthyCount > 0 {
		overallStatus = HealthUnhealthy
	} else if degradedCount > 0 {
		overallStatus = HealthDegraded
	}

	return results, overallStatus
}

// snapshotCheckers returns a copy of the registered checkers so checks run
// without holding the lock.
func (p *DefaultHealthCheckProvider) snapshotCheckers() map[string]HealthChecker {
	p.mu.RLock()
	defer p.mu.RUnlock()

	checkers := make(map[string]HealthChecker, len(p.checkers))
	for name, checker := range p.checkers {
		checkers[name] = checker
	}
	return checkers
}

// StaticHealthChecker returns a constant status. Useful for components with
// no failure modes of their own.
type StaticHealthChecker struct {
	status  HealthStatus
	message string
}

// NewStaticHealthChecker creates a checker that always reports status.
func NewStaticHealthChecker(status HealthStatus, message string) *StaticHealthChecker {
	return &StaticHealthChecker{status: status, message: message}
}

// Check returns the constant health status.
func (s *StaticHealthChecker) Check(_ context.Context) HealthResult {
	return HealthResult{
		Status:    s.status,
		Message:   s.message,
		LastCheck: time.Now(),
	}
}

// HealthCheckFunc wraps a function as a health checker.
type HealthCheckFunc func(ctx context.Context) HealthResult

// Check calls the underlying function.
func (f HealthCheckFunc) Check(ctx context.Context) HealthResult {
	result := f(ctx)
	if result.LastCheck.IsZero() {
		result.LastCheck = time.Now()
	}
	return result
}
