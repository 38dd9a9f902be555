// Package health provides a registry of named subsystem health checkers
// backing the readiness endpoint.
package health

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Status represents the health of a single subsystem.
type Status struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// Checker is a function that checks the health of a subsystem.
type Checker func(ctx context.Context) Status

// Registry holds named health checkers and runs them on demand.
type Registry struct {
	mu       sync.RWMutex
	checkers []namedChecker
}

type namedChecker struct {
	name  string
	check Checker
}

// NewRegistry creates a new health check registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a named health checker.
func (r *Registry) Register(name string, check Checker) {
	r.mu.Lock()
	r.checkers = append(r.checkers, namedChecker{name: name, check: check})
	r.mu.Unlock()
}

// CheckAll runs all registered checkers and returns the aggregate health
// status plus individual subsystem results.
func (r *Registry) CheckAll(ctx context.Context) (healthy bool, statuses []Status) {
	r.mu.RLock()
	checkers := make([]namedChecker, len(r.checkers))
	copy(checkers, r.checkers)
	r.mu.RUnlock()

	healthy = true
	statuses = make([]Status, len(checkers))

	for i, nc := range checkers {
		statuses[i] = nc.check(ctx)
		if !statuses[i].Healthy {
			healthy = false
		}
	}

	return healthy, statuses
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Database reports a store as healthy when it answers a ping within timeout.
func Database(name string, db Pinger, timeout time.Duration) Checker {
	return func(ctx context.Context) Status {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return Status{Name: name, Healthy: false, Detail: err.Error()}
		}
		return Status{Name: name, Healthy: true}
	}
}

// Runner is a background loop that can report whether it is alive.
type Runner interface {
	Name() string
	Running() bool
}

// Jobs reports the billing job loops as healthy while all of them run.
func Jobs(runners ...Runner) Checker {
	return func(_ context.Context) Status {
		var stopped []string
		for _, r := range runners {
			if !r.Running() {
				stopped = append(stopped, r.Name())
			}
		}
		if len(stopped) > 0 {
			return Status{Name: "billing_jobs", Healthy: false, Detail: fmt.Sprintf("not running: %s", strings.Join(stopped, ", "))}
		}
		return Status{Name: "billing_jobs", Healthy: true, Detail: fmt.Sprintf("%d running", len(runners))}
	}
}
