// Package handlers contains the health checker and the plain net/http
// middleware used by the REST server.
package handlers

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// HealthChecker backs the /health and /ready endpoints.
type HealthChecker interface {
	Check(ctx context.Context) HealthStatus
}

// HealthCheckFunc returns nil when the dependency answers.
type HealthCheckFunc func(ctx context.Context) error

// Pinger is satisfied by the Postgres connection and the Redis cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

func NewPingCheck(p Pinger) HealthCheckFunc {
	return p.Ping
}

// HealthStatus is the /health response body.
type HealthStatus struct {
	// Healthy is false when any check fails, optional ones included.
	Healthy bool `json:"healthy"`
	// Ready is false only when a required check fails.
	Ready bool `json:"ready"`

	Message   string                 `json:"message,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Uptime    string                 `json:"uptime,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
}

type CheckResult struct {
	Healthy  bool   `json:"healthy"`
	Optional bool   `json:"optional,omitempty"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

type namedCheck struct {
	name     string
	fn       HealthCheckFunc
	optional bool
}

// CompositeHealthChecker runs every registered check concurrently, each
// under its own timeout.
type CompositeHealthChecker struct {
	started time.Time
	version string
	timeout time.Duration

	mu     sync.RWMutex
	checks []namedCheck
}

func NewCompositeHealthChecker(version string) *CompositeHealthChecker {
	return &CompositeHealthChecker{
		started: time.Now(),
		version: version,
		timeout: 5 * time.Second,
	}
}

// AddCheck registers a check whose failure makes the service unready.
func (c *CompositeHealthChecker) AddCheck(name string, fn HealthCheckFunc) {
	c.add(namedCheck{name: name, fn: fn})
}

// AddOptionalCheck registers a check whose failure is reported but leaves
// the service ready. The read cache is one: without it reads hit the store.
func (c *CompositeHealthChecker) AddOptionalCheck(name string, fn HealthCheckFunc) {
	c.add(namedCheck{name: name, fn: fn, optional: true})
}

func (c *CompositeHealthChecker) add(nc namedCheck) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks = append(c.checks, nc)
}

func (c *CompositeHealthChecker) Check(ctx context.Context) HealthStatus {
	c.mu.RLock()
	checks := slices.Clone(c.checks)
	c.mu.RUnlock()

	status := HealthStatus{
		Healthy:   true,
		Ready:     true,
		Uptime:    time.Since(c.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
		Version:   c.version,
	}
	if len(checks) == 0 {
		status.Message = "No health checks registered"
		return status
	}

	results := make([]CheckResult, len(checks))
	var g errgroup.Group
	for i, nc := range checks {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			start := time.Now()
			err := nc.fn(cctx)
			results[i] = CheckResult{
				Healthy:  err == nil,
				Optional: nc.optional,
				Message:  "OK",
				Duration: time.Since(start).Round(time.Millisecond).String(),
			}
			if err != nil {
				results[i].Message = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()

	status.Checks = make(map[string]CheckResult, len(checks))
	var failed []string
	for i, nc := range checks {
		r := results[i]
		status.Checks[nc.name] = r
		if r.Healthy {
			continue
		}
		status.Healthy = false
		if !r.Optional {
			status.Ready = false
		}
		failed = append(failed, nc.name)
	}
	slices.Sort(failed)

	switch {
	case status.Healthy:
		status.Message = "All checks passed"
	case status.Ready:
		status.Message = "Degraded: " + strings.Join(failed, ", ")
	default:
		status.Message = "Some checks failed: " + strings.Join(failed, ", ")
	}
	return status
}
