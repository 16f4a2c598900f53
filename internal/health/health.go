// Package health aggregates dependency probes for the worker's /healthz
// endpoint. Critical dependencies take the whole service unhealthy;
// best-effort ones (cache, audit stream) only degrade it, because a cycle
// can run without them.
package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Check is the outcome of one dependency probe
type Check struct {
	Name         string        `json:"name"`
	Status       Status        `json:"status"`
	ResponseTime time.Duration `json:"response_time_ms"`
	Error        string        `json:"error,omitempty"`
	LastChecked  time.Time     `json:"last_checked"`
}

// Result is the aggregated health of the service
type Result struct {
	Status    Status    `json:"status"`
	Checks    []Check   `json:"checks"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// CheckFunc probes one dependency
type CheckFunc func(ctx context.Context) error

type probe struct {
	fn       CheckFunc
	critical bool
}

// Checker runs registered probes and folds them into one status
type Checker struct {
	mu      sync.RWMutex
	probes  map[string]probe
	version string
}

// NewChecker creates a health checker
func NewChecker(version string) *Checker {
	return &Checker{
		probes:  make(map[string]probe),
		version: version,
	}
}

// Register adds a critical dependency probe. A failure makes the whole
// service unhealthy.
func (c *Checker) Register(name string, fn CheckFunc) {
	c.add(name, fn, true)
}

// RegisterOptional adds a best-effort dependency probe. A failure only
// degrades the service.
func (c *Checker) RegisterOptional(name string, fn CheckFunc) {
	c.add(name, fn, false)
}

func (c *Checker) add(name string, fn CheckFunc, critical bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = probe{fn: fn, critical: critical}
}

// Check runs all probes. Checks appear in name order so the response is
// stable across calls.
func (c *Checker) Check(ctx context.Context) *Result {
	c.mu.RLock()
	names := make([]string, 0, len(c.probes))
	probes := make(map[string]probe, len(c.probes))
	for name, p := range c.probes {
		names = append(names, name)
		probes[name] = p
	}
	c.mu.RUnlock()
	sort.Strings(names)

	result := &Result{
		Status:    StatusHealthy,
		Checks:    make([]Check, 0, len(names)),
		Version:   c.version,
		Timestamp: time.Now(),
	}

	for _, name := range names {
		p := probes[name]
		check := c.runProbe(ctx, name, p)
		result.Checks = append(result.Checks, check)

		if check.Status == StatusHealthy {
			continue
		}
		if p.critical {
			result.Status = StatusUnhealthy
		} else if result.Status == StatusHealthy {
			result.Status = StatusDegraded
		}
	}

	return result
}

func (c *Checker) runProbe(ctx context.Context, name string, p probe) Check {
	start := time.Now()
	check := Check{
		Name:        name,
		Status:      StatusHealthy,
		LastChecked: start,
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := p.fn(ctx); err != nil {
		if p.critical {
			check.Status = StatusUnhealthy
		} else {
			check.Status = StatusDegraded
		}
		check.Error = err.Error()
	}
	check.ResponseTime = time.Since(start)

	return check
}
