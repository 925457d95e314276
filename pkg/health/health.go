// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package health runs named checks with cached results and renders them as
// JSON responses for the router.
package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/absmach/mhttp/pkg/handler"
	"github.com/absmach/mhttp/pkg/message"
	"github.com/absmach/mhttp/pkg/status"
)

// Status represents the health status.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Check is the last result of a single health check.
type Check struct {
	Name        string        `json:"name"`
	Status      Status        `json:"status"`
	Message     string        `json:"message,omitempty"`
	LastChecked time.Time     `json:"last_checked"`
	Duration    time.Duration `json:"duration_ms"`
}

// CheckFunc is a function that performs a health check.
type CheckFunc func(ctx context.Context) error

type registration struct {
	fn       CheckFunc
	critical bool
}

// Checker manages health checks.
type Checker struct {
	mu     sync.Mutex
	checks map[string]registration
	cache  map[string]Check
	ttl    time.Duration
	now    func() time.Time
}

// NewChecker creates a new health checker. Results are reused for cacheTTL.
func NewChecker(cacheTTL time.Duration) *Checker {
	if cacheTTL == 0 {
		cacheTTL = 10 * time.Second
	}
	return &Checker{
		checks: make(map[string]registration),
		cache:  make(map[string]Check),
		ttl:    cacheTTL,
		now:    time.Now,
	}
}

// Register adds a check whose failure degrades the service.
func (c *Checker) Register(name string, check CheckFunc) {
	c.register(name, check, false)
}

// RegisterCritical adds a check whose failure makes the service unhealthy.
func (c *Checker) RegisterCritical(name string, check CheckFunc) {
	c.register(name, check, true)
}

func (c *Checker) register(name string, check CheckFunc, critical bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = registration{fn: check, critical: critical}
	delete(c.cache, name)
}

// Health runs the checks whose cached result expired and returns the overall
// status with every check, sorted by name.
func (c *Checker) Health(ctx context.Context) (Status, []Check) {
	c.mu.Lock()
	defer c.mu.Unlock()

	overall := StatusHealthy
	checks := make([]Check, 0, len(c.checks))
	for name, reg := range c.checks {
		check, ok := c.cache[name]
		if !ok || c.now().Sub(check.LastChecked) >= c.ttl {
			start := c.now()
			err := reg.fn(ctx)
			check = Check{
				Name:        name,
				Status:      StatusHealthy,
				LastChecked: c.now(),
				Duration:    c.now().Sub(start),
			}
			if err != nil {
				check.Status = StatusUnhealthy
				check.Message = err.Error()
			}
			c.cache[name] = check
		}

		if check.Status != StatusHealthy {
			switch {
			case reg.critical:
				overall = StatusUnhealthy
			case overall == StatusHealthy:
				overall = StatusDegraded
			}
		}
		checks = append(checks, check)
	}
	sort.Slice(checks, func(i, j int) bool { return checks[i].Name < checks[j].Name })
	return overall, checks
}

type report struct {
	Status Status  `json:"status"`
	Checks []Check `json:"checks"`
}

// Route renders the health report. Unhealthy answers 503; degraded still
// answers 200 so the service keeps receiving traffic.
func (c *Checker) Route() handler.RouteFunc {
	return func(ctx context.Context, _ *handler.Context, _ *message.Request) (*message.Response, error) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		st, checks := c.Health(ctx)
		code := status.OK
		if st == StatusUnhealthy {
			code = status.ServiceUnavailable
		}
		return handler.JSON(code, report{Status: st, Checks: checks})
	}
}

// Liveness answers 200 as long as the process serves requests.
func Liveness() handler.RouteFunc {
	return func(context.Context, *handler.Context, *message.Request) (*message.Response, error) {
		return handler.JSON(status.OK, map[string]string{"status": "alive"})
	}
}
