// Package health aggregates component health for the service endpoint.
//
// Components register a check function once at startup; Check fans out to
// every registered component and reduces the results. A report is healthy
// only when every component is healthy. Checks never panic the caller and
// never block past the supplied context.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Status is the health state of a component or the whole service.
type Status string

const (
	StatusHealthy        Status = "healthy"
	StatusDegraded       Status = "degraded"
	StatusUnhealthy      Status = "unhealthy"
	StatusNotInitialized Status = "not_initialized"
)

// Component is one entry in a health report.
type Component struct {
	Status Status         `json:"status"`
	Error  string         `json:"error,omitempty"`
	Stats  map[string]any `json:"stats,omitempty"`
}

// Report is the full service health snapshot.
type Report struct {
	Status     Status               `json:"status"`
	Components map[string]Component `json:"components"`
	Timestamp  time.Time            `json:"timestamp"`
}

// CheckFunc produces the health of one component.
type CheckFunc func(ctx context.Context) Component

// Checker is implemented by providers that report a simple up/down check.
type Checker interface {
	Health(ctx context.Context) error
}

// Aggregator collects component checks and reduces them into a Report.
// Registration happens at startup; Check is safe for concurrent use.
type Aggregator struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// NewAggregator creates an empty health aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{checks: make(map[string]CheckFunc)}
}

// Register adds a named component check, replacing any previous check
// registered under the same name.
func (a *Aggregator) Register(name string, check CheckFunc) {
	a.mu.Lock()
	a.checks[name] = check
	a.mu.Unlock()
}

// RegisterChecker registers a provider that reports health as an error:
// nil maps to healthy, anything else to unhealthy with the error text.
func (a *Aggregator) RegisterChecker(name string, c Checker) {
	a.Register(name, func(ctx context.Context) Component {
		if c == nil {
			return Component{Status: StatusNotInitialized}
		}
		if err := c.Health(ctx); err != nil {
			return Component{Status: StatusUnhealthy, Error: err.Error()}
		}
		return Component{Status: StatusHealthy}
	})
}

// Check runs every registered component check and reduces the results.
// The overall status is healthy only when every component reports healthy;
// any other component state, including not yet initialized, degrades the
// report. The overall field is never anything but healthy or degraded —
// per-component detail carries the stronger states. A check that panics is
// reported unhealthy in its component entry, never propagated.
func (a *Aggregator) Check(ctx context.Context) Report {
	a.mu.RLock()
	checks := make(map[string]CheckFunc, len(a.checks))
	for name, fn := range a.checks {
		checks[name] = fn
	}
	a.mu.RUnlock()

	report := Report{
		Status:     StatusHealthy,
		Components: make(map[string]Component, len(checks)),
		Timestamp:  time.Now().UTC(),
	}

	for name, fn := range checks {
		report.Components[name] = runCheck(ctx, fn)
	}

	for _, c := range report.Components {
		if c.Status != StatusHealthy {
			report.Status = StatusDegraded
		}
	}
	return report
}

func runCheck(ctx context.Context, fn CheckFunc) (c Component) {
	defer func() {
		if r := recover(); r != nil {
			c = Component{
				Status: StatusUnhealthy,
				Error:  fmt.Sprintf("health check panic: %v", r),
			}
		}
	}()
	return fn(ctx)
}
