// Package health provides health checks for imefeed.
//
// A Checker aggregates named components. Critical components that report
// unhealthy make the whole process unhealthy; non-critical ones only
// degrade it. Handlers expose liveness, readiness and a detailed view.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
)

// CheckResult represents the result of a health check.
type CheckResult struct {
	Status      Status         `json:"status"`
	Message     string         `json:"message,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	LastChecked time.Time      `json:"last_checked"`
	Duration    time.Duration  `json:"duration_ns"`
	Error       string         `json:"error,omitempty"`
}

// Check is a function that performs a health check.
type Check func(ctx context.Context) CheckResult

// Component represents a health-checkable component.
type Component struct {
	Name     string
	Critical bool // failure makes overall status unhealthy
	Check    Check
	Timeout  time.Duration
}

// Checker manages health checks.
type Checker struct {
	mu         sync.RWMutex
	components map[string]*Component
	results    map[string]CheckResult
	startTime  time.Time
	ready      bool
}

// NewChecker creates a new Checker.
func NewChecker() *Checker {
	return &Checker{
		components: make(map[string]*Component),
		results:    make(map[string]CheckResult),
		startTime:  time.Now(),
	}
}

// Register registers a health check component.
func (c *Checker) Register(component *Component) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if component.Timeout == 0 {
		component.Timeout = 2 * time.Second
	}
	c.components[component.Name] = component
	c.results[component.Name] = CheckResult{Status: StatusUnknown}
}

// RegisterFunc registers a simple health check function.
func (c *Checker) RegisterFunc(name string, critical bool, check Check) {
	c.Register(&Component{Name: name, Critical: critical, Check: check})
}

// SetReady sets the readiness state.
func (c *Checker) SetReady(ready bool) {
	c.mu.Lock()
	c.ready = ready
	c.mu.Unlock()
}

// IsReady returns the readiness state.
func (c *Checker) IsReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// runCheck runs one component with its timeout and panic recovery.
func runCheck(ctx context.Context, comp *Component) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, comp.Timeout)
	defer cancel()

	start := time.Now()
	out := make(chan CheckResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				out <- CheckResult{
					Status:  StatusUnhealthy,
					Message: "check panicked",
					Error:   fmt.Sprintf("%v", r),
				}
			}
		}()
		out <- comp.Check(checkCtx)
	}()

	var result CheckResult
	select {
	case result = <-out:
	case <-checkCtx.Done():
		result = CheckResult{
			Status:  StatusUnhealthy,
			Message: "check timed out",
			Error:   checkCtx.Err().Error(),
		}
	}
	result.LastChecked = start
	result.Duration = time.Since(start)
	return result
}

// Check runs all registered health checks concurrently.
func (c *Checker) Check(ctx context.Context) map[string]CheckResult {
	c.mu.RLock()
	components := make([]*Component, 0, len(c.components))
	for _, comp := range c.components {
		components = append(components, comp)
	}
	c.mu.RUnlock()

	results := make(map[string]CheckResult, len(components))
	var (
		wg  sync.WaitGroup
		rmu sync.Mutex
	)
	for _, comp := range components {
		wg.Add(1)
		go func(comp *Component) {
			defer wg.Done()
			result := runCheck(ctx, comp)

			rmu.Lock()
			results[comp.Name] = result
			rmu.Unlock()
		}(comp)
	}
	wg.Wait()

	c.mu.Lock()
	for name, result := range results {
		if _, ok := c.components[name]; ok {
			c.results[name] = result
		}
	}
	c.mu.Unlock()
	return results
}

// GetResult returns the last result for a component.
func (c *Checker) GetResult(name string) (CheckResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result, ok := c.results[name]
	return result, ok
}

// OverallStatus returns the aggregated health status of the last results.
func (c *Checker) OverallStatus() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hasUnknown := false
	hasDegraded := false

	for name, result := range c.results {
		comp := c.components[name]
		if comp == nil {
			continue
		}
		switch result.Status {
		case StatusUnhealthy:
			if comp.Critical {
				return StatusUnhealthy
			}
			hasDegraded = true
		case StatusDegraded:
			hasDegraded = true
		case StatusUnknown:
			if comp.Critical {
				hasUnknown = true
			}
		}
	}

	if hasUnknown {
		return StatusUnknown
	}
	if hasDegraded {
		return StatusDegraded
	}
	return StatusHealthy
}

// Response is the body of the detailed health endpoint.
type Response struct {
	Status     Status                 `json:"status"`
	Ready      bool                   `json:"ready"`
	Uptime     string                 `json:"uptime"`
	Components map[string]CheckResult `json:"components,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// Response runs every check and returns the aggregated view.
func (c *Checker) Response(ctx context.Context) Response {
	components := c.Check(ctx)

	c.mu.RLock()
	ready := c.ready
	uptime := time.Since(c.startTime).Truncate(time.Second)
	c.mu.RUnlock()

	return Response{
		Status:     c.OverallStatus(),
		Ready:      ready,
		Uptime:     uptime.String(),
		Components: components,
		Timestamp:  time.Now(),
	}
}

// Names returns the registered component names, sorted.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.components))
	for name := range c.components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// LivenessHandler reports that the process is running.
func (c *Checker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "alive",
			"timestamp": time.Now(),
		})
	})
}

// ReadinessHandler returns 200 once ready and no critical component fails.
func (c *Checker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.IsReady() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status":    "not ready",
				"timestamp": time.Now(),
			})
			return
		}

		c.Check(r.Context())
		status := c.OverallStatus()
		code := http.StatusOK
		if status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]any{
			"status":    status,
			"ready":     true,
			"timestamp": time.Now(),
		})
	})
}

// HealthHandler returns the detailed per-component view.
func (c *Checker) HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := c.Response(r.Context())
		code := http.StatusOK
		if resp.Status == StatusUnhealthy || resp.Status == StatusUnknown {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	})
}

// CustomCheck creates a check from a simple function.
func CustomCheck(fn func() error) Check {
	return func(ctx context.Context) CheckResult {
		if err := fn(); err != nil {
			return CheckResult{
				Status:  StatusUnhealthy,
				Message: "check failed",
				Error:   err.Error(),
			}
		}
		return CheckResult{Status: StatusHealthy, Message: "check passed"}
	}
}
