package health

import (
	"context"
	"sync"
	"time"
)

// Status values reported by probes.
const (
	StatusOK        = "ok"
	StatusReady     = "ready"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// CheckFunc returns nil when the component is healthy.
type CheckFunc func(ctx context.Context) error

// CheckResult is the outcome of a single check.
type CheckResult struct {
	Status     string  `json:"status"`
	Critical   bool    `json:"critical"`
	Message    string  `json:"message,omitempty"`
	DurationMS float64 `json:"duration_ms"`
}

// Report is the aggregated probe response.
type Report struct {
	Status    string                 `json:"status"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

type registeredCheck struct {
	fn       CheckFunc
	critical bool
}

// Checker runs registered component checks.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]registeredCheck
	timeout time.Duration
}

// New creates a checker. A zero timeout defaults to 2 seconds per check.
func New(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{
		checks:  make(map[string]registeredCheck),
		timeout: timeout,
	}
}

// Register adds or replaces a named check.
func (c *Checker) Register(name string, critical bool, fn CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = registeredCheck{fn: fn, critical: critical}
}

// Liveness reports that the process is serving.
func (c *Checker) Liveness() Report {
	return Report{Status: StatusOK, Timestamp: time.Now()}
}

// Readiness runs every check concurrently.
func (c *Checker) Readiness(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]registeredCheck, len(c.checks))
	for name, rc := range c.checks {
		checks[name] = rc
	}
	c.mu.RUnlock()

	results := make(map[string]CheckResult, len(checks))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, rc := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := c.run(ctx, rc)
			mu.Lock()
			results[name] = res
			mu.Unlock()
		}()
	}
	wg.Wait()

	status := StatusReady
	for _, res := range results {
		if res.Status != StatusUnhealthy {
			continue
		}
		if res.Critical {
			status = StatusUnhealthy
			break
		}
		status = StatusDegraded
	}

	return Report{Status: status, Checks: results, Timestamp: time.Now()}
}

func (c *Checker) run(ctx context.Context, rc registeredCheck) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	errCh := make(chan error, 1)
	go func() { errCh <- rc.fn(ctx) }()

	res := CheckResult{Status: StatusOK, Critical: rc.critical}
	select {
	case err := <-errCh:
		if err != nil {
			res.Status = StatusUnhealthy
			res.Message = err.Error()
		}
	case <-ctx.Done():
		res.Status = StatusUnhealthy
		res.Message = "health check timeout"
	}
	res.DurationMS = float64(time.Since(start).Microseconds()) / 1000
	return res
}
