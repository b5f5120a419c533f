// Package health serves liveness and readiness endpoints for the storefront.
//
// Every registered check runs in its own goroutine at a fixed interval and
// flips state only after FailureThreshold consecutive failures or
// SuccessThreshold consecutive successes. Optional checks never fail an endpoint:
// they mark it degraded so operators see a broken dependency the service can
// live without (for example an open payment circuit).
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// Kind selects the endpoint a check belongs to.
type Kind int

const (
	Liveness Kind = iota
	Readiness
)

// Check describes one registered check.
type Check struct {
	Name    string
	Timeout time.Duration
	Fn      CheckFunc
	// FailureThreshold defaults to 3.
	FailureThreshold int
	// SuccessThreshold defaults to 1.
	SuccessThreshold int
	// Optional checks report "degraded" instead of failing the endpoint.
	Optional bool
}

// monitor is the runtime state of a Check. run is only ever called from the
// check's own goroutine; healthy and lastErr are read by HTTP handlers.
type monitor struct {
	Check

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	fails int
	oks   int
}

func newMonitor(c Check) *monitor {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = time.Second
	}
	p := &monitor{Check: c}
	p.healthy.Store(true)
	return p
}

func (p *monitor) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	err := p.Fn(ctx)
	p.lastErr.Store(&err)

	if err != nil {
		p.oks = 0
		p.fails++
		if p.fails >= p.FailureThreshold {
			p.healthy.Store(false)
		}
		return
	}
	p.fails = 0
	p.oks++
	if p.oks >= p.SuccessThreshold {
		p.healthy.Store(true)
	}
}

func (p *monitor) failure() string {
	if e := p.lastErr.Load(); e != nil && *e != nil {
		return (*e).Error()
	}
	return "check is unhealthy"
}

// Health owns the checks of one process.
type Health struct {
	ready atomic.Bool

	mu       sync.RWMutex
	monitors map[Kind][]*monitor
	cancel   context.CancelFunc
}

// New creates a Health that is not ready until SetReady(true).
func New() *Health {
	return &Health{monitors: make(map[Kind][]*monitor)}
}

// Register adds a check to the endpoint of the given kind. Checks registered
// after Start are not scheduled.
func (h *Health) Register(kind Kind, c Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.monitors[kind] = append(h.monitors[kind], newMonitor(c))
}

// AddLivenessCheck registers a required liveness check.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.Register(Liveness, Check{Name: name, Timeout: timeout, Fn: fn})
}

// AddReadinessCheck registers a required readiness check.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.Register(Readiness, Check{Name: name, Timeout: timeout, Fn: fn})
}

func (h *Health) list(kind Kind) []*monitor {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*monitor, len(h.monitors[kind]))
	copy(out, h.monitors[kind])
	return out
}

// Start runs every registered check at interval until ctx is cancelled or
// Stop is called.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	var all []*monitor
	for _, ps := range h.monitors {
		all = append(all, ps...)
	}
	h.mu.Unlock()

	for _, p := range all {
		go schedule(ctx, p, interval)
	}
}

func schedule(ctx context.Context, p *monitor, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.run(ctx)
		}
	}
}

// Stop cancels all check goroutines. It is safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady marks the service ready (after startup) or not ready (while
// draining).
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service is marked ready and every required
// readiness check passes.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	failed, _ := evaluate(h.list(Readiness))
	return len(failed) == 0
}

// Report is the JSON body of both endpoints.
type Report struct {
	Status   string            `json:"status"`
	Checks   map[string]string `json:"checks,omitempty"`
	Degraded map[string]string `json:"degraded,omitempty"`
}

func evaluate(monitors []*monitor) (failed, degraded map[string]string) {
	failed = make(map[string]string)
	degraded = make(map[string]string)
	for _, p := range monitors {
		if p.healthy.Load() {
			continue
		}
		if p.Optional {
			degraded[p.Name] = p.failure()
			continue
		}
		failed[p.Name] = p.failure()
	}
	return failed, degraded
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	failed, degraded := evaluate(h.list(Liveness))
	writeReport(w, failed, degraded)
}

// ReadyEndpoint serves /readyz. It fails while the service is not marked
// ready even when every check passes.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failed, degraded := evaluate(h.list(Readiness))
	if !h.ready.Load() {
		failed["_readiness"] = "service is not ready"
	}
	writeReport(w, failed, degraded)
}

func writeReport(w http.ResponseWriter, failed, degraded map[string]string) {
	rep := Report{Status: "ok"}
	status := http.StatusOK
	if len(degraded) > 0 {
		rep.Status = "degraded"
		rep.Degraded = degraded
	}
	if len(failed) > 0 {
		rep.Status = "unhealthy"
		rep.Checks = failed
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rep)
}
