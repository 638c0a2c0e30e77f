package report

import (
	"sync"

	"golang.org/x/time/rate"
)

// Throttled wraps a Reporter with a token bucket per monitor id, so a worker
// stuck in an error loop cannot flood the sink. Error events share a single
// bucket. Events over the limit are dropped and counted.
type Throttled struct {
	next  Reporter
	limit rate.Limit
	burst int

	mu       sync.Mutex
	errs     *rate.Limiter
	monitors map[MonitorID]*rate.Limiter
	dropped  int
}

// NewThrottled creates a Throttled reporter allowing r events per second
// with the given burst, per monitor id.
func NewThrottled(next Reporter, r float64, burst int) *Throttled {
	return &Throttled{
		next:     next,
		limit:    rate.Limit(r),
		burst:    burst,
		errs:     rate.NewLimiter(rate.Limit(r), burst),
		monitors: make(map[MonitorID]*rate.Limiter, 4),
	}
}

// ReportError implements Reporter.
func (t *Throttled) ReportError(err error) {
	if !t.errs.Allow() {
		t.drop()

		return
	}

	t.next.ReportError(err)
}

// ReportMonitor implements Reporter.
func (t *Throttled) ReportMonitor(id MonitorID) {
	t.mu.Lock()

	limiter, ok := t.monitors[id]
	if !ok {
		limiter = rate.NewLimiter(t.limit, t.burst)
		t.monitors[id] = limiter
	}

	t.mu.Unlock()

	if !limiter.Allow() {
		t.drop()

		return
	}

	t.next.ReportMonitor(id)
}

// Dropped returns the number of events discarded by the limiter.
func (t *Throttled) Dropped() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.dropped
}

func (t *Throttled) drop() {
	t.mu.Lock()
	t.dropped++
	t.mu.Unlock()
}
