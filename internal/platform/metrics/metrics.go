package metrics

import (
	"net/http"
	"sync/atomic"
	"time"
)

// Collector keeps coarse in-process request counters for the admin
// snapshot endpoint. Safe for concurrent use.
type Collector struct {
	requests    uint64
	serverErrs  uint64
	rateLimited uint64
	durationMs  uint64
}

func New() *Collector {
	return &Collector{}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.requests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.serverErrs, 1)
	}
	if status == http.StatusTooManyRequests {
		atomic.AddUint64(&c.rateLimited, 1)
	}
	atomic.AddUint64(&c.durationMs, uint64(duration.Milliseconds()))
}

func (c *Collector) Snapshot() map[string]any {
	requests := atomic.LoadUint64(&c.requests)
	totalMs := atomic.LoadUint64(&c.durationMs)
	avg := float64(0)
	if requests > 0 {
		avg = float64(totalMs) / float64(requests)
	}
	return map[string]any{
		"requestsTotal":    requests,
		"errorsTotal":      atomic.LoadUint64(&c.serverErrs),
		"rateLimitedTotal": atomic.LoadUint64(&c.rateLimited),
		"avgDurationMs":    avg,
		"totalDurationMs":  totalMs,
	}
}
