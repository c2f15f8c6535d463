package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"svgcache-api/internal/metrics"
)

// ConcurrencyLimiter caps how many generate requests run at once. A request
// that cannot get a slot within the wait timeout is rejected with 503.
type ConcurrencyLimiter struct {
	sem          *semaphore.Weighted
	wait         time.Duration
	activeCount  int64
	rejectedReqs int64
}

// NewConcurrencyLimiter creates a limiter with maxConcurrent slots.
func NewConcurrencyLimiter(maxConcurrent int, wait time.Duration) *ConcurrencyLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	if wait <= 0 {
		wait = 60 * time.Second
	}
	return &ConcurrencyLimiter{
		sem:  semaphore.NewWeighted(int64(maxConcurrent)),
		wait: wait,
	}
}

func (cl *ConcurrencyLimiter) Limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		waitCtx, cancel := context.WithTimeout(r.Context(), cl.wait)
		defer cancel()

		acquireStart := time.Now()
		if err := cl.sem.Acquire(waitCtx, 1); err != nil {
			rejected := atomic.AddInt64(&cl.rejectedReqs, 1)
			metrics.ErrorsTotal.WithLabelValues("busy").Inc()
			LogWithTrace(r.Context()).Warn("Concurrency limit: wait timeout",
				"duration", time.Since(acquireStart), "total_rejected", rejected, "wait_timeout", cl.wait)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "5")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Server busy"})
			return
		}

		active := atomic.AddInt64(&cl.activeCount, 1)
		metrics.ActiveGenerations.Set(float64(active))
		defer func() {
			cl.sem.Release(1)
			metrics.ActiveGenerations.Set(float64(atomic.AddInt64(&cl.activeCount, -1)))
		}()

		slog.Debug("Concurrency limit: slot acquired", "wait_duration", time.Since(acquireStart), "active", active)
		next.ServeHTTP(w, r)
	}
}

// Active returns the number of requests currently holding a slot.
func (cl *ConcurrencyLimiter) Active() int64 {
	return atomic.LoadInt64(&cl.activeCount)
}

// Rejected returns how many requests were turned away.
func (cl *ConcurrencyLimiter) Rejected() int64 {
	return atomic.LoadInt64(&cl.rejectedReqs)
}
