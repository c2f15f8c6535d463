package main

import (
	"context"
	"log/slog"
	"time"

	"svgcache-api/internal/imagecache"
	"svgcache-api/internal/middleware"
)

type statsReport struct {
	hits, misses       uint64
	active, rejected   int64
	hitRatio           float64
	newHits, newMisses uint64
}

// buildStatsReport compares the current counters with the previous report.
func buildStatsReport(stats *imagecache.Stats, limiter *middleware.ConcurrencyLimiter, prev statsReport) statsReport {
	hits, misses := stats.Snapshot()
	r := statsReport{
		hits:      hits,
		misses:    misses,
		newHits:   hits - prev.hits,
		newMisses: misses - prev.misses,
	}
	if total := r.newHits + r.newMisses; total > 0 {
		r.hitRatio = float64(r.newHits) / float64(total)
	}
	if limiter != nil {
		r.active = limiter.Active()
		r.rejected = limiter.Rejected()
	}
	return r
}

// startStatsReporter logs cache and limiter counters every interval until ctx ends.
// Quiet intervals are not logged.
func startStatsReporter(ctx context.Context, stats *imagecache.Stats, limiter *middleware.ConcurrencyLimiter, interval time.Duration) {
	if stats == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var prev statsReport
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r := buildStatsReport(stats, limiter, prev)
			prev = r
			if r.newHits+r.newMisses == 0 {
				continue
			}
			slog.Info("Cache stats",
				"hits", r.newHits,
				"misses", r.newMisses,
				"hit_ratio", r.hitRatio,
				"total_hits", r.hits,
				"total_misses", r.misses,
				"active_generations", r.active,
				"rejected_generations", r.rejected,
			)
		}
	}
}
