package main

import (
	"context"
	"testing"
	"time"

	"svgcache-api/internal/imagecache"
	"svgcache-api/internal/middleware"
)

func TestBuildStatsReportDeltas(t *testing.T) {
	stats := imagecache.NewStats()
	stats.Hit()
	stats.Hit()
	stats.Miss()

	first := buildStatsReport(stats, nil, statsReport{})
	if first.newHits != 2 || first.newMisses != 1 {
		t.Fatalf("first report=%+v", first)
	}

	stats.Hit()
	second := buildStatsReport(stats, middleware.NewConcurrencyLimiter(2, time.Second), first)
	if second.newHits != 1 || second.newMisses != 0 {
		t.Fatalf("second report=%+v", second)
	}
	if second.hitRatio != 1 {
		t.Fatalf("hitRatio=%v want=1", second.hitRatio)
	}
	if second.hits != 3 || second.misses != 1 {
		t.Fatalf("totals=%d/%d want=3/1", second.hits, second.misses)
	}
}

func TestStartStatsReporterStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		startStatsReporter(ctx, imagecache.NewStats(), nil, time.Millisecond)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reporter did not stop after cancel")
	}
}

func TestStartStatsReporterWithoutStats(t *testing.T) {
	// Returns immediately instead of blocking forever.
	startStatsReporter(context.Background(), nil, nil, time.Second)
}
