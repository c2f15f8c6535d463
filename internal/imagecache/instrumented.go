package imagecache

import (
	"context"
	"errors"
	"sync/atomic"

	"svgcache-api/internal/metrics"
)

// Stats counts cache hits from either layer and persistent store misses.
type Stats struct {
	hits   uint64
	misses uint64
}

func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) Hit() {
	if s == nil {
		return
	}
	atomic.AddUint64(&s.hits, 1)
}

func (s *Stats) Miss() {
	if s == nil {
		return
	}
	atomic.AddUint64(&s.misses, 1)
}

func (s *Stats) Snapshot() (uint64, uint64) {
	if s == nil {
		return 0, 0
	}
	return atomic.LoadUint64(&s.hits), atomic.LoadUint64(&s.misses)
}

// InstrumentedStore records hit/miss for every lookup against the wrapped store.
type InstrumentedStore struct {
	store Store
	layer string
	stats *Stats
}

func NewInstrumentedStore(store Store, layer string, stats *Stats) *InstrumentedStore {
	return &InstrumentedStore{
		store: store,
		layer: layer,
		stats: stats,
	}
}

func (s *InstrumentedStore) Get(ctx context.Context, key string) ([]byte, error) {
	body, err := s.store.Get(ctx, key)
	switch {
	case err == nil:
		s.hit()
	case errors.Is(err, ErrNotFound):
		s.miss()
	}
	return body, err
}

func (s *InstrumentedStore) Has(ctx context.Context, key string) (bool, error) {
	ok, err := s.store.Has(ctx, key)
	if err != nil {
		return false, err
	}
	if ok {
		s.hit()
	} else {
		s.miss()
	}
	return ok, nil
}

func (s *InstrumentedStore) Put(ctx context.Context, key string, body []byte) error {
	return s.store.Put(ctx, key, body)
}

func (s *InstrumentedStore) hit() {
	s.stats.Hit()
	recordLookup(s.layer, true)
}

func (s *InstrumentedStore) miss() {
	s.stats.Miss()
	recordLookup(s.layer, false)
}

func recordLookup(layer string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	metrics.CacheOperations.WithLabelValues(layer, result).Inc()
}
