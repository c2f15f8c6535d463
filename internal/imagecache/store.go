// Package imagecache stores generated SVG bodies by cache key.
//
// The persistent backends never expire or evict entries. A bounded in-process
// layer may sit in front of them because a stored body never changes.
package imagecache

import (
	"context"
	"fmt"
	"strings"
)

// Store is a flat key-value store of SVG bodies.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Get returns ErrNotFound (possibly wrapped) on miss.
// - Put replaces the whole body atomically; readers never observe a partial body.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Has(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, body []byte) error
}

type Options struct {
	Mode            string
	Dir             string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RedisPrefix     string
	MemoryCacheSize int
}

// Open builds the configured persistent store and wraps it with the memory
// layer and instrumentation. The returned close func releases backend resources.
func Open(opts Options, stats *Stats) (Store, func() error, error) {
	var (
		base    Store
		closeFn = func() error { return nil }
	)
	switch strings.ToLower(strings.TrimSpace(opts.Mode)) {
	case "", "fs":
		fs, err := NewFileStore(opts.Dir)
		if err != nil {
			return nil, nil, err
		}
		base = fs
	case "redis":
		rs, err := NewRedisStore(opts.RedisAddr, opts.RedisPassword, opts.RedisDB, opts.RedisPrefix)
		if err != nil {
			return nil, nil, err
		}
		base = rs
		closeFn = rs.Close
	default:
		return nil, nil, fmt.Errorf("unsupported store mode: %s", opts.Mode)
	}

	var store Store = NewInstrumentedStore(base, "store", stats)
	if opts.MemoryCacheSize > 0 {
		store = NewLayeredStore(NewMemoryCache(opts.MemoryCacheSize), store, stats)
	}
	return store, closeFn, nil
}
