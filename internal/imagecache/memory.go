package imagecache

import (
	"container/list"
	"context"
	"sync"
)

// MemoryCache is a bounded LRU of bodies. It has no TTL: bodies are immutable
// once persisted, so an entry only leaves when it is the least recently used.
type MemoryCache struct {
	mu         sync.Mutex
	maxEntries int
	ll         *list.List
	items      map[string]*list.Element
}

type cacheItem struct {
	key   string
	value []byte
}

func NewMemoryCache(maxEntries int) *MemoryCache {
	if maxEntries < 0 {
		maxEntries = 0
	}
	return &MemoryCache{
		maxEntries: maxEntries,
		ll:         list.New(),
		items:      make(map[string]*list.Element),
	}
}

func (c *MemoryCache) Get(key string) ([]byte, bool) {
	if c == nil || c.maxEntries <= 0 {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*cacheItem).value, true
}

func (c *MemoryCache) Put(key string, value []byte) {
	if c == nil || c.maxEntries <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*cacheItem).value = value
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&cacheItem{key: key, value: value})
	c.items[key] = el

	if c.ll.Len() > c.maxEntries {
		c.removeOldest()
	}
}

func (c *MemoryCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *MemoryCache) removeOldest() {
	el := c.ll.Back()
	if el == nil {
		return
	}
	c.ll.Remove(el)
	delete(c.items, el.Value.(*cacheItem).key)
}

// LayeredStore serves reads from a MemoryCache before falling back to the
// persistent store, and fills the memory layer on the way back. Memory hits
// count as hits in stats; misses are left to the layer below.
type LayeredStore struct {
	hot   *MemoryCache
	base  Store
	stats *Stats
}

func NewLayeredStore(hot *MemoryCache, base Store, stats *Stats) *LayeredStore {
	return &LayeredStore{hot: hot, base: base, stats: stats}
}

func (s *LayeredStore) Get(ctx context.Context, key string) ([]byte, error) {
	if body, ok := s.hot.Get(key); ok {
		s.stats.Hit()
		recordLookup("memory", true)
		return body, nil
	}
	recordLookup("memory", false)
	body, err := s.base.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	s.hot.Put(key, body)
	return body, nil
}

func (s *LayeredStore) Has(ctx context.Context, key string) (bool, error) {
	if _, ok := s.hot.Get(key); ok {
		s.stats.Hit()
		recordLookup("memory", true)
		return true, nil
	}
	recordLookup("memory", false)
	return s.base.Has(ctx, key)
}

func (s *LayeredStore) Put(ctx context.Context, key string, body []byte) error {
	if err := s.base.Put(ctx, key, body); err != nil {
		return err
	}
	s.hot.Put(key, body)
	return nil
}
