package services

import (
	"context"
	"sync"
	"time"
)

// ttlCache is a read-through cache with per-entry expiry. Entries are
// advisory: a miss only costs a recomputation.
type ttlCache[K comparable, V any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[K]ttlEntry[V]
	now     func() time.Time
}

type ttlEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// newTTLCache creates a cache. ttl <= 0 disables caching.
func newTTLCache[K comparable, V any](ttl time.Duration) *ttlCache[K, V] {
	return &ttlCache[K, V]{
		ttl:     ttl,
		entries: make(map[K]ttlEntry[V]),
		now:     time.Now,
	}
}

// Get returns a live entry. An expired entry is removed.
func (c *ttlCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && c.now().Before(e.expiresAt) {
		return e.value, true
	}

	if ok {
		c.mu.Lock()
		// a concurrent Set may have refreshed it
		if cur, still := c.entries[key]; still && !c.now().Before(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
	}
	var zero V
	return zero, false
}

// Set stores value and drops every expired entry, so tables that are never
// read again do not accumulate.
func (c *ttlCache[K, V]) Set(key K, value V) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = ttlEntry[V]{value: value, expiresAt: now.Add(c.ttl)}
}

func (c *ttlCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// GetOrLoad returns the cached value or calls load and caches its result.
// Concurrent misses may each call load; the last result wins.
func (c *ttlCache[K, V]) GetOrLoad(key K, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	c.Set(key, v)
	return v, nil
}

// Len returns the number of stored entries. Expired entries count until
// the next Get of that key or the next Set.
func (c *ttlCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// LocatorStore remembers which physical table a data source resolved to.
// repositories.RedisLocatorCache implements it for deployments that share
// the cache between processes.
type LocatorStore interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, table string)
	Delete(ctx context.Context, key string)
}

// MemoryLocatorStore is the process-local LocatorStore.
type MemoryLocatorStore struct {
	cache *ttlCache[string, string]
}

// NewMemoryLocatorStore creates a store whose entries expire after ttl.
func NewMemoryLocatorStore(ttl time.Duration) *MemoryLocatorStore {
	return &MemoryLocatorStore{cache: newTTLCache[string, string](ttl)}
}

func (s *MemoryLocatorStore) Get(_ context.Context, key string) (string, bool) {
	return s.cache.Get(key)
}

func (s *MemoryLocatorStore) Set(_ context.Context, key, table string) {
	s.cache.Set(key, table)
}

func (s *MemoryLocatorStore) Delete(_ context.Context, key string) {
	s.cache.Delete(key)
}

var _ LocatorStore = (*MemoryLocatorStore)(nil)
