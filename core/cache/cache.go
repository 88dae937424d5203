// Package cache provides the process-local TTL cache for aggregation
// results and per-entity sub-queries.
package cache

import (
	"strings"
	"sync"
	"time"
)

// DefaultTTL is the uniform entry lifetime when none is configured.
const DefaultTTL = 300 * time.Second

type entry struct {
	value      any
	insertedAt time.Time
}

// Cache is a thread-safe map from namespaced string keys to values with a
// uniform TTL. Values are treated as immutable once stored.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// New creates a cache with the given TTL. A non-positive TTL falls back
// to DefaultTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the value stored under key, or ok=false when the key is
// absent or its entry has outlived the TTL.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.insertedAt) >= c.ttl {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key unconditionally, stamping the insertion time.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, insertedAt: c.now()}
}

// GetOrCompute returns the cached value for key, or runs compute, stores
// its result and returns it. Compute errors are not cached.
func (c *Cache) GetOrCompute(key string, compute func() (any, error)) (any, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := compute()
	if err != nil {
		return nil, err
	}
	c.Set(key, v)
	return v, nil
}

// Invalidate removes every key starting with prefix. An empty prefix
// clears the whole cache.
func (c *Cache) Invalidate(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prefix == "" {
		n := len(c.entries)
		c.entries = make(map[string]entry)
		return n
	}

	n := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			n++
		}
	}
	return n
}

// Age returns how long ago the entry under key was inserted, and whether
// the key exists at all (expired entries still report their age).
func (c *Cache) Age(key string) (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return 0, false
	}
	return c.now().Sub(e.insertedAt), true
}

// AgesByPrefix returns the insertion age of every live entry whose key
// starts with prefix, keyed by full cache key.
func (c *Cache) AgesByPrefix(prefix string) map[string]time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]time.Duration)
	for key, e := range c.entries {
		if strings.HasPrefix(key, prefix) {
			out[key] = c.now().Sub(e.insertedAt)
		}
	}
	return out
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// TTL returns the configured entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}
