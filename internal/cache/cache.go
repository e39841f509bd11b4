// Package cache provides the in-process result caches shared across
// requests: a keyed TTL cache for analysis results and a whole-map cache
// with a single shared fetch timestamp for prices.
package cache

import (
	"sync"
	"time"
)

// Clock returns the current time. Injected so tests can use a fixed clock.
type Clock func() time.Time

type entry[V any] struct {
	value      V
	insertedAt time.Time
}

// Cache is a generic key/value store with a fixed time-to-live per entry.
// Expiry is lazy: entries are never swept, an entry older than the TTL is
// simply treated as absent at read time.
type Cache[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	ttl     time.Duration
	clock   Clock
}

// New creates a cache with the given TTL. A nil clock defaults to time.Now.
func New[V any](ttl time.Duration, clock Clock) *Cache[V] {
	if clock == nil {
		clock = time.Now
	}
	return &Cache[V]{
		entries: make(map[string]entry[V]),
		ttl:     ttl,
		clock:   clock,
	}
}

// Get returns the value for key. A hit requires both presence and
// freshness; an expired entry is a miss even though still stored.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.clock().Sub(e.insertedAt) >= c.ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Put stores value under key, unconditionally overwriting any previous
// entry and recording the current time as insertion time.
func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, insertedAt: c.clock()}
}

// Invalidate removes a single key.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// InvalidateAll drops every entry.
func (c *Cache[V]) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry[V])
}

// Len returns the number of physically stored entries, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
