package cache

import (
	"sync"
	"time"
)

// SharedCache holds a map of values that all share one fetch timestamp.
// The whole map is replaced on each fetch, so freshness is a property of
// the cache, not of individual keys: invalidating expires everything.
type SharedCache[V any] struct {
	mu        sync.RWMutex
	values    map[string]V
	fetchedAt time.Time
	ttl       time.Duration
	clock     Clock
}

// NewShared creates a shared-timestamp cache with the given TTL.
func NewShared[V any](ttl time.Duration, clock Clock) *SharedCache[V] {
	if clock == nil {
		clock = time.Now
	}
	return &SharedCache[V]{
		values: make(map[string]V),
		ttl:    ttl,
		clock:  clock,
	}
}

// Fresh reports whether the stored map is within its TTL.
func (c *SharedCache[V]) Fresh() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fresh()
}

func (c *SharedCache[V]) fresh() bool {
	if c.fetchedAt.IsZero() {
		return false
	}
	return c.clock().Sub(c.fetchedAt) < c.ttl
}

// Get returns the value for key if the cache as a whole is still fresh.
func (c *SharedCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.fresh() {
		var zero V
		return zero, false
	}
	v, ok := c.values[key]
	return v, ok
}

// GetAll returns a copy of the stored map and whether it is fresh.
func (c *SharedCache[V]) GetAll(keys []string) (map[string]V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.fresh() {
		return nil, false
	}

	out := make(map[string]V, len(keys))
	for _, k := range keys {
		v, ok := c.values[k]
		if !ok {
			return nil, false
		}
		out[k] = v
	}
	return out, true
}

// PutAll replaces the stored map and resets the shared timestamp to now.
func (c *SharedCache[V]) PutAll(values map[string]V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.values = make(map[string]V, len(values))
	for k, v := range values {
		c.values[k] = v
	}
	c.fetchedAt = c.clock()
}

// Invalidate resets the shared timestamp, expiring the entire cache.
func (c *SharedCache[V]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchedAt = time.Time{}
}
