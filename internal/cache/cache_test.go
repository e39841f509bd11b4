package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock for deterministic TTL tests.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func TestCacheGetPut(t *testing.T) {
	clock := newFakeClock()
	c := New[string](time.Hour, clock.Now)

	_, ok := c.Get("AAA")
	assert.False(t, ok, "empty cache should miss")

	c.Put("AAA", "result")
	got, ok := c.Get("AAA")
	require.True(t, ok)
	assert.Equal(t, "result", got)
}

func TestCacheExpiry(t *testing.T) {
	clock := newFakeClock()
	c := New[int](time.Hour, clock.Now)

	c.Put("AAA", 1)

	clock.Advance(59 * time.Minute)
	_, ok := c.Get("AAA")
	assert.True(t, ok, "entry within TTL should hit")

	clock.Advance(time.Minute)
	_, ok = c.Get("AAA")
	assert.False(t, ok, "entry exactly at TTL should miss")

	// Lazy expiry: the entry is still physically stored.
	assert.Equal(t, 1, c.Len())
}

func TestCachePutResetsAge(t *testing.T) {
	clock := newFakeClock()
	c := New[int](time.Hour, clock.Now)

	c.Put("AAA", 1)
	clock.Advance(50 * time.Minute)
	c.Put("AAA", 2)
	clock.Advance(50 * time.Minute)

	got, ok := c.Get("AAA")
	require.True(t, ok, "overwrite should restart the TTL")
	assert.Equal(t, 2, got)
}

func TestCacheInvalidate(t *testing.T) {
	c := New[int](time.Hour, nil)

	c.Put("AAA", 1)
	c.Put("BBB", 2)

	c.Invalidate("AAA")
	_, ok := c.Get("AAA")
	assert.False(t, ok)
	_, ok = c.Get("BBB")
	assert.True(t, ok)

	c.InvalidateAll()
	assert.Equal(t, 0, c.Len())
}
