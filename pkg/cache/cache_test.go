package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestCache_GetSetExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := NewCacheWithClock(30*time.Second, clock.Now)

	c.Set("a", 1)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	clock.Advance(30 * time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())
}

func TestCache_SetIfAbsent(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := NewCacheWithClock(30*time.Second, clock.Now)

	assert.True(t, c.SetIfAbsent("tag", struct{}{}))
	assert.False(t, c.SetIfAbsent("tag", struct{}{}))

	clock.Advance(29 * time.Second)
	assert.False(t, c.SetIfAbsent("tag", struct{}{}))

	clock.Advance(time.Second)
	assert.True(t, c.SetIfAbsent("tag", struct{}{}))
}

func TestCache_Invalidate(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := NewCacheWithClock(time.Minute, clock.Now)

	c.Set("incident:1", true)
	c.Set("incident:2", true)
	c.SetWithTTL("system", true, time.Second)

	assert.Equal(t, 2, c.Invalidate("incident:"))
	clock.Advance(2 * time.Second)
	assert.Equal(t, 1, c.Invalidate(""))
	assert.Equal(t, 0, c.Size())
}

func TestCache_StopIsIdempotent(t *testing.T) {
	c := NewCache(10 * time.Millisecond)
	c.Set("k", "v")
	c.Stop()
	c.Stop()
	c.Clear()
	assert.Equal(t, 0, c.Size())
}
