package cache

import (
	"strings"
	"sync"
	"time"
)

// Item represents a cached value with expiration
type Item struct {
	Value     interface{}
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (item *Item) expired(now time.Time) bool {
	return !now.Before(item.ExpiresAt)
}

// Cache is a thread-safe in-memory cache with TTL support.
// Expired entries are removed lazily on access and periodically by a janitor
// goroutine when the cache is created with NewCache.
type Cache struct {
	items      map[string]*Item
	mu         sync.RWMutex
	defaultTTL time.Duration
	now        func() time.Time

	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewCache creates a cache with default TTL and starts the janitor
func NewCache(defaultTTL time.Duration) *Cache {
	c := newCache(defaultTTL, time.Now)
	interval := defaultTTL / 2
	if interval <= 0 {
		interval = time.Second
	}
	go c.cleanup(interval)
	return c
}

// NewCacheWithClock creates a cache without a janitor that reads time from now
func NewCacheWithClock(defaultTTL time.Duration, now func() time.Time) *Cache {
	return newCache(defaultTTL, now)
}

func newCache(defaultTTL time.Duration, now func() time.Time) *Cache {
	return &Cache{
		items:       make(map[string]*Item),
		defaultTTL:  defaultTTL,
		now:         now,
		stopCleanup: make(chan struct{}),
	}
}

// Get retrieves a value from cache
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, exists := c.items[key]
	if !exists || item.expired(c.now()) {
		return nil, false
	}
	return item.Value, true
}

// Set stores a value in cache with default TTL
func (c *Cache) Set(key string, value interface{}) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores a value in cache with custom TTL
func (c *Cache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.items[key] = &Item{
		Value:     value,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

// SetIfAbsent stores value under key unless a live entry already exists.
// It reports whether the value was stored.
func (c *Cache) SetIfAbsent(key string, value interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if item, ok := c.items[key]; ok && !item.expired(now) {
		return false
	}
	c.items[key] = &Item{
		Value:     value,
		ExpiresAt: now.Add(c.defaultTTL),
		CreatedAt: now,
	}
	return true
}

// Delete removes a key from cache
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Clear removes all items from cache
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*Item)
}

// Invalidate removes keys with the given prefix, or every expired key when prefix is empty
func (c *Cache) Invalidate(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	now := c.now()
	for key, item := range c.items {
		if (prefix == "" && item.expired(now)) || (prefix != "" && strings.HasPrefix(key, prefix)) {
			delete(c.items, key)
			removed++
		}
	}
	return removed
}

func (c *Cache) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Invalidate("")
		case <-c.stopCleanup:
			return
		}
	}
}

// Stop stops the janitor goroutine. Safe to call more than once.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCleanup) })
}

// Size returns the number of live items
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	n := 0
	for _, item := range c.items {
		if !item.expired(now) {
			n++
		}
	}
	return n
}
