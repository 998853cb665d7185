// ABOUTME: Generic in-memory TTL cache with an injectable clock
// ABOUTME: Holds per-principal sessions and pending OAuth states
package session

import (
	"fmt"
	gosync "sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type cacheEntry[V any] struct {
	value      V
	expiration time.Time
}

// Cache is a thread-safe map whose entries expire a fixed time after Set.
type Cache[K comparable, V any] struct {
	mu      gosync.Mutex
	entries map[K]*cacheEntry[V]
	ttl     time.Duration
	now     func() time.Time
	flight  singleflight.Group
}

// NewCache creates a cache. now may be nil to use time.Now.
func NewCache[K comparable, V any](ttl time.Duration, now func() time.Time) *Cache[K, V] {
	if now == nil {
		now = time.Now
	}
	return &Cache[K, V]{
		entries: make(map[K]*cacheEntry[V]),
		ttl:     ttl,
		now:     now,
	}
}

func (c *Cache[K, V]) expired(e *cacheEntry[V]) bool {
	return !c.now().Before(e.expiration)
}

// Get returns the live value for key. Expired entries are removed.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	entry, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.expired(entry) {
		delete(c.entries, key)
		return zero, false
	}
	return entry.value, true
}

func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &cacheEntry[V]{value: value, expiration: c.now().Add(c.ttl)}
}

// GetOrCreate returns the live value for key or stores the result of create.
// create runs without the cache lock; concurrent misses on one key share a
// single call. Keys are grouped by their fmt representation.
func (c *Cache[K, V]) GetOrCreate(key K, create func() (V, error)) (V, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}

	v, err, _ := c.flight.Do(fmt.Sprint(key), func() (any, error) {
		if value, ok := c.Get(key); ok {
			return value, nil
		}
		value, err := create()
		if err != nil {
			return nil, err
		}
		c.Set(key, value)
		return value, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Pop removes key and returns its value if it was still live.
func (c *Cache[K, V]) Pop(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	entry, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	delete(c.entries, key)
	if c.expired(entry) {
		return zero, false
	}
	return entry.value, true
}

func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Sweep drops every expired entry and returns how many were removed.
func (c *Cache[K, V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if c.expired(entry) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len counts live entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, entry := range c.entries {
		if !c.expired(entry) {
			n++
		}
	}
	return n
}
