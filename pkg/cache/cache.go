// Package cache implements a small in-memory TTL cache with optional
// stale reads. Expired entries are evicted lazily on read, or in bulk by
// PurgeExpired. Reads that explicitly allow stale values keep the entry
// alive so rate-limited callers can trade freshness for availability.
package cache

import (
	"sync"
	"time"
)

// DefaultTTL is the time-to-live applied by Set.
const DefaultTTL = 10 * time.Second

// Entry wraps a cached value with its absolute expiry time.
type Entry[T any] struct {
	Value     T
	ExpiresAt time.Time
}

// Cache is a string-keyed TTL cache. All methods are safe for concurrent
// use; concurrent writes to the same key are last-write-wins.
type Cache[T any] struct {
	mu      sync.Mutex
	entries map[string]Entry[T]
	ttl     time.Duration
}

// New creates a cache with the given default TTL.
// A non-positive TTL falls back to DefaultTTL.
func New[T any](ttl time.Duration) *Cache[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache[T]{
		entries: make(map[string]Entry[T]),
		ttl:     ttl,
	}
}

// Get returns a fresh value for key. An expired entry is evicted and
// reported as absent.
func (c *Cache[T]) Get(key string) (T, bool) {
	value, _, ok := c.Lookup(key, false)
	return value, ok
}

// Lookup returns the value for key along with its staleness.
//
// If the entry is missing, ok is false. If the entry has expired and
// allowStale is false, the entry is evicted and ok is false. If the entry
// has expired and allowStale is true, the value is returned with
// stale=true and the entry is retained.
func (c *Cache[T]) Lookup(key string, allowStale bool) (value T, stale bool, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, found := c.entries[key]
	if !found {
		return value, false, false
	}

	expired := time.Now().After(entry.ExpiresAt)
	if expired && !allowStale {
		delete(c.entries, key)
		return value, false, false
	}

	return entry.Value, expired, true
}

// Set stores value under key with the cache's default TTL.
func (c *Cache[T]) Set(key string, value T) {
	c.SetTTL(key, value, c.ttl)
}

// SetTTL stores value under key with an explicit TTL, overwriting any
// existing entry and resetting its expiry.
func (c *Cache[T]) SetTTL(key string, value T, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = Entry[T]{
		Value:     value,
		ExpiresAt: time.Now().Add(ttl),
	}
}

// PurgeExpired evicts every entry whose expiry has passed. Intended for
// size reporting and periodic maintenance, not hot paths.
func (c *Cache[T]) PurgeExpired() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
		}
	}
}

// Size purges expired entries and returns the number of live ones.
func (c *Cache[T]) Size() int {
	c.PurgeExpired()
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
