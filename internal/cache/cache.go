// Package cache provides a bounded in-memory key-value store with per-entry
// TTL and least-recently-used eviction. It shields expensive deterministic
// work (LLM generation, computed API responses) from being repeated within
// a validity window.
//
// The cache is key-agnostic: callers derive stable keys from their semantic
// inputs (see keys.go). Absence is a normal outcome, never an error, and
// process restart loses all state by design - this is an optimization
// layer, not a source of truth.
package cache

import (
	"context"
	"sync"
	"time"

	"autoforms/pkg/requestclock"
)

// Backend is the store contract shared by the in-memory cache and the
// Redis-backed store. Implementations never surface errors to callers:
// a failed read is a miss, a failed write is a no-op (logged by the
// implementation).
type Backend interface {
	Get(ctx context.Context, key string) (any, bool)
	Set(ctx context.Context, key string, value any, ttl time.Duration)
	Delete(ctx context.Context, key string)
	DeletePrefix(ctx context.Context, prefix string)
	Clear(ctx context.Context)
}

// maxSweepPerSet bounds the opportunistic expired-entry sweep performed on
// each Set, so a write never holds the lock for a full-map scan.
const maxSweepPerSet = 10

// entry holds one cached value with expiry and access metadata.
type entry struct {
	value        any
	expiresAt    time.Time // zero means no expiry
	createdAt    time.Time
	lastAccessed time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Cache is the bounded in-memory TTL store. Safe for concurrent use; a
// single mutex guards the map, which keeps get/set/eviction atomic with
// respect to each other.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	maxSize int
	metrics *Metrics
}

// Option configures a Cache instance.
type Option func(*Cache)

// WithMetrics sets the metrics recorder.
func WithMetrics(m *Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// New creates a cache bounded to maxSize entries. There is no resizing
// after construction.
func New(maxSize int, opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		maxSize: maxSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value for key if present and unexpired. An expired entry
// is removed on the spot and reported as a miss. A hit refreshes the
// entry's last-accessed stamp.
func (c *Cache) Get(ctx context.Context, key string) (any, bool) {
	now := requestclock.Now(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.metrics.RecordMiss()
		return nil, false
	}
	if e.expired(now) {
		delete(c.entries, key)
		c.metrics.RecordExpired(1)
		c.metrics.RecordMiss()
		return nil, false
	}

	e.lastAccessed = now
	c.metrics.RecordHit()
	return e.value, true
}

// Set stores value under key. ttl <= 0 means no expiry. An existing entry
// for the same key is overwritten. When the cache is full, the entry with
// the oldest last-accessed stamp is evicted to make room; expired entries
// are also swept opportunistically (bounded per call).
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	now := requestclock.Now(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepExpiredLocked(now, maxSweepPerSet)

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}

	e := &entry{
		value:        value,
		createdAt:    now,
		lastAccessed: now,
	}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	c.entries[key] = e
}

// Delete removes the entry for key, if any.
func (c *Cache) Delete(ctx context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// DeletePrefix removes every entry whose key starts with prefix. Used to
// invalidate all cached state for one logical owner (e.g. a user).
func (c *Cache) DeletePrefix(ctx context.Context, prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(c.entries, key)
		}
	}
}

// Clear removes all entries unconditionally. Calling Clear on an empty
// cache is a no-op.
func (c *Cache) Clear(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// Len returns the number of entries currently held, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// SweepExpired removes every already-expired entry and returns the count.
// Called by the background reaper; Set's bounded sweep handles steady
// state, this handles bursts of writes that were never read again.
func (c *Cache) SweepExpired(ctx context.Context) int {
	now := requestclock.Now(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
			removed++
		}
	}
	c.metrics.RecordExpired(removed)
	return removed
}

// Stats is a monitoring snapshot of the cache contents.
type Stats struct {
	TotalEntries   int `json:"total_entries"`
	ActiveEntries  int `json:"active_entries"`
	ExpiredEntries int `json:"expired_entries"`
	MaxSize        int `json:"max_size"`
}

// Snapshot reports current cache statistics.
func (c *Cache) Snapshot(ctx context.Context) Stats {
	now := requestclock.Now(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	expired := 0
	for _, e := range c.entries {
		if e.expired(now) {
			expired++
		}
	}
	return Stats{
		TotalEntries:   len(c.entries),
		ActiveEntries:  len(c.entries) - expired,
		ExpiredEntries: expired,
		MaxSize:        c.maxSize,
	}
}

// evictOldestLocked removes the single entry with the oldest last-accessed
// stamp. Ties break on first-found in iteration order. Must be called with
// the lock held and a non-empty map.
func (c *Cache) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	first := true
	for key, e := range c.entries {
		if first || e.lastAccessed.Before(oldest) {
			oldestKey = key
			oldest = e.lastAccessed
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
		c.metrics.RecordEviction()
	}
}

// sweepExpiredLocked removes up to limit expired entries. Must be called
// with the lock held.
func (c *Cache) sweepExpiredLocked(now time.Time, limit int) {
	removed := 0
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
			removed++
			if removed >= limit {
				break
			}
		}
	}
	c.metrics.RecordExpired(removed)
}
