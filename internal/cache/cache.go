// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

// Package cache provides an in-memory cache with TTL-based expiration.
package cache

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Entry represents a single cached entry with an expiration time.
type Entry[V any] struct {
	// Value is the cached value (zero value for negative entries).
	Value V

	// Err is non-nil for negative cache entries (e.g., not found).
	Err error

	// ExpiresAt is the time at which this entry should be considered expired.
	ExpiresAt time.Time
}

// Cache is an in-memory cache keyed by string.
type Cache[V any] struct {
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	mu      sync.RWMutex
	entries map[string]Entry[V]

	stop chan struct{}

	attrs      metric.MeasurementOption
	hits       metric.Int64Counter
	misses     metric.Int64Counter
	evictions  metric.Int64Counter
	entryGauge metric.Int64UpDownCounter
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	name string
	now  func() time.Time
}

// WithName labels the cache's metrics with cache.name.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// withClock replaces time.Now. Used by tests.
func withClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New creates a new Cache with the specified TTL and maximum number of entries.
// A background goroutine is started to periodically remove expired entries.
// Call Stop to terminate the background goroutine.
//
// If ttl is 0, the cache is effectively disabled: Get always returns false
// and Set is a no-op. When the cache is full the entry closest to expiry is
// evicted. A maxSize of 0 or less means no limit.
func New[V any](ttl time.Duration, maxSize int, opts ...Option) *Cache[V] {
	o := options{name: "default", now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	meter := otel.Meter("github_explorer.cache")

	hits, _ := meter.Int64Counter("github_explorer.cache.hits",
		metric.WithDescription("Number of cache hits"),
	)
	misses, _ := meter.Int64Counter("github_explorer.cache.misses",
		metric.WithDescription("Number of cache misses"),
	)
	evictions, _ := meter.Int64Counter("github_explorer.cache.evictions",
		metric.WithDescription("Number of cache evictions"),
	)
	entryGauge, _ := meter.Int64UpDownCounter("github_explorer.cache.entries",
		metric.WithDescription("Current number of cache entries"),
	)

	c := &Cache[V]{
		ttl:        ttl,
		maxSize:    maxSize,
		now:        o.now,
		entries:    make(map[string]Entry[V]),
		stop:       make(chan struct{}),
		attrs:      metric.WithAttributes(attribute.String("cache.name", o.name)),
		hits:       hits,
		misses:     misses,
		evictions:  evictions,
		entryGauge: entryGauge,
	}

	if ttl > 0 {
		go c.cleanupLoop()
	}

	return c
}

// cleanupLoop periodically removes expired entries from the cache.
// It runs every TTL/2 or every 30 seconds, whichever is smaller.
func (c *Cache[V]) cleanupLoop() {
	interval := min(c.ttl/2, 30*time.Second)
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

// removeExpired removes all entries that have passed their expiration time.
func (c *Cache[V]) removeExpired() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
			c.entryGauge.Add(context.Background(), -1, c.attrs)
		}
	}
}

// Get retrieves a cached entry for the given key.
// Returns the value, an optional error (for negative cache entries),
// and whether the entry was found.
//
// If the cache was created with a zero TTL, Get always returns a miss.
func (c *Cache[V]) Get(key string) (V, error, bool) {
	ctx := context.Background()
	var zero V

	if c.ttl == 0 {
		c.misses.Add(ctx, 1, c.attrs)
		return zero, nil, false
	}

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.now().After(entry.ExpiresAt) {
		c.misses.Add(ctx, 1, c.attrs)
		return zero, nil, false
	}

	c.hits.Add(ctx, 1, c.attrs)
	return entry.Value, entry.Err, true
}

// Set stores a value for the given key.
// Pass a non-nil err to cache a negative result.
// The entry expires after the cache's TTL has elapsed.
//
// If the cache was created with a zero TTL, Set is a no-op.
func (c *Cache[V]) Set(key string, value V, err error) {
	if c.ttl == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, exists := c.entries[key]

	// Evict the entry closest to expiry if we're at capacity and this is a new key.
	if !exists && c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[key] = Entry[V]{
		Value:     value,
		Err:       err,
		ExpiresAt: c.now().Add(c.ttl),
	}
	if !exists {
		c.entryGauge.Add(context.Background(), 1, c.attrs)
	}
}

// evictOldest removes the entry with the earliest ExpiresAt time.
// Must be called with c.mu held.
func (c *Cache[V]) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	first := true

	for key, entry := range c.entries {
		if first || entry.ExpiresAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.ExpiresAt
			first = false
		}
	}

	if !first {
		delete(c.entries, oldestKey)
		ctx := context.Background()
		c.entryGauge.Add(ctx, -1, c.attrs)
		c.evictions.Add(ctx, 1, c.attrs)
	}
}

// Delete removes the entry for the given key.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		delete(c.entries, key)
		c.entryGauge.Add(context.Background(), -1, c.attrs)
	}
}

// Stop terminates the background cleanup goroutine.
func (c *Cache[V]) Stop() {
	select {
	case <-c.stop:
		// Already stopped.
	default:
		close(c.stop)
	}
}

// Len returns the number of entries currently in the cache.
// This includes entries that may have expired but have not yet been cleaned up.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
