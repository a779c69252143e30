// Package idcache provides an identity cache: at most one current in-memory
// representation per entity identifier.
//
// The cache is an explicitly constructed object owned by a repository. It has
// no eviction policy; entries live until Invalidate or Clear. Unbounded growth
// is an accepted tradeoff.
package idcache

import (
	"context"
	"sync"
)

// FetchFunc loads the authoritative entity for an identifier.
type FetchFunc[K comparable, V any] func(ctx context.Context, id K) (V, error)

// Cache maps identifiers to their most recently fetched entity.
//
// Lookup and insert for an identifier are one logical operation under a
// single mutex. Fetches run outside the lock, so two concurrent misses for
// the same identifier may both fetch; the first to store wins and every
// caller returns that instance.
//
// Every invalidation advances an epoch. A fetch that started before an
// invalidation is returned to its caller but not stored, so a write can never
// be hidden by a stale fetch finishing late.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]V
	epoch   uint64

	metrics *Metrics
}

// Option configures a Cache.
type Option[K comparable, V any] func(*Cache[K, V])

// WithMetrics records cache activity in m.
func WithMetrics[K comparable, V any](m *Metrics) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.metrics = m
	}
}

// New creates an empty cache.
func New[K comparable, V any](opts ...Option[K, V]) *Cache[K, V] {
	c := &Cache[K, V]{entries: make(map[K]V)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrCompute returns the cached entity for id, the same instance on every
// call, or fetches, stores and returns it. Fetch errors propagate and nothing
// is stored.
func (c *Cache[K, V]) GetOrCompute(ctx context.Context, id K, fetch FetchFunc[K, V]) (V, error) {
	c.mu.Lock()
	if v, ok := c.entries[id]; ok {
		c.mu.Unlock()
		c.metrics.hit()
		return v, nil
	}
	epoch := c.epoch
	c.mu.Unlock()
	c.metrics.miss()

	v, err := fetch(ctx, id)
	if err != nil {
		c.metrics.fetchError()
		var zero V
		return zero, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[id]; ok {
		return existing, nil
	}
	if c.epoch == epoch {
		c.entries[id] = v
	}
	return v, nil
}

// Refresh drops the current entry, fetches id again and stores the result,
// replacing whatever a concurrent GetOrCompute stored meanwhile. As with
// GetOrCompute, a result overtaken by an invalidation is returned but not
// stored.
//
// The fetch function must build a new instance per call; the returned value
// is then never the one cached before. On fetch failure the entry stays
// removed.
func (c *Cache[K, V]) Refresh(ctx context.Context, id K, fetch FetchFunc[K, V]) (V, error) {
	c.mu.Lock()
	delete(c.entries, id)
	c.epoch++
	epoch := c.epoch
	c.mu.Unlock()
	c.metrics.invalidation()
	c.metrics.refresh()

	v, err := fetch(ctx, id)
	if err != nil {
		c.metrics.fetchError()
		var zero V
		return zero, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch == epoch {
		c.entries[id] = v
		c.epoch++
	}
	return v, nil
}

// peek returns the cached entity without fetching.
func (c *Cache[K, V]) peek(id K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[id]
	return v, ok
}

// Invalidate removes the entry for id, if present. Idempotent.
func (c *Cache[K, V]) Invalidate(id K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	c.epoch++
	c.metrics.invalidation()
}

// Clear removes all entries.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
	c.epoch++
	c.metrics.invalidation()
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
