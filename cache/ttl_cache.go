// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package cache provides a TTL cache with single-flight fetching, used to
// memoize collected attestations.
package cache

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache caches fetched values for a fixed duration. Concurrent fetches for
// the same key are deduplicated: only one fetch runs, the rest share its
// result.
type TTLCache[K comparable, V any] struct {
	ttl   time.Duration
	group singleflight.Group

	mu      sync.Mutex
	entries map[K]entry[V]
}

// NewTTLCache creates an empty cache whose entries expire after ttl.
func NewTTLCache[K comparable, V any](ttl time.Duration) *TTLCache[K, V] {
	return &TTLCache[K, V]{
		ttl:     ttl,
		entries: make(map[K]entry[V]),
	}
}

// Get returns the cached value for key if it has not expired, otherwise runs
// fetch and caches the result. Fetch errors are returned to every waiter and
// nothing is cached, so the next Get retries.
func (c *TTLCache[K, V]) Get(key K, fetch func(K) (V, error)) (V, error) {
	if value, ok := c.lookup(key); ok {
		return value, nil
	}

	fetched, err, _ := c.group.Do(flightKey(key), func() (interface{}, error) {
		// A caller that lost the race to an already-finished fetch reuses
		// its freshly stored result instead of fetching again.
		if value, ok := c.lookup(key); ok {
			return value, nil
		}
		value, err := fetch(key)
		if err != nil {
			var zero V
			return zero, err
		}
		c.store(key, value)
		return value, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return fetched.(V), nil
}

// Evict drops key from the cache. The next Get for it runs a fresh fetch.
func (c *TTLCache[K, V]) Evict(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len reports the number of live entries.
func (c *TTLCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *TTLCache[K, V]) lookup(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *TTLCache[K, V]) store(key K, value V) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	// Expired entries are swept on write so keys that are never read again do
	// not accumulate.
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = entry[V]{value: value, expiresAt: now.Add(c.ttl)}
}

// flightKey accepts both fmt.Stringer keys and primitive types.
func flightKey[K comparable](key K) string {
	if s, ok := any(key).(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", key)
}
