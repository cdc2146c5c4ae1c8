// Package cache provides a small TTL cache abstraction so hot-path stores
// can be tested with a no-op implementation.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache is a key-value cache with per-entry expiry.
type Cache[V any] interface {
	// Get returns the cached value and whether it was present and fresh.
	Get(key string) (V, bool)

	// Set stores a value under key.
	Set(key string, value V)

	// Delete removes a key.
	Delete(key string)

	// Purge removes all entries.
	Purge()
}

// TTL is an expirable LRU-backed cache.
type TTL[V any] struct {
	lru *expirable.LRU[string, V]
}

// NewTTL creates a cache holding up to size entries, each expiring ttl after
// being set. A size of 0 means an unbounded entry count.
func NewTTL[V any](size int, ttl time.Duration) *TTL[V] {
	return &TTL[V]{lru: expirable.NewLRU[string, V](size, nil, ttl)}
}

func (c *TTL[V]) Get(key string) (V, bool) { return c.lru.Get(key) }

func (c *TTL[V]) Set(key string, value V) { c.lru.Add(key, value) }

func (c *TTL[V]) Delete(key string) { c.lru.Remove(key) }

func (c *TTL[V]) Purge() { c.lru.Purge() }

// Nop is a cache that stores nothing. Useful in tests that need every read
// to hit the backing store.
type Nop[V any] struct{}

// NewNop returns a no-op cache.
func NewNop[V any]() Nop[V] { return Nop[V]{} }

func (Nop[V]) Get(string) (V, bool) {
	var zero V
	return zero, false
}

func (Nop[V]) Set(string, V) {}

func (Nop[V]) Delete(string) {}

func (Nop[V]) Purge() {}
