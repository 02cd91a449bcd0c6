// Package cache provides a small generic LRU cache, grounded on
// internal/embed.CachedEmbedder's use of golang-lru/v2. Completion uses one
// instance keyed by root path to cache the snippets gathered for a symbol
// lookup, avoiding redundant AST walks on every keystroke.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize matches completion's root-path-snippet cache budget.
const DefaultSize = 100

// LRU wraps a fixed-capacity least-recently-used cache.
type LRU[K comparable, V any] struct {
	inner *lru.Cache[K, V]
}

// New creates an LRU cache holding at most size entries. size <= 0 uses DefaultSize.
func New[K comparable, V any](size int) (*LRU[K, V], error) {
	if size <= 0 {
		size = DefaultSize
	}
	inner, err := lru.New[K, V](size)
	if err != nil {
		return nil, err
	}
	return &LRU[K, V]{inner: inner}, nil
}

// Get returns the cached value for key, if present.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	return c.inner.Get(key)
}

// Add inserts or updates key's value, evicting the least-recently-used
// entry if the cache is at capacity.
func (c *LRU[K, V]) Add(key K, value V) {
	c.inner.Add(key, value)
}

// Remove drops key from the cache, if present.
func (c *LRU[K, V]) Remove(key K) {
	c.inner.Remove(key)
}

// Len returns the number of entries currently cached.
func (c *LRU[K, V]) Len() int {
	return c.inner.Len()
}

// Purge clears every entry.
func (c *LRU[K, V]) Purge() {
	c.inner.Purge()
}
