// Package lru is a bounded, thread-safe least-recently-used cache with
// hit/miss statistics and eviction notification. The indexed store uses it
// as an optional read-through layer in front of primary-record reads.
package lru

import (
	"errors"
	"sync"

	hlru "github.com/hashicorp/golang-lru/v2"
)

var ErrBadCapacity = errors.New("lru: capacity must be non-negative")

type Stats struct {
	Capacity int
	Size     int
	Hits     uint64
	Misses   uint64
	HitRate  float64
}

// Cache is fixed-capacity; there is no runtime resize. Capacity 0 disables
// caching entirely: every Get is a miss and every Put is a no-op.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	inner    *hlru.Cache[K, V]
	hits     uint64
	misses   uint64
}

// New builds a cache. onEvict, when non-nil, is called with the key of
// every entry pushed out by capacity; it runs under the cache lock and must
// not call back into the cache.
func New[K comparable, V any](capacity int, onEvict func(key K)) (*Cache[K, V], error) {
	if capacity < 0 {
		return nil, ErrBadCapacity
	}
	c := &Cache[K, V]{capacity: capacity}
	if capacity == 0 {
		return c, nil
	}
	inner, err := hlru.NewWithEvict(capacity, func(key K, _ V) {
		if onEvict != nil {
			onEvict(key)
		}
	})
	if err != nil {
		return nil, err
	}
	c.inner = inner
	return c, nil
}

// Get promotes the entry to most-recently-used on a hit.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero V
	if c.inner == nil {
		c.misses++
		return zero, false
	}
	v, ok := c.inner.Get(key)
	if ok {
		c.hits++
		return v, true
	}
	c.misses++
	return zero, false
}

func (c *Cache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inner == nil {
		return
	}
	c.inner.Add(key, value)
}

func (c *Cache[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inner == nil {
		return
	}
	c.inner.Remove(key)
}

func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inner == nil {
		return
	}
	c.inner.Purge()
}

func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{
		Capacity: c.capacity,
		Hits:     c.hits,
		Misses:   c.misses,
	}
	if c.inner != nil {
		s.Size = c.inner.Len()
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}
