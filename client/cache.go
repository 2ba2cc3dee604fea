package client

import (
	"sync"
	"time"
)

// Identifiable is anything with a stable identity key.
type Identifiable interface {
	Identity() string
}

// Cache is an identity-keyed snapshot of one server collection. ApplyUpdate
// reconciles a single pushed resource; Rebaseline replaces the whole snapshot
// after a refetch. Both are last-write-wins and idempotent.
type Cache[T Identifiable] struct {
	mu        sync.RWMutex
	items     []T
	updatedAt time.Time
}

func NewCache[T Identifiable]() *Cache[T] {
	return &Cache[T]{}
}

// ApplyUpdate replaces the item with the same identity in place, preserving
// order; an unknown identity is appended. Applying the same update twice
// leaves the snapshot unchanged.
func (c *Cache[T]) ApplyUpdate(item T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := item.Identity()
	for i := range c.items {
		if c.items[i].Identity() == id {
			c.items[i] = item
			c.updatedAt = time.Now()
			return
		}
	}
	c.items = append(c.items, item)
	c.updatedAt = time.Now()
}

// Remove drops the item with the given identity, if present.
func (c *Cache[T]) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].Identity() == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			c.updatedAt = time.Now()
			return
		}
	}
}

// Rebaseline replaces the entire snapshot with a fresh server read.
func (c *Cache[T]) Rebaseline(items []T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make([]T, len(items))
	copy(c.items, items)
	c.updatedAt = time.Now()
}

// Snapshot returns a copy of the cached items and when the cache last
// changed. The age lets callers judge staleness while offline.
func (c *Cache[T]) Snapshot() ([]T, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]T, len(c.items))
	copy(out, c.items)
	return out, c.updatedAt
}

// Get returns the cached item with the given identity.
func (c *Cache[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := range c.items {
		if c.items[i].Identity() == id {
			return c.items[i], true
		}
	}
	var zero T
	return zero, false
}

// Len returns the number of cached items.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
