// Package cache provides a process-wide entity cache keyed by string ID.
//
// The cache is the only shared mutable state inside a service: message
// handlers, scheduled callbacks, and HTTP trigger endpoints all read and
// write it concurrently. Entries live for the process lifetime; there is
// no eviction and no persistence.
//
// Writes are unconditional overwrites (last-writer-wins). A stale update
// delivered late silently overwrites a newer state; callers that need
// ordering must enforce it themselves.
package cache

import "sync"

// Cache is a thread-safe mapping from entity ID to entity state.
// Construct with New and inject it into every component that needs it.
type Cache[T any] struct {
	mu      sync.RWMutex
	entries map[string]T
}

// New creates an empty cache.
func New[T any]() *Cache[T] {
	return &Cache[T]{entries: make(map[string]T)}
}

// Get returns the entity for id and whether it is present.
func (c *Cache[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[id]
	return v, ok
}

// Put stores the entity under id, overwriting any existing entry.
func (c *Cache[T]) Put(id string, entity T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = entity
}

// Values returns a snapshot of all entities in unspecified order.
func (c *Cache[T]) Values() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	values := make([]T, 0, len(c.entries))
	for _, v := range c.entries {
		values = append(values, v)
	}
	return values
}

// Snapshot returns a copy of the full ID-to-entity mapping.
func (c *Cache[T]) Snapshot() map[string]T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m := make(map[string]T, len(c.entries))
	for k, v := range c.entries {
		m[k] = v
	}
	return m
}

// Len returns the number of cached entities.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
