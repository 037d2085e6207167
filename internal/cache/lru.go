// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

// Package cache provides the bounded, TTL-evicting LRU cache backing the
// identity and impersonation caches of the authentication pipeline.
package cache

import (
	"sync"
	"time"
)

// entry is a node in the LRU's doubly-linked list.
type entry[V any] struct {
	key       string
	value     V
	prev      *entry[V]
	next      *entry[V]
	expiresAt time.Time
}

// LRU is a thread-safe least-recently-used cache with TTL support.
// All operations are O(1). Expiry is lazy: expired entries are dropped on
// access or by an explicit CleanupExpired sweep.
//
// The doubly-linked list plus hashmap layout follows the usual LRU
// construction: head.next is the most recently used entry, tail.prev the
// least recently used.
type LRU[V any] struct {
	mu sync.RWMutex

	capacity int
	ttl      time.Duration

	items map[string]*entry[V]
	head  *entry[V]
	tail  *entry[V]

	hits   int64
	misses int64
}

// NewLRU creates an LRU cache with the given capacity and TTL.
// Non-positive capacity or TTL fall back to 10000 entries / 1 hour.
func NewLRU[V any](capacity int, ttl time.Duration) *LRU[V] {
	if capacity <= 0 {
		capacity = 10000
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	c := &LRU[V]{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*entry[V], capacity),
		head:     &entry[V]{},
		tail:     &entry[V]{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Get retrieves an entry, moving it to the front on a hit.
// Returns the zero value and false for missing or expired keys.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		if time.Now().After(e.expiresAt) {
			c.removeEntry(e)
			c.misses++
			var zero V
			return zero, false
		}
		c.moveToFront(e)
		c.hits++
		return e.value, true
	}

	c.misses++
	var zero V
	return zero, false
}

// Contains reports whether a key exists and is not expired, without
// updating the access order.
func (c *LRU[V]) Contains(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if e, ok := c.items[key]; ok {
		return !time.Now().After(e.expiresAt)
	}
	return false
}

// Add inserts or updates an entry. The least recently used entry is
// evicted when the cache is at capacity.
func (c *LRU[V]) Add(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := time.Now().Add(c.ttl)

	if e, ok := c.items[key]; ok {
		e.value = value
		e.expiresAt = expiresAt
		c.moveToFront(e)
		return
	}

	e := &entry[V]{key: key, value: value, expiresAt: expiresAt}
	c.addToFront(e)
	c.items[key] = e

	for len(c.items) > c.capacity {
		c.evictOldest()
	}
}

// Remove deletes an entry. Returns true if the entry existed.
func (c *LRU[V]) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		c.removeEntry(e)
		return true
	}
	return false
}

// Len returns the current number of entries.
func (c *LRU[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Clear removes all entries.
func (c *LRU[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*entry[V], c.capacity)
	c.head.next = c.tail
	c.tail.prev = c.head
}

// CleanupExpired removes all expired entries and returns how many were
// dropped.
func (c *LRU[V]) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for _, e := range c.items {
		if now.After(e.expiresAt) {
			c.removeEntry(e)
			removed++
		}
	}
	return removed
}

// Stats returns hit/miss counters and the current size.
func (c *LRU[V]) Stats() (hits, misses int64, size int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses, len(c.items)
}

func (c *LRU[V]) addToFront(e *entry[V]) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *LRU[V]) moveToFront(e *entry[V]) {
	e.prev.next = e.next
	e.next.prev = e.prev
	c.addToFront(e)
}

func (c *LRU[V]) removeEntry(e *entry[V]) {
	e.prev.next = e.next
	e.next.prev = e.prev
	delete(c.items, e.key)
}

func (c *LRU[V]) evictOldest() {
	oldest := c.tail.prev
	if oldest == c.head {
		return
	}
	c.removeEntry(oldest)
}
