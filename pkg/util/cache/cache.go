// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.
//
// This code is based on: https://github.com/golang/groupcache/

package cache

import "container/list"

// EvictionPolicy is the cache eviction policy enum.
type EvictionPolicy int

// Constants describing LRU and FIFO cache eviction policies respectively.
const (
	CacheLRU  EvictionPolicy = iota // Least recently used
	CacheFIFO                       // First in, first out
)

// TypedConfig contains the modifiable cache parameters for a typed cache.
type TypedConfig[K comparable, V any] struct {
	// Policy is one of the consts listed for EvictionPolicy.
	Policy EvictionPolicy

	// ShouldEvict is a callback function executed each time a new entry is
	// added to the cache. It supplies cache size, and potential evictee's key
	// and value. The function should return true if the entry may be evicted;
	// false otherwise.
	ShouldEvict func(size int, key K, value V) bool

	// OnEvicted optionally specifies a callback function to be executed when
	// an entry is purged from the cache.
	OnEvicted func(key K, value V)
}

type entry[K comparable, V any] struct {
	key   K
	value V
}

// TypedUnorderedCache is a cache of key-value pairs addressable only by
// exact key match, backed by a map. Entries are maintained in either LRU or
// FIFO order depending on the eviction policy. It is not thread safe.
type TypedUnorderedCache[K comparable, V any] struct {
	cfg TypedConfig[K, V]
	ll  *list.List
	m   map[K]*list.Element
}

// NewTypedUnorderedCache creates a new TypedUnorderedCache backed by a map.
func NewTypedUnorderedCache[K comparable, V any](cfg TypedConfig[K, V]) *TypedUnorderedCache[K, V] {
	return &TypedUnorderedCache[K, V]{
		cfg: cfg,
		ll:  list.New(),
		m:   map[K]*list.Element{},
	}
}

// Add adds a value to the cache, possibly evicting older entries per the
// eviction policy.
func (c *TypedUnorderedCache[K, V]) Add(key K, value V) {
	if e, ok := c.m[key]; ok {
		c.access(e)
		e.Value.(*entry[K, V]).value = value
		return
	}
	e := c.ll.PushFront(&entry[K, V]{key: key, value: value})
	c.m[key] = e

	// Evict as long as the policy says the oldest entry should go.
	for c.cfg.ShouldEvict != nil {
		back := c.ll.Back()
		if back == nil {
			return
		}
		victim := back.Value.(*entry[K, V])
		if !c.cfg.ShouldEvict(c.ll.Len(), victim.key, victim.value) {
			return
		}
		c.removeElement(back)
	}
}

// Get looks up a key's value from the cache. On a hit under the LRU policy
// the entry becomes the most recently used.
func (c *TypedUnorderedCache[K, V]) Get(key K) (V, bool) {
	if e, ok := c.m[key]; ok {
		c.access(e)
		return e.Value.(*entry[K, V]).value, true
	}
	var zero V
	return zero, false
}

// Del removes the provided key from the cache, if present.
func (c *TypedUnorderedCache[K, V]) Del(key K) {
	if e, ok := c.m[key]; ok {
		c.removeElement(e)
	}
}

// Clear purges all entries, invoking OnEvicted for each.
func (c *TypedUnorderedCache[K, V]) Clear() {
	for c.ll.Len() > 0 {
		c.removeElement(c.ll.Back())
	}
}

// Len returns the number of entries in the cache.
func (c *TypedUnorderedCache[K, V]) Len() int {
	return c.ll.Len()
}

func (c *TypedUnorderedCache[K, V]) access(e *list.Element) {
	if c.cfg.Policy == CacheLRU {
		c.ll.MoveToFront(e)
	}
}

func (c *TypedUnorderedCache[K, V]) removeElement(e *list.Element) {
	c.ll.Remove(e)
	ent := e.Value.(*entry[K, V])
	delete(c.m, ent.key)
	if c.cfg.OnEvicted != nil {
		c.cfg.OnEvicted(ent.key, ent.value)
	}
}
