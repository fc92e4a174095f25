// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newBoundedCache(policy EvictionPolicy, size int, evicted *[]string) *TypedUnorderedCache[string, int] {
	return NewTypedUnorderedCache(TypedConfig[string, int]{
		Policy: policy,
		ShouldEvict: func(n int, key string, value int) bool {
			return n > size
		},
		OnEvicted: func(key string, value int) {
			*evicted = append(*evicted, key)
		},
	})
}

func TestCacheLRUEviction(t *testing.T) {
	var evicted []string
	c := newBoundedCache(CacheLRU, 2, &evicted)

	c.Add("a", 1)
	c.Add("b", 2)
	// Touch "a" so "b" becomes the eviction candidate.
	_, ok := c.Get("a")
	require.True(t, ok)
	c.Add("c", 3)

	require.Equal(t, []string{"b"}, evicted)
	require.Equal(t, 2, c.Len())
	_, ok = c.Get("b")
	require.False(t, ok)
	_, ok = c.Get("a")
	require.True(t, ok)
}

func TestCacheFIFOEviction(t *testing.T) {
	var evicted []string
	c := newBoundedCache(CacheFIFO, 2, &evicted)

	c.Add("a", 1)
	c.Add("b", 2)
	// Under FIFO a hit does not refresh the entry.
	_, ok := c.Get("a")
	require.True(t, ok)
	c.Add("c", 3)

	require.Equal(t, []string{"a"}, evicted)
}

func TestCacheAddExisting(t *testing.T) {
	var evicted []string
	c := newBoundedCache(CacheLRU, 2, &evicted)

	c.Add("a", 1)
	c.Add("a", 10)
	require.Equal(t, 1, c.Len())
	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, 10, v)
	require.Empty(t, evicted)
}

func TestCacheDel(t *testing.T) {
	var evicted []string
	c := newBoundedCache(CacheLRU, 4, &evicted)

	c.Add("a", 1)
	c.Del("a")
	c.Del("missing")
	require.Zero(t, c.Len())
	require.Equal(t, []string{"a"}, evicted)
}

func TestCacheClear(t *testing.T) {
	var evicted []string
	c := newBoundedCache(CacheLRU, 4, &evicted)

	c.Add("a", 1)
	c.Add("b", 2)
	c.Clear()
	require.Zero(t, c.Len())
	require.Len(t, evicted, 2)
}
