// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package pgclient

import (
	"github.com/cockroachdb/pgdriver/pkg/util/cache"
	"github.com/cockroachdb/pgdriver/pkg/util/syncutil"
	"github.com/lib/pq/oid"
)

// preparedStmt is one server-side prepared statement tracked by the cache.
type preparedStmt struct {
	name string
	sql  string
	// paramOids are the statement's parameter types: server-described for
	// statements created through Prepare, declared at Parse time for
	// statements prepared implicitly. Either way, later Binds encode against
	// them. A zero OID leaves the parameter to server-side inference and the
	// value travels as text.
	paramOids []oid.Oid
}

// stmtCache tracks server-side prepared statements keyed by SQL text, bounded
// LRU. Evicted statements are not closed inline; their names queue up in
// pendingClose and ride along with the next message batch, so eviction never
// costs an extra round trip. The mutex lets Info read the cache size while an
// operation mutates the cache.
type stmtCache struct {
	mu           syncutil.Mutex
	cache        *cache.TypedUnorderedCache[string, *preparedStmt]
	pendingClose []string
}

// newStmtCache returns a cache bounded to capacity entries. A capacity of
// zero disables caching entirely.
func newStmtCache(capacity int) *stmtCache {
	sc := &stmtCache{}
	if capacity > 0 {
		sc.cache = cache.NewTypedUnorderedCache(cache.TypedConfig[string, *preparedStmt]{
			Policy: cache.CacheLRU,
			ShouldEvict: func(size int, _ string, _ *preparedStmt) bool {
				return size > capacity
			},
			OnEvicted: func(_ string, s *preparedStmt) {
				sc.pendingClose = append(sc.pendingClose, s.name)
			},
		})
	}
	return sc
}

func (sc *stmtCache) enabled() bool {
	return sc.cache != nil
}

func (sc *stmtCache) get(sql string) (*preparedStmt, bool) {
	if sc.cache == nil {
		return nil, false
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.cache.Get(sql)
}

func (sc *stmtCache) add(s *preparedStmt) {
	if sc.cache != nil {
		sc.mu.Lock()
		defer sc.mu.Unlock()
		sc.cache.Add(s.sql, s)
	}
}

func (sc *stmtCache) evict(sql string) {
	if sc.cache != nil {
		sc.mu.Lock()
		defer sc.mu.Unlock()
		sc.cache.Del(sql)
	}
}

func (sc *stmtCache) clear() {
	if sc.cache != nil {
		sc.mu.Lock()
		defer sc.mu.Unlock()
		sc.cache.Clear()
	}
}

func (sc *stmtCache) len() int {
	if sc.cache == nil {
		return 0
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.cache.Len()
}

// takePendingClose returns the queued statement names and resets the queue.
func (sc *stmtCache) takePendingClose() []string {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	names := sc.pendingClose
	sc.pendingClose = nil
	return names
}
