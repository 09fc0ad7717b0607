package loadcache

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

const memoShards = 32

// memo maps canonical keys to pending or resolved calls.
// Only successful calls stay resident; failed ones are dropped with deleteIf.
type memo[V any] struct {
	shards [memoShards]memoShard[V]
}

type memoShard[V any] struct {
	mu sync.RWMutex
	m  map[string]*call[V]
}

func newMemo[V any]() *memo[V] {
	m := &memo[V]{}
	for i := range m.shards {
		m.shards[i].m = make(map[string]*call[V])
	}
	return m
}

func (m *memo[V]) shard(key string) *memoShard[V] {
	return &m.shards[xxhash.Sum64String(key)%memoShards]
}

func (m *memo[V]) get(key string) (*call[V], bool) {
	s := m.shard(key)
	s.mu.RLock()
	c, ok := s.m[key]
	s.mu.RUnlock()
	return c, ok
}

func (m *memo[V]) put(key string, c *call[V]) {
	s := m.shard(key)
	s.mu.Lock()
	s.m[key] = c
	s.mu.Unlock()
}

func (m *memo[V]) delete(key string) {
	s := m.shard(key)
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
}

// deleteIf removes key only while it still maps to c, so a failed call never
// evicts a newer Prime or Load.
func (m *memo[V]) deleteIf(key string, c *call[V]) {
	s := m.shard(key)
	s.mu.Lock()
	if s.m[key] == c {
		delete(s.m, key)
	}
	s.mu.Unlock()
}

func (m *memo[V]) reset() {
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		s.m = make(map[string]*call[V])
		s.mu.Unlock()
	}
}

func (m *memo[V]) len() int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		n += len(s.m)
		s.mu.RUnlock()
	}
	return n
}
