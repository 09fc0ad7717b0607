// Package memory is an in-process store.Store with per-key TTLs.
// Handy for tests, local development and dry runs of the CLI.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/unkn0wn-root/loadcache/store"
)

type entry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

type Store struct {
	mu  sync.RWMutex
	m   map[string]entry
	now func() time.Time

	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

var _ store.Store = (*Store)(nil)

func New() *Store { return NewWithClock(time.Now) }

// NewWithClock uses now to evaluate expiry.
func NewWithClock(now func() time.Time) *Store {
	return &Store{m: make(map[string]entry), now: now}
}

// NewWithSweeper also drops expired entries every interval until Close.
func NewWithSweeper(interval time.Duration) *Store {
	s := New()
	if interval > 0 {
		s.ticker = time.NewTicker(interval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.Sweep()
				case <-s.stopCh:
					return
				}
			}
		}()
	}
	return s
}

func (s *Store) lookup(key string, at time.Time) ([]byte, bool) {
	e, ok := s.m[key]
	if !ok || (!e.exp.IsZero() && !at.Before(e.exp)) {
		return nil, false
	}
	return append([]byte{}, e.v...), true
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	at := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.lookup(key, at)
	return b, ok, nil
}

func (s *Store) MGet(_ context.Context, keys []string) ([]store.Lookup, error) {
	at := s.now()
	out := make([]store.Lookup, len(keys))
	s.mu.RLock()
	for i, k := range keys {
		b, ok := s.lookup(k, at)
		out[i] = store.Lookup{Value: b, OK: ok}
	}
	s.mu.RUnlock()
	return out, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	s.m[key] = entry{v: append([]byte{}, value...)}
	s.mu.Unlock()
	return nil
}

func (s *Store) Expire(_ context.Context, key string, ttl time.Duration) error {
	at := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[key]
	if !ok {
		return nil
	}
	if ttl <= 0 {
		delete(s.m, key)
		return nil
	}
	e.exp = at.Add(ttl)
	s.m[key] = e
	return nil
}

func (s *Store) Del(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
	return nil
}

// Len reports the number of stored keys, expired ones included until swept.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// Sweep drops expired entries.
func (s *Store) Sweep() {
	at := s.now()
	s.mu.Lock()
	for k, e := range s.m {
		if !e.exp.IsZero() && !at.Before(e.exp) {
			delete(s.m, k)
		}
	}
	s.mu.Unlock()
}

// Close stops the sweeper, if any. Data stays readable.
func (s *Store) Close(_ context.Context) error {
	s.once.Do(func() {
		if s.stopCh != nil {
			close(s.stopCh)
			s.ticker.Stop()
			s.wg.Wait()
		}
	})
	return nil
}
