package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/loadcache/store"
)

// ErrRejected is returned when ristretto's admission policy drops a write.
var ErrRejected = errors.New("ristretto: write rejected")

// Store is an in-process, cost-bounded store. Writes are buffered by
// ristretto; Set waits for the buffer so a following Get observes the value.
type Store struct {
	c *rc.Cache
}

var _ store.Store = (*Store)(nil)

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
	// Cost is the byte length of the value (minimum 1).
}

func New(cfg Config) (*Store, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Store{c: c}, nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, isBytes := v.([]byte)
	if !isBytes {
		// self-heal: drop unexpected entry shape
		s.c.Del(key)
		return nil, false, nil
	}
	return append([]byte{}, b...), true, nil
}

func (s *Store) MGet(ctx context.Context, keys []string) ([]store.Lookup, error) {
	out := make([]store.Lookup, len(keys))
	for i, k := range keys {
		b, ok, _ := s.Get(ctx, k)
		out[i] = store.Lookup{Value: b, OK: ok}
	}
	return out, nil
}

func (s *Store) set(key string, value []byte, ttl time.Duration) error {
	if !s.c.SetWithTTL(key, append([]byte{}, value...), cost(value), ttl) {
		return ErrRejected
	}
	s.c.Wait()
	return nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	return s.set(key, value, 0)
}

// Expire re-admits the current value with ttl; ristretto cannot change the
// TTL of a resident entry in place.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	b, ok, _ := s.Get(ctx, key)
	if !ok {
		return nil
	}
	return s.set(key, b, ttl)
}

func (s *Store) Del(_ context.Context, key string) error {
	s.c.Del(key)
	return nil
}

func (s *Store) Close(_ context.Context) error {
	s.c.Wait()
	s.c.Close()
	return nil
}

// Metrics exposes ristretto counters when Config.Metrics is set.
func (s *Store) Metrics() *rc.Metrics { return s.c.Metrics }

func cost(b []byte) int64 {
	if len(b) == 0 {
		return 1
	}
	return int64(len(b))
}
