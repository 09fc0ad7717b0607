package loadcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/loadcache/store"
	"github.com/unkn0wn-root/loadcache/store/memory"
)

type doc = map[string]string

// manualScheduler holds dispatch funcs until flush is called.
type manualScheduler struct {
	mu      sync.Mutex
	pending []func()
}

func (s *manualScheduler) Schedule(dispatch func()) {
	s.mu.Lock()
	s.pending = append(s.pending, dispatch)
	s.mu.Unlock()
}

func (s *manualScheduler) flush() {
	s.mu.Lock()
	fns := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// countingStore wraps memory.Store with call counters and injectable faults.
type countingStore struct {
	*memory.Store

	mu         sync.Mutex
	mgets      int
	mgetKeys   [][]string
	sets       int
	dels       int
	mgetErr    error
	setErr     error
	delErr     error
	expireErr  error
	dropWrites bool
}

func newCountingStore() *countingStore { return &countingStore{Store: memory.New()} }

func (s *countingStore) MGet(ctx context.Context, keys []string) ([]store.Lookup, error) {
	s.mu.Lock()
	s.mgets++
	s.mgetKeys = append(s.mgetKeys, append([]string(nil), keys...))
	err := s.mgetErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.Store.MGet(ctx, keys)
}

func (s *countingStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	s.sets++
	err, drop := s.setErr, s.dropWrites
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if drop {
		return nil
	}
	return s.Store.Set(ctx, key, value)
}

func (s *countingStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	err := s.expireErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Store.Expire(ctx, key, ttl)
}

func (s *countingStore) Del(ctx context.Context, key string) error {
	s.mu.Lock()
	s.dels++
	err := s.delErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Store.Del(ctx, key)
}

func (s *countingStore) counts() (mgets, sets, dels int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mgets, s.sets, s.dels
}

func (s *countingStore) set(fn func(s *countingStore)) {
	s.mu.Lock()
	fn(s)
	s.mu.Unlock()
}

// source is a BatchFunc backend keyed by canonical string keys. Keys absent
// from data load as null; keys in fail return per-key errors.
type source struct {
	mu    sync.Mutex
	data  map[string]Value[doc]
	fail  map[string]error
	calls [][]any
}

func newSource() *source {
	return &source{data: map[string]Value[doc]{}, fail: map[string]error{}}
}

func (s *source) load(_ context.Context, ks []any) ([]Result[doc], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, append([]any(nil), ks...))
	out := make([]Result[doc], len(ks))
	for i, k := range ks {
		ck, _ := k.(string)
		if err, ok := s.fail[ck]; ok {
			out[i].Err = err
			continue
		}
		if v, ok := s.data[ck]; ok {
			out[i].Value = v
			continue
		}
		out[i].Value = Null[doc]()
	}
	return out, nil
}

func (s *source) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *source) lastCall() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return nil
	}
	return s.calls[len(s.calls)-1]
}

func newTestLoader(t *testing.T, opts Options[any, doc]) *loader[any, doc] {
	t.Helper()
	if opts.Scheduler == nil {
		opts.Scheduler = Immediate()
	}
	l, err := newLoader[any, doc](opts)
	if err != nil {
		t.Fatalf("newLoader: %v", err)
	}
	t.Cleanup(func() { _ = l.batches.close(context.Background()) })
	return l
}

// waitQueued blocks until the open batch holds n keys.
func waitQueued[K, V any](t *testing.T, l *loader[K, V], n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for l.batches.pending() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d queued keys (have %d)", n, l.batches.pending())
		}
		time.Sleep(time.Millisecond)
	}
}

type recordingHooks struct {
	NopHooks
	mu         sync.Mutex
	dispatched []int
	expire     []string
	lost       []string
	storeOps   []string
	loaderErrs int
	decodeErrs int
}

func (h *recordingHooks) BatchDispatched(_ string, size int) {
	h.mu.Lock()
	h.dispatched = append(h.dispatched, size)
	h.mu.Unlock()
}

func (h *recordingHooks) ExpireFailed(sk string, _ error) {
	h.mu.Lock()
	h.expire = append(h.expire, sk)
	h.mu.Unlock()
}

func (h *recordingHooks) WriteLost(sk string) {
	h.mu.Lock()
	h.lost = append(h.lost, sk)
	h.mu.Unlock()
}

func (h *recordingHooks) StoreError(op string, _ int, _ error) {
	h.mu.Lock()
	h.storeOps = append(h.storeOps, op)
	h.mu.Unlock()
}

func (h *recordingHooks) LoaderFailed(string, int, error) {
	h.mu.Lock()
	h.loaderErrs++
	h.mu.Unlock()
}

func (h *recordingHooks) DecodeFailed(string, error) {
	h.mu.Lock()
	h.decodeErrs++
	h.mu.Unlock()
}

var errBoom = errors.New("boom")

func mustDoc(t *testing.T, v Value[doc], want doc) {
	t.Helper()
	got, ok := v.Get()
	if !ok {
		t.Fatalf("value not present (null=%v)", v.IsNull())
	}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for k, w := range want {
		if got[k] != w {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}
