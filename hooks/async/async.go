// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    BatchEvery:  100, // sample logs: ~every 100th batch
//	    DecodeEvery: 1,   // log every decode failure
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	users, _ := loadcache.New[int64, User](loadcache.Options[int64, User]{
//	    Namespace: "app:prod:user",
//	    Store:     redisStore,
//	    Load:      loadUsers,
//	    Hooks:     hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"

	"github.com/unkn0wn-root/loadcache"
)

type Hooks struct {
	inner loadcache.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once

	mu      sync.RWMutex
	closed  bool
	dropped uint64
}

var _ loadcache.Hooks = (*Hooks)(nil)

func New(inner loadcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events. Events after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped reports how many events were discarded on a full queue or after
// Close.
func (h *Hooks) Dropped() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	if !h.closed {
		select {
		case h.q <- f:
			h.mu.RUnlock()
			return
		default:
		}
	}
	h.mu.RUnlock()
	h.mu.Lock()
	h.dropped++
	h.mu.Unlock()
}

func (h *Hooks) BatchDispatched(ns string, n int) { h.try(func() { h.inner.BatchDispatched(ns, n) }) }
func (h *Hooks) ExpireFailed(k string, err error) { h.try(func() { h.inner.ExpireFailed(k, err) }) }
func (h *Hooks) DecodeFailed(k string, err error) { h.try(func() { h.inner.DecodeFailed(k, err) }) }
func (h *Hooks) WriteLost(k string)               { h.try(func() { h.inner.WriteLost(k) }) }
func (h *Hooks) StoreError(op string, n int, err error) {
	h.try(func() { h.inner.StoreError(op, n, err) })
}
func (h *Hooks) LoaderFailed(ns string, n int, err error) {
	h.try(func() { h.inner.LoaderFailed(ns, n, err) })
}
