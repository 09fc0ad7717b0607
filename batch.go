package loadcache

import (
	"context"
	"sync"
)

// call is one key's future. done is closed exactly once, after val/err are set.
type call[V any] struct {
	done chan struct{}
	val  Value[V]
	err  error
}

func newCall[V any]() *call[V] { return &call[V]{done: make(chan struct{})} }

func resolvedCall[V any](v Value[V]) *call[V] {
	c := newCall[V]()
	c.resolve(v, nil)
	return c
}

func (c *call[V]) resolve(v Value[V], err error) {
	c.val, c.err = v, err
	close(c.done)
}

// wait blocks until the call resolves or ctx is done. Giving up only affects
// this caller; the batch still resolves for everyone else.
func (c *call[V]) wait(ctx context.Context) (Value[V], error) {
	select {
	case <-c.done:
		return c.val, c.err
	default:
	}
	select {
	case <-c.done:
		return c.val, c.err
	case <-ctx.Done():
		return Value[V]{}, ctx.Err()
	}
}

type entry[K, V any] struct {
	key  K
	ck   string // canonical key
	call *call[V]
}

// batch collects the unique keys queued during one window.
type batch[K, V any] struct {
	entries    []entry[K, V]
	index      map[string]*call[V]
	dispatched bool
}

// batcher groups queued keys into batches and runs each batch exactly once.
type batcher[K, V any] struct {
	mu     sync.Mutex
	cur    *batch[K, V]
	closed bool

	sched Scheduler
	max   int
	run   func(*batch[K, V])

	inflight sync.WaitGroup
}

func newBatcher[K, V any](sched Scheduler, maxBatch int, run func(*batch[K, V])) *batcher[K, V] {
	return &batcher[K, V]{sched: sched, max: maxBatch, run: run}
}

// enqueue adds key to the open batch (opening one if needed) and returns its
// call. A key already queued in the open batch shares the existing call.
// remember runs under the batcher lock whenever the returned call did not come
// from lookup, so a queued call dropped by ClearLocal is memoized again by the
// next load that joins it.
func (b *batcher[K, V]) enqueue(key K, ck string, lookup func() (*call[V], bool), remember func(*call[V])) (*call[V], error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	if lookup != nil {
		if c, ok := lookup(); ok {
			b.mu.Unlock()
			return c, nil
		}
	}
	cur := b.cur
	if cur != nil {
		if c, ok := cur.index[ck]; ok {
			if remember != nil {
				remember(c)
			}
			b.mu.Unlock()
			return c, nil
		}
	} else {
		cur = &batch[K, V]{index: make(map[string]*call[V])}
		b.cur = cur
		b.inflight.Add(1)
		b.sched.Schedule(func() { b.flush(cur) })
	}
	c := newCall[V]()
	cur.entries = append(cur.entries, entry[K, V]{key: key, ck: ck, call: c})
	cur.index[ck] = c
	if remember != nil {
		remember(c)
	}
	var full *batch[K, V]
	if b.max > 0 && len(cur.entries) >= b.max {
		full = b.detach(cur)
	}
	b.mu.Unlock()

	if full != nil {
		go b.execute(full)
	}
	return c, nil
}

// detach closes bt for new keys. Caller holds b.mu. Returns nil if bt was
// already dispatched.
func (b *batcher[K, V]) detach(bt *batch[K, V]) *batch[K, V] {
	if b.cur == bt {
		b.cur = nil
	}
	if bt.dispatched {
		return nil
	}
	bt.dispatched = true
	return bt
}

// flush is the scheduler callback.
func (b *batcher[K, V]) flush(bt *batch[K, V]) {
	b.mu.Lock()
	ready := b.detach(bt)
	b.mu.Unlock()
	if ready != nil {
		b.execute(ready)
	}
}

func (b *batcher[K, V]) execute(bt *batch[K, V]) {
	defer b.inflight.Done()
	b.run(bt)
}

// pending reports how many keys the open batch holds.
func (b *batcher[K, V]) pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cur == nil {
		return 0
	}
	return len(b.cur.entries)
}

// close stops new keys, dispatches the open batch and waits for every
// in-flight batch or ctx. It may be called again after a timeout.
func (b *batcher[K, V]) close(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	var open *batch[K, V]
	if b.cur != nil {
		open = b.detach(b.cur)
	}
	b.mu.Unlock()

	if open != nil {
		go b.execute(open)
	}

	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
