package loadcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	c "github.com/unkn0wn-root/loadcache/codec"
	"github.com/unkn0wn-root/loadcache/internal/wire"
	"github.com/unkn0wn-root/loadcache/keys"
	"github.com/unkn0wn-root/loadcache/store"
)

type loader[K, V any] struct {
	ns     string
	store  store.Store
	load   BatchFunc[K, V]
	codec  c.Codec[V]
	keyFn  keys.Func[K]
	log    Logger
	hooks  Hooks
	local  bool
	binary bool

	expire           time.Duration
	fetchTimeout     time.Duration
	writeConcurrency int

	memo    *memo[V]
	batches *batcher[K, V]

	closeOnce sync.Once
	closeErr  error
}

func newLoader[K, V any](opts Options[K, V]) (*loader[K, V], error) {
	if opts.Store == nil {
		return nil, invalidArgument("store is required")
	}
	if opts.Load == nil {
		return nil, invalidArgument("batch func is required")
	}
	if opts.Expire < 0 {
		return nil, invalidArgument("negative expire %v", opts.Expire)
	}
	if v, ok := any(opts.Codec).(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("loadcache: codec: %w", err)
		}
	}

	l := &loader[K, V]{
		ns:     opts.Namespace,
		store:  opts.Store,
		load:   opts.Load,
		codec:  opts.Codec,
		keyFn:  opts.KeyFunc,
		local:  !opts.DisableLocalCache,
		binary: opts.BinaryPayload,
		expire: opts.Expire,
		memo:   newMemo[V](),
	}
	if l.codec == nil {
		l.codec = c.JSON[V]{}
	}

	// defaults
	l.log = coalesce[Logger](opts.Logger, NopLogger{})
	l.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	l.fetchTimeout = coalesce[time.Duration](opts.FetchTimeout, defaultFetchTimeout)
	l.writeConcurrency = coalesce[int](opts.WriteConcurrency, defaultWriteConcurrency)
	sched := coalesce[Scheduler](opts.Scheduler, Wait(defaultBatchWait))

	l.batches = newBatcher[K, V](sched, opts.MaxBatch, l.dispatch)
	return l, nil
}

func (l *loader[K, V]) Load(ctx context.Context, key K) (Value[V], error) {
	ck, err := l.canonical(key)
	if err != nil {
		return Value[V]{}, err
	}
	cl, err := l.enqueue(key, ck)
	if err != nil {
		return Value[V]{}, err
	}
	return cl.wait(ctx)
}

func (l *loader[K, V]) LoadMany(ctx context.Context, ks []K) ([]Result[V], error) {
	if ks == nil {
		return nil, invalidArgument("keys must be a slice")
	}
	out := make([]Result[V], len(ks))
	if len(ks) == 0 {
		return out, nil
	}
	calls := make([]*call[V], len(ks))
	for i, k := range ks {
		ck, err := l.canonical(k)
		if err != nil {
			out[i].Err = err
			continue
		}
		if calls[i], err = l.enqueue(k, ck); err != nil {
			out[i].Err = err
		}
	}
	for i, cl := range calls {
		if cl == nil {
			continue
		}
		out[i].Value, out[i].Err = cl.wait(ctx)
	}
	return out, nil
}

func (l *loader[K, V]) Prime(ctx context.Context, key K, value Value[V]) error {
	ck, err := l.canonical(key)
	if err != nil {
		return err
	}
	if !value.Valid() {
		return invalidArgument("value is required (use Null for an explicit null)")
	}
	if l.isClosed() {
		return ErrClosed
	}
	stored, err := l.writeBack(ctx, l.storageKey(ck), value)
	if err != nil {
		return err
	}
	if l.local {
		l.memo.delete(ck)
		l.memo.put(ck, resolvedCall(stored))
	}
	return nil
}

func (l *loader[K, V]) Clear(ctx context.Context, key K) error {
	ck, err := l.canonical(key)
	if err != nil {
		return err
	}
	sk := l.storageKey(ck)
	// store first: a Load racing with Clear must not find the old entry
	// after the memo was already emptied.
	if err := l.store.Del(ctx, sk); err != nil {
		l.storeFailed("del", []string{sk}, err)
		return &StoreError{Op: "del", Keys: []string{sk}, Err: err}
	}
	l.memo.delete(ck)
	return nil
}

func (l *loader[K, V]) ClearLocal(key K) error {
	ck, err := l.canonical(key)
	if err != nil {
		return err
	}
	l.memo.delete(ck)
	return nil
}

func (l *loader[K, V]) ClearAllLocal() { l.memo.reset() }

func (l *loader[K, V]) Close(ctx context.Context) error {
	if err := l.batches.close(ctx); err != nil {
		return err
	}
	l.closeOnce.Do(func() { l.closeErr = l.store.Close(ctx) })
	return l.closeErr
}

func (l *loader[K, V]) isClosed() bool {
	l.batches.mu.Lock()
	defer l.batches.mu.Unlock()
	return l.batches.closed
}

// canonical maps key to its canonical string; every failure is an invalid
// argument.
func (l *loader[K, V]) canonical(key K) (string, error) {
	if keys.IsNil(any(key)) {
		return "", fmt.Errorf("%w: %w", ErrInvalidArgument, keys.ErrNoKey)
	}
	var (
		ck  string
		err error
	)
	if l.keyFn != nil {
		ck, err = l.keyFn(key)
	} else {
		ck, err = keys.Canonical(key)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return ck, nil
}

func (l *loader[K, V]) storageKey(ck string) string { return keys.Namespaced(l.ns, ck) }

func (l *loader[K, V]) enqueue(key K, ck string) (*call[V], error) {
	if !l.local {
		return l.batches.enqueue(key, ck, nil, nil)
	}
	if cl, ok := l.memo.get(ck); ok {
		return cl, nil
	}
	// re-check under the batcher lock so two misses on ck share one call
	return l.batches.enqueue(key, ck,
		func() (*call[V], bool) { return l.memo.get(ck) },
		func(cl *call[V]) { l.memo.put(ck, cl) },
	)
}

// dispatch resolves one batch: a single bulk store read, one BatchFunc call
// for the keys the store has never seen, then write-back of those.
func (l *loader[K, V]) dispatch(b *batch[K, V]) {
	ctx, cancel := context.WithTimeout(context.Background(), l.fetchTimeout)
	defer cancel()

	l.hooks.BatchDispatched(l.ns, len(b.entries))
	results := l.fetch(ctx, b.entries)
	for i, e := range b.entries {
		r := results[i]
		if r.Err != nil && l.local {
			l.memo.deleteIf(e.ck, e.call)
		}
		e.call.resolve(r.Value, r.Err)
	}
}

func (l *loader[K, V]) fetch(ctx context.Context, entries []entry[K, V]) []Result[V] {
	out := make([]Result[V], len(entries))
	sks := make([]string, len(entries))
	for i, e := range entries {
		sks[i] = l.storageKey(e.ck)
	}

	lookups, err := store.MGet(ctx, l.store, sks, l.binary)
	if err == nil && len(lookups) != len(sks) {
		err = fmt.Errorf("store returned %d results for %d keys", len(lookups), len(sks))
	}
	if err != nil {
		l.storeFailed("mget", sks, err)
		serr := &StoreError{Op: "mget", Keys: sks, Err: err}
		for i := range out {
			out[i].Err = serr
		}
		return out
	}

	var missing []int
	for i, lk := range lookups {
		if wire.Classify(lk.Value, lk.OK) == wire.Missing {
			missing = append(missing, i)
			continue
		}
		out[i].Value, out[i].Err = l.decode(sks[i], lk)
	}
	l.log.Debug("batch fetched", Fields{"ns": l.ns, "keys": len(entries), "missing": len(missing)})
	if len(missing) > 0 {
		l.fill(ctx, entries, sks, missing, out)
	}
	return out
}

// fill asks the BatchFunc for the missing positions and writes the results
// back concurrently. Each position fails independently.
func (l *loader[K, V]) fill(ctx context.Context, entries []entry[K, V], sks []string, missing []int, out []Result[V]) {
	ks := make([]K, len(missing))
	for j, i := range missing {
		ks[j] = entries[i].key
	}

	res, err := l.callLoader(ctx, ks)
	if err == nil && len(res) != len(ks) {
		err = fmt.Errorf("batch func returned %d results for %d keys", len(res), len(ks))
	}
	if err != nil {
		l.log.Error("batch func failed", Fields{"ns": l.ns, "keys": len(ks), "err": err})
		l.hooks.LoaderFailed(l.ns, len(ks), err)
		for _, i := range missing {
			out[i].Err = &LoaderError{Key: entries[i].ck, Err: err}
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(l.writeConcurrency)
	for j, i := range missing {
		i := i
		r := res[j]
		if r.Err != nil {
			l.hooks.LoaderFailed(l.ns, 1, r.Err)
			out[i].Err = &LoaderError{Key: entries[i].ck, Err: r.Err}
			continue
		}
		g.Go(func() error {
			out[i].Value, out[i].Err = l.writeBack(ctx, sks[i], r.Value)
			return nil
		})
	}
	_ = g.Wait()
}

func (l *loader[K, V]) callLoader(ctx context.Context, ks []K) (res []Result[V], err error) {
	defer func() {
		if p := recover(); p != nil {
			res, err = nil, fmt.Errorf("batch func panic: %v", p)
		}
	}()
	return l.load(ctx, ks)
}

// writeBack stores value under sk (with TTL) and returns what the store
// reads back, so callers always see what is durably stored.
func (l *loader[K, V]) writeBack(ctx context.Context, sk string, value Value[V]) (Value[V], error) {
	payload, err := l.encode(sk, value)
	if err != nil {
		return Value[V]{}, err
	}
	lk, err := store.SetAndGet(ctx, l.store, sk, payload, l.expire, l.binary)
	var expErr *store.ExpireError
	if errors.As(err, &expErr) {
		l.log.Warn("expire failed after write", Fields{"key": sk, "ttl": l.expire, "err": expErr.Err})
		l.hooks.ExpireFailed(sk, expErr.Err)
		err = nil
	}
	if err != nil {
		l.storeFailed("set", []string{sk}, err)
		return Value[V]{}, &StoreError{Op: "set", Keys: []string{sk}, Err: err}
	}
	if !lk.OK {
		// evicted or deleted between write and read-back; the re-read says null
		l.log.Warn("written value missing on read-back", Fields{"key": sk})
		l.hooks.WriteLost(sk)
	}
	return l.decode(sk, lk)
}

func (l *loader[K, V]) encode(sk string, value Value[V]) ([]byte, error) {
	if value.IsNull() {
		return wire.EncodeNull(), nil
	}
	v, ok := value.Get()
	if !ok {
		return nil, &EncodeError{Key: sk, Err: ErrUndefinedValue}
	}
	// nil pointers, maps and slices are Go's null
	if keys.IsNil(any(v)) {
		return wire.EncodeNull(), nil
	}
	raw, err := l.codec.Encode(v)
	if err != nil {
		return nil, &EncodeError{Key: sk, Err: err}
	}
	payload, err := wire.EncodePresent(raw, !l.binary)
	if err != nil {
		return nil, &EncodeError{Key: sk, Err: err}
	}
	return payload, nil
}

// decode maps a lookup to a Value. Null and Missing both decode to null.
func (l *loader[K, V]) decode(sk string, lk store.Lookup) (Value[V], error) {
	switch wire.Classify(lk.Value, lk.OK) {
	case wire.Null, wire.Missing:
		return Null[V](), nil
	case wire.Present:
		v, err := l.codec.Decode(lk.Value)
		if err != nil {
			l.log.Warn("stored payload not decodable", Fields{"key": sk, "err": err})
			l.hooks.DecodeFailed(sk, err)
			return Value[V]{}, &DecodeError{Key: sk, Err: err}
		}
		return Some(v), nil
	}
	return Null[V](), nil
}

func (l *loader[K, V]) storeFailed(op string, sks []string, err error) {
	l.log.Error("store "+op+" failed", Fields{"ns": l.ns, "keys": len(sks), "err": err})
	l.hooks.StoreError(op, len(sks), err)
}
