package loadcache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/loadcache/codec"
	"github.com/unkn0wn-root/loadcache/keys"
	"github.com/unkn0wn-root/loadcache/store"
)

// BatchFunc loads the values for keys the store has never seen.
// It must return exactly one Result per key, in the same order. A non-nil
// error fails every key of the call.
type BatchFunc[K, V any] func(ctx context.Context, keys []K) ([]Result[V], error)

// Loader is the two-tier cache-aside API.
// K is the application key type, V the cached value type.
type Loader[K, V any] interface {
	// Load returns the value for key, consulting the memo, then the store,
	// then the BatchFunc (writing its result back).
	Load(ctx context.Context, key K) (Value[V], error)

	// LoadMany is Load for every key, with results in input order.
	// A nil keys slice is an invalid argument; an empty one returns no results.
	LoadMany(ctx context.Context, keys []K) ([]Result[V], error)

	// Prime writes value through to the store and replaces the memo entry.
	// Null[V]() is valid; the zero Value is not.
	Prime(ctx context.Context, key K, value Value[V]) error

	// Clear deletes the stored entry, then the memo entry.
	Clear(ctx context.Context, key K) error

	// ClearLocal drops the memo entry only.
	ClearLocal(key K) error

	// ClearAllLocal drops every memo entry.
	ClearAllLocal()

	// Close dispatches the open batch, waits for in-flight batches and closes
	// the store.
	Close(ctx context.Context) error
}

// Options tune a Loader.
// Store and Load are required; others have sensible defaults.
type Options[K, V any] struct {
	// Required
	Store store.Store
	Load  BatchFunc[K, V]

	Namespace string        // storage key prefix, e.g. "app:prod:user"; "" => bare keys
	Codec     c.Codec[V]    // nil => codec.JSON[V]{} (objects, arrays only)
	KeyFunc   keys.Func[K]  // overrides key canonicalization
	Expire    time.Duration // TTL of every write; 0 => no expiry

	DisableLocalCache bool // default false => memo enabled
	BinaryPayload     bool // default false => payloads must be UTF-8 text

	Scheduler        Scheduler     // batching window; nil => Wait(1ms)
	MaxBatch         int           // dispatch early at this many keys; 0 => unbounded
	FetchTimeout     time.Duration // per dispatched batch; 0 => 30s
	WriteConcurrency int           // parallel write-backs per batch; 0 => 8

	Logger Logger // if nil, NopLogger is used
	Hooks  Hooks  // if nil, NopHooks is used
}

func New[K, V any](opts Options[K, V]) (Loader[K, V], error) {
	l, err := newLoader[K, V](opts)
	if err != nil {
		return nil, err
	}
	return l, nil
}
