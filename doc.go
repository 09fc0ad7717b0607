// Package loadcache is a batched, two-tier cache-aside loader.
//
// Callers ask for values by key. Keys requested within one batching window are
// coalesced into a single bulk read of the persistent store (redis in
// production); keys the store has never seen are handed to the user's
// BatchFunc in one call, written back and read back before being returned.
// Resolved values are memoized per Loader instance.
//
// Tiers:
//   - memo: per-instance table of pending or resolved loads (DisableLocalCache turns it off).
//   - store.Store: durable string-keyed bytes shared by every instance and process.
//   - BatchFunc: the expensive source of truth.
//
// Stored payloads (see internal/wire):
//
//	absent key     - never loaded; the BatchFunc is asked
//	empty payload  - loaded, explicit null; the BatchFunc is NOT asked again
//	other payload  - Codec[V] bytes (JSON by default)
//
// Keys:
//
//	<namespace>:<canonical-key>   (or <canonical-key> when Namespace is empty)
//
// Two instances (or processes) missing the same key at the same time may both
// call their BatchFunc and both write; the last write wins. Fill races are only
// collapsed inside one instance's batching window.
//
// Usage:
//
//	l, _ := loadcache.New(loadcache.Options[string, User]{
//	    Namespace: "app:user",
//	    Store:     rs, // store/redis
//	    Load:      fetchUsers,
//	    Expire:    time.Hour,
//	})
//	v, err := l.Load(ctx, "42")
//	if u, ok := v.Get(); ok { ... }
package loadcache
