// Package store defines the persistent tier used by loadcache.
//
// Implementations MUST be byte-for-byte transparent: a Get after a Set must
// return exactly the bytes that were written, including a zero-length value.
// The zero-length value is how loadcache records "loaded, no value"; a store
// that drops or rewrites empty values breaks the explicit-null contract.
//
// Keys are "<namespace>:<canonical-key>" strings and are owned by the loader
// configured with that namespace.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTTLUnsupported is returned by Expire on stores without per-key TTLs.
var ErrTTLUnsupported = errors.New("store: per-key TTL not supported")

// Lookup is one positional MGet result. OK=false means the key is absent.
type Lookup struct {
	Value []byte
	OK    bool
}

// Store is a minimal string-keyed byte store.
// Must be safe for concurrent use.
type Store interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// MGet returns one Lookup per key, in the order of keys.
	MGet(ctx context.Context, keys []string) ([]Lookup, error)

	// Set stores value without expiry.
	Set(ctx context.Context, key string, value []byte) error

	// Expire applies ttl to an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Del removes a key. Deleting an absent key is not an error.
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}

// SetGetter writes a value, applies ttl (when > 0) and reads the key back in
// one round trip. If only the TTL step failed, the lookup is valid and the
// error is an *ExpireError.
type SetGetter interface {
	SetAndGet(ctx context.Context, key string, value []byte, ttl time.Duration) (Lookup, error)
}

// BinaryReader is implemented by stores whose default read path is textual
// and that offer a separate byte-exact one.
type BinaryReader interface {
	GetBytes(ctx context.Context, key string) ([]byte, bool, error)
	MGetBytes(ctx context.Context, keys []string) ([]Lookup, error)
}

// ExpireError reports a write whose TTL could not be applied.
type ExpireError struct {
	Key string
	Err error
}

func (e *ExpireError) Error() string {
	return fmt.Sprintf("store: expire %q: %v", e.Key, e.Err)
}

func (e *ExpireError) Unwrap() error { return e.Err }

// SetAndGet uses the store's SetGetter when available and otherwise issues
// Set, Expire and Get in sequence with the same error contract. The fallback
// read-back honours binary like MGet does.
func SetAndGet(ctx context.Context, s Store, key string, value []byte, ttl time.Duration, binary bool) (Lookup, error) {
	if sg, ok := s.(SetGetter); ok {
		return sg.SetAndGet(ctx, key, value, ttl)
	}
	if err := s.Set(ctx, key, value); err != nil {
		return Lookup{}, err
	}
	var expErr error
	if ttl > 0 {
		if err := s.Expire(ctx, key, ttl); err != nil {
			expErr = &ExpireError{Key: key, Err: err}
		}
	}
	b, ok, err := Get(ctx, s, key, binary)
	if err != nil {
		return Lookup{}, err
	}
	return Lookup{Value: b, OK: ok}, expErr
}

// MGet reads keys through the binary path when binary is set and the store
// has one.
func MGet(ctx context.Context, s Store, keys []string, binary bool) ([]Lookup, error) {
	if br, ok := s.(BinaryReader); ok && binary {
		return br.MGetBytes(ctx, keys)
	}
	return s.MGet(ctx, keys)
}

// Get is the single-key counterpart of MGet.
func Get(ctx context.Context, s Store, key string, binary bool) ([]byte, bool, error) {
	if br, ok := s.(BinaryReader); ok && binary {
		return br.GetBytes(ctx, key)
	}
	return s.Get(ctx, key)
}
