package loadcache

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidArgument wraps every argument error (nil key, nil keys slice,
	// undefined Prime value, uncanonicalizable key). Never retried.
	ErrInvalidArgument = errors.New("loadcache: invalid argument")

	ErrClosed = errors.New("loadcache: loader closed")

	// ErrUndefinedValue is returned when a BatchFunc yields the zero Value
	// without an error.
	ErrUndefinedValue = errors.New("loadcache: undefined value")
)

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// EncodeError: a value could not be turned into a store payload.
type EncodeError struct {
	Key string
	Err error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("loadcache: encode %q: %v", e.Key, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// DecodeError: a stored payload could not be decoded.
type DecodeError struct {
	Key string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("loadcache: decode %q: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// StoreError is a persistent-store failure. Keys lists every storage key that
// was part of the failed operation; none of them are memoized.
type StoreError struct {
	Op   string // "mget", "set", "del"
	Keys []string
	Err  error
}

func (e *StoreError) Error() string {
	switch len(e.Keys) {
	case 0:
		return fmt.Sprintf("loadcache: store %s: %v", e.Op, e.Err)
	case 1:
		return fmt.Sprintf("loadcache: store %s %q: %v", e.Op, e.Keys[0], e.Err)
	default:
		return fmt.Sprintf("loadcache: store %s [%s]: %v", e.Op, strings.Join(e.Keys, " "), e.Err)
	}
}

func (e *StoreError) Unwrap() error { return e.Err }

// LoaderError is a BatchFunc failure for one key. It is never written to the
// store and never memoized.
type LoaderError struct {
	Key string
	Err error
}

func (e *LoaderError) Error() string {
	return fmt.Sprintf("loadcache: load %q: %v", e.Key, e.Err)
}

func (e *LoaderError) Unwrap() error { return e.Err }
