// Package wire frames values into the flat payloads kept in the store.
//
// One string/byte column per key, no existence flag:
//
//	absent key          -> Missing (never asked)
//	zero-length payload -> Null    (asked, no value)
//	anything else       -> Present (codec bytes)
package wire

import (
	"errors"
	"unicode/utf8"
)

type State uint8

const (
	Missing State = iota
	Null
	Present
)

func (s State) String() string {
	switch s {
	case Missing:
		return "missing"
	case Null:
		return "null"
	case Present:
		return "present"
	default:
		return "unknown"
	}
}

var (
	// ErrEmptyPresent means a present value serialized to zero bytes, which
	// would read back as Null.
	ErrEmptyPresent = errors.New("wire: present value encoded to empty payload")
	// ErrNotText means a text-mode payload is not valid UTF-8.
	ErrNotText = errors.New("wire: payload is not valid UTF-8 text")
)

// Classify maps a store lookup to its state.
func Classify(payload []byte, found bool) State {
	switch {
	case !found:
		return Missing
	case len(payload) == 0:
		return Null
	default:
		return Present
	}
}

// EncodeNull returns the explicit null payload.
func EncodeNull() []byte { return []byte{} }

// EncodePresent validates codec output before it is written. In text mode the
// payload must be UTF-8 so it survives stores and clients that treat values as
// strings.
func EncodePresent(payload []byte, text bool) ([]byte, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPresent
	}
	if text && !utf8.Valid(payload) {
		return nil, ErrNotText
	}
	return payload, nil
}
