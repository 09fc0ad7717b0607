// Package codec serializes cached values to store payloads and back.
//
// A codec only ever sees present values: explicit nulls are framed by the
// loader as zero-length payloads and never reach Encode or Decode.
package codec

import "errors"

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// ErrNotObject is returned by JSON when a value is not object-like.
var ErrNotObject = errors.New("codec: value must be an object, array or null")
