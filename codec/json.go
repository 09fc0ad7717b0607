package codec

import (
	"encoding/json"
	"reflect"
)

// JSON encodes values as JSON text. The zero value is ready to use.
//
// By default only object-like values (structs, maps, slices, arrays and
// pointers to them) are accepted; scalars fail with ErrNotObject. Set
// AllowScalars to store bare strings, numbers and booleans.
type JSON[V any] struct {
	AllowScalars bool
}

var _ Codec[struct{}] = JSON[struct{}]{}

func (c JSON[V]) Encode(v V) ([]byte, error) {
	if !c.AllowScalars && !objectLike(reflect.ValueOf(any(v))) {
		return nil, ErrNotObject
	}
	return json.Marshal(v)
}

func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}

func objectLike(rv reflect.Value) bool {
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return false
	}
	switch rv.Kind() {
	case reflect.Struct, reflect.Map, reflect.Slice, reflect.Array:
		return true
	}
	return false
}
