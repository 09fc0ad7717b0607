package loadcache

type valueState uint8

const (
	undefined valueState = iota
	null
	present
)

// Value is a cached value: present, explicitly null, or (zero value)
// undefined. Undefined is never stored; it is rejected by Prime and treated as
// an encode error when returned by a BatchFunc.
type Value[V any] struct {
	v     V
	state valueState
}

// Some wraps a present value.
func Some[V any](v V) Value[V] { return Value[V]{v: v, state: present} }

// Null is the explicit "no value" result.
func Null[V any]() Value[V] { return Value[V]{state: null} }

// Get returns the value and whether it is present.
func (x Value[V]) Get() (V, bool) { return x.v, x.state == present }

// IsNull reports an explicit null.
func (x Value[V]) IsNull() bool { return x.state == null }

// Valid reports whether x is present or null (i.e. not the zero Value).
func (x Value[V]) Valid() bool { return x.state != undefined }

// Result is the outcome for one key: a Value or an error bound to that key.
type Result[V any] struct {
	Value Value[V]
	Err   error
}
