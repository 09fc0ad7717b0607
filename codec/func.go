package codec

import "errors"

var errUnpaired = errors.New("codec: Serialize and Deserialize must be set together")

// Func adapts a serialize/deserialize pair into a Codec.
// Unlike JSON, it accepts any value, scalars included.
type Func[V any] struct {
	Serialize   func(V) ([]byte, error)
	Deserialize func([]byte) (V, error)
}

// NewFunc returns a Func codec, failing unless both functions are given.
func NewFunc[V any](serialize func(V) ([]byte, error), deserialize func([]byte) (V, error)) (Func[V], error) {
	f := Func[V]{Serialize: serialize, Deserialize: deserialize}
	return f, f.Validate()
}

// Validate reports whether the pair is complete.
func (f Func[V]) Validate() error {
	if f.Serialize == nil || f.Deserialize == nil {
		return errUnpaired
	}
	return nil
}

func (f Func[V]) Encode(v V) ([]byte, error) {
	if f.Serialize == nil {
		return nil, errUnpaired
	}
	return f.Serialize(v)
}

func (f Func[V]) Decode(b []byte) (V, error) {
	if f.Deserialize == nil {
		var zero V
		return zero, errUnpaired
	}
	return f.Deserialize(b)
}
