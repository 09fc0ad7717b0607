package codec

// Bytes is an identity codec for []byte values.
// An empty slice cannot be stored as a present value: it is the explicit null
// encoding and the loader rejects it on write.
type Bytes struct{}

func (Bytes) Encode(b []byte) ([]byte, error) { return b, nil }
func (Bytes) Decode(b []byte) ([]byte, error) { return b, nil }

// String stores Go strings verbatim (UTF-8, no validation).
// The same empty-payload restriction as Bytes applies.
type String struct{}

func (String) Encode(s string) ([]byte, error) { return []byte(s), nil }
func (String) Decode(b []byte) (string, error) { return string(b), nil }
