// Package keys canonicalizes application keys into store keys.
//
// Primitive keys (strings, booleans, integers, floats and named types built on
// them) are stringified directly. Everything else is serialized as JSON with
// object fields sorted lexicographically at every depth, so two keys that only
// differ in field order address the same store entry:
//
//	{"b":2,"a":1} -> {"a":1,"b":2}
//	[1,2]         -> [1,2]
//
// Store keys are "<namespace>:<canonical>", or just "<canonical>" when the
// namespace is empty.
package keys

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
)

// ErrNoKey is returned for a nil key.
var ErrNoKey = errors.New("keys: key is required")

// Func maps an application key to its canonical string form.
type Func[K any] func(K) (string, error)

// Namespaced returns the store key for a canonical key.
func Namespaced(namespace, canonical string) string {
	if namespace == "" {
		return canonical
	}
	return namespace + ":" + canonical
}

// IsNil reports whether key is a nil interface, pointer, map, slice or func.
func IsNil(key any) bool {
	if key == nil {
		return true
	}
	rv := reflect.ValueOf(key)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// Canonical returns the canonical string form of key.
func Canonical(key any) (string, error) {
	if IsNil(key) {
		return "", ErrNoKey
	}
	switch k := key.(type) {
	case string:
		return k, nil
	case []byte:
		return string(k), nil
	}

	rv := reflect.ValueOf(key)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return "", ErrNoKey
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32:
		return number(float32(rv.Float()))
	case reflect.Float64:
		return number(rv.Float())
	case reflect.Chan, reflect.Func, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return "", fmt.Errorf("keys: unsupported key type %s", rv.Type())
	}
	return structured(rv.Interface())
}

// structured serializes key as JSON and re-encodes the generic form so that
// object fields come out sorted (encoding/json sorts map keys, not struct fields).
func structured(key any) (string, error) {
	raw, err := marshal(key)
	if err != nil {
		return "", fmt.Errorf("keys: encode key: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return "", fmt.Errorf("keys: normalize key: %w", err)
	}
	out, err := marshal(generic)
	if err != nil {
		return "", fmt.Errorf("keys: normalize key: %w", err)
	}
	return string(out), nil
}

// number formats a float the way JSON does (1e+21, 1e-7, 1.5); NaN and
// infinities have no JSON form and are rejected.
func number(f any) (string, error) {
	b, err := marshal(f)
	if err != nil {
		return "", fmt.Errorf("keys: encode key: %w", err)
	}
	return string(b), nil
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}
