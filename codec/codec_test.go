package codec

import (
	"errors"
	"strconv"
	"testing"
	"time"
)

type doc struct {
	Foo string `json:"foo" cbor:"foo" msgpack:"foo"`
}

type jsonOnly struct {
	Name string `json:"name"`
}

func TestJSONRejectsScalarsByDefault(t *testing.T) {
	if _, err := (JSON[string]{}).Encode("bar"); !errors.Is(err, ErrNotObject) {
		t.Fatalf("string err=%v want ErrNotObject", err)
	}
	if _, err := (JSON[int]{}).Encode(3); !errors.Is(err, ErrNotObject) {
		t.Fatalf("int err=%v want ErrNotObject", err)
	}
	var nilDoc *doc
	if _, err := (JSON[*doc]{}).Encode(nilDoc); !errors.Is(err, ErrNotObject) {
		t.Fatalf("nil pointer err=%v want ErrNotObject", err)
	}
	b, err := (JSON[string]{AllowScalars: true}).Encode("bar")
	if err != nil || string(b) != `"bar"` {
		t.Fatalf("AllowScalars: b=%q err=%v", b, err)
	}
}

func TestJSONObjects(t *testing.T) {
	b, err := (JSON[doc]{}).Encode(doc{Foo: "bar"})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"foo":"bar"}` {
		t.Fatalf("got %s", b)
	}
	got, err := (JSON[doc]{}).Decode(b)
	if err != nil || got.Foo != "bar" {
		t.Fatalf("decode got=%+v err=%v", got, err)
	}
	if _, err := (JSON[map[string]any]{}).Encode(map[string]any{"a": 1}); err != nil {
		t.Fatalf("map: %v", err)
	}
	if _, err := (JSON[[]int]{}).Encode([]int{1}); err != nil {
		t.Fatalf("slice: %v", err)
	}
	if _, err := (JSON[doc]{}).Decode([]byte("{")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestFuncCodec(t *testing.T) {
	if _, err := NewFunc[time.Time](func(time.Time) ([]byte, error) { return []byte("100"), nil }, nil); err == nil {
		t.Fatalf("expected unpaired error")
	}
	c, err := NewFunc(
		func(time.Time) ([]byte, error) { return []byte("100"), nil },
		func(b []byte) (time.Time, error) {
			ms, err := strconv.ParseInt(string(b), 10, 64)
			return time.UnixMilli(ms), err
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := c.Encode(time.Now())
	got, err := c.Decode(b)
	if err != nil || got.UnixMilli() != 100 {
		t.Fatalf("got=%v err=%v", got, err)
	}
}

func TestCBORAndMsgpack(t *testing.T) {
	codecs := map[string]Codec[doc]{
		"cbor":    MustCBOR[doc](true),
		"msgpack": Msgpack[doc]{},
	}
	for name, c := range codecs {
		b, err := c.Encode(doc{Foo: "bar"})
		if err != nil || len(b) == 0 {
			t.Fatalf("%s encode: len=%d err=%v", name, len(b), err)
		}
		got, err := c.Decode(b)
		if err != nil || got.Foo != "bar" {
			t.Fatalf("%s decode: got=%+v err=%v", name, got, err)
		}
	}
}

func TestLimit(t *testing.T) {
	c := Limit[doc]{Inner: JSON[doc]{}, MaxDecode: 4}
	if _, err := c.Decode([]byte(`{"foo":"bar"}`)); err == nil {
		t.Fatalf("expected size error")
	}
	c.MaxDecode = 0
	if _, err := c.Decode([]byte(`{"foo":"bar"}`)); err != nil {
		t.Fatalf("unlimited decode: %v", err)
	}
}

func TestMsgpackJSONTags(t *testing.T) {
	c := Msgpack[jsonOnly]{JSONTags: true}
	b, err := c.Encode(jsonOnly{Name: "ada"})
	if err != nil {
		t.Fatal(err)
	}
	generic, err := (Msgpack[map[string]any]{}).Decode(b)
	if err != nil || generic["name"] != "ada" {
		t.Fatalf("generic=%v err=%v (json tag not used)", generic, err)
	}
	got, err := c.Decode(b)
	if err != nil || got.Name != "ada" {
		t.Fatalf("got=%+v err=%v", got, err)
	}
}

func TestCBORDecodesStringKeyedMaps(t *testing.T) {
	c := MustCBOR[any](true)
	b, err := c.Encode(map[string]any{"a": []any{"x"}})
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	m, ok := got.(map[string]any)
	if !ok || m["a"] == nil {
		t.Fatalf("got %T %v want map[string]any", got, got)
	}

	var nilSlice []string
	b, err = MustCBOR[[]string](false).Encode(nilSlice)
	if err != nil || len(b) != 1 || b[0] != 0xf6 {
		t.Fatalf("nil slice encoded as %x err=%v want CBOR null", b, err)
	}
}

func TestProtobufValue(t *testing.T) {
	var c Codec[any] = ProtobufValue{}
	b, err := c.Encode(map[string]any{"foo": "bar", "n": 2.5, "tags": []any{"a", true}})
	if err != nil || len(b) == 0 {
		t.Fatalf("encode len=%d err=%v", len(b), err)
	}
	got, err := c.Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	m, ok := got.(map[string]any)
	if !ok || m["foo"] != "bar" || m["n"] != 2.5 {
		t.Fatalf("got %v", got)
	}
	if _, err := c.Encode(make(chan int)); err == nil {
		t.Fatalf("expected error for non JSON-shaped value")
	}
	if _, err := c.Decode([]byte{0xff}); err == nil {
		t.Fatalf("expected decode error")
	}
}
