package ristretto

import (
	"context"
	"testing"
	"time"

	"github.com/unkn0wn-root/loadcache/store"
)

func TestRistrettoReadAfterWrite(t *testing.T) {
	ctx := context.Background()
	s, err := New(Config{NumCounters: 1000, MaxCost: 1 << 20, BufferItems: 64})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(ctx) })

	lk, err := store.SetAndGet(ctx, s, "ks:json", []byte(`{"a":1}`), time.Minute, false)
	if err != nil {
		t.Fatalf("SetAndGet: %v", err)
	}
	if !lk.OK || string(lk.Value) != `{"a":1}` {
		t.Fatalf("read back %+v", lk)
	}

	if err := s.Del(ctx, "ks:json"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get(ctx, "ks:json"); ok {
		t.Fatalf("expected miss after Del")
	}
}

func TestRistrettoInvalidConfig(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected invalid config error")
	}
}
