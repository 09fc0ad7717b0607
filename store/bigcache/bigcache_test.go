package bigcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/unkn0wn-root/loadcache/store"
)

func TestBigcacheRoundTripAndTTLUnsupported(t *testing.T) {
	ctx := context.Background()
	s, err := New(Config{LifeWindow: time.Minute, CleanWindow: time.Minute})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(ctx) })

	lk, err := store.SetAndGet(ctx, s, "ks:null", []byte{}, time.Second, false)
	var expErr *store.ExpireError
	if !errors.As(err, &expErr) || !errors.Is(err, store.ErrTTLUnsupported) {
		t.Fatalf("err=%v want ExpireError(ErrTTLUnsupported)", err)
	}
	if !lk.OK || len(lk.Value) != 0 {
		t.Fatalf("explicit null not preserved: %+v", lk)
	}

	got, err := s.MGet(ctx, []string{"ks:null", "ks:absent"})
	if err != nil {
		t.Fatal(err)
	}
	if !got[0].OK || got[1].OK {
		t.Fatalf("MGet=%+v", got)
	}
	if err := s.Del(ctx, "ks:absent"); err != nil {
		t.Fatalf("Del absent: %v", err)
	}
}
