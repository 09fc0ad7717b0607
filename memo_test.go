package loadcache

import (
	"fmt"
	"testing"
)

func TestMemoDeleteIfKeepsNewerCall(t *testing.T) {
	m := newMemo[int]()
	old := newCall[int]()
	m.put("k", old)
	newer := resolvedCall(Some(2))
	m.put("k", newer)

	m.deleteIf("k", old)
	if c, ok := m.get("k"); !ok || c != newer {
		t.Fatalf("deleteIf evicted a newer call")
	}
	m.deleteIf("k", newer)
	if _, ok := m.get("k"); ok {
		t.Fatalf("deleteIf kept a matching call")
	}
}

func TestMemoResetAcrossShards(t *testing.T) {
	m := newMemo[int]()
	for i := 0; i < 200; i++ {
		m.put(fmt.Sprint(i), resolvedCall(Some(i)))
	}
	if m.len() != 200 {
		t.Fatalf("len=%d want 200", m.len())
	}
	m.delete("7")
	if _, ok := m.get("7"); ok || m.len() != 199 {
		t.Fatalf("delete failed, len=%d", m.len())
	}
	m.reset()
	if m.len() != 0 {
		t.Fatalf("len=%d after reset", m.len())
	}
}
