package logrus

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/unkn0wn-root/loadcache"
)

func TestLogrusLoggerFields(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := New(base)

	l.Warn("expire failed after write", loadcache.Fields{"key": "ns:k"})
	e := hook.LastEntry()
	if e == nil || e.Level != logrus.WarnLevel || e.Message != "expire failed after write" {
		t.Fatalf("entry=%+v", e)
	}
	if e.Data["key"] != "ns:k" || e.Data["component"] != "loadcache" {
		t.Fatalf("data=%v", e.Data)
	}

	l.Debug("batch fetched", nil)
	if hook.LastEntry().Level != logrus.DebugLevel || len(hook.AllEntries()) != 2 {
		t.Fatalf("debug not recorded")
	}
}
