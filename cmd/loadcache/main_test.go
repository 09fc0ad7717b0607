package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func setupCLI(t *testing.T, stdin string) (*miniredis.Miniredis, *bytes.Buffer) {
	t.Helper()
	mr := miniredis.RunT(t)
	t.Setenv("LOADCACHE_REDIS_ADDR", mr.Addr())
	t.Setenv("LOADCACHE_LOADER_NAMESPACE", "ks")
	t.Setenv("LOADCACHE_LOG_LEVEL", "error")

	var out, errOut bytes.Buffer
	oldIn, oldOut, oldErr := stdIn, stdOut, stdErr
	stdIn, stdOut, stdErr = strings.NewReader(stdin), &out, &errOut
	t.Cleanup(func() { stdIn, stdOut, stdErr = oldIn, oldOut, oldErr })
	return mr, &out
}

func mustRun(t *testing.T, args ...string) {
	t.Helper()
	opts, err := parseCLIFlags(args)
	if err != nil {
		t.Fatalf("parse %v: %v", args, err)
	}
	if code := run(opts); code != 0 {
		t.Fatalf("run %v: exit %d (stderr: %s)", args, code, stdErr.(*bytes.Buffer).String())
	}
}

func TestPrimeInspectClear(t *testing.T) {
	mr, out := setupCLI(t, "")

	mustRun(t, "prime", "json", `{"foo":"bar"}`)
	mustRun(t, "-null", "prime", "none")
	if v, _ := mr.Get("ks:json"); v != `{"foo":"bar"}` {
		t.Fatalf("ks:json=%q", v)
	}

	mustRun(t, "inspect", "json", "none", "absent")
	want := "ks:json\tpresent\t{\"foo\":\"bar\"}\nks:none\tnull\nks:absent\tmissing\n"
	if out.String() != want {
		t.Fatalf("inspect output:\n%s\nwant:\n%s", out.String(), want)
	}

	mustRun(t, "clear", "json", "none")
	if mr.Exists("ks:json") || mr.Exists("ks:none") {
		t.Fatalf("keys survived clear")
	}
}

func TestWarmKeepsStoredKeys(t *testing.T) {
	mr, _ := setupCLI(t, "a={\"n\":1}\nb\n# comment\nc={\"n\":3}\n")
	_ = mr.Set("ks:c", "stored")

	mustRun(t, "warm")
	if v, _ := mr.Get("ks:a"); v != `{"n":1}` {
		t.Fatalf("ks:a=%q", v)
	}
	if v, err := mr.Get("ks:b"); err != nil || v != "" {
		t.Fatalf("ks:b=%q err=%v", v, err)
	}
	if v, _ := mr.Get("ks:c"); v != "stored" {
		t.Fatalf("ks:c overwritten: %q", v)
	}
}

func TestParseCLIFlags(t *testing.T) {
	_, _ = setupCLI(t, "")
	if _, err := parseCLIFlags(nil); err == nil {
		t.Fatalf("missing command accepted")
	}
	if _, err := parseCLIFlags([]string{"-backend", "etcd", "inspect"}); err == nil {
		t.Fatalf("unknown backend accepted")
	}
	opts, err := parseCLIFlags([]string{"-backend", "memory", "clear", "k"})
	if err != nil || opts.command != "clear" || len(opts.args) != 1 || opts.backend != "memory" {
		t.Fatalf("opts=%+v err=%v", opts, err)
	}
	if code := run(opts); code != 0 {
		t.Fatalf("memory clear exit=%d", code)
	}
	bad, _ := parseCLIFlags([]string{"bogus"})
	if code := run(bad); code != 1 {
		t.Fatalf("unknown command exit=%d", code)
	}
}

func TestWarmWithNoKeys(t *testing.T) {
	mr, _ := setupCLI(t, "# nothing to warm\n\n")
	mustRun(t, "warm")
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("warm wrote %v", keys)
	}
}

func TestPrimeRejectsNonJSON(t *testing.T) {
	mr, _ := setupCLI(t, "")
	opts, err := parseCLIFlags([]string{"prime", "k", "not json"})
	if err != nil {
		t.Fatal(err)
	}
	if code := run(opts); code != 1 {
		t.Fatalf("exit=%d", code)
	}
	if mr.Exists("ks:k") {
		t.Fatalf("non-JSON value stored")
	}
}

func TestInspectUndecodable(t *testing.T) {
	mr, out := setupCLI(t, "")
	_ = mr.Set("ks:raw", "plain text")
	mustRun(t, "inspect", "raw")
	if want := "ks:raw\tpresent\tundecodable \"plain text\"\n"; out.String() != want {
		t.Fatalf("inspect output %q, want %q", out.String(), want)
	}
}

func TestBinaryCodecRoundTrip(t *testing.T) {
	for _, name := range []string{"cbor", "msgpack", "protobuf"} {
		t.Run(name, func(t *testing.T) {
			mr, out := setupCLI(t, "")
			t.Setenv("LOADCACHE_LOADER_CODEC", name)
			t.Setenv("LOADCACHE_LOADER_BINARY_PAYLOAD", "true")

			mustRun(t, "prime", "k", `{"a":[1,"x"]}`)
			if v, _ := mr.Get("ks:k"); v == "" || v == `{"a":[1,"x"]}` {
				t.Fatalf("stored %q, want %s payload", v, name)
			}
			mustRun(t, "inspect", "k")
			if want := "ks:k\tpresent\t{\"a\":[1,\"x\"]}\n"; out.String() != want {
				t.Fatalf("inspect output %q, want %q", out.String(), want)
			}
		})
	}
}

func TestInProcessBackends(t *testing.T) {
	for _, backend := range []string{"memory", "bigcache", "ristretto"} {
		t.Run(backend, func(t *testing.T) {
			_, out := setupCLI(t, "")
			mustRun(t, "-backend", backend, "prime", "k", `{"n":1}`)
			mustRun(t, "-backend", backend, "clear", "k")
			mustRun(t, "-backend", backend, "inspect", "k")
			if want := "ks:k\tmissing\n"; out.String() != want {
				t.Fatalf("inspect output %q, want %q", out.String(), want)
			}
		})
	}
}
