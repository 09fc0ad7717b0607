// Package sloghooks logs loadcache.Hooks events with log/slog.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/loadcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	BatchEvery  uint64
	DecodeEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	batchCtr  atomic.Uint64
	decodeCtr atomic.Uint64
}

var _ loadcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) BatchDispatched(ns string, size int) {
	if h.l == nil || !sample(h.opts.BatchEvery, &h.batchCtr) {
		return
	}
	h.l.Debug("loadcache.batch_dispatched",
		"ns", ns,
		"size", size)
}

func (h *Hooks) StoreError(op string, keys int, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("loadcache.store_error",
		"op", op,
		"keys", keys,
		"err", err)
}

func (h *Hooks) ExpireFailed(storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("loadcache.expire_failed",
		"key", h.redact(storageKey),
		"err", err)
}

func (h *Hooks) WriteLost(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("loadcache.write_lost",
		"key", h.redact(storageKey))
}

func (h *Hooks) LoaderFailed(ns string, keys int, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("loadcache.loader_failed",
		"ns", ns,
		"keys", keys,
		"err", err)
}

func (h *Hooks) DecodeFailed(storageKey string, err error) {
	if h.l == nil || !sample(h.opts.DecodeEvery, &h.decodeCtr) {
		return
	}
	h.l.Warn("loadcache.decode_failed",
		"key", h.redact(storageKey),
		"err", err)
}
