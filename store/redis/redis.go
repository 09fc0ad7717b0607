// Package redis adapts a go-redis client to store.Store.
//
// MGET is used for bulk reads. On Redis Cluster every key of one MGET must hash
// to the same slot, so use a hash-tagged namespace such as "{users}".
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/loadcache/store"
)

var (
	ErrNilClient = errors.New("redis store: nil client")

	errExpireNotSet = errors.New("key vanished before EXPIRE")
)

type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool
}

var (
	_ store.Store        = (*Redis)(nil)
	_ store.SetGetter    = (*Redis)(nil)
	_ store.BinaryReader = (*Redis)(nil)
)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this store exclusively owns the client
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Redis{rdb: cfg.Client, closeClient: cfg.CloseClient}, nil
}

func (p *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s, err := p.rdb.Get(ctx, key).Result()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err // transport/server error
	}
	return []byte(s), true, nil
}

func (p *Redis) MGet(ctx context.Context, keys []string) ([]store.Lookup, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := p.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) != len(keys) {
		return nil, fmt.Errorf("redis store: MGET returned %d values for %d keys", len(vals), len(keys))
	}
	out := make([]store.Lookup, len(keys))
	for i, v := range vals {
		switch vv := v.(type) {
		case nil:
		case string:
			out[i] = store.Lookup{Value: []byte(vv), OK: true}
		case []byte:
			out[i] = store.Lookup{Value: vv, OK: true}
		default:
			return nil, fmt.Errorf("redis store: unexpected MGET value %T at %q", v, keys[i])
		}
	}
	return out, nil
}

func (p *Redis) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// MGetBytes pipelines one GET per key so values come back as raw bytes.
func (p *Redis) MGetBytes(ctx context.Context, keys []string) ([]store.Lookup, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	cmds := make([]*goredis.StringCmd, len(keys))
	_, err := p.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, k := range keys {
			cmds[i] = pipe.Get(ctx, k)
		}
		return nil
	})
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, err
	}
	out := make([]store.Lookup, len(keys))
	for i, cmd := range cmds {
		b, err := cmd.Bytes()
		if err == goredis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[i] = store.Lookup{Value: b, OK: true}
	}
	return out, nil
}

func (p *Redis) Set(ctx context.Context, key string, value []byte) error {
	return p.rdb.Set(ctx, key, value, 0).Err()
}

func (p *Redis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	ok, err := p.rdb.Expire(ctx, key, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return errExpireNotSet
	}
	return nil
}

// SetAndGet runs SET, EXPIRE and GET inside one MULTI/EXEC so the value
// returned is the one this call stored.
func (p *Redis) SetAndGet(ctx context.Context, key string, value []byte, ttl time.Duration) (store.Lookup, error) {
	var (
		set *goredis.StatusCmd
		exp *goredis.BoolCmd
		get *goredis.StringCmd
	)
	_, err := p.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		set = pipe.Set(ctx, key, value, 0)
		if ttl > 0 {
			exp = pipe.Expire(ctx, key, ttl)
		}
		get = pipe.Get(ctx, key)
		return nil
	})
	if set == nil || get == nil {
		return store.Lookup{}, err
	}
	if serr := set.Err(); serr != nil {
		return store.Lookup{}, serr
	}
	b, gerr := get.Bytes()
	if gerr != nil && gerr != goredis.Nil {
		return store.Lookup{}, gerr
	}
	lk := store.Lookup{Value: b, OK: gerr == nil}
	if exp != nil {
		if eerr := exp.Err(); eerr != nil {
			return lk, &store.ExpireError{Key: key, Err: eerr}
		}
		if !exp.Val() {
			return lk, &store.ExpireError{Key: key, Err: errExpireNotSet}
		}
	}
	return lk, nil
}

func (p *Redis) Del(ctx context.Context, key string) error {
	return p.rdb.Del(ctx, key).Err()
}

// Close releases the underlying redis client only when this store owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
