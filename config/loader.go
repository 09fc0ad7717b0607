package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/unkn0wn-root/loadcache"
	"github.com/unkn0wn-root/loadcache/codec"
)

const envPrefix = "LOADCACHE"

// Load reads path (optional) and the environment, applies defaults and
// validates the result. LOADCACHE_REDIS_ADDR overrides redis.addr and so on.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	hook := mapstructure.ComposeDecodeHookFunc(
		secondsDecodeHook(),
		mapstructure.StringToTimeDurationHookFunc(),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")

	v.SetDefault("loader.namespace", "")
	v.SetDefault("loader.codec", CodecJSON)
	v.SetDefault("loader.expire", 0)
	v.SetDefault("loader.local_cache", true)
	v.SetDefault("loader.binary_payload", false)
	v.SetDefault("loader.batch_wait", "1ms")
	v.SetDefault("loader.max_batch", 0)
	v.SetDefault("loader.fetch_timeout", "30s")
	v.SetDefault("loader.write_concurrency", 8)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 10)
	v.SetDefault("log.compress", true)
}

// secondsDecodeHook turns bare numbers into seconds for time.Duration fields,
// so `expire = 1` (or LOADCACHE_LOADER_EXPIRE=1) means one second rather than
// one nanosecond.
func secondsDecodeHook() mapstructure.DecodeHookFunc {
	target := reflect.TypeOf(time.Duration(0))
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != target {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			// env values are strings; unit-less ones are seconds too
			if secs, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return time.Duration(secs * float64(time.Second)), nil
			}
		case int:
			return time.Duration(v) * time.Second, nil
		case int64:
			return time.Duration(v) * time.Second, nil
		case float64:
			return time.Duration(v * float64(time.Second)), nil
		}
		return data, nil
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return newFieldError("", "config is nil")
	}
	if strings.TrimSpace(c.Redis.Addr) == "" {
		return newFieldError("redis.addr", "must not be empty")
	}
	if c.Redis.DB < 0 {
		return newFieldError("redis.db", "must be >= 0")
	}
	l := c.Loader
	if l.Expire < 0 {
		return newFieldError("loader.expire", "must be >= 0")
	}
	if l.BatchWait < 0 {
		return newFieldError("loader.batch_wait", "must be >= 0")
	}
	if l.MaxBatch < 0 {
		return newFieldError("loader.max_batch", "must be >= 0")
	}
	if l.FetchTimeout < 0 {
		return newFieldError("loader.fetch_timeout", "must be >= 0")
	}
	if l.WriteConcurrency < 0 {
		return newFieldError("loader.write_concurrency", "must be >= 0")
	}
	switch l.Codec {
	case CodecJSON:
	case CodecCBOR, CodecMsgpack, CodecProtobuf:
		if !l.BinaryPayload {
			return newFieldError("loader.codec", fmt.Sprintf("%s payloads are binary; set loader.binary_payload", l.Codec))
		}
	default:
		return newFieldError("loader.codec", fmt.Sprintf("unknown codec %q (json, cbor, msgpack, protobuf)", l.Codec))
	}
	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic":
	default:
		return newFieldError("log.level", fmt.Sprintf("unknown level %q", c.Log.Level))
	}
	return nil
}

// RedisOptions builds go-redis client options.
func (c RedisConfig) RedisOptions() *goredis.Options {
	return &goredis.Options{
		Addr:         c.Addr,
		Username:     c.Username,
		Password:     c.Password,
		DB:           c.DB,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}
}

// Apply copies the loader settings, codec included, onto opts. Store, Load
// and the observability fields are left alone.
func Apply[K, V any](c LoaderConfig, opts *loadcache.Options[K, V]) error {
	cd, err := Codec[V](c.Codec)
	if err != nil {
		return err
	}
	opts.Codec = cd
	opts.Namespace = c.Namespace
	opts.Expire = c.Expire
	opts.DisableLocalCache = !c.LocalCache
	opts.BinaryPayload = c.BinaryPayload
	if c.BatchWait > 0 {
		opts.Scheduler = loadcache.Wait(c.BatchWait)
	} else {
		opts.Scheduler = loadcache.Immediate()
	}
	opts.MaxBatch = c.MaxBatch
	opts.FetchTimeout = c.FetchTimeout
	opts.WriteConcurrency = c.WriteConcurrency
	return nil
}

const (
	CodecJSON     = "json"
	CodecCBOR     = "cbor"
	CodecMsgpack  = "msgpack"
	CodecProtobuf = "protobuf"
)

// Codec returns the named value codec for V. JSON keeps its object-only
// policy. Msgpack names fields by their json tags so both codecs agree on
// field names. protobuf stores google.protobuf.Value and needs V = any.
func Codec[V any](name string) (codec.Codec[V], error) {
	switch name {
	case "", CodecJSON:
		return codec.JSON[V]{}, nil
	case CodecCBOR:
		cd, err := codec.NewCBOR[V](true)
		if err != nil {
			return nil, err
		}
		return cd, nil
	case CodecMsgpack:
		return codec.Msgpack[V]{JSONTags: true}, nil
	case CodecProtobuf:
		if cd, ok := any(codec.ProtobufValue{}).(codec.Codec[V]); ok {
			return cd, nil
		}
		var zero V
		return nil, newFieldError("loader.codec", fmt.Sprintf("protobuf needs an any value type, not %T", zero))
	}
	return nil, newFieldError("loader.codec", fmt.Sprintf("unknown codec %q", name))
}
