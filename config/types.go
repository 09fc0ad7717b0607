// Package config loads loadcache settings from a TOML/YAML/JSON file and
// LOADCACHE_* environment variables.
package config

import "time"

type Config struct {
	Redis  RedisConfig  `mapstructure:"redis"`
	Loader LoaderConfig `mapstructure:"loader"`
	Log    LogConfig    `mapstructure:"log"`
}

type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LoaderConfig mirrors the tunable loadcache.Options fields.
// Durations accept "1.5s" style strings or plain numbers of seconds.
type LoaderConfig struct {
	Namespace        string        `mapstructure:"namespace"`
	Codec            string        `mapstructure:"codec"` // json, cbor, msgpack or protobuf
	Expire           time.Duration `mapstructure:"expire"`
	LocalCache       bool          `mapstructure:"local_cache"`
	BinaryPayload    bool          `mapstructure:"binary_payload"`
	BatchWait        time.Duration `mapstructure:"batch_wait"`
	MaxBatch         int           `mapstructure:"max_batch"`
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout"`
	WriteConcurrency int           `mapstructure:"write_concurrency"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"` // "" => stdout
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}
