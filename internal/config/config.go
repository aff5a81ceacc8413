package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Common holds settings shared by every command.
type Common struct {
	Chain        string
	Env          string
	SubgraphURL  string
	PricesURL    string
	RPCURL       string
	HTTPTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	LogLevel     string
}

// newViper merges config file, environment variables, and flags.
func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("POOLSNAP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("chain", "mainnet")
	v.SetDefault("env", "prod")
	v.SetDefault("subgraph-url", "https://api.thegraph.com/subgraphs/name/convex-community")
	v.SetDefault("prices-url", "https://prices.curve.fi/v1/")
	v.SetDefault("http-timeout", 30*time.Second)
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func loadCommon(v *viper.Viper) Common {
	return Common{
		Chain:        v.GetString("chain"),
		Env:          v.GetString("env"),
		SubgraphURL:  v.GetString("subgraph-url"),
		PricesURL:    v.GetString("prices-url"),
		RPCURL:       v.GetString("rpc"),
		HTTPTimeout:  v.GetDuration("http-timeout"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		LogLevel:     v.GetString("log-level"),
	}
}

// SnapshotConfig configures the pool command.
type SnapshotConfig struct {
	Common
	Address     string
	EndTs       *int64
	Out         string
	PGDSN       string
	RedisAddr   string
	RedisStream string
}

// LoadSnapshot loads SnapshotConfig.
func LoadSnapshot(cfgFile string, flags *pflag.FlagSet) (SnapshotConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return SnapshotConfig{}, err
	}
	v.SetDefault("redis-stream", "pool:snapshots")

	cfg := SnapshotConfig{
		Common:      loadCommon(v),
		Address:     strings.TrimSpace(v.GetString("address")),
		Out:         v.GetString("out"),
		PGDSN:       v.GetString("pg-dsn"),
		RedisAddr:   v.GetString("redis-addr"),
		RedisStream: v.GetString("redis-stream"),
	}
	if cfg.Address == "" {
		return SnapshotConfig{}, fmt.Errorf("address is required")
	}
	if end := v.GetString("end"); end != "" {
		ts, err := ParseTimestamp(end)
		if err != nil {
			return SnapshotConfig{}, fmt.Errorf("parse end: %w", err)
		}
		cfg.EndTs = &ts
	}
	return cfg, nil
}

// VolumeConfig configures the volume command.
type VolumeConfig struct {
	Common
	Address  string
	Start    int64
	End      int64
	Interval string
}

// LoadVolume loads VolumeConfig. End defaults to now and Start to seven days before End.
func LoadVolume(cfgFile string, flags *pflag.FlagSet, now time.Time) (VolumeConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return VolumeConfig{}, err
	}
	v.SetDefault("interval", "day")
	v.SetDefault("days", 7)

	cfg := VolumeConfig{
		Common:   loadCommon(v),
		Address:  strings.TrimSpace(v.GetString("address")),
		Interval: v.GetString("interval"),
		End:      now.Unix(),
	}
	if cfg.Address == "" {
		return VolumeConfig{}, fmt.Errorf("address is required")
	}
	if end := v.GetString("end"); end != "" {
		if cfg.End, err = ParseTimestamp(end); err != nil {
			return VolumeConfig{}, fmt.Errorf("parse end: %w", err)
		}
	}
	cfg.Start = cfg.End - int64(v.GetInt("days"))*24*60*60
	if start := v.GetString("start"); start != "" {
		if cfg.Start, err = ParseTimestamp(start); err != nil {
			return VolumeConfig{}, fmt.Errorf("parse start: %w", err)
		}
	}
	if cfg.Start > cfg.End {
		return VolumeConfig{}, fmt.Errorf("start %d is after end %d", cfg.Start, cfg.End)
	}
	return cfg, nil
}

// ServeConfig configures the HTTP server.
type ServeConfig struct {
	Common
	Listen          string
	ShutdownTimeout time.Duration
	PGDSN           string
	RedisAddr       string
	RedisStream     string
}

// LoadServe loads ServeConfig.
func LoadServe(cfgFile string, flags *pflag.FlagSet) (ServeConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return ServeConfig{}, err
	}
	v.SetDefault("listen", ":8080")
	v.SetDefault("shutdown-timeout", 10*time.Second)
	v.SetDefault("redis-stream", "pool:snapshots")

	return ServeConfig{
		Common:          loadCommon(v),
		Listen:          v.GetString("listen"),
		ShutdownTimeout: v.GetDuration("shutdown-timeout"),
		PGDSN:           v.GetString("pg-dsn"),
		RedisAddr:       v.GetString("redis-addr"),
		RedisStream:     v.GetString("redis-stream"),
	}, nil
}
