// Package config loads fetchq settings from defaults, a TOML file and the
// environment, in that order.
package config

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/fetchq/pkg/buildinfo"
	"github.com/matzehuels/fetchq/pkg/cache"
	"github.com/matzehuels/fetchq/pkg/errors"
	"github.com/matzehuels/fetchq/pkg/query"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// AppName names the config and cache directories.
	AppName = "fetchq"

	// EnvPrefix prefixes every environment override, e.g. FETCHQ_QUERY_MAX_RETRIES.
	EnvPrefix = "FETCHQ_"

	fileName = "config.toml"
)

// Cache backends accepted in [CacheConfig.Backend].
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
	BackendNone   = "none"
)

// =============================================================================
// Types
// =============================================================================

// Config is the complete fetchq configuration.
type Config struct {
	Query  QueryConfig  `toml:"query" envPrefix:"QUERY_"`
	Cache  CacheConfig  `toml:"cache" envPrefix:"CACHE_"`
	Server ServerConfig `toml:"server" envPrefix:"SERVER_"`
	Log    LogConfig    `toml:"log" envPrefix:"LOG_"`
}

// QueryConfig holds the coordinator settings.
type QueryConfig struct {
	MaxRetries    int      `toml:"max_retries" env:"MAX_RETRIES"`
	RetryInterval Duration `toml:"retry_interval" env:"RETRY_INTERVAL"`
	CacheTTL      Duration `toml:"cache_ttl" env:"CACHE_TTL"`
	Namespace     string   `toml:"namespace" env:"NAMESPACE"`
	Timeout       Duration `toml:"timeout" env:"TIMEOUT"`
	UserAgent     string   `toml:"user_agent" env:"USER_AGENT"`
}

// CacheConfig selects and configures the cache backend.
type CacheConfig struct {
	Backend string      `toml:"backend" env:"BACKEND"`
	Dir     string      `toml:"dir" env:"DIR"`
	Redis   RedisConfig `toml:"redis" envPrefix:"REDIS_"`
	Mongo   MongoConfig `toml:"mongo" envPrefix:"MONGO_"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string `toml:"addr" env:"ADDR"`
	Password string `toml:"password" env:"PASSWORD"`
	DB       int    `toml:"db" env:"DB"`
	Prefix   string `toml:"prefix" env:"PREFIX"`
}

// MongoConfig configures the mongo backend.
type MongoConfig struct {
	URI        string `toml:"uri" env:"URI"`
	Database   string `toml:"database" env:"DATABASE"`
	Collection string `toml:"collection" env:"COLLECTION"`
}

// ServerConfig configures the fixture server started by "fetchq serve".
type ServerConfig struct {
	Addr        string `toml:"addr" env:"ADDR"`
	Fixtures    string `toml:"fixtures" env:"FIXTURES"`
	MetricsAddr string `toml:"metrics_addr" env:"METRICS_ADDR"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `toml:"level" env:"LEVEL"`
}

// Duration is a time.Duration written as a string such as "2s" in TOML and
// in the environment.
type Duration struct {
	time.Duration
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// =============================================================================
// Loading
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Query: QueryConfig{
			MaxRetries:    query.DefaultMaxRetries,
			RetryInterval: Duration{query.DefaultRetryInterval},
			CacheTTL:      Duration{query.DefaultCacheTTL},
			Namespace:     query.DefaultNamespace,
			Timeout:       Duration{30 * time.Second},
			UserAgent:     buildinfo.UserAgent(),
		},
		Cache: CacheConfig{
			Backend: BackendFile,
			Dir:     DefaultCacheDir(),
			Redis:   RedisConfig{Addr: "localhost:6379", Prefix: AppName + ":"},
			Mongo:   MongoConfig{URI: "mongodb://localhost:27017", Database: AppName, Collection: "responses"},
		},
		Server: ServerConfig{
			Addr: "localhost:4000",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the effective configuration. An empty path reads the default
// file from [Path], which may be absent. An explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = Path()
	}
	if err := cfg.decodeFile(path, explicit); err != nil {
		return nil, err
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read environment")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decodeFile(path string, required bool) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "open config %s", path)
	}

	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return errors.New(errors.ErrCodeInvalidConfig, "unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// Validate checks value ranges and the backend name.
func (c *Config) Validate() error {
	q := c.Query
	if q.MaxRetries < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "query.max_retries must be at least 1, got %d", q.MaxRetries)
	}
	if q.RetryInterval.Duration < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "query.retry_interval cannot be negative")
	}
	if q.CacheTTL.Duration < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "query.cache_ttl cannot be negative")
	}
	if q.Timeout.Duration < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "query.timeout cannot be negative")
	}
	if err := errors.ValidateNamespace(q.Namespace); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "query.namespace")
	}

	switch c.Cache.Backend {
	case BackendMemory, BackendNone:
	case BackendFile:
		if c.Cache.Dir == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "cache.dir is required for the file backend")
		}
	case BackendRedis:
		if c.Cache.Redis.Addr == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "cache.redis.addr is required for the redis backend")
		}
	case BackendMongo:
		if c.Cache.Mongo.URI == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "cache.mongo.uri is required for the mongo backend")
		}
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "unknown cache backend %q (want memory, file, redis, mongo or none)", c.Cache.Backend)
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "log.level")
	}
	return nil
}

// =============================================================================
// Derived values
// =============================================================================

// LogLevel returns the parsed log level. Validate has already checked it.
func (c *Config) LogLevel() log.Level {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// QueryOptions maps the query section to coordinator options.
func (c *Config) QueryOptions() []query.Option {
	q := c.Query
	opts := []query.Option{
		query.WithMaxRetries(q.MaxRetries),
		query.WithRetryInterval(q.RetryInterval.Duration),
		query.WithCacheTTL(q.CacheTTL.Duration),
		query.WithNamespace(q.Namespace),
		query.WithHTTPClient(&http.Client{Timeout: q.Timeout.Duration}),
	}
	if q.UserAgent != "" {
		opts = append(opts, query.WithHeader("User-Agent", q.UserAgent))
	}
	return opts
}

// OpenCache connects the configured backend.
func (c *Config) OpenCache(ctx context.Context, logger *log.Logger) (cache.Cache, error) {
	cc := c.Cache
	switch cc.Backend {
	case BackendMemory:
		return cache.NewMemoryCache(), nil
	case BackendNone:
		return cache.NewNullCache(), nil
	case BackendFile:
		return cache.NewFileCache(cc.Dir)
	case BackendRedis:
		return cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cc.Redis.Addr,
			Password: cc.Redis.Password,
			DB:       cc.Redis.DB,
			Prefix:   cc.Redis.Prefix,
		}, logger)
	case BackendMongo:
		return cache.NewMongoCache(ctx, cache.MongoConfig{
			URI:        cc.Mongo.URI,
			Database:   cc.Mongo.Database,
			Collection: cc.Mongo.Collection,
		}, logger)
	}
	return nil, errors.New(errors.ErrCodeUnsupported, "cache backend %q", cc.Backend)
}

// Encode writes the configuration as TOML. Secrets are masked.
func (c *Config) Encode(w io.Writer) error {
	out := *c
	if out.Cache.Redis.Password != "" {
		out.Cache.Redis.Password = "********"
	}
	if err := toml.NewEncoder(w).Encode(out); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// =============================================================================
// Paths
// =============================================================================

// Path returns the default config file (~/.config/fetchq/config.toml), or ""
// when no home directory can be determined.
func Path() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, AppName, fileName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", AppName, fileName)
}

// DefaultCacheDir returns the file backend directory (~/.cache/fetchq), or ""
// when no home directory can be determined.
func DefaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cache", AppName)
}
