package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/fetchq/pkg/cache"
	"github.com/matzehuels/fetchq/pkg/errors"
	"github.com/matzehuels/fetchq/pkg/query"
)

// isolate points the XDG directories at a temp dir so tests never read the
// developer's own config.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDefaultIsValid(t *testing.T) {
	isolate(t)
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error: %v", err)
	}
	if cfg.Query.MaxRetries != query.DefaultMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", cfg.Query.MaxRetries, query.DefaultMaxRetries)
	}
	if cfg.Query.RetryInterval.Duration != 2*time.Second {
		t.Errorf("RetryInterval = %v, want 2s", cfg.Query.RetryInterval)
	}
	if cfg.Query.CacheTTL.Duration != 10*time.Minute {
		t.Errorf("CacheTTL = %v, want 10m", cfg.Query.CacheTTL)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Query.Namespace != query.DefaultNamespace {
		t.Errorf("Namespace = %q, want %q", cfg.Query.Namespace, query.DefaultNamespace)
	}
}

func TestLoadDefaultFile(t *testing.T) {
	isolate(t)
	writeFile(t, Path(), `
[query]
max_retries = 5
retry_interval = "250ms"

[cache]
backend = "memory"
`)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Query.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", cfg.Query.MaxRetries)
	}
	if cfg.Query.RetryInterval.Duration != 250*time.Millisecond {
		t.Errorf("RetryInterval = %v, want 250ms", cfg.Query.RetryInterval)
	}
	if cfg.Cache.Backend != BackendMemory {
		t.Errorf("Backend = %q, want memory", cfg.Cache.Backend)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Query.CacheTTL.Duration != query.DefaultCacheTTL {
		t.Errorf("CacheTTL = %v, want default", cfg.Query.CacheTTL)
	}
}

func TestLoadExplicitFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.toml")
	writeFile(t, path, `
[server]
addr = ":9000"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("Server.Addr = %q, want :9000", cfg.Server.Addr)
	}

	_, err = Load(filepath.Join(dir, "missing.toml"))
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("Load(missing) error = %v, want %v", err, errors.ErrCodeInvalidConfig)
	}
}

func TestLoadRejectsBadFiles(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown key", "[query]\nretries = 2\n", "unknown keys"},
		{"syntax", "[query\n", "parse config"},
		{"bad duration", "[query]\ncache_ttl = \"ten minutes\"\n", "parse config"},
		{"invalid value", "[query]\nmax_retries = 0\n", "max_retries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			path := filepath.Join(dir, "config.toml")
			writeFile(t, path, tt.content)

			_, err := Load(path)
			if err == nil {
				t.Fatal("Load() error = nil, want error")
			}
			if errors.GetCode(err) != errors.ErrCodeInvalidConfig {
				t.Errorf("GetCode() = %v, want %v", errors.GetCode(err), errors.ErrCodeInvalidConfig)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestEnvOverridesFile(t *testing.T) {
	isolate(t)
	writeFile(t, Path(), `
[query]
max_retries = 5
namespace = "from-file"
`)
	t.Setenv("FETCHQ_QUERY_MAX_RETRIES", "7")
	t.Setenv("FETCHQ_QUERY_CACHE_TTL", "30s")
	t.Setenv("FETCHQ_CACHE_BACKEND", "redis")
	t.Setenv("FETCHQ_CACHE_REDIS_ADDR", "redis:6380")
	t.Setenv("FETCHQ_LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Query.MaxRetries != 7 {
		t.Errorf("MaxRetries = %d, want 7", cfg.Query.MaxRetries)
	}
	if cfg.Query.Namespace != "from-file" {
		t.Errorf("Namespace = %q, want from-file", cfg.Query.Namespace)
	}
	if cfg.Query.CacheTTL.Duration != 30*time.Second {
		t.Errorf("CacheTTL = %v, want 30s", cfg.Query.CacheTTL)
	}
	if cfg.Cache.Backend != BackendRedis || cfg.Cache.Redis.Addr != "redis:6380" {
		t.Errorf("Cache = %+v, want redis at redis:6380", cfg.Cache)
	}
	if cfg.LogLevel() != log.DebugLevel {
		t.Errorf("LogLevel() = %v, want debug", cfg.LogLevel())
	}
}

func TestEnvRejectsBadValue(t *testing.T) {
	isolate(t)
	t.Setenv("FETCHQ_QUERY_MAX_RETRIES", "many")

	if _, err := Load(""); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("Load() error = %v, want %v", err, errors.ErrCodeInvalidConfig)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative interval", func(c *Config) { c.Query.RetryInterval.Duration = -time.Second }},
		{"negative ttl", func(c *Config) { c.Query.CacheTTL.Duration = -time.Second }},
		{"negative timeout", func(c *Config) { c.Query.Timeout.Duration = -time.Second }},
		{"namespace with colon", func(c *Config) { c.Query.Namespace = "a:b" }},
		{"unknown backend", func(c *Config) { c.Cache.Backend = "s3" }},
		{"file without dir", func(c *Config) { c.Cache.Backend, c.Cache.Dir = BackendFile, "" }},
		{"redis without addr", func(c *Config) { c.Cache.Backend, c.Cache.Redis.Addr = BackendRedis, "" }},
		{"mongo without uri", func(c *Config) { c.Cache.Backend, c.Cache.Mongo.URI = BackendMongo, "" }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Cache.Dir = t.TempDir()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, errors.ErrCodeInvalidConfig) {
				t.Errorf("Validate() error = %v, want %v", err, errors.ErrCodeInvalidConfig)
			}
		})
	}
}

func TestOpenCache(t *testing.T) {
	ctx := context.Background()
	logger := log.New(os.Stderr)

	tests := []struct {
		backend string
		check   func(cache.Cache) bool
	}{
		{BackendMemory, func(c cache.Cache) bool { _, ok := c.(*cache.MemoryCache); return ok }},
		{BackendNone, func(c cache.Cache) bool { _, ok := c.(*cache.NullCache); return ok }},
		{BackendFile, func(c cache.Cache) bool { _, ok := c.(*cache.FileCache); return ok }},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := Default()
			cfg.Cache.Backend = tt.backend
			cfg.Cache.Dir = t.TempDir()

			c, err := cfg.OpenCache(ctx, logger)
			if err != nil {
				t.Fatalf("OpenCache() error: %v", err)
			}
			defer c.Close()
			if !tt.check(c) {
				t.Errorf("OpenCache() = %T, wrong backend for %q", c, tt.backend)
			}
		})
	}

	cfg := Default()
	cfg.Cache.Backend = "s3"
	if _, err := cfg.OpenCache(ctx, logger); !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Errorf("OpenCache(s3) error = %v, want %v", err, errors.ErrCodeUnsupported)
	}
}

func TestQueryOptionsBuildCoordinator(t *testing.T) {
	isolate(t)
	cfg := Default()
	cfg.Cache.Backend = BackendNone

	opts := append(cfg.QueryOptions(), query.WithCache(cache.NewNullCache()))
	c, err := query.New[map[string]any](context.Background(), "http://127.0.0.1:1/unused", opts...)
	if err != nil {
		t.Fatalf("query.New() with config options error: %v", err)
	}
	c.Close()
}

func TestEncodeMasksSecrets(t *testing.T) {
	cfg := Default()
	cfg.Cache.Redis.Password = "hunter2"

	var buf bytes.Buffer
	if err := cfg.Encode(&buf); err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "hunter2") {
		t.Error("Encode() leaked the redis password")
	}
	if !strings.Contains(out, `retry_interval = "2s"`) {
		t.Errorf("Encode() output missing retry_interval:\n%s", out)
	}
	if cfg.Cache.Redis.Password != "hunter2" {
		t.Error("Encode() modified the config")
	}

	// The encoded form loads back to the same values.
	var back Config
	if _, err := toml.Decode(out, &back); err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if back.Query != cfg.Query {
		t.Errorf("Query after round trip = %+v, want %+v", back.Query, cfg.Query)
	}
}

func TestPaths(t *testing.T) {
	dir := isolate(t)

	if got, want := Path(), filepath.Join(dir, "config", "fetchq", "config.toml"); got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}
	if got, want := DefaultCacheDir(), filepath.Join(dir, "cache", "fetchq"); got != want {
		t.Errorf("DefaultCacheDir() = %q, want %q", got, want)
	}
}
