package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigShow(t *testing.T) {
	isolate(t)
	t.Setenv("FETCHQ_QUERY_MAX_RETRIES", "5")
	t.Setenv("FETCHQ_CACHE_REDIS_PASSWORD", "secret")

	out, err := execute(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	for _, want := range []string{"max_retries = 5", `backend = "memory"`, `retry_interval = "5ms"`} {
		if !strings.Contains(out, want) {
			t.Errorf("config show missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "secret") {
		t.Error("config show should mask the redis password")
	}
}

func TestConfigShowFromFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config", "fetchq", "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("[query]\ncache_ttl = \"1m\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, `cache_ttl = "1m0s"`) {
		t.Errorf("config show should reflect the default file:\n%s", out)
	}
}

func TestConfigPathDefault(t *testing.T) {
	dir := isolate(t)

	out, err := execute(t, "config", "path")
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	want := filepath.Join(dir, "config", "fetchq", "config.toml")
	if strings.TrimSpace(out) != want {
		t.Errorf("config path = %q, want %q", strings.TrimSpace(out), want)
	}
}
