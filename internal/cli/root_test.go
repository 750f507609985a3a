package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/fetchq/pkg/buildinfo"
)

func restoreBuildInfo(t *testing.T) {
	t.Helper()
	v, c, d := buildinfo.Version, buildinfo.Commit, buildinfo.Date
	t.Cleanup(func() {
		buildinfo.Version, buildinfo.Commit, buildinfo.Date = v, c, d
	})
}

func TestSetVersion(t *testing.T) {
	restoreBuildInfo(t)

	SetVersion("1.0.0", "abc123", "2024-01-01")

	if buildinfo.Version != "1.0.0" {
		t.Errorf("Version = %q, want %q", buildinfo.Version, "1.0.0")
	}
	if buildinfo.Commit != "abc123" {
		t.Errorf("Commit = %q, want %q", buildinfo.Commit, "abc123")
	}
	if buildinfo.Date != "2024-01-01" {
		t.Errorf("Date = %q, want %q", buildinfo.Date, "2024-01-01")
	}
}

func TestSetVersionEmptyKeepsDefaults(t *testing.T) {
	restoreBuildInfo(t)
	buildinfo.Version, buildinfo.Commit, buildinfo.Date = "v2", "c", "d"

	SetVersion("", "", "")

	if buildinfo.Version != "v2" || buildinfo.Commit != "c" || buildinfo.Date != "d" {
		t.Errorf("empty SetVersion changed build info: %s", buildinfo.String())
	}
}

func TestVersionFlag(t *testing.T) {
	isolate(t)
	restoreBuildInfo(t)
	SetVersion("v9.9.9", "", "")

	out, err := execute(t, "--version")
	if err != nil {
		t.Fatalf("--version: %v", err)
	}
	if !strings.Contains(out, "fetchq version v9.9.9") {
		t.Errorf("--version output = %q", out)
	}
}

func TestInvalidConfigFails(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(path, []byte("[query]\nmax_retries = 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := execute(t, "--config", path, "cache", "path"); err == nil {
		t.Error("expected an error for max_retries = 0")
	}
}

func TestMissingExplicitConfigFails(t *testing.T) {
	dir := isolate(t)

	if _, err := execute(t, "--config", filepath.Join(dir, "missing.toml"), "config", "show"); err == nil {
		t.Error("expected an error for a missing --config file")
	}
}

func TestCommandsThatSkipConfig(t *testing.T) {
	dir := isolate(t)
	missing := filepath.Join(dir, "missing.toml")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"completion", []string{"completion", "bash"}, "bash completion"},
		{"diagram", []string{"diagram"}, "digraph fetchq"},
		{"config path", []string{"config", "path"}, missing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--config", missing}, tt.args...)
			out, err := execute(t, args...)
			if err != nil {
				t.Fatalf("%v: %v", tt.args, err)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("output missing %q", tt.want)
			}
		})
	}
}
