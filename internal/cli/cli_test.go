package cli

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"
)

// isolate points the config and cache directories into a temp dir and keeps
// fetches fast.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	t.Setenv("FETCHQ_CACHE_BACKEND", "memory")
	t.Setenv("FETCHQ_QUERY_RETRY_INTERVAL", "5ms")
	return dir
}

// execute runs the root command with args and returns what it wrote to its
// output stream.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand(New(io.Discard, LogInfo))

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}
