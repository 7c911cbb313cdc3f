//go:build linux

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imefeed/internal/logging"
)

// openFDsTo lists this process's descriptors that point at path.
func openFDsTo(t *testing.T, path string) []string {
	t.Helper()
	entries, err := os.ReadDir("/proc/self/fd")
	require.NoError(t, err)

	var fds []string
	for _, e := range entries {
		target, err := os.Readlink(filepath.Join("/proc/self/fd", e.Name()))
		if err == nil && target == path {
			fds = append(fds, e.Name())
		}
	}
	return fds
}

func TestSampleClosesLogFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "imefeed.log")
	cfgPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(
		"[provider]\nbackend = \"none\"\n\n"+
			"[logging]\noutput = \"file\"\nfile_path = '"+logPath+"'\n"), 0o600))
	t.Setenv("IMEFEED_LOG_PATH", "")
	t.Setenv("IMEFEED_LOG_LEVEL", "")
	prev := logging.Default()
	t.Cleanup(func() { logging.SetDefault(prev) })

	out, err := run(t, "--config", cfgPath, "--debug", "sample")
	require.NoError(t, err)
	assert.Equal(t, "0,False\n", out)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sampled")
	resolved, err := filepath.EvalSymlinks(logPath)
	require.NoError(t, err)
	assert.Empty(t, openFDsTo(t, resolved), "log file left open")
}
