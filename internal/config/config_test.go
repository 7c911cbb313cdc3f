package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imefeed/internal/ime"
	"imefeed/internal/logging"
)

var envVars = []string{
	"IMEFEED_CONFIG",
	"IMEFEED_PIPE_NAME",
	"IMEFEED_INTERVAL_MS",
	"IMEFEED_LOG_LEVEL",
	"IMEFEED_LOG_PATH",
	"IMEFEED_METRICS_ADDR",
	"IMEFEED_JOURNAL_PATH",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envVars {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, Version, cfg.Version)
	assert.Equal(t, "ime_pipe", cfg.Pipe.Name)
	assert.Equal(t, 512, cfg.Pipe.BufferSize)
	assert.Equal(t, 100*time.Millisecond, cfg.Interval())
	assert.Equal(t, "auto", cfg.Provider.Backend)
	assert.False(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.Journal.Enabled)
	assert.Equal(t, "sessions.db", filepath.Base(cfg.Journal.Path))
	require.NoError(t, cfg.Validate())
}

func TestConfigPath(t *testing.T) {
	clearEnv(t)
	assert.Equal(t, "config.toml", filepath.Base(ConfigPath()))
	assert.Contains(t, ConfigPath(), "imefeed")

	t.Setenv("IMEFEED_CONFIG", "/etc/imefeed.yaml")
	assert.Equal(t, "/etc/imefeed.yaml", ConfigPath())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_Formats(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	tests := []struct {
		file    string
		content string
	}{
		{"config.toml", `
[pipe]
name = "feed"

[sampling]
interval_ms = 250

[provider]
backend = "none"
`},
		{"config.json", `{"pipe": {"name": "feed"}, "sampling": {"interval_ms": 250}, "provider": {"backend": "none"}}`},
		{"config.yaml", `
pipe:
  name: feed
sampling:
  interval_ms: 250
provider:
  backend: none
`},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			writeFile(t, path, tt.content)

			cfg, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, "feed", cfg.Pipe.Name)
			assert.Equal(t, 512, cfg.Pipe.BufferSize, "unset keys keep defaults")
			assert.Equal(t, 250*time.Millisecond, cfg.Interval())
			assert.Equal(t, ime.BackendNone, cfg.Provider.Backend)
		})
	}
}

func TestLoad_UnknownKeys(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	cases := map[string]string{
		"config.toml": "[pipe]\nnmae = \"typo\"\n",
		"config.json": `{"pipe": {"nmae": "typo"}}`,
		"config.yaml": "pipe:\n  nmae: typo\n",
	}
	for file, content := range cases {
		t.Run(file, func(t *testing.T) {
			path := filepath.Join(dir, file)
			writeFile(t, path, content)
			_, err := Load(path)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"small buffer", func(c *Config) { c.Pipe.BufferSize = 256 }, "buffer_size"},
		{"empty pipe name", func(c *Config) { c.Pipe.Name = "" }, "name"},
		{"interval too short", func(c *Config) { c.Sampling.IntervalMs = 5 }, "interval_ms"},
		{"interval too long", func(c *Config) { c.Sampling.IntervalMs = 60000 }, "interval_ms"},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, "level"},
		{"bad output", func(c *Config) { c.Logging.Output = "syslog" }, "output"},
		{"file output without path", func(c *Config) {
			c.Logging.Output = "file"
			c.Logging.FilePath = ""
		}, "file_path"},
		{"bad backend", func(c *Config) { c.Provider.Backend = "ibus" }, "backend"},
		{"bad metrics addr", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.ListenAddr = "localhost"
		}, "listen_addr"},
		{"journal without path", func(c *Config) {
			c.Journal.Enabled = true
			c.Journal.Path = ""
		}, "journal.path"},
		{"future version", func(c *Config) { c.Version = Version + 1 }, "version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("IMEFEED_PIPE_NAME", "other_pipe")
	t.Setenv("IMEFEED_INTERVAL_MS", "50")
	t.Setenv("IMEFEED_LOG_LEVEL", "debug")
	t.Setenv("IMEFEED_METRICS_ADDR", "127.0.0.1:9999")
	t.Setenv("IMEFEED_JOURNAL_PATH", "/tmp/j.db")

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnvOverrides())

	assert.Equal(t, "other_pipe", cfg.Pipe.Name)
	assert.Equal(t, 50*time.Millisecond, cfg.Interval())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "127.0.0.1:9999", cfg.Metrics.ListenAddr)
	assert.True(t, cfg.Journal.Enabled)
	assert.Equal(t, "/tmp/j.db", cfg.Journal.Path)

	t.Setenv("IMEFEED_INTERVAL_MS", "fast")
	assert.ErrorIs(t, DefaultConfig().ApplyEnvOverrides(), ErrInvalidConfig)
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	want := DefaultConfig()
	want.Pipe.Name = "roundtrip"
	want.Sampling.IntervalMs = 40
	want.Journal.Enabled = true

	for _, ext := range SupportedConfigFormats() {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(dir, "nested", "config"+ext)
			require.NoError(t, SaveConfig(want, path))

			info, err := os.Stat(path)
			require.NoError(t, err)
			if os.PathSeparator == '/' {
				assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
			}

			got, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestEncodeTOMLHeader(t *testing.T) {
	data, err := Encode(DefaultConfig(), ".toml")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# imefeed configuration"))
	assert.Contains(t, string(data), "[sampling]")
	assert.Contains(t, string(data), "interval_ms = 100")
}

func TestConversions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipe.Name = "x"
	cfg.Pipe.BufferSize = 1024
	cfg.Logging.Level = "warn"
	cfg.Logging.Format = "json"
	cfg.Provider.MessageTimeoutMs = 250

	ep := cfg.EndpointConfig()
	assert.Equal(t, "x", ep.Name)
	assert.Equal(t, 1024, ep.BufferSize)
	assert.Positive(t, ep.WriteTimeout)

	pc := cfg.ProviderConfig()
	assert.Equal(t, 250*time.Millisecond, pc.MessageTimeout)
	assert.Equal(t, cfg.Provider.CapsLockLEDGlob, pc.CapsLockLEDGlob)

	lc := cfg.LoggerConfig()
	assert.Equal(t, logging.LevelWarn, lc.Level)
	assert.Equal(t, logging.FormatJSON, lc.Format)
	assert.Equal(t, "stderr", lc.Output)
}

func TestLoader_WatchReloads(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[sampling]\ninterval_ms = 100\n")

	l := NewLoader(path)
	defer l.Close()
	_, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, path, l.Path())

	changed := make(chan *Config, 4)
	l.OnChange(func(old, new *Config) {
		assert.Equal(t, 100, old.Sampling.IntervalMs)
		changed <- new
	})
	require.NoError(t, l.Watch())

	writeFile(t, path, "[sampling]\ninterval_ms = 250\n")

	select {
	case cfg := <-changed:
		assert.Equal(t, 250*time.Millisecond, cfg.Interval())
		assert.Equal(t, cfg, l.Config())
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after config change")
	}
}

func TestLoader_InvalidReloadKeepsConfig(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[sampling]\ninterval_ms = 100\n")

	l := NewLoader(path)
	defer l.Close()
	before, err := l.Load()
	require.NoError(t, err)

	writeFile(t, path, "[sampling]\ninterval_ms = 1\n")
	err = l.Reload()
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Same(t, before, l.Config())
}
