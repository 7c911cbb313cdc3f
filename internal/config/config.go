// Package config handles configuration loading, validation, and hot reload
// for imefeed.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"imefeed/internal/ime"
	"imefeed/internal/ipc"
	"imefeed/internal/logging"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete imefeed configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Pipe configures the named channel consumers attach to.
	Pipe PipeConfig `toml:"pipe" json:"pipe" yaml:"pipe"`

	// Sampling configures the status cadence.
	Sampling SamplingConfig `toml:"sampling" json:"sampling" yaml:"sampling"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// Metrics configures the HTTP metrics and health endpoint.
	Metrics MetricsConfig `toml:"metrics" json:"metrics" yaml:"metrics"`

	// Journal configures the SQLite session journal.
	Journal JournalConfig `toml:"journal" json:"journal" yaml:"journal"`

	// Provider selects how input state is queried.
	Provider ProviderConfig `toml:"provider" json:"provider" yaml:"provider"`
}

// PipeConfig holds endpoint configuration.
type PipeConfig struct {
	// Name is the endpoint name, e.g. "ime_pipe" for \\.\pipe\ime_pipe.
	Name string `toml:"name" json:"name" yaml:"name"`

	// BufferSize is the in/out buffer size in bytes. Minimum 512.
	BufferSize int `toml:"buffer_size" json:"buffer_size" yaml:"buffer_size"`
}

// SamplingConfig holds status cadence configuration.
type SamplingConfig struct {
	// IntervalMs is the time between two status lines. Reloadable.
	IntervalMs int `toml:"interval_ms" json:"interval_ms" yaml:"interval_ms"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error. Reloadable.
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is "stdout", "stderr", "file" or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file used when Output includes a file.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	MaxSizeMB  int  `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int  `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int  `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`
	Compress   bool `toml:"compress" json:"compress" yaml:"compress"`
}

// MetricsConfig holds the HTTP endpoint configuration.
type MetricsConfig struct {
	Enabled    bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	ListenAddr string `toml:"listen_addr" json:"listen_addr" yaml:"listen_addr"`
}

// JournalConfig holds session journal configuration.
type JournalConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	Path    string `toml:"path" json:"path" yaml:"path"`
}

// ProviderConfig holds input state provider configuration.
type ProviderConfig struct {
	// Backend is auto, win32, fcitx or none.
	Backend string `toml:"backend" json:"backend" yaml:"backend"`

	// MessageTimeoutMs bounds one query to the input method.
	MessageTimeoutMs int `toml:"message_timeout_ms" json:"message_timeout_ms" yaml:"message_timeout_ms"`

	// CapsLockLEDGlob locates Caps Lock LED brightness files (Linux).
	CapsLockLEDGlob string `toml:"caps_lock_led_glob" json:"caps_lock_led_glob" yaml:"caps_lock_led_glob"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	prov := ime.DefaultProviderConfig()

	return &Config{
		Version: Version,
		Pipe: PipeConfig{
			Name:       ipc.DefaultPipeName,
			BufferSize: ipc.MinBufferSize,
		},
		Sampling: SamplingConfig{
			IntervalMs: int(ipc.DefaultInterval / time.Millisecond),
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   logging.DefaultLogPath(),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 14,
			Compress:   true,
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: "127.0.0.1:9464",
		},
		Journal: JournalConfig{
			Enabled: false,
			Path:    filepath.Join(PlatformDataDir(), "sessions.db"),
		},
		Provider: ProviderConfig{
			Backend:          prov.Backend,
			MessageTimeoutMs: int(prov.MessageTimeout / time.Millisecond),
			CapsLockLEDGlob:  prov.CapsLockLEDGlob,
		},
	}
}

// ConfigPath returns the configuration file path, honoring IMEFEED_CONFIG.
func ConfigPath() string {
	if p := os.Getenv("IMEFEED_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// Load reads, overrides and validates the configuration at path.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	return NewLoader(path).Load()
}

// ApplyEnvOverrides applies IMEFEED_* environment variables.
func (c *Config) ApplyEnvOverrides() error {
	if v := os.Getenv("IMEFEED_PIPE_NAME"); v != "" {
		c.Pipe.Name = v
	}
	if v := os.Getenv("IMEFEED_INTERVAL_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: IMEFEED_INTERVAL_MS=%q: %v", ErrInvalidConfig, v, err)
		}
		c.Sampling.IntervalMs = ms
	}
	if v := os.Getenv("IMEFEED_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("IMEFEED_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
	if v := os.Getenv("IMEFEED_METRICS_ADDR"); v != "" {
		c.Metrics.ListenAddr = v
		c.Metrics.Enabled = true
	}
	if v := os.Getenv("IMEFEED_JOURNAL_PATH"); v != "" {
		c.Journal.Path = v
		c.Journal.Enabled = true
	}
	return nil
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// Interval returns the sampling interval.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Sampling.IntervalMs) * time.Millisecond
}

// EndpointConfig returns the endpoint settings.
func (c *Config) EndpointConfig() ipc.EndpointConfig {
	ep := ipc.DefaultEndpointConfig()
	ep.Name = c.Pipe.Name
	ep.BufferSize = c.Pipe.BufferSize
	return ep
}

// ProviderConfig returns the provider settings.
func (c *Config) ProviderConfig() ime.ProviderConfig {
	return ime.ProviderConfig{
		Backend:         c.Provider.Backend,
		MessageTimeout:  time.Duration(c.Provider.MessageTimeoutMs) * time.Millisecond,
		CapsLockLEDGlob: c.Provider.CapsLockLEDGlob,
	}
}

// LoggerConfig converts the logging section. The config must be valid.
func (c *Config) LoggerConfig() *logging.Config {
	lc := logging.DefaultConfig()
	lc.Level, _ = logging.ParseLevel(c.Logging.Level)
	lc.Format, _ = logging.ParseFormat(c.Logging.Format)
	lc.Output = c.Logging.Output
	lc.FilePath = c.Logging.FilePath
	lc.MaxSizeMB = c.Logging.MaxSizeMB
	lc.MaxBackups = c.Logging.MaxBackups
	lc.MaxAgeDays = c.Logging.MaxAgeDays
	lc.Compress = c.Logging.Compress
	return lc
}
