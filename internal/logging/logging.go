// Package logging provides structured logging with slog for imefeed.
//
// Features:
//   - JSON and text output formats
//   - Log levels (debug, info, warn, error), adjustable at runtime
//   - Per-component child loggers
//   - Size-based file rotation
//   - Platform-specific default paths
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Level represents a logging level.
type Level = slog.Level

// Log levels.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Format represents the output format for logs.
type Format int

const (
	// FormatText outputs human-readable text logs.
	FormatText Format = iota
	// FormatJSON outputs JSON-structured logs.
	FormatJSON
)

// Config holds the logging configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level Level

	// Format is the output format (text or JSON).
	Format Format

	// Output specifies where logs are written.
	// Can be "stdout", "stderr", "file", or "both".
	Output string

	// FilePath is the path to the log file when Output includes "file".
	FilePath string

	// MaxSizeMB is the maximum size of a log file before rotation.
	MaxSizeMB int

	// MaxAgeDays is the maximum age of rotated files before deletion.
	MaxAgeDays int

	// MaxBackups is the maximum number of rotated log files to keep.
	MaxBackups int

	// Compress determines if rotated logs should be gzip compressed.
	Compress bool

	// AddSource adds source file and line to log entries.
	AddSource bool

	// Component is the name of the component using this logger.
	Component string
}

// DefaultConfig returns a default logging configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:      LevelInfo,
		Format:     FormatText,
		Output:     "stderr",
		FilePath:   DefaultLogPath(),
		MaxSizeMB:  10,
		MaxAgeDays: 14,
		MaxBackups: 3,
		Compress:   true,
		Component:  "imefeed",
	}
}

// DefaultLogPath returns the platform-specific default log path.
func DefaultLogPath() string {
	switch runtime.GOOS {
	case "darwin":
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "Library", "Logs", "imefeed", "imefeed.log")
	case "windows":
		appData := os.Getenv("LOCALAPPDATA")
		if appData == "" {
			appData = os.Getenv("APPDATA")
		}
		return filepath.Join(appData, "imefeed", "logs", "imefeed.log")
	default:
		stateHome := os.Getenv("XDG_STATE_HOME")
		if stateHome == "" {
			homeDir, _ := os.UserHomeDir()
			stateHome = filepath.Join(homeDir, ".local", "state")
		}
		return filepath.Join(stateHome, "imefeed", "imefeed.log")
	}
}

// Logger wraps slog.Logger with a shared, mutable level.
type Logger struct {
	*slog.Logger
	config *Config
	level  *slog.LevelVar
	file   *lumberjack.Logger
}

// global default logger
var (
	defaultLogger *Logger
	loggerMu      sync.Mutex
)

// Default returns the default global logger.
func Default() *Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if defaultLogger == nil {
		l, err := New(DefaultConfig())
		if err != nil {
			lv := new(slog.LevelVar)
			l = &Logger{Logger: slog.Default(), config: DefaultConfig(), level: lv}
		}
		defaultLogger = l
	}
	return defaultLogger
}

// SetDefault sets the default global logger.
func SetDefault(l *Logger) {
	loggerMu.Lock()
	defaultLogger = l
	loggerMu.Unlock()
	slog.SetDefault(l.Logger)
}

// New creates a new Logger with the given configuration.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	l := &Logger{
		config: cfg,
		level:  new(slog.LevelVar),
	}
	l.level.Set(cfg.Level)

	w, err := l.setupWriter()
	if err != nil {
		return nil, fmt.Errorf("setup writers: %w", err)
	}
	l.Logger = slog.New(newHandler(w, cfg, l.level))
	return l, nil
}

// NewWithWriter creates a Logger writing to w regardless of cfg.Output.
func NewWithWriter(w io.Writer, cfg *Config) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	lv := new(slog.LevelVar)
	lv.Set(cfg.Level)
	return &Logger{
		Logger: slog.New(newHandler(w, cfg, lv)),
		config: cfg,
		level:  lv,
	}
}

func newHandler(w io.Writer, cfg *Config, level *slog.LevelVar) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	switch cfg.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	if cfg.Component != "" {
		handler = handler.WithAttrs([]slog.Attr{
			slog.String("component", cfg.Component),
		})
	}
	return handler
}

// setupWriter configures the output writer based on config.
func (l *Logger) setupWriter() (io.Writer, error) {
	switch strings.ToLower(l.config.Output) {
	case "stdout":
		return os.Stdout, nil
	case "file":
		if err := l.openFile(); err != nil {
			return nil, err
		}
		return l.file, nil
	case "both":
		if err := l.openFile(); err != nil {
			return nil, err
		}
		return io.MultiWriter(os.Stderr, l.file), nil
	default:
		return os.Stderr, nil
	}
}

func (l *Logger) openFile() error {
	if l.config.FilePath == "" {
		return fmt.Errorf("file output requires a file path")
	}
	if err := os.MkdirAll(filepath.Dir(l.config.FilePath), 0750); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	l.file = &lumberjack.Logger{
		Filename:   l.config.FilePath,
		MaxSize:    l.config.MaxSizeMB,
		MaxAge:     l.config.MaxAgeDays,
		MaxBackups: l.config.MaxBackups,
		Compress:   l.config.Compress,
	}
	return nil
}

// WithComponent returns a new logger with a different component name.
// The child shares the parent's level.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With(slog.String("component", name)),
		config: l.config,
		level:  l.level,
		file:   l.file,
	}
}

// SetLevel changes the minimum level of this logger and every child.
func (l *Logger) SetLevel(level Level) {
	l.level.Set(level)
}

// Level returns the current minimum level.
func (l *Logger) Level() Level {
	return l.level.Level()
}

// Close closes any open log files.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// ParseLevel parses a string into a log level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %s", s)
	}
}

// LevelString returns the string representation of a log level.
func LevelString(level Level) string {
	switch level {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// ParseFormat parses "text" or "json".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("unknown log format: %s", s)
	}
}
