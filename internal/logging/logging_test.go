package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		hasError bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"INFO", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"ERROR", LevelError, false},
		{"invalid", LevelInfo, true},
		{"", LevelInfo, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			level, err := ParseLevel(test.input)
			if test.hasError && err == nil {
				t.Error("expected error, got nil")
			}
			if !test.hasError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !test.hasError && level != test.expected {
				t.Errorf("expected %v, got %v", test.expected, level)
			}
		})
	}
}

func TestLevelString(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			result := LevelString(test.level)
			if result != test.expected {
				t.Errorf("expected %q, got %q", test.expected, result)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("json"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(json) = %v, %v", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatText {
		t.Errorf("ParseFormat(\"\") = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("expected default level Info, got %v", cfg.Level)
	}
	if cfg.Format != FormatText {
		t.Errorf("expected default format Text, got %v", cfg.Format)
	}
	if cfg.Output != "stderr" {
		t.Errorf("expected default output stderr, got %s", cfg.Output)
	}
	if cfg.MaxSizeMB <= 0 {
		t.Errorf("expected positive MaxSizeMB, got %d", cfg.MaxSizeMB)
	}
	if cfg.MaxBackups <= 0 {
		t.Errorf("expected positive MaxBackups, got %d", cfg.MaxBackups)
	}
}

func TestLoggerNew(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output = "stderr"

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Close()

	if logger.Logger == nil {
		t.Error("logger.Logger is nil")
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer

	cfg := &Config{
		Level:     LevelInfo,
		Format:    FormatJSON,
		Component: "test",
	}
	logger := NewWithWriter(&buf, cfg)
	logger.Info("consumer attached", "session", "abc")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "consumer attached" {
		t.Errorf("unexpected msg: %v", entry["msg"])
	}
	if entry["component"] != "test" {
		t.Errorf("unexpected component: %v", entry["component"])
	}
	if entry["session"] != "abc" {
		t.Errorf("unexpected session: %v", entry["session"])
	}
}

func TestWithComponentSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, &Config{Level: LevelInfo, Component: "root"})
	child := logger.WithComponent("ipc")

	child.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug line written at info level: %q", buf.String())
	}

	logger.SetLevel(LevelDebug)
	child.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("child did not pick up new level: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "component=ipc") {
		t.Errorf("missing component attribute: %q", buf.String())
	}
	if logger.Level() != LevelDebug {
		t.Errorf("expected debug level, got %v", logger.Level())
	}
}

func TestFileOutput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "imefeed.log")

	cfg := DefaultConfig()
	cfg.Output = "file"
	cfg.FilePath = logPath
	cfg.Compress = false

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	logger.Info("pipe created")
	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("log file was not created: %v", err)
	}
	if !strings.Contains(string(data), "pipe created") {
		t.Errorf("log file missing entry: %q", data)
	}
}

func TestFileOutputRequiresPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output = "file"
	cfg.FilePath = ""

	if _, err := New(cfg); err == nil {
		t.Error("expected error for file output without path")
	}
}

func TestSetDefault(t *testing.T) {
	prev := Default()
	defer SetDefault(prev)

	var buf bytes.Buffer
	l := NewWithWriter(&buf, &Config{Level: LevelInfo})
	SetDefault(l)
	if Default() != l {
		t.Error("SetDefault did not replace the default logger")
	}
}

func TestCrashHandlerGuard(t *testing.T) {
	var buf bytes.Buffer
	dir := filepath.Join(t.TempDir(), "crashes")
	h := NewCrashHandler(&CrashHandlerConfig{
		CrashDir: dir,
		Version:  "1.2.3",
		Logger:   NewWithWriter(&buf, &Config{Level: LevelInfo}),
	})

	err := h.Guard(map[string]any{"op": "sample"}, func() error {
		panic("provider exploded")
	})
	if err == nil || !strings.Contains(err.Error(), "provider exploded") {
		t.Fatalf("expected panic error, got %v", err)
	}

	reports, err := h.Reports()
	if err != nil {
		t.Fatalf("reports: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(reports))
	}
	r := reports[0]
	if r.Version != "1.2.3" || r.Component != "imefeed" || r.Context["op"] != "sample" {
		t.Errorf("unexpected report: %+v", r)
	}
	if !strings.Contains(r.StackTrace, "TestCrashHandlerGuard") {
		t.Error("stack trace does not include the panicking caller")
	}
	if !strings.Contains(buf.String(), "provider exploded") {
		t.Errorf("crash not logged: %q", buf.String())
	}

	if err := h.Cleanup(0); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	reports, _ = h.Reports()
	if len(reports) != 0 {
		t.Errorf("expected cleanup to remove reports, %d left", len(reports))
	}
}

func TestCrashHandlerGuardPassesErrors(t *testing.T) {
	h := NewCrashHandler(&CrashHandlerConfig{CrashDir: t.TempDir()})
	want := os.ErrClosed
	if err := h.Guard(nil, func() error { return want }); err != want {
		t.Errorf("expected %v, got %v", want, err)
	}
	if err := h.Guard(nil, func() error { return nil }); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
