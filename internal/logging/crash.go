package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"sync"
	"time"
)

// CrashReport describes a recovered panic.
type CrashReport struct {
	Timestamp    time.Time      `json:"timestamp"`
	Version      string         `json:"version"`
	GOOS         string         `json:"goos"`
	GOARCH       string         `json:"goarch"`
	GoVersion    string         `json:"go_version"`
	NumGoroutine int            `json:"num_goroutine"`
	PanicValue   string         `json:"panic_value"`
	StackTrace   string         `json:"stack_trace"`
	Component    string         `json:"component,omitempty"`
	Context      map[string]any `json:"context,omitempty"`
}

// CrashHandler turns panics into crash reports on disk.
type CrashHandler struct {
	mu        sync.Mutex
	crashDir  string
	version   string
	component string
	logger    *Logger
}

// CrashHandlerConfig configures the crash handler.
type CrashHandlerConfig struct {
	// CrashDir is the directory crash reports are written to.
	CrashDir string

	Version   string
	Component string

	// Logger receives a summary of every crash. Defaults to Default().
	Logger *Logger
}

// DefaultCrashDir returns the platform-specific crash directory, next to
// the default log file.
func DefaultCrashDir() string {
	return filepath.Join(filepath.Dir(DefaultLogPath()), "crashes")
}

// NewCrashHandler creates a CrashHandler. The directory is created lazily
// on the first crash.
func NewCrashHandler(cfg *CrashHandlerConfig) *CrashHandler {
	if cfg == nil {
		cfg = &CrashHandlerConfig{}
	}
	h := &CrashHandler{
		crashDir:  cfg.CrashDir,
		version:   cfg.Version,
		component: cfg.Component,
		logger:    cfg.Logger,
	}
	if h.crashDir == "" {
		h.crashDir = DefaultCrashDir()
	}
	if h.component == "" {
		h.component = "imefeed"
	}
	return h
}

// Dir returns the crash report directory.
func (h *CrashHandler) Dir() string { return h.crashDir }

// Guard runs fn and converts a panic into a crash report and an error.
func (h *CrashHandler) Guard(contextInfo map[string]any, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			report := h.HandlePanic(r, contextInfo)
			err = fmt.Errorf("panic: %s", report.PanicValue)
		}
	}()
	return fn()
}

// HandlePanic records a recovered panic value and returns the report.
func (h *CrashHandler) HandlePanic(panicValue any, contextInfo map[string]any) CrashReport {
	h.mu.Lock()
	defer h.mu.Unlock()

	report := CrashReport{
		Timestamp:    time.Now().UTC(),
		Version:      h.version,
		GOOS:         runtime.GOOS,
		GOARCH:       runtime.GOARCH,
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		PanicValue:   fmt.Sprint(panicValue),
		StackTrace:   string(debug.Stack()),
		Component:    h.component,
		Context:      contextInfo,
	}

	logger := h.logger
	if logger == nil {
		logger = Default()
	}
	path, err := h.write(report)
	if err != nil {
		logger.Error("crash", "panic", report.PanicValue, "report_error", err, "stack", report.StackTrace)
		return report
	}
	logger.Error("crash", "panic", report.PanicValue, "report", path)
	return report
}

func (h *CrashHandler) write(report CrashReport) (string, error) {
	if err := os.MkdirAll(h.crashDir, 0o750); err != nil {
		return "", fmt.Errorf("create crash directory: %w", err)
	}
	name := fmt.Sprintf("crash-%s-%s.json",
		report.Component,
		report.Timestamp.Format("20060102-150405.000"))
	path := filepath.Join(h.crashDir, name)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal crash report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("write crash report: %w", err)
	}
	return path, nil
}

// Reports returns the stored crash reports, oldest first. Unreadable
// files are skipped.
func (h *CrashHandler) Reports() ([]CrashReport, error) {
	files, err := filepath.Glob(filepath.Join(h.crashDir, "crash-*.json"))
	if err != nil {
		return nil, err
	}

	reports := make([]CrashReport, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			continue
		}
		var report CrashReport
		if err := json.Unmarshal(data, &report); err != nil {
			continue
		}
		reports = append(reports, report)
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Timestamp.Before(reports[j].Timestamp)
	})
	return reports, nil
}

// Cleanup removes crash reports older than maxAge.
func (h *CrashHandler) Cleanup(maxAge time.Duration) error {
	files, err := filepath.Glob(filepath.Join(h.crashDir, "crash-*.json"))
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-maxAge)
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(file)
		}
	}
	return nil
}
