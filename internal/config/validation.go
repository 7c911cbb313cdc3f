package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"imefeed/internal/ime"
	"imefeed/internal/ipc"
	"imefeed/internal/logging"
)

// ErrInvalidConfig wraps every validation and decoding failure.
var ErrInvalidConfig = errors.New("invalid configuration")

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "https://imefeed.local/config.schema.json"

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return c.Compile(schemaURL)
})

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration against the embedded JSON Schema and
// then applies the checks a schema cannot express.
func (c *Config) Validate() error {
	if err := validateSchema(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if errs := validateSemantics(c); len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errs)
	}
	return nil
}

func validateSchema(c *Config) error {
	schema, err := compileSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return schema.Validate(instance)
}

func validateSemantics(c *Config) ValidationErrors {
	var errs ValidationErrors

	if c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	if c.Pipe.BufferSize < ipc.MinBufferSize {
		errs = append(errs, ValidationError{
			Field:   "pipe.buffer_size",
			Message: fmt.Sprintf("must be at least %d", ipc.MinBufferSize),
		})
	}
	if strings.ContainsAny(c.Pipe.Name, `\`) && !strings.HasPrefix(c.Pipe.Name, `\\.\pipe\`) {
		errs = append(errs, ValidationError{
			Field:   "pipe.name",
			Message: "backslashes are only allowed in a full \\\\.\\pipe\\ path",
		})
	}

	if c.Sampling.IntervalMs < 10 || c.Sampling.IntervalMs > 10000 {
		errs = append(errs, ValidationError{
			Field:   "sampling.interval_ms",
			Message: "must be between 10 and 10000",
		})
	}

	errs = append(errs, validateLogging(&c.Logging)...)

	if c.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(c.Metrics.ListenAddr); err != nil {
			errs = append(errs, ValidationError{
				Field:   "metrics.listen_addr",
				Message: err.Error(),
			})
		}
	}

	if c.Journal.Enabled && c.Journal.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "journal.path",
			Message: "required when the journal is enabled",
		})
	}

	if !slices.Contains(ime.Backends, strings.ToLower(c.Provider.Backend)) {
		errs = append(errs, ValidationError{
			Field:   "provider.backend",
			Message: fmt.Sprintf("unknown backend %q (valid: %s)", c.Provider.Backend, strings.Join(ime.Backends, ", ")),
		})
	}
	if c.Provider.CapsLockLEDGlob != "" {
		if _, err := filepath.Match(c.Provider.CapsLockLEDGlob, ""); err != nil {
			errs = append(errs, ValidationError{
				Field:   "provider.caps_lock_led_glob",
				Message: err.Error(),
			})
		}
	}

	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	if _, err := logging.ParseLevel(l.Level); err != nil {
		errs = append(errs, ValidationError{Field: "logging.level", Message: err.Error()})
	}
	if _, err := logging.ParseFormat(l.Format); err != nil {
		errs = append(errs, ValidationError{Field: "logging.format", Message: err.Error()})
	}

	switch strings.ToLower(l.Output) {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: "required when output includes a file",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("unknown output %q", l.Output),
		})
	}
	return errs
}
