package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Encode renders cfg in the format implied by ext (".toml", ".json",
// ".yaml" or ".yml"). Anything else is TOML.
func Encode(cfg *Config, ext string) ([]byte, error) {
	switch strings.ToLower(ext) {
	case ".json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case ".yaml", ".yml":
		return yaml.Marshal(cfg)
	default:
		var buf bytes.Buffer
		buf.WriteString("# imefeed configuration\n\n")
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
}

// SaveConfig writes cfg to path with owner-only permissions, creating the
// directory if needed. The format follows the file extension.
func SaveConfig(cfg *Config, path string) error {
	data, err := Encode(cfg, filepath.Ext(path))
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
