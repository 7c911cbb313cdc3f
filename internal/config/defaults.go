package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "imefeed"

// PlatformConfigDir returns the platform-specific config directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/imefeed/
//   - Linux:   $XDG_CONFIG_HOME/imefeed/ or ~/.config/imefeed/
//   - Windows: %APPDATA%\imefeed\
func PlatformConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Application Support", appName)
	case "windows":
		return windowsAppData()
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appName)
		}
		return filepath.Join(homeDir(), ".config", appName)
	}
}

// PlatformDataDir returns the platform-specific data directory, where the
// session journal lives.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/imefeed/
//   - Linux:   $XDG_DATA_HOME/imefeed/ or ~/.local/share/imefeed/
//   - Windows: %APPDATA%\imefeed\
func PlatformDataDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Application Support", appName)
	case "windows":
		return windowsAppData()
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, appName)
		}
		return filepath.Join(homeDir(), ".local", "share", appName)
	}
}

func windowsAppData() string {
	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, appName)
	}
	return filepath.Join(homeDir(), "AppData", "Roaming", appName)
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return os.TempDir()
}

// SupportedConfigFormats returns the accepted config file extensions.
func SupportedConfigFormats() []string {
	return []string{".toml", ".json", ".yaml", ".yml"}
}
