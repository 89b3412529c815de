// Package config handles configuration file loading and parsing, and the
// XDG locations wlrs reads and writes.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Default configuration values.
const (
	DefaultFormat  = "plain"
	DefaultTimeout = 5 * time.Second
)

// Config represents the wlrs CLI configuration.
type Config struct {
	Output OutputConfig `toml:"output"`
	Client ClientConfig `toml:"client"`
}

// OutputConfig holds default output options.
type OutputConfig struct {
	Format string `toml:"format"` // plain, json, yaml
	Color  string `toml:"color"`  // auto, always, never
}

// ClientConfig holds D-Bus client options.
type ClientConfig struct {
	Timeout Duration `toml:"timeout"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Output: OutputConfig{
			Format: DefaultFormat,
			Color:  "auto",
		},
		Client: ClientConfig{
			Timeout: Duration(DefaultTimeout),
		},
	}
}

// xdgDir resolves an XDG base directory: the value of env when set,
// otherwise fallback under the home directory. Empty when neither is known.
func xdgDir(env string, fallback ...string) string {
	if dir := os.Getenv(env); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(append([]string{home}, fallback...)...)
}

// ConfigDir returns the wlrs config directory ($XDG_CONFIG_HOME/wlrs).
func ConfigDir() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), "wlrs")
}

// ConfigPath returns the path to the CLI config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// DataPath returns the wlrs data directory ($XDG_DATA_HOME/wlrs).
func DataPath() string {
	return filepath.Join(xdgDir("XDG_DATA_HOME", ".local", "share"), "wlrs")
}

// WallpaperDir returns the default wallpaper install directory.
func WallpaperDir() string {
	return filepath.Join(DataPath(), "wallpapers")
}

// StatePath returns the path of the persisted per-monitor state.
func StatePath() string {
	return filepath.Join(xdgDir("XDG_STATE_HOME", ".local", "state"), "wlrs", "monitors.json")
}

// LoadConfig loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
