package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration that can be unmarshaled from human-readable strings.
// Supports formats like "500ms", "2s", "1m", or integer milliseconds.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be like '500ms', '2s', '1m' or milliseconds: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML output.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// DaemonConfig is the configuration for wlrsd.
// Loaded from ~/.config/wlrs/wlrsd.toml
type DaemonConfig struct {
	Host    HostConfig    `toml:"host"`
	Render  RenderConfig  `toml:"render"`
	Library LibraryConfig `toml:"library"`
	Startup StartupConfig `toml:"startup"`
	Notify  NotifyConfig  `toml:"notify"`
}

// HostConfig selects where frames are presented.
type HostConfig struct {
	Backend string `toml:"backend"` // "gtk", "x11" or "headless"
}

// RenderConfig contains compositing settings.
type RenderConfig struct {
	CacheSize       int      `toml:"cache_size"`       // decoded images kept in memory
	RefreshInterval Duration `toml:"refresh_interval"` // stand-in refresh for compositor-driven rates without a host clock
	HeadlessWidth   int      `toml:"headless_width"`
	HeadlessHeight  int      `toml:"headless_height"`
	HeadlessOutputs []string `toml:"headless_outputs"`
}

// LibraryConfig contains wallpaper discovery settings.
type LibraryConfig struct {
	InstallDir string   `toml:"install_dir"` // empty = $XDG_DATA_HOME/wlrs/wallpapers
	ExtraDirs  []string `toml:"extra_dirs"`
	Watch      bool     `toml:"watch"` // rescan when wallpaper directories change
}

// StartupConfig picks wallpapers for monitors with no remembered choice.
type StartupConfig struct {
	Wallpaper string            `toml:"wallpaper"`
	Monitors  map[string]string `toml:"monitors"` // output ID or name -> wallpaper
	Restore   bool              `toml:"restore"`  // restore the last wallpaper per monitor
}

// NotifyConfig controls desktop notifications.
type NotifyConfig struct {
	Enabled bool     `toml:"enabled"`
	OnError bool     `toml:"on_error"` // notify when a wallpaper fails to load
	Timeout Duration `toml:"timeout"`
}

// Backend names a presentation host.
type Backend string

const (
	BackendGTK      Backend = "gtk"
	BackendX11      Backend = "x11"
	BackendHeadless Backend = "headless"
)

// ValidBackends returns all valid backend values.
func ValidBackends() []Backend {
	return []Backend{BackendGTK, BackendX11, BackendHeadless}
}

// DefaultDaemonConfig returns a new DaemonConfig with default values.
func DefaultDaemonConfig() *DaemonConfig {
	return &DaemonConfig{
		Host: HostConfig{
			Backend: string(BackendGTK),
		},
		Render: RenderConfig{
			CacheSize:       32,
			RefreshInterval: Duration(time.Second / 60),
			HeadlessWidth:   1920,
			HeadlessHeight:  1080,
			HeadlessOutputs: []string{"HEADLESS-1"},
		},
		Library: LibraryConfig{
			Watch: true,
		},
		Startup: StartupConfig{
			Monitors: map[string]string{},
			Restore:  true,
		},
		Notify: NotifyConfig{
			Enabled: true,
			OnError: true,
			Timeout: Duration(5 * time.Second),
		},
	}
}

// DaemonConfigPath returns the path to the daemon config file.
func DaemonConfigPath() string {
	return filepath.Join(ConfigDir(), "wlrsd.toml")
}

// LoadDaemonConfig loads the daemon configuration from path, or the default
// path when empty. If the file doesn't exist, returns the default configuration.
func LoadDaemonConfig(path string) (*DaemonConfig, error) {
	if path == "" {
		path = DaemonConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultDaemonConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then overlay with file contents
	config := DefaultDaemonConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// SaveDaemonConfig saves the daemon configuration to path, or the default
// path when empty.
func SaveDaemonConfig(config *DaemonConfig, path string) error {
	if path == "" {
		path = DaemonConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
func (c *DaemonConfig) Validate() error {
	if !slices.Contains(ValidBackends(), Backend(c.Host.Backend)) {
		return fmt.Errorf("invalid backend %q, must be one of: %v", c.Host.Backend, ValidBackends())
	}

	if c.Render.CacheSize < 1 || c.Render.CacheSize > 1024 {
		return fmt.Errorf("cache_size must be between 1 and 1024, got %d", c.Render.CacheSize)
	}
	if c.Render.RefreshInterval.Duration() < time.Millisecond || c.Render.RefreshInterval.Duration() > time.Second {
		return fmt.Errorf("refresh_interval must be between 1ms and 1s, got %s", c.Render.RefreshInterval.Duration())
	}
	if c.Render.HeadlessWidth < 1 || c.Render.HeadlessHeight < 1 {
		return fmt.Errorf("headless size must be positive, got %dx%d", c.Render.HeadlessWidth, c.Render.HeadlessHeight)
	}
	if c.Host.Backend == string(BackendHeadless) && len(c.Render.HeadlessOutputs) == 0 {
		return fmt.Errorf("headless_outputs cannot be empty with the headless backend")
	}

	return nil
}

// WallpaperDir returns the install directory, expanded.
func (c *DaemonConfig) WallpaperDir() string {
	if c.Library.InstallDir != "" {
		return expandPath(c.Library.InstallDir)
	}
	return WallpaperDir()
}

// SearchDirs returns the extra wallpaper directories, expanded.
func (c *DaemonConfig) SearchDirs() []string {
	dirs := make([]string, 0, len(c.Library.ExtraDirs))
	for _, d := range c.Library.ExtraDirs {
		dirs = append(dirs, expandPath(d))
	}
	return dirs
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
