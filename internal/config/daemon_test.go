package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDaemonConfig_IsValid(t *testing.T) {
	cfg := DefaultDaemonConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "gtk", cfg.Host.Backend)
	assert.Equal(t, 32, cfg.Render.CacheSize)
	assert.True(t, cfg.Startup.Restore)
}

func TestLoadDaemonConfig_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wlrsd.toml")
	content := `
[host]
backend = "headless"

[render]
cache_size = 8
refresh_interval = "8ms"
headless_outputs = ["A", "B"]

[library]
extra_dirs = ["~/walls"]
watch = false

[startup]
wallpaper = "ocean"

[startup.monitors]
"DP-1" = "forest"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadDaemonConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "headless", cfg.Host.Backend)
	assert.Equal(t, 8, cfg.Render.CacheSize)
	assert.Equal(t, 8*time.Millisecond, cfg.Render.RefreshInterval.Duration())
	assert.Equal(t, 1920, cfg.Render.HeadlessWidth, "defaults survive the overlay")
	assert.Equal(t, []string{"A", "B"}, cfg.Render.HeadlessOutputs)
	assert.False(t, cfg.Library.Watch)
	assert.Equal(t, "ocean", cfg.Startup.Wallpaper)
	assert.Equal(t, "forest", cfg.Startup.Monitors["DP-1"])

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(home, "walls")}, cfg.SearchDirs())
}

func TestLoadDaemonConfig_Missing(t *testing.T) {
	cfg, err := LoadDaemonConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultDaemonConfig(), cfg)
}

func TestDaemonConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*DaemonConfig)
	}{
		{"bad backend", func(c *DaemonConfig) { c.Host.Backend = "vulkan" }},
		{"zero cache", func(c *DaemonConfig) { c.Render.CacheSize = 0 }},
		{"refresh too fast", func(c *DaemonConfig) { c.Render.RefreshInterval = 0 }},
		{"negative size", func(c *DaemonConfig) { c.Render.HeadlessWidth = -1 }},
		{"headless without outputs", func(c *DaemonConfig) {
			c.Host.Backend = "headless"
			c.Render.HeadlessOutputs = nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultDaemonConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadDaemonConfig_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wlrsd.toml")
	require.NoError(t, os.WriteFile(path, []byte("[render]\ncache_size = 0\n"), 0644))

	_, err := LoadDaemonConfig(path)
	assert.ErrorContains(t, err, "cache_size")
}

func TestSaveDaemonConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "wlrsd.toml")
	cfg := DefaultDaemonConfig()
	cfg.Startup.Wallpaper = "dunes"
	cfg.Render.RefreshInterval = Duration(10 * time.Millisecond)

	require.NoError(t, SaveDaemonConfig(cfg, path))
	assert.NoFileExists(t, path+".tmp")

	loaded, err := LoadDaemonConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "dunes", loaded.Startup.Wallpaper)
	assert.Equal(t, 10*time.Millisecond, loaded.Render.RefreshInterval.Duration())
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("250")))
	assert.Equal(t, 250*time.Millisecond, d.Duration())
	require.NoError(t, d.UnmarshalText([]byte("2s")))
	assert.Equal(t, 2*time.Second, d.Duration())
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}
