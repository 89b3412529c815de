package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/wlrs/internal/config"
	"github.com/jmylchreest/wlrs/internal/effect"
	"github.com/jmylchreest/wlrs/internal/library"
	"github.com/jmylchreest/wlrs/internal/manifest"
)

// touch rewrites path with a modification time in the future so pollers see
// a change regardless of filesystem timestamp resolution.
func touch(t *testing.T, path, content string, offset time.Duration) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	mod := time.Now().Add(offset)
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestConfigWatcher_ReloadsValidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wlrsd.toml")
	touch(t, path, "[startup]\nwallpaper = \"dusk\"\n", 0)

	w := NewConfigWatcher(path, nil)
	w.SetPollInterval(10 * time.Millisecond)
	reloaded := make(chan *config.DaemonConfig, 1)
	w.SetReloadCallback(func(c *config.DaemonConfig) { reloaded <- c })

	require.NoError(t, w.Start(context.Background(), config.DefaultDaemonConfig()))
	defer w.Stop()

	touch(t, path, "[startup]\nwallpaper = \"dawn\"\n", time.Minute)

	select {
	case c := <-reloaded:
		assert.Equal(t, "dawn", c.Startup.Wallpaper)
		assert.Same(t, c, w.GetCurrentConfig())
	case <-time.After(2 * time.Second):
		t.Fatal("config was not reloaded")
	}
}

func TestConfigWatcher_KeepsConfigOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wlrsd.toml")
	touch(t, path, "", 0)

	initial := config.DefaultDaemonConfig()
	w := NewConfigWatcher(path, nil)
	w.SetPollInterval(10 * time.Millisecond)
	failed := make(chan error, 1)
	w.SetErrorCallback(func(err error) { failed <- err })
	w.SetReloadCallback(func(*config.DaemonConfig) { t.Error("invalid config was applied") })

	require.NoError(t, w.Start(context.Background(), initial))
	defer w.Stop()

	touch(t, path, "[render]\ncache_size = 0\n", time.Minute)

	select {
	case err := <-failed:
		assert.Contains(t, err.Error(), "cache_size")
	case <-time.After(2 * time.Second):
		t.Fatal("error callback not called")
	}
	assert.Same(t, initial, w.GetCurrentConfig())
}

func TestConfigWatcher_StopIsIdempotent(t *testing.T) {
	w := NewConfigWatcher(filepath.Join(t.TempDir(), "missing.toml"), nil)
	w.Stop()
	require.NoError(t, w.Start(context.Background(), config.DefaultDaemonConfig()))
	w.Stop()
	w.Stop()
}

type recordingInvalidator struct {
	mu    sync.Mutex
	paths []string
}

func (r *recordingInvalidator) Invalidate(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *recordingInvalidator) seen(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.paths {
		if p == path {
			return true
		}
	}
	return false
}

func TestLibraryWatcher_RefreshesChangedWallpaper(t *testing.T) {
	root := filepath.Join(t.TempDir(), "wallpapers")
	dir := writeWallpaper(t, root, "dusk")

	lib := library.New(root, nil, manifest.NewLoader(effect.NewRegistry(nil), nil), nil)
	require.Equal(t, 1, lib.Scan())

	cache := &recordingInvalidator{}
	w, err := NewLibraryWatcher(lib, cache, nil)
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)
	changes := make(chan LibraryChange, 4)
	w.SetChangeCallback(func(ch LibraryChange) { changes <- ch })
	require.NoError(t, w.Start())
	defer func() { _ = w.Stop() }()

	manifestPath := filepath.Join(dir, "manifest.toml")
	require.NoError(t, os.WriteFile(manifestPath, []byte(`name = "dusk"
framerate = 10

[[layers]]
name = "fill"
content = "#000000"
`), 0644))

	select {
	case ch := <-changes:
		require.NoError(t, ch.Err)
		assert.False(t, ch.Removed)
		assert.Equal(t, "dusk", ch.Summary.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("no change reported")
	}
	assert.True(t, cache.seen(manifestPath))

	require.NoError(t, os.Remove(manifestPath))
	require.Eventually(t, func() bool {
		select {
		case ch := <-changes:
			return ch.Removed
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, lib.List())
}

func TestLibraryWatcher_ReportsBrokenManifest(t *testing.T) {
	root := filepath.Join(t.TempDir(), "wallpapers")
	dir := writeWallpaper(t, root, "dusk")
	lib := library.New(root, nil, manifest.NewLoader(effect.NewRegistry(nil), nil), nil)
	lib.Scan()

	w, err := NewLibraryWatcher(lib, nil, nil)
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)
	changes := make(chan LibraryChange, 4)
	w.SetChangeCallback(func(ch LibraryChange) { changes <- ch })
	require.NoError(t, w.Start())
	defer func() { _ = w.Stop() }()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.toml"), []byte("name = \"dusk\"\n"), 0644))

	select {
	case ch := <-changes:
		assert.Error(t, ch.Err)
		assert.Equal(t, dir, ch.Dir)
	case <-time.After(2 * time.Second):
		t.Fatal("no change reported")
	}
}
