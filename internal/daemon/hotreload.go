package daemon

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jmylchreest/wlrs/internal/config"
	"github.com/jmylchreest/wlrs/internal/library"
)

// ConfigWatcher watches the daemon config file for changes and validates new configs.
type ConfigWatcher struct {
	mu     sync.RWMutex
	logger *slog.Logger

	configPath   string
	lastModTime  time.Time
	pollInterval time.Duration

	currentConfig *config.DaemonConfig

	onReloadCallback func(newConfig *config.DaemonConfig)
	onErrorCallback  func(err error)

	stopCh chan struct{}
	doneCh chan struct{}

	running bool
}

// NewConfigWatcher creates a ConfigWatcher for the config file at path.
func NewConfigWatcher(path string, logger *slog.Logger) *ConfigWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		path = config.DaemonConfigPath()
	}
	return &ConfigWatcher{
		logger:       logger,
		configPath:   path,
		pollInterval: time.Second,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// SetPollInterval sets the polling interval for file changes.
func (w *ConfigWatcher) SetPollInterval(interval time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pollInterval = interval
}

// SetReloadCallback sets the callback invoked with each valid new config.
func (w *ConfigWatcher) SetReloadCallback(callback func(newConfig *config.DaemonConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReloadCallback = callback
}

// SetErrorCallback sets the callback invoked when a changed config is invalid.
// The previous config stays in effect.
func (w *ConfigWatcher) SetErrorCallback(callback func(err error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onErrorCallback = callback
}

// Start begins polling. initialConfig is what the daemon is running with.
func (w *ConfigWatcher) Start(ctx context.Context, initialConfig *config.DaemonConfig) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.currentConfig = initialConfig
	if info, err := os.Stat(w.configPath); err == nil {
		w.lastModTime = info.ModTime()
	}
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	interval := w.pollInterval
	w.mu.Unlock()

	go w.watchLoop(ctx, interval)

	w.logger.Debug("config watcher started", "path", w.configPath, "interval", interval)
	return nil
}

// Stop stops polling and waits for the loop to exit.
func (w *ConfigWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	<-w.doneCh
}

// GetCurrentConfig returns the last valid config.
func (w *ConfigWatcher) GetCurrentConfig() *config.DaemonConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.currentConfig
}

func (w *ConfigWatcher) watchLoop(ctx context.Context, interval time.Duration) {
	defer close(w.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.checkForChanges()
		}
	}
}

func (w *ConfigWatcher) checkForChanges() {
	w.mu.RLock()
	reloadCallback := w.onReloadCallback
	errorCallback := w.onErrorCallback
	lastModTime := w.lastModTime
	w.mu.RUnlock()

	info, err := os.Stat(w.configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			w.logger.Debug("failed to stat config file", "path", w.configPath, "error", err)
		}
		return
	}

	modTime := info.ModTime()
	if !modTime.After(lastModTime) {
		return
	}
	w.mu.Lock()
	w.lastModTime = modTime
	w.mu.Unlock()

	w.logger.Debug("config file changed", "path", w.configPath, "modTime", modTime)

	newConfig, err := config.LoadDaemonConfig(w.configPath)
	if err != nil {
		w.logger.Warn("config file changed but validation failed", "error", err)
		if errorCallback != nil {
			errorCallback(err)
		}
		return
	}

	w.mu.Lock()
	w.currentConfig = newConfig
	w.mu.Unlock()

	w.logger.Info("config reloaded successfully")
	if reloadCallback != nil {
		reloadCallback(newConfig)
	}
}

// DefaultDebounce is how long a LibraryWatcher waits for a burst of file
// events to settle.
const DefaultDebounce = 300 * time.Millisecond

// Invalidator drops cached decodes of a file.
type Invalidator interface {
	Invalidate(path string)
}

// LibraryChange reports the outcome of refreshing one wallpaper directory.
type LibraryChange struct {
	Dir     string
	Summary library.Summary
	Removed bool
	Err     error
}

// LibraryWatcher refreshes wallpapers whose directories change on disk. It
// watches each library root and every wallpaper directory one level below.
type LibraryWatcher struct {
	mu     sync.Mutex
	logger *slog.Logger

	lib      *library.Library
	cache    Invalidator
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onChange func(LibraryChange)

	pending map[string]struct{}
	timer   *time.Timer

	done    chan struct{}
	running bool
}

// NewLibraryWatcher creates a watcher over lib's roots. cache may be nil.
func NewLibraryWatcher(lib *library.Library, cache Invalidator, logger *slog.Logger) (*LibraryWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &LibraryWatcher{
		logger:   logger,
		lib:      lib,
		cache:    cache,
		watcher:  watcher,
		debounce: DefaultDebounce,
		pending:  make(map[string]struct{}),
		done:     make(chan struct{}),
	}, nil
}

// SetDebounce sets the settle time for bursts of events.
func (w *LibraryWatcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounce = d
}

// SetChangeCallback sets the callback invoked after each refresh.
func (w *LibraryWatcher) SetChangeCallback(callback func(LibraryChange)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = callback
}

// Start adds watches and begins processing events. Roots that do not exist
// are skipped.
func (w *LibraryWatcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	for _, root := range w.lib.Roots() {
		if err := w.watcher.Add(root); err != nil {
			if !os.IsNotExist(err) {
				w.logger.Warn("cannot watch wallpaper directory", "path", root, "error", err)
			}
			continue
		}
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				w.addDir(filepath.Join(root, e.Name()))
			}
		}
	}

	go w.watch()
	return nil
}

func (w *LibraryWatcher) addDir(dir string) {
	if err := w.watcher.Add(dir); err != nil {
		w.logger.Debug("cannot watch wallpaper", "path", dir, "error", err)
	}
}

func (w *LibraryWatcher) watch() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("library watcher error", "error", err)

		case <-w.done:
			return
		}
	}
}

func (w *LibraryWatcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return
	}
	dir, ok := w.lib.Owner(event.Name)
	if !ok {
		return
	}
	if w.cache != nil {
		w.cache.Invalidate(event.Name)
	}
	if event.Name == dir && event.Has(fsnotify.Create) {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			w.addDir(dir)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[dir] = struct{}{}
	if w.timer == nil {
		w.timer = time.AfterFunc(w.debounce, w.flush)
	} else {
		w.timer.Reset(w.debounce)
	}
}

func (w *LibraryWatcher) flush() {
	w.mu.Lock()
	dirs := w.pending
	w.pending = make(map[string]struct{})
	w.timer = nil
	running := w.running
	callback := w.onChange
	w.mu.Unlock()

	if !running {
		return
	}
	for dir := range dirs {
		sum, removed, err := w.lib.Refresh(dir)
		switch {
		case err != nil:
			w.logger.Warn("wallpaper reload failed", "path", dir, "error", err)
		case removed:
			w.logger.Info("wallpaper removed", "path", dir)
		default:
			w.logger.Info("wallpaper reloaded", "name", sum.Name, "path", dir)
		}
		if callback != nil {
			callback(LibraryChange{Dir: dir, Summary: sum, Removed: removed, Err: err})
		}
	}
}

// Stop stops watching.
func (w *LibraryWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	w.running = false
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	close(w.done)
	return w.watcher.Close()
}
