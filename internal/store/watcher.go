package store

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long FileWatcher waits after the last event before
// reloading.
const DefaultSettle = 100 * time.Millisecond

// FileWatcher reloads a Store when another process rewrites its file. The
// Store's own saves are recognised and skipped.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	store   *Store
	logger  *slog.Logger
	settle  time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	onReload func(map[string]MonitorRecord)
	running  bool
	done     chan struct{}
}

// NewFileWatcher creates a watcher for the store's backing file.
func NewFileWatcher(store *Store, logger *slog.Logger) (*FileWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &FileWatcher{
		watcher: watcher,
		store:   store,
		logger:  logger,
		settle:  DefaultSettle,
		done:    make(chan struct{}),
	}, nil
}

// SetReloadCallback sets a callback invoked with the new records after an
// external change was loaded.
func (fw *FileWatcher) SetReloadCallback(fn func(map[string]MonitorRecord)) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.onReload = fn
}

// Start begins watching. The state directory is created if missing so a
// first save by another process is seen.
func (fw *FileWatcher) Start() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.running {
		return nil
	}

	dir := filepath.Dir(fw.store.Path())
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	// Saves replace the file by rename, so the directory is watched.
	if err := fw.watcher.Add(dir); err != nil {
		return err
	}
	fw.running = true
	go fw.watch()
	return nil
}

func (fw *FileWatcher) watch() {
	filename := filepath.Base(fw.store.Path())

	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				fw.schedule()
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn("state watcher error", "error", err)

		case <-fw.done:
			return
		}
	}
}

func (fw *FileWatcher) schedule() {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if !fw.running {
		return
	}
	if fw.timer == nil {
		fw.timer = time.AfterFunc(fw.settle, fw.reload)
	} else {
		fw.timer.Reset(fw.settle)
	}
}

func (fw *FileWatcher) reload() {
	fw.mu.Lock()
	fw.timer = nil
	running := fw.running
	callback := fw.onReload
	fw.mu.Unlock()
	if !running {
		return
	}

	changed, err := fw.store.Reload()
	if err != nil {
		fw.logger.Warn("failed to reload state", "path", fw.store.Path(), "error", err)
		return
	}
	if !changed {
		return
	}
	fw.logger.Debug("state file changed externally, reloaded", "path", fw.store.Path())
	if callback != nil {
		callback(fw.store.Monitors())
	}
}

// Stop stops the watcher.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if !fw.running {
		return nil
	}
	fw.running = false
	if fw.timer != nil {
		fw.timer.Stop()
		fw.timer = nil
	}
	close(fw.done)
	return fw.watcher.Close()
}
