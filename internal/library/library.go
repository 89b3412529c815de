// Package library tracks the wallpapers the daemon knows about: those found
// in the install directory and extra search directories, and those loaded
// explicitly by path. Every loaded wallpaper gets a ULID.
package library

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/wlrs/internal/manifest"
	"github.com/jmylchreest/wlrs/internal/model"
)

// ErrAlreadyInstalled is returned when the install target exists.
var ErrAlreadyInstalled = errors.New("wallpaper already installed")

// NotFoundError is returned when a name or ID matches no wallpaper.
type NotFoundError struct {
	Query string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("wallpaper not found: %s", e.Query)
}

// Source tells where a wallpaper came from.
type Source string

const (
	SourceInstalled Source = "installed"
	SourceSearch    Source = "search"
	SourceLoaded    Source = "loaded"
)

// Summary describes one known wallpaper.
type Summary struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Author      string    `json:"author,omitempty" yaml:"author,omitempty"`
	Version     string    `json:"version" yaml:"version"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Path        string    `json:"path" yaml:"path"`
	Source      Source    `json:"source" yaml:"source"`
	Layers      int       `json:"layers" yaml:"layers"`
	Framerate   string    `json:"framerate" yaml:"framerate"`
	Tickrate    string    `json:"tickrate" yaml:"tickrate"`
	LoadedAt    time.Time `json:"loaded_at" yaml:"loaded_at"`
}

type entry struct {
	summary   Summary
	wallpaper *model.Wallpaper
}

// Loader reads a wallpaper directory.
type Loader interface {
	Load(dir string) (*model.Wallpaper, []model.Warning, error)
}

// Library is safe for concurrent use.
type Library struct {
	mu     sync.RWMutex
	byID   map[string]*entry
	byPath map[string]string // dir -> id

	installDir string
	searchDirs []string
	loader     Loader
	logger     *slog.Logger
}

// New creates a library rooted at installDir.
func New(installDir string, searchDirs []string, loader Loader, logger *slog.Logger) *Library {
	if logger == nil {
		logger = slog.Default()
	}
	return &Library{
		byID:       make(map[string]*entry),
		byPath:     make(map[string]string),
		installDir: installDir,
		searchDirs: slices.Clone(searchDirs),
		loader:     loader,
		logger:     logger,
	}
}

// InstallDir returns the directory Install copies into.
func (l *Library) InstallDir() string {
	return l.installDir
}

// Roots returns the install directory followed by the search directories.
func (l *Library) Roots() []string {
	return append([]string{l.installDir}, l.searchDirs...)
}

// Scan loads every wallpaper directory under the roots. Directories that
// fail to load are logged and skipped; the count of loaded wallpapers is
// returned.
func (l *Library) Scan() int {
	loaded := 0
	for i, root := range l.Roots() {
		source := SourceSearch
		if i == 0 {
			source = SourceInstalled
		}
		dirs, err := os.ReadDir(root)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				l.logger.Warn("cannot read wallpaper directory", "path", root, "error", err)
			}
			continue
		}
		for _, d := range dirs {
			if !d.IsDir() || strings.HasPrefix(d.Name(), ".") {
				continue
			}
			dir := filepath.Join(root, d.Name())
			if _, err := manifest.Find(dir); err != nil {
				continue
			}
			if _, err := l.load(dir, source); err != nil {
				l.logger.Warn("skipping wallpaper", "path", dir, "error", err)
				continue
			}
			loaded++
		}
	}
	l.logger.Info("wallpaper library scanned", "wallpapers", loaded)
	return loaded
}

// LoadPath validates and registers the wallpaper in dir. Reloading a known
// directory keeps its ID.
func (l *Library) LoadPath(dir string) (Summary, error) {
	return l.load(dir, SourceLoaded)
}

func (l *Library) load(dir string, source Source) (Summary, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Summary{}, err
	}
	w, _, err := l.loader.Load(abs)
	if err != nil {
		return Summary{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	id, known := l.byPath[abs]
	if known {
		source = l.byID[id].summary.Source
	} else {
		uid, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
		if err != nil {
			return Summary{}, fmt.Errorf("generate id: %w", err)
		}
		id = uid.String()
	}

	e := &entry{
		summary: Summary{
			ID:          id,
			Name:        w.Name(),
			Author:      w.Author(),
			Version:     w.Version(),
			Description: w.Description(),
			Path:        abs,
			Source:      source,
			Layers:      w.LayerCount(),
			Framerate:   w.Framerate().String(),
			Tickrate:    w.Tickrate().String(),
			LoadedAt:    time.Now(),
		},
		wallpaper: w,
	}
	l.byID[id] = e
	l.byPath[abs] = id
	l.logger.Debug("wallpaper registered", "id", id, "name", w.Name(), "path", abs, "reload", known)
	return e.summary, nil
}

// Forget drops the wallpaper loaded from dir, e.g. after it was deleted.
func (l *Library) Forget(dir string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.byPath[dir]
	if !ok {
		return false
	}
	delete(l.byPath, dir)
	delete(l.byID, id)
	return true
}

// Refresh re-reads dir after it changed on disk. A directory whose manifest
// is gone is forgotten and Refresh reports removed. New directories under a
// root get that root's source.
func (l *Library) Refresh(dir string) (sum Summary, removed bool, err error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Summary{}, false, err
	}
	if _, err := manifest.Find(abs); err != nil {
		return Summary{}, l.Forget(abs), nil
	}
	sum, err = l.load(abs, l.sourceFor(abs))
	return sum, false, err
}

// Owner returns the top-level wallpaper directory under one of the roots
// that contains path.
func (l *Library) Owner(path string) (string, bool) {
	for _, root := range l.Roots() {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		first, _, _ := strings.Cut(rel, string(filepath.Separator))
		if strings.HasPrefix(first, ".") {
			return "", false
		}
		return filepath.Join(root, first), true
	}
	return "", false
}

func (l *Library) sourceFor(dir string) Source {
	parent := filepath.Dir(dir)
	if parent == filepath.Clean(l.installDir) {
		return SourceInstalled
	}
	for _, d := range l.searchDirs {
		if parent == filepath.Clean(d) {
			return SourceSearch
		}
	}
	return SourceLoaded
}

// Resolve finds a wallpaper by ID, then by name (case-insensitive), then by
// directory path. When several share a name, the most recently loaded wins.
func (l *Library) Resolve(nameOrID string) (*model.Wallpaper, Summary, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if e, ok := l.byID[strings.ToUpper(nameOrID)]; ok {
		return e.wallpaper, e.summary, nil
	}

	var best *entry
	for _, e := range l.byID {
		if !strings.EqualFold(e.summary.Name, nameOrID) {
			continue
		}
		if best == nil || e.summary.LoadedAt.After(best.summary.LoadedAt) {
			best = e
		}
	}
	if best == nil {
		if abs, err := filepath.Abs(nameOrID); err == nil {
			if id, ok := l.byPath[abs]; ok {
				best = l.byID[id]
			}
		}
	}
	if best == nil {
		return nil, Summary{}, &NotFoundError{Query: nameOrID}
	}
	return best.wallpaper, best.summary, nil
}

// List returns every known wallpaper ordered by name, then ID.
func (l *Library) List() []Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Summary, 0, len(l.byID))
	for _, e := range l.byID {
		out = append(out, e.summary)
	}
	slices.SortFunc(out, func(a, b Summary) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Install validates the wallpaper in src, copies the directory into the
// install directory as name (default: the source directory name) and
// registers the copy. It fails with ErrAlreadyInstalled if the target
// exists.
func (l *Library) Install(src, name string) (Summary, error) {
	src, err := filepath.Abs(src)
	if err != nil {
		return Summary{}, err
	}
	if _, _, err := l.loader.Load(src); err != nil {
		return Summary{}, err
	}

	if name == "" {
		name = filepath.Base(src)
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return Summary{}, fmt.Errorf("invalid install name %q", name)
	}
	target := filepath.Join(l.installDir, name)
	if _, err := os.Stat(target); err == nil {
		return Summary{}, fmt.Errorf("%s: %w", target, ErrAlreadyInstalled)
	}

	if err := os.MkdirAll(l.installDir, 0755); err != nil {
		return Summary{}, fmt.Errorf("create install directory: %w", err)
	}
	if err := os.CopyFS(target, os.DirFS(src)); err != nil {
		_ = os.RemoveAll(target)
		return Summary{}, fmt.Errorf("copy wallpaper: %w", err)
	}

	s, err := l.load(target, SourceInstalled)
	if err != nil {
		_ = os.RemoveAll(target)
		return Summary{}, err
	}
	l.logger.Info("wallpaper installed", "name", s.Name, "path", target)
	return s, nil
}
