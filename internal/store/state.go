// Package store persists daemon state that must survive a restart: the
// wallpaper last shown on each monitor.
package store

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CurrentSchemaVersion is the current version of the state schema.
const CurrentSchemaVersion = 1

// MonitorRecord is the remembered choice for one monitor.
type MonitorRecord struct {
	Wallpaper string `json:"wallpaper"` // wallpaper directory
	SetAt     int64  `json:"set_at"`    // Unix timestamp
}

// State is the on-disk document.
type State struct {
	Monitors      map[string]MonitorRecord `json:"monitors"`
	SchemaVersion int                      `json:"schema_version"`
}

// DefaultState returns an empty state.
func DefaultState() *State {
	return &State{
		Monitors:      make(map[string]MonitorRecord),
		SchemaVersion: CurrentSchemaVersion,
	}
}

// Store keeps State in memory and writes it through to a JSON file.
type Store struct {
	mu     sync.RWMutex
	path   string
	state  *State
	logger *slog.Logger

	// disk is the file content last read or written by this Store.
	disk []byte
}

// Open loads the state file at path. A missing or corrupted file yields an
// empty state.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{path: path, state: DefaultState(), logger: logger}
	if err := s.Hydrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Hydrate re-reads the backing file, e.g. after it was edited externally.
func (s *Store) Hydrate() error {
	_, err := s.reload(true)
	return err
}

// Reload re-reads the backing file if its content differs from what this
// Store last read or wrote. It reports whether the state was replaced.
func (s *Store) Reload() (bool, error) {
	return s.reload(false)
}

func (s *Store) reload(force bool) (bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	s.mu.RLock()
	same := bytes.Equal(data, s.disk)
	s.mu.RUnlock()
	if same && !force {
		return false, nil
	}

	state := DefaultState()
	if err := json.Unmarshal(data, state); err != nil {
		s.logger.Warn("state file corrupted, starting empty", "path", s.path, "error", err)
		state = DefaultState()
	}
	if state.Monitors == nil {
		state.Monitors = make(map[string]MonitorRecord)
	}
	if state.SchemaVersion == 0 {
		state.SchemaVersion = CurrentSchemaVersion
	}

	s.mu.Lock()
	s.state = state
	s.disk = data
	s.mu.Unlock()
	return true, nil
}

// Wallpaper returns the remembered wallpaper directory for monitor.
func (s *Store) Wallpaper(monitor string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.state.Monitors[monitor]
	if !ok || rec.Wallpaper == "" {
		return "", false
	}
	return rec.Wallpaper, true
}

// SetWallpaper remembers path for monitor and saves.
func (s *Store) SetWallpaper(monitor, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Monitors[monitor] = MonitorRecord{Wallpaper: path, SetAt: time.Now().Unix()}
	return s.save()
}

// Forget drops the record for monitor and saves.
func (s *Store) Forget(monitor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.Monitors[monitor]; !ok {
		return nil
	}
	delete(s.state.Monitors, monitor)
	return s.save()
}

// Monitors returns a copy of every record.
func (s *Store) Monitors() map[string]MonitorRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.state.Monitors)
}

// save writes the state atomically. Caller holds s.mu.
func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return err
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return err
	}
	s.disk = data
	return nil
}
