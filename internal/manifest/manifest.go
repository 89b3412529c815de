// Package manifest reads a wallpaper directory's manifest file and turns it
// into a validated model.Wallpaper.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/wlrs/internal/model"
)

// File names searched in a wallpaper directory, in order.
var FileNames = []string{"manifest.toml", "manifest.yaml", "manifest.yml"}

// ErrNoManifest is returned when a directory contains no manifest file.
var ErrNoManifest = errors.New("no manifest found")

// Find returns the manifest path inside dir.
func Find(dir string) (string, error) {
	for _, name := range FileNames {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%s: %w", dir, ErrNoManifest)
}

// Decode parses manifest bytes. The format follows the file extension.
func Decode(path string, data []byte) (model.RawWallpaper, error) {
	var raw model.RawWallpaper
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&raw); err != nil {
			return raw, &model.ValidationError{Field: "manifest", Reason: filepath.Base(path), Err: err}
		}
	default:
		if err := toml.Unmarshal(data, &raw); err != nil {
			return raw, &model.ValidationError{Field: "manifest", Reason: filepath.Base(path), Err: err}
		}
	}
	return raw, nil
}

// Loader reads and validates wallpaper directories.
type Loader struct {
	checker model.ParamChecker
	logger  *slog.Logger
}

// NewLoader creates a loader that checks effect parameters with checker.
func NewLoader(checker model.ParamChecker, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{checker: checker, logger: logger}
}

// Load reads the manifest in dir. Non-fatal problems are logged and
// returned as warnings.
func (l *Loader) Load(dir string) (*model.Wallpaper, []model.Warning, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, nil, err
	}
	if !info.IsDir() {
		return nil, nil, &model.ValidationError{Field: "path", Reason: fmt.Sprintf("%s is not a directory", abs)}
	}

	path, err := Find(abs)
	if err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read manifest: %w", err)
	}
	raw, err := Decode(path, data)
	if err != nil {
		return nil, nil, err
	}

	w, warnings, err := model.Validate(raw, abs, l.checker)
	if err != nil {
		return nil, nil, err
	}
	for _, warn := range warnings {
		l.logger.Warn("manifest warning", "wallpaper", w.Name(), "warning", warn.String())
	}
	l.logger.Debug("manifest loaded", "wallpaper", w.Name(), "path", path, "layers", w.LayerCount())
	return w, warnings, nil
}
