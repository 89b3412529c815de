// Package control implements the daemon's request/response surface,
// independent of the transport that carries it. Every mutation of the
// monitor registry goes through a Service.
package control

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/wlrs/internal/library"
	"github.com/jmylchreest/wlrs/internal/model"
	"github.com/jmylchreest/wlrs/internal/monitor"
	"github.com/jmylchreest/wlrs/internal/scheduler"
)

// MonitorNotFoundError is returned for a request naming an unknown output.
type MonitorNotFoundError = monitor.NotFoundError

// WallpaperNotFoundError is returned when a name or ID matches nothing.
type WallpaperNotFoundError = library.NotFoundError

// ErrNoMonitors is returned when a request targets all monitors and none
// are connected.
var ErrNoMonitors = errors.New("no monitors connected")

// Health is the reply to Ping.
type Health struct {
	Version    string        `json:"version" yaml:"version"`
	Uptime     time.Duration `json:"uptime" yaml:"uptime"`
	Monitors   int           `json:"monitors" yaml:"monitors"`
	Wallpapers int           `json:"wallpapers" yaml:"wallpapers"`
}

// Active is one row of Query.
type Active struct {
	Monitor     string    `json:"monitor" yaml:"monitor"`
	OutputName  string    `json:"output_name" yaml:"output_name"`
	Width       int       `json:"width" yaml:"width"`
	Height      int       `json:"height" yaml:"height"`
	Wallpaper   string    `json:"wallpaper" yaml:"wallpaper"`
	WallpaperID string    `json:"wallpaper_id,omitempty" yaml:"wallpaper_id,omitempty"`
	State       string    `json:"state" yaml:"state"`
	Ticks       uint64    `json:"ticks" yaml:"ticks"`
	Frames      uint64    `json:"frames" yaml:"frames"`
	Errors      uint64    `json:"errors" yaml:"errors"`
	BoundAt     time.Time `json:"bound_at,omitzero" yaml:"bound_at,omitempty"`
}

// Change is published after a wallpaper is bound to a monitor.
type Change struct {
	Monitor     string
	Wallpaper   string
	WallpaperID string
}

// StateStore remembers the last wallpaper per monitor across restarts.
type StateStore interface {
	Wallpaper(monitor string) (path string, ok bool)
	SetWallpaper(monitor, path string) error
}

// Defaults choose a wallpaper for a monitor that has no remembered one.
type Defaults struct {
	Wallpaper  string
	PerMonitor map[string]string
}

func (d Defaults) forMonitor(id, name string) string {
	if w, ok := d.PerMonitor[id]; ok {
		return w
	}
	if w, ok := d.PerMonitor[name]; ok {
		return w
	}
	return d.Wallpaper
}

// Options configure a Service.
type Options struct {
	Library  *library.Library
	Monitors *monitor.Registry
	Store    StateStore // optional
	Defaults Defaults
	Version  string
	// Stop is called once by StopServer.
	Stop   func()
	Logger *slog.Logger
}

// Service is safe for concurrent use.
type Service struct {
	lib      *library.Library
	monitors *monitor.Registry
	store    StateStore
	defaults Defaults
	version  string
	started  time.Time
	logger   *slog.Logger

	stopOnce sync.Once
	stop     func()

	mu        sync.Mutex
	active    map[string]string // monitor -> wallpaper ID
	listeners []func(Change)

	// bindMu serializes bind on one monitor: the registry swap, the active
	// entry, the stored choice and the change signal happen as one step.
	bindMu sync.Map // monitor ID -> *sync.Mutex
}

// NewService wires a service over a library and monitor registry.
func NewService(opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Stop == nil {
		opts.Stop = func() {}
	}
	return &Service{
		lib:      opts.Library,
		monitors: opts.Monitors,
		store:    opts.Store,
		defaults: opts.Defaults,
		version:  opts.Version,
		started:  time.Now(),
		logger:   opts.Logger,
		stop:     opts.Stop,
		active:   make(map[string]string),
	}
}

// OnChange registers fn to run after every successful bind.
func (s *Service) OnChange(fn func(Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// SetDefaults replaces the startup defaults, e.g. after a config reload.
func (s *Service) SetDefaults(d Defaults) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaults = d
}

// Ping reports that the daemon is alive.
func (s *Service) Ping() Health {
	return Health{
		Version:    s.version,
		Uptime:     time.Since(s.started).Round(time.Second),
		Monitors:   len(s.monitors.Monitors()),
		Wallpapers: len(s.lib.List()),
	}
}

// LoadWallpaper validates the wallpaper directory at path and registers it
// without displaying it.
func (s *Service) LoadWallpaper(path string) (string, error) {
	sum, err := s.lib.LoadPath(path)
	if err != nil {
		return "", err
	}
	s.logger.Info("wallpaper loaded", "id", sum.ID, "name", sum.Name, "path", sum.Path)
	return sum.ID, nil
}

// SetWallpaper binds the named wallpaper to monitorID. An empty monitorID
// targets every bound monitor, or every connected one when none is bound.
// Monitors are rebound independently; the first failure is returned after
// all have been attempted.
func (s *Service) SetWallpaper(nameOrID, monitorID string) error {
	w, sum, err := s.lib.Resolve(nameOrID)
	if err != nil {
		return err
	}
	targets, err := s.targets(monitorID, true)
	if err != nil {
		return err
	}

	var errs []error
	for _, id := range targets {
		if err := s.bind(id, w, sum); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) monitorLock(id string) *sync.Mutex {
	mu, _ := s.bindMu.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// bind shows w on monitor id. Listeners run under the monitor's bind lock
// and must not call back into SetWallpaper for the same monitor.
func (s *Service) bind(id string, w *model.Wallpaper, sum library.Summary) error {
	lock := s.monitorLock(id)
	lock.Lock()
	defer lock.Unlock()

	if err := s.monitors.Bind(id, w); err != nil {
		return err
	}

	s.mu.Lock()
	s.active[id] = sum.ID
	listeners := append([]func(Change){}, s.listeners...)
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.SetWallpaper(id, sum.Path); err != nil {
			s.logger.Warn("failed to persist wallpaper", "monitor", id, "error", err)
		}
	}
	ch := Change{Monitor: id, Wallpaper: sum.Name, WallpaperID: sum.ID}
	for _, fn := range listeners {
		fn(ch)
	}
	return nil
}

// Rebind re-binds every monitor showing wallpaperID so a reloaded
// definition takes effect. It returns how many monitors were rebound.
func (s *Service) Rebind(wallpaperID string) (int, error) {
	s.mu.Lock()
	var ids []string
	for mon, wid := range s.active {
		if wid == wallpaperID {
			ids = append(ids, mon)
		}
	}
	s.mu.Unlock()
	if len(ids) == 0 {
		return 0, nil
	}

	w, sum, err := s.lib.Resolve(wallpaperID)
	if err != nil {
		return 0, err
	}
	var errs []error
	n := 0
	for _, id := range ids {
		if err := s.bind(id, w, sum); err != nil {
			errs = append(errs, err)
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

// ListWallpapers returns every known wallpaper.
func (s *Service) ListWallpapers() []library.Summary {
	return s.lib.List()
}

// Query lists every monitor and what it shows.
func (s *Service) Query() []Active {
	entries := s.monitors.Query()

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Active, 0, len(entries))
	for _, e := range entries {
		a := Active{
			Monitor:    e.Output.ID,
			OutputName: e.Output.Name,
			Width:      e.Output.Width,
			Height:     e.Output.Height,
			Wallpaper:  e.Wallpaper,
			State:      e.State.String(),
			Ticks:      e.Stats.Ticks,
			Frames:     e.Stats.Frames,
			Errors:     e.Stats.Errors,
		}
		if e.State != scheduler.Idle {
			a.WallpaperID = s.active[e.Output.ID]
			a.BoundAt = e.Stats.BoundAt
		}
		out = append(out, a)
	}
	return out
}

// StopServer asks the daemon to shut down. Only the first call has effect.
func (s *Service) StopServer() error {
	s.stopOnce.Do(func() {
		s.logger.Info("stop requested")
		go s.stop()
	})
	return nil
}

// GetInstallDirectory returns where InstallWallpaper copies wallpapers.
func (s *Service) GetInstallDirectory() string {
	return s.lib.InstallDir()
}

// InstallWallpaper copies the wallpaper directory at path into the install
// directory under name (default: the directory name).
func (s *Service) InstallWallpaper(path, name string) (library.Summary, error) {
	return s.lib.Install(path, name)
}

// Pause suspends monitorID, or every bound monitor when empty.
func (s *Service) Pause(monitorID string) error {
	return s.each(monitorID, s.monitors.Pause)
}

// Resume restarts monitorID, or every paused monitor when empty.
func (s *Service) Resume(monitorID string) error {
	return s.each(monitorID, s.monitors.Resume)
}

// ForceTick advances animation once on monitorID, or on every bound monitor
// when empty. dt <= 0 uses the wallpaper's natural tick.
func (s *Service) ForceTick(monitorID string, dt time.Duration) error {
	return s.each(monitorID, func(id string) error { return s.monitors.ForceTick(id, dt) })
}

func (s *Service) each(monitorID string, fn func(string) error) error {
	targets, err := s.targets(monitorID, false)
	if err != nil {
		return err
	}
	var errs []error
	for _, id := range targets {
		if err := fn(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// targets resolves a monitor argument. With fallback, an empty argument
// falls back to every connected monitor when none is bound.
func (s *Service) targets(monitorID string, fallback bool) ([]string, error) {
	entries := s.monitors.Query()
	if monitorID != "" {
		for _, e := range entries {
			if e.Output.ID == monitorID || e.Output.Name == monitorID {
				return []string{e.Output.ID}, nil
			}
		}
		return nil, &MonitorNotFoundError{ID: monitorID}
	}
	if len(entries) == 0 {
		return nil, ErrNoMonitors
	}

	var bound, all []string
	for _, e := range entries {
		all = append(all, e.Output.ID)
		if e.State != scheduler.Idle {
			bound = append(bound, e.Output.ID)
		}
	}
	if len(bound) == 0 && fallback {
		return all, nil
	}
	return bound, nil
}

// MonitorAdded registers a connected output and, if it is new, binds the
// wallpaper it last showed, or the configured default.
func (s *Service) MonitorAdded(out monitor.Output) {
	if !s.monitors.OnMonitorAdded(out) {
		return
	}
	if err := s.restore(out); err != nil {
		s.logger.Warn("could not restore wallpaper", "monitor", out.ID, "error", err)
	}
}

// MonitorRemoved destroys the output's binding.
func (s *Service) MonitorRemoved(id string) {
	lock := s.monitorLock(id)
	lock.Lock()
	defer lock.Unlock()

	s.monitors.OnMonitorRemoved(id)
	s.mu.Lock()
	delete(s.active, id)
	s.mu.Unlock()
}

func (s *Service) restore(out monitor.Output) error {
	ref := ""
	if s.store != nil {
		if p, ok := s.store.Wallpaper(out.ID); ok {
			ref = p
		}
	}
	if ref == "" {
		s.mu.Lock()
		ref = s.defaults.forMonitor(out.ID, out.Name)
		s.mu.Unlock()
	}
	if ref == "" {
		return nil
	}

	w, sum, err := s.lib.Resolve(ref)
	var nf *WallpaperNotFoundError
	if errors.As(err, &nf) {
		// A remembered directory that has not been scanned yet.
		if _, lerr := s.lib.LoadPath(ref); lerr != nil {
			return fmt.Errorf("%w (load: %v)", err, lerr)
		}
		w, sum, err = s.lib.Resolve(ref)
	}
	if err != nil {
		return err
	}
	return s.bind(out.ID, w, sum)
}
