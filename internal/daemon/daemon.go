package daemon

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/wlrs/internal/asset"
	"github.com/jmylchreest/wlrs/internal/config"
	"github.com/jmylchreest/wlrs/internal/control"
	"github.com/jmylchreest/wlrs/internal/dbus"
	"github.com/jmylchreest/wlrs/internal/display"
	"github.com/jmylchreest/wlrs/internal/effect"
	"github.com/jmylchreest/wlrs/internal/library"
	"github.com/jmylchreest/wlrs/internal/manifest"
	"github.com/jmylchreest/wlrs/internal/monitor"
	"github.com/jmylchreest/wlrs/internal/store"
)

// startupNotifyDelay gives the host time to report outputs before the
// startup notification counts them.
const startupNotifyDelay = 2 * time.Second

// Options configure a Daemon.
type Options struct {
	Config     *config.DaemonConfig
	ConfigPath string // watched for changes; empty = default path
	StatePath  string // empty = default path
	Host       display.Host
	Version    string
	// DBus exports the control service on the session bus.
	DBus bool
	// Sender delivers desktop notifications; nil uses the session bus when
	// notifications are enabled.
	Sender    Sender
	TraceSize int
	Logger    *slog.Logger
}

// Daemon owns every long-lived component of wlrsd.
type Daemon struct {
	opts   Options
	cfg    *config.DaemonConfig
	logger *slog.Logger

	cache    *asset.Cache
	lib      *library.Library
	state    *store.Store
	monitors *monitor.Registry
	svc      *control.Service
	notifier *InternalNotifier

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New builds the component graph. Nothing runs until Run.
func New(opts Options) (*Daemon, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Config == nil {
		opts.Config = config.DefaultDaemonConfig()
	}
	if opts.Host == nil {
		return nil, errors.New("daemon: no display host")
	}
	if opts.StatePath == "" {
		opts.StatePath = config.StatePath()
	}
	cfg := opts.Config
	logger := opts.Logger

	d := &Daemon{opts: opts, cfg: cfg, logger: logger}

	effects := effect.NewRegistry(logger)
	d.cache = asset.NewCache(cfg.Render.CacheSize, logger)
	d.lib = library.New(cfg.WallpaperDir(), cfg.SearchDirs(), manifest.NewLoader(effects, logger), logger)

	st, err := store.Open(opts.StatePath, logger)
	if err != nil {
		return nil, err
	}
	d.state = st

	d.monitors = monitor.NewRegistry(monitor.Options{
		Effects:         effects,
		Sources:         d.cache,
		Presenter:       opts.Host,
		HostRefresh:     opts.Host.HostRefresh(),
		RefreshInterval: cfg.Render.RefreshInterval.Duration(),
		TraceSize:       opts.TraceSize,
		Logger:          logger,
	})

	var stateStore control.StateStore = st
	if !cfg.Startup.Restore {
		stateStore = writeOnlyStore{st}
	}
	d.svc = control.NewService(control.Options{
		Library:  d.lib,
		Monitors: d.monitors,
		Store:    stateStore,
		Defaults: defaultsOf(cfg),
		Version:  opts.Version,
		Stop:     d.Stop,
		Logger:   logger,
	})

	// The session bus is only dialled on the first send, so the sender
	// exists even while notifications are off and a reload can enable them.
	sender := opts.Sender
	if sender == nil {
		sender = dbus.NewDesktopNotifier()
	}
	d.notifier = NewInternalNotifier(sender, logger)
	d.applyNotify(cfg)

	return d, nil
}

// Service returns the control service.
func (d *Daemon) Service() *control.Service {
	return d.svc
}

// Monitors returns the monitor registry.
func (d *Daemon) Monitors() *monitor.Registry {
	return d.monitors
}

// Stop makes Run return. It is safe to call before Run and more than once.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
}

// Run scans the library, starts watchers and the D-Bus server, and runs the
// host until ctx is cancelled, Stop is called or the host fails.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()

	d.lib.Scan()

	if d.opts.DBus {
		server := dbus.NewServer(d.svc, d.logger)
		if err := server.Start(); err != nil {
			return err
		}
		defer func() { _ = server.Stop() }()
	}

	d.monitors.Start(ctx)
	defer d.monitors.Stop()

	if fw, err := d.watchState(); err != nil {
		d.logger.Warn("failed to watch state file", "error", err)
	} else {
		defer func() { _ = fw.Stop() }()
	}

	cw := NewConfigWatcher(d.opts.ConfigPath, d.logger)
	cw.SetReloadCallback(d.applyConfig)
	cw.SetErrorCallback(d.notifier.NotifyConfigError)
	if err := cw.Start(ctx, d.cfg); err != nil {
		d.logger.Warn("failed to start config watcher", "error", err)
	} else {
		defer cw.Stop()
	}

	if d.cfg.Library.Watch {
		lw, err := NewLibraryWatcher(d.lib, d.cache, d.logger)
		if err != nil {
			d.logger.Warn("failed to watch wallpaper directories", "error", err)
		} else {
			lw.SetChangeCallback(d.onLibraryChange)
			if err := lw.Start(); err != nil {
				d.logger.Warn("failed to watch wallpaper directories", "error", err)
			} else {
				defer func() { _ = lw.Stop() }()
			}
		}
	}

	go func() {
		select {
		case <-time.After(startupNotifyDelay):
			d.notifier.NotifyStartup(len(d.monitors.Monitors()), len(d.lib.List()))
		case <-ctx.Done():
		}
	}()

	d.logger.Info("wlrsd ready", "version", d.opts.Version, "wallpapers", len(d.lib.List()))
	err := d.opts.Host.Run(ctx, d.svc, d.monitors)
	d.logger.Info("wlrsd stopping")
	return err
}

func (d *Daemon) watchState() (*store.FileWatcher, error) {
	fw, err := store.NewFileWatcher(d.state, d.logger)
	if err != nil {
		return nil, err
	}
	fw.SetReloadCallback(func(records map[string]store.MonitorRecord) {
		d.logger.Info("remembered wallpapers changed on disk", "monitors", len(records))
	})
	if err := fw.Start(); err != nil {
		return nil, err
	}
	return fw, nil
}

func (d *Daemon) applyConfig(cfg *config.DaemonConfig) {
	d.svc.SetDefaults(defaultsOf(cfg))
	d.applyNotify(cfg)
	if cfg.Host.Backend != d.cfg.Host.Backend || cfg.Render.CacheSize != d.cfg.Render.CacheSize {
		d.logger.Warn("host and cache settings take effect after a restart")
	}
	d.notifier.NotifyConfigReloaded()
}

func (d *Daemon) applyNotify(cfg *config.DaemonConfig) {
	d.notifier.SetEnabled(cfg.Notify.Enabled)
	d.notifier.SetTimeout(cfg.Notify.Timeout.Duration())
	d.mu.Lock()
	d.cfg.Notify = cfg.Notify
	d.mu.Unlock()
}

func (d *Daemon) onLibraryChange(ch LibraryChange) {
	switch {
	case ch.Err != nil:
		d.mu.Lock()
		onError := d.cfg.Notify.OnError
		d.mu.Unlock()
		if onError {
			d.notifier.NotifyWallpaperError(ch.Dir, ch.Err)
		}
	case ch.Removed:
	default:
		n, err := d.svc.Rebind(ch.Summary.ID)
		if err != nil {
			d.logger.Warn("failed to rebind reloaded wallpaper", "name", ch.Summary.Name, "error", err)
		} else if n > 0 {
			d.logger.Info("reloaded wallpaper rebound", "name", ch.Summary.Name, "monitors", n)
		}
	}
}

func defaultsOf(cfg *config.DaemonConfig) control.Defaults {
	return control.Defaults{
		Wallpaper:  cfg.Startup.Wallpaper,
		PerMonitor: cfg.Startup.Monitors,
	}
}

// writeOnlyStore records choices without restoring them.
type writeOnlyStore struct {
	*store.Store
}

func (writeOnlyStore) Wallpaper(string) (string, bool) {
	return "", false
}
