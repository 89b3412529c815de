package dbus

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/jmylchreest/wlrs/internal/control"
)

// Server exports a control.Service on the session bus.
type Server struct {
	conn   *dbus.Conn
	svc    *control.Service
	logger *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewServer creates a Server for svc.
func NewServer(svc *control.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{svc: svc, logger: logger}
}

// Start connects to the session bus, exports the control object and claims
// BusName. It fails if another daemon already owns the name.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.mu.Unlock()

	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	s.conn = conn

	if err := conn.Export(s, Path, Interface); err != nil {
		return fmt.Errorf("failed to export object: %w", err)
	}

	node := &introspect.Node{
		Name: string(Path),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    Interface,
				Methods: controlMethods(),
				Signals: controlSignals(),
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), Path,
		"org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	reply, err := conn.RequestName(BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already taken: is wlrsd already running?", BusName)
	}

	s.svc.OnChange(func(ch control.Change) {
		if err := s.EmitWallpaperChanged(ch); err != nil {
			s.logger.Warn("failed to emit WallpaperChanged", "monitor", ch.Monitor, "error", err)
		}
	})

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	s.logger.Info("D-Bus control server started", "name", BusName, "path", Path)
	return nil
}

// Stop releases the bus name.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if s.conn != nil {
		if _, err := s.conn.ReleaseName(BusName); err != nil {
			s.logger.Warn("failed to release bus name", "error", err)
		}
		// The session bus connection is shared; leave it open.
	}

	s.logger.Info("D-Bus control server stopped")
	return nil
}

// Ping reports daemon health.
// D-Bus method: Ping() -> (sxii)
func (s *Server) Ping() (HealthInfo, *dbus.Error) {
	return healthToWire(s.svc.Ping()), nil
}

// LoadWallpaper validates and registers the wallpaper directory at path.
// D-Bus method: LoadWallpaper(s) -> s
func (s *Server) LoadWallpaper(path string) (string, *dbus.Error) {
	s.logger.Debug("LoadWallpaper called", "path", path)
	id, err := s.svc.LoadWallpaper(path)
	if err != nil {
		return "", toDBusError(err)
	}
	return id, nil
}

// SetWallpaper binds a wallpaper to a monitor, or to all when monitor is empty.
// D-Bus method: SetWallpaper(ss) -> nothing
func (s *Server) SetWallpaper(wallpaper, monitor string) *dbus.Error {
	s.logger.Debug("SetWallpaper called", "wallpaper", wallpaper, "monitor", monitor)
	return toDBusError(s.svc.SetWallpaper(wallpaper, monitor))
}

// ListWallpapers returns every known wallpaper.
// D-Bus method: ListWallpapers() -> a(ssssssssisx)
func (s *Server) ListWallpapers() ([]WallpaperInfo, *dbus.Error) {
	list := s.svc.ListWallpapers()
	out := make([]WallpaperInfo, 0, len(list))
	for _, w := range list {
		out = append(out, summaryToWire(w))
	}
	return out, nil
}

// Query returns what every monitor shows.
// D-Bus method: Query() -> a(ssiissstttx)
func (s *Server) Query() ([]ActiveInfo, *dbus.Error) {
	rows := s.svc.Query()
	out := make([]ActiveInfo, 0, len(rows))
	for _, a := range rows {
		out = append(out, activeToWire(a))
	}
	return out, nil
}

// StopServer asks the daemon to exit.
// D-Bus method: StopServer() -> nothing
func (s *Server) StopServer() *dbus.Error {
	return toDBusError(s.svc.StopServer())
}

// GetInstallDirectory returns where InstallWallpaper copies to.
// D-Bus method: GetInstallDirectory() -> s
func (s *Server) GetInstallDirectory() (string, *dbus.Error) {
	return s.svc.GetInstallDirectory(), nil
}

// InstallWallpaper copies a wallpaper directory into the install directory.
// D-Bus method: InstallWallpaper(ss) -> (ssssssssisx)
func (s *Server) InstallWallpaper(path, name string) (WallpaperInfo, *dbus.Error) {
	s.logger.Debug("InstallWallpaper called", "path", path, "name", name)
	sum, err := s.svc.InstallWallpaper(path, name)
	if err != nil {
		return WallpaperInfo{}, toDBusError(err)
	}
	return summaryToWire(sum), nil
}

// Pause suspends animation on a monitor, or all when empty.
// D-Bus method: Pause(s) -> nothing
func (s *Server) Pause(monitor string) *dbus.Error {
	return toDBusError(s.svc.Pause(monitor))
}

// Resume restarts animation on a monitor, or all when empty.
// D-Bus method: Resume(s) -> nothing
func (s *Server) Resume(monitor string) *dbus.Error {
	return toDBusError(s.svc.Resume(monitor))
}

// ForceTick advances animation once. dtMillis <= 0 uses the natural tick.
// D-Bus method: ForceTick(sx) -> nothing
func (s *Server) ForceTick(monitor string, dtMillis int64) *dbus.Error {
	return toDBusError(s.svc.ForceTick(monitor, time.Duration(dtMillis)*time.Millisecond))
}

func controlMethods() []introspect.Method {
	wallpaperT := "(ssssssssisx)"
	activeT := "(ssiissstttx)"
	return []introspect.Method{
		{
			Name: "Ping",
			Args: []introspect.Arg{
				{Name: "health", Type: "(sxii)", Direction: "out"},
			},
		},
		{
			Name: "LoadWallpaper",
			Args: []introspect.Arg{
				{Name: "path", Type: "s", Direction: "in"},
				{Name: "id", Type: "s", Direction: "out"},
			},
		},
		{
			Name: "SetWallpaper",
			Args: []introspect.Arg{
				{Name: "wallpaper", Type: "s", Direction: "in"},
				{Name: "monitor", Type: "s", Direction: "in"},
			},
		},
		{
			Name: "ListWallpapers",
			Args: []introspect.Arg{
				{Name: "wallpapers", Type: "a" + wallpaperT, Direction: "out"},
			},
		},
		{
			Name: "Query",
			Args: []introspect.Arg{
				{Name: "monitors", Type: "a" + activeT, Direction: "out"},
			},
		},
		{Name: "StopServer"},
		{
			Name: "GetInstallDirectory",
			Args: []introspect.Arg{
				{Name: "path", Type: "s", Direction: "out"},
			},
		},
		{
			Name: "InstallWallpaper",
			Args: []introspect.Arg{
				{Name: "path", Type: "s", Direction: "in"},
				{Name: "name", Type: "s", Direction: "in"},
				{Name: "wallpaper", Type: wallpaperT, Direction: "out"},
			},
		},
		{
			Name: "Pause",
			Args: []introspect.Arg{
				{Name: "monitor", Type: "s", Direction: "in"},
			},
		},
		{
			Name: "Resume",
			Args: []introspect.Arg{
				{Name: "monitor", Type: "s", Direction: "in"},
			},
		},
		{
			Name: "ForceTick",
			Args: []introspect.Arg{
				{Name: "monitor", Type: "s", Direction: "in"},
				{Name: "dt_ms", Type: "x", Direction: "in"},
			},
		},
	}
}

func controlSignals() []introspect.Signal {
	return []introspect.Signal{
		{
			Name: "WallpaperChanged",
			Args: []introspect.Arg{
				{Name: "monitor", Type: "s"},
				{Name: "wallpaper", Type: "s"},
				{Name: "id", Type: "s"},
			},
		},
	}
}
