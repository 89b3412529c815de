package dbus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/wlrs/internal/control"
	"github.com/jmylchreest/wlrs/internal/library"
)

// ErrDaemonNotRunning is returned when nothing owns BusName.
var ErrDaemonNotRunning = errors.New("wlrsd is not running")

const serviceUnknown = "org.freedesktop.DBus.Error.ServiceUnknown"

// Client calls a running wlrsd. Errors returned by its methods are the same
// types the daemon produced where one exists (control.MonitorNotFoundError,
// control.WallpaperNotFoundError, control.ErrNoMonitors,
// library.ErrAlreadyInstalled); anything else is a *RemoteError.
type Client struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

// Connect opens a private session bus connection.
func Connect() (*Client, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &Client{conn: conn, obj: conn.Object(BusName, Path)}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) call(ctx context.Context, method string, args ...any) *dbus.Call {
	return c.obj.CallWithContext(ctx, Interface+"."+method, 0, args...)
}

func (c *Client) mapErr(err error) error {
	var (
		de  dbus.Error
		dep *dbus.Error
	)
	if (errors.As(err, &dep) && dep.Name == serviceUnknown) || (errors.As(err, &de) && de.Name == serviceUnknown) {
		return ErrDaemonNotRunning
	}
	return fromDBusError(err)
}

// Ping checks that the daemon is alive.
func (c *Client) Ping(ctx context.Context) (control.Health, error) {
	var h HealthInfo
	if err := c.call(ctx, "Ping").Store(&h); err != nil {
		return control.Health{}, c.mapErr(err)
	}
	return healthFromWire(h), nil
}

// LoadWallpaper registers a wallpaper directory and returns its ID.
func (c *Client) LoadWallpaper(ctx context.Context, path string) (string, error) {
	var id string
	if err := c.call(ctx, "LoadWallpaper", path).Store(&id); err != nil {
		return "", c.mapErr(err)
	}
	return id, nil
}

// SetWallpaper binds a wallpaper by name or ID. An empty monitor targets
// every bound monitor.
func (c *Client) SetWallpaper(ctx context.Context, wallpaper, monitor string) error {
	return c.mapErr(c.call(ctx, "SetWallpaper", wallpaper, monitor).Err)
}

// ListWallpapers returns every wallpaper the daemon knows.
func (c *Client) ListWallpapers(ctx context.Context) ([]library.Summary, error) {
	var wire []WallpaperInfo
	if err := c.call(ctx, "ListWallpapers").Store(&wire); err != nil {
		return nil, c.mapErr(err)
	}
	out := make([]library.Summary, 0, len(wire))
	for _, w := range wire {
		out = append(out, summaryFromWire(w))
	}
	return out, nil
}

// Query returns what every monitor shows.
func (c *Client) Query(ctx context.Context) ([]control.Active, error) {
	var wire []ActiveInfo
	if err := c.call(ctx, "Query").Store(&wire); err != nil {
		return nil, c.mapErr(err)
	}
	out := make([]control.Active, 0, len(wire))
	for _, a := range wire {
		out = append(out, activeFromWire(a))
	}
	return out, nil
}

// StopServer asks the daemon to exit.
func (c *Client) StopServer(ctx context.Context) error {
	return c.mapErr(c.call(ctx, "StopServer").Err)
}

// GetInstallDirectory returns the daemon's install directory.
func (c *Client) GetInstallDirectory(ctx context.Context) (string, error) {
	var dir string
	if err := c.call(ctx, "GetInstallDirectory").Store(&dir); err != nil {
		return "", c.mapErr(err)
	}
	return dir, nil
}

// InstallWallpaper copies a wallpaper directory into the install directory.
func (c *Client) InstallWallpaper(ctx context.Context, path, name string) (library.Summary, error) {
	var w WallpaperInfo
	if err := c.call(ctx, "InstallWallpaper", path, name).Store(&w); err != nil {
		return library.Summary{}, c.mapErr(err)
	}
	return summaryFromWire(w), nil
}

// Pause suspends a monitor, or all when monitor is empty.
func (c *Client) Pause(ctx context.Context, monitor string) error {
	return c.mapErr(c.call(ctx, "Pause", monitor).Err)
}

// Resume restarts a monitor, or all when monitor is empty.
func (c *Client) Resume(ctx context.Context, monitor string) error {
	return c.mapErr(c.call(ctx, "Resume", monitor).Err)
}

// ForceTick advances animation once. dt <= 0 uses the natural tick.
func (c *Client) ForceTick(ctx context.Context, monitor string, dt time.Duration) error {
	return c.mapErr(c.call(ctx, "ForceTick", monitor, dt.Milliseconds()).Err)
}

// WatchChanges calls fn for every WallpaperChanged signal until ctx is done.
func (c *Client) WatchChanges(ctx context.Context, fn func(control.Change)) error {
	opts := []dbus.MatchOption{
		dbus.WithMatchObjectPath(Path),
		dbus.WithMatchInterface(Interface),
		dbus.WithMatchMember("WallpaperChanged"),
	}
	if err := c.conn.AddMatchSignal(opts...); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer func() { _ = c.conn.RemoveMatchSignal(opts...) }()

	signals := make(chan *dbus.Signal, 16)
	c.conn.Signal(signals)
	defer c.conn.RemoveSignal(signals)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-signals:
			if !ok {
				return nil
			}
			if sig.Name != Interface+".WallpaperChanged" {
				continue
			}
			if ch, ok := changeFromSignal(sig.Body); ok {
				fn(ch)
			}
		}
	}
}
