package dbus

import (
	"errors"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/wlrs/internal/control"
	"github.com/jmylchreest/wlrs/internal/library"
	"github.com/jmylchreest/wlrs/internal/manifest"
	"github.com/jmylchreest/wlrs/internal/model"
	"github.com/jmylchreest/wlrs/internal/scheduler"
)

const (
	// BusName is the well-known name claimed by wlrsd.
	BusName = "io.github.jmylchreest.wlrs"
	// Interface is the control interface name.
	Interface = "io.github.jmylchreest.wlrs"
	// Path is the control object path.
	Path = dbus.ObjectPath("/io/github/jmylchreest/wlrs")
)

// Error names carried in D-Bus error replies.
const (
	ErrorMonitorNotFound   = Interface + ".Error.MonitorNotFound"
	ErrorWallpaperNotFound = Interface + ".Error.WallpaperNotFound"
	ErrorInvalidWallpaper  = Interface + ".Error.InvalidWallpaper"
	ErrorAlreadyInstalled  = Interface + ".Error.AlreadyInstalled"
	ErrorNoMonitors        = Interface + ".Error.NoMonitors"
	ErrorInvalidState      = Interface + ".Error.InvalidState"
	ErrorFailed            = Interface + ".Error.Failed"
)

// HealthInfo is the wire form of control.Health: (sxii).
type HealthInfo struct {
	Version    string
	UptimeSec  int64
	Monitors   int32
	Wallpapers int32
}

// WallpaperInfo is the wire form of library.Summary: (ssssssssisx).
type WallpaperInfo struct {
	ID          string
	Name        string
	Author      string
	Version     string
	Description string
	Path        string
	Source      string
	Framerate   string
	Layers      int32
	Tickrate    string
	LoadedAt    int64 // Unix milliseconds
}

// ActiveInfo is the wire form of control.Active: (ssiissstttx).
type ActiveInfo struct {
	Monitor     string
	OutputName  string
	Width       int32
	Height      int32
	Wallpaper   string
	WallpaperID string
	State       string
	Ticks       uint64
	Frames      uint64
	Errors      uint64
	BoundAt     int64 // Unix milliseconds, 0 when unbound
}

func healthToWire(h control.Health) HealthInfo {
	return HealthInfo{
		Version:    h.Version,
		UptimeSec:  int64(h.Uptime / time.Second),
		Monitors:   int32(h.Monitors),
		Wallpapers: int32(h.Wallpapers),
	}
}

func healthFromWire(h HealthInfo) control.Health {
	return control.Health{
		Version:    h.Version,
		Uptime:     time.Duration(h.UptimeSec) * time.Second,
		Monitors:   int(h.Monitors),
		Wallpapers: int(h.Wallpapers),
	}
}

func summaryToWire(s library.Summary) WallpaperInfo {
	return WallpaperInfo{
		ID:          s.ID,
		Name:        s.Name,
		Author:      s.Author,
		Version:     s.Version,
		Description: s.Description,
		Path:        s.Path,
		Source:      string(s.Source),
		Framerate:   s.Framerate,
		Layers:      int32(s.Layers),
		Tickrate:    s.Tickrate,
		LoadedAt:    unixMilli(s.LoadedAt),
	}
}

func summaryFromWire(w WallpaperInfo) library.Summary {
	return library.Summary{
		ID:          w.ID,
		Name:        w.Name,
		Author:      w.Author,
		Version:     w.Version,
		Description: w.Description,
		Path:        w.Path,
		Source:      library.Source(w.Source),
		Framerate:   w.Framerate,
		Layers:      int(w.Layers),
		Tickrate:    w.Tickrate,
		LoadedAt:    fromUnixMilli(w.LoadedAt),
	}
}

func activeToWire(a control.Active) ActiveInfo {
	return ActiveInfo{
		Monitor:     a.Monitor,
		OutputName:  a.OutputName,
		Width:       int32(a.Width),
		Height:      int32(a.Height),
		Wallpaper:   a.Wallpaper,
		WallpaperID: a.WallpaperID,
		State:       a.State,
		Ticks:       a.Ticks,
		Frames:      a.Frames,
		Errors:      a.Errors,
		BoundAt:     unixMilli(a.BoundAt),
	}
}

func activeFromWire(w ActiveInfo) control.Active {
	return control.Active{
		Monitor:     w.Monitor,
		OutputName:  w.OutputName,
		Width:       int(w.Width),
		Height:      int(w.Height),
		Wallpaper:   w.Wallpaper,
		WallpaperID: w.WallpaperID,
		State:       w.State,
		Ticks:       w.Ticks,
		Frames:      w.Frames,
		Errors:      w.Errors,
		BoundAt:     fromUnixMilli(w.BoundAt),
	}
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// toDBusError maps a service error to a named D-Bus error. The first body
// element is the message; MonitorNotFound and WallpaperNotFound carry the
// offending argument as the second.
func toDBusError(err error) *dbus.Error {
	if err == nil {
		return nil
	}
	var (
		mnf *control.MonitorNotFoundError
		wnf *control.WallpaperNotFoundError
		ve  *model.ValidationError
		ue  *model.UnknownEffectError
		se  *scheduler.StateError
	)
	switch {
	case errors.As(err, &mnf):
		return dbus.NewError(ErrorMonitorNotFound, []any{err.Error(), mnf.ID})
	case errors.As(err, &wnf):
		return dbus.NewError(ErrorWallpaperNotFound, []any{err.Error(), wnf.Query})
	case errors.Is(err, control.ErrNoMonitors):
		return dbus.NewError(ErrorNoMonitors, []any{err.Error()})
	case errors.Is(err, library.ErrAlreadyInstalled):
		return dbus.NewError(ErrorAlreadyInstalled, []any{err.Error()})
	case errors.As(err, &ve), errors.As(err, &ue), errors.Is(err, manifest.ErrNoManifest):
		return dbus.NewError(ErrorInvalidWallpaper, []any{err.Error()})
	case errors.As(err, &se):
		return dbus.NewError(ErrorInvalidState, []any{err.Error()})
	default:
		return dbus.NewError(ErrorFailed, []any{err.Error()})
	}
}

// RemoteError is a daemon error that has no richer local type.
type RemoteError struct {
	Name    string
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// fromDBusError turns a D-Bus error reply back into the service's error
// types so callers can use errors.As and errors.Is on them.
func fromDBusError(err error) error {
	if err == nil {
		return nil
	}
	var de dbus.Error
	var dep *dbus.Error
	switch {
	case errors.As(err, &dep):
		de = *dep
	case errors.As(err, &de):
	default:
		return err
	}

	msg := de.Error()
	arg := ""
	if len(de.Body) > 1 {
		arg, _ = de.Body[1].(string)
	}
	switch de.Name {
	case ErrorMonitorNotFound:
		return &control.MonitorNotFoundError{ID: arg}
	case ErrorWallpaperNotFound:
		return &control.WallpaperNotFoundError{Query: arg}
	case ErrorNoMonitors:
		return control.ErrNoMonitors
	case ErrorAlreadyInstalled:
		return &wrappedError{msg: msg, err: library.ErrAlreadyInstalled}
	default:
		return &RemoteError{Name: de.Name, Message: msg}
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string { return e.msg }
func (e *wrappedError) Unwrap() error { return e.err }
