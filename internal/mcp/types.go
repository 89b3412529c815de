package mcp

import (
	"time"

	"github.com/jmylchreest/wlrs/internal/control"
	"github.com/jmylchreest/wlrs/internal/library"
)

// Empty is the input of tools that take no arguments.
type Empty struct{}

// PingOutput is the output of the ping tool.
type PingOutput struct {
	Version    string `json:"version"`
	Uptime     string `json:"uptime"`
	Monitors   int    `json:"monitors"`
	Wallpapers int    `json:"wallpapers"`
}

// Wallpaper describes one wallpaper. Times are RFC 3339 strings.
type Wallpaper struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Author      string `json:"author,omitempty"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
	Path        string `json:"path"`
	Source      string `json:"source"`
	Layers      int    `json:"layers"`
	Framerate   string `json:"framerate"`
	Tickrate    string `json:"tickrate"`
	LoadedAt    string `json:"loaded_at,omitempty"`
}

// Monitor describes one output and what it shows.
type Monitor struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Wallpaper   string `json:"wallpaper,omitempty"`
	WallpaperID string `json:"wallpaper_id,omitempty"`
	State       string `json:"state"`
	Ticks       uint64 `json:"ticks"`
	Frames      uint64 `json:"frames"`
	Errors      uint64 `json:"errors"`
	BoundAt     string `json:"bound_at,omitempty"`
}

// ListWallpapersInput narrows list_wallpapers.
type ListWallpapersInput struct {
	Filter string `json:"filter,omitempty" jsonschema:"comma-separated conditions such as source=installed,layers>=3 or name~ocean"`
	Search string `json:"search,omitempty" jsonschema:"case-insensitive text matched against name, author and description"`
}

// ListWallpapersOutput is the output of the list_wallpapers tool.
type ListWallpapersOutput struct {
	Wallpapers []Wallpaper `json:"wallpapers"`
}

// QueryMonitorsOutput is the output of the query_monitors tool.
type QueryMonitorsOutput struct {
	Monitors []Monitor `json:"monitors"`
}

// SetWallpaperInput is the input for the set_wallpaper tool.
type SetWallpaperInput struct {
	Wallpaper string `json:"wallpaper" jsonschema:"Wallpaper name, ID or directory path"`
	Monitor   string `json:"monitor,omitempty" jsonschema:"Output ID or name (default: every monitor showing a wallpaper, or all monitors when none is)"`
}

// LoadWallpaperInput is the input for the load_wallpaper tool.
type LoadWallpaperInput struct {
	Path string `json:"path" jsonschema:"Directory containing a manifest.toml or manifest.yaml"`
}

// LoadWallpaperOutput is the output of the load_wallpaper tool.
type LoadWallpaperOutput struct {
	ID string `json:"id"`
}

// InstallWallpaperInput is the input for the install_wallpaper tool.
type InstallWallpaperInput struct {
	Path string `json:"path" jsonschema:"Wallpaper directory to copy into the install directory"`
	Name string `json:"name,omitempty" jsonschema:"Directory name to install as (default: the source directory name)"`
}

// MonitorInput is the input for tools that act on one or all monitors.
type MonitorInput struct {
	Monitor string `json:"monitor,omitempty" jsonschema:"Output ID or name (default: all bound monitors)"`
}

// ForceTickInput is the input for the force_tick tool.
type ForceTickInput struct {
	Monitor string `json:"monitor,omitempty" jsonschema:"Output ID or name (default: all bound monitors)"`
	DtMs    int64  `json:"dt_ms,omitempty" jsonschema:"Animation time to advance in milliseconds (default: one natural tick)"`
}

// OKOutput acknowledges a command.
type OKOutput struct {
	OK bool `json:"ok"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func wallpaperOf(s library.Summary) Wallpaper {
	return Wallpaper{
		ID:          s.ID,
		Name:        s.Name,
		Author:      s.Author,
		Version:     s.Version,
		Description: s.Description,
		Path:        s.Path,
		Source:      string(s.Source),
		Layers:      s.Layers,
		Framerate:   s.Framerate,
		Tickrate:    s.Tickrate,
		LoadedAt:    formatTime(s.LoadedAt),
	}
}

func monitorOf(a control.Active) Monitor {
	return Monitor{
		ID:          a.Monitor,
		Name:        a.OutputName,
		Width:       a.Width,
		Height:      a.Height,
		Wallpaper:   a.Wallpaper,
		WallpaperID: a.WallpaperID,
		State:       a.State,
		Ticks:       a.Ticks,
		Frames:      a.Frames,
		Errors:      a.Errors,
		BoundAt:     formatTime(a.BoundAt),
	}
}
