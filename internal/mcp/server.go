// Package mcp exposes a running wlrsd to MCP clients over stdio.
package mcp

import (
	"context"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jmylchreest/wlrs/internal/control"
	"github.com/jmylchreest/wlrs/internal/core"
	"github.com/jmylchreest/wlrs/internal/library"
)

const ServerName = "wlrs"

// Daemon is the subset of the D-Bus client the tools call.
type Daemon interface {
	Ping(ctx context.Context) (control.Health, error)
	ListWallpapers(ctx context.Context) ([]library.Summary, error)
	Query(ctx context.Context) ([]control.Active, error)
	SetWallpaper(ctx context.Context, wallpaper, monitor string) error
	LoadWallpaper(ctx context.Context, path string) (string, error)
	InstallWallpaper(ctx context.Context, path, name string) (library.Summary, error)
	Pause(ctx context.Context, monitor string) error
	Resume(ctx context.Context, monitor string) error
	ForceTick(ctx context.Context, monitor string, dt time.Duration) error
}

// Server is the MCP server for wallpaper control.
type Server struct {
	mcpServer *mcpsdk.Server
	daemon    Daemon
}

// NewServer creates a server that forwards tool calls to daemon.
func NewServer(daemon Daemon, version string) *Server {
	s := &Server{daemon: daemon}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: version,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "ping",
		Description: "Check that the wallpaper daemon is running and report its version, uptime and counts.",
	}, s.handlePing)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_wallpapers",
		Description: "List the wallpapers the daemon knows, with ID, name, source directory, layer count and frame/tick rates. Optionally filter or search.",
	}, s.handleListWallpapers)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "query_monitors",
		Description: "List connected monitors with their size, the wallpaper each shows and its animation state (idle, running or paused).",
	}, s.handleQueryMonitors)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "set_wallpaper",
		Description: "Show a wallpaper on one monitor or on all of them. Animation restarts from the beginning.",
	}, s.handleSetWallpaper)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "load_wallpaper",
		Description: "Validate a wallpaper directory and register it without displaying it. Returns its ID.",
	}, s.handleLoadWallpaper)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "install_wallpaper",
		Description: "Copy a wallpaper directory into the daemon's install directory so it is found on every start.",
	}, s.handleInstallWallpaper)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "pause",
		Description: "Freeze animation on a monitor, or on all monitors. The last frame stays on screen.",
	}, s.handlePause)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "resume",
		Description: "Resume animation paused with the pause tool.",
	}, s.handleResume)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "force_tick",
		Description: "Advance animation once by dt_ms and render, whether or not the wallpaper is paused.",
	}, s.handleForceTick)
}

func (s *Server) handlePing(ctx context.Context, _ *mcpsdk.CallToolRequest, _ Empty) (*mcpsdk.CallToolResult, PingOutput, error) {
	h, err := s.daemon.Ping(ctx)
	if err != nil {
		return nil, PingOutput{}, err
	}
	return nil, PingOutput{
		Version:    h.Version,
		Uptime:     h.Uptime.String(),
		Monitors:   h.Monitors,
		Wallpapers: h.Wallpapers,
	}, nil
}

func (s *Server) handleListWallpapers(ctx context.Context, _ *mcpsdk.CallToolRequest, args ListWallpapersInput) (*mcpsdk.CallToolResult, ListWallpapersOutput, error) {
	expr, err := core.ParseFilter(args.Filter)
	if err != nil {
		return nil, ListWallpapersOutput{}, err
	}
	list, err := s.daemon.ListWallpapers(ctx)
	if err != nil {
		return nil, ListWallpapersOutput{}, err
	}
	list = core.Search(core.Filter(list, expr), args.Search)
	core.Sort(list, core.DefaultSortOptions())
	out := ListWallpapersOutput{Wallpapers: make([]Wallpaper, 0, len(list))}
	for _, w := range list {
		out.Wallpapers = append(out.Wallpapers, wallpaperOf(w))
	}
	return nil, out, nil
}

func (s *Server) handleQueryMonitors(ctx context.Context, _ *mcpsdk.CallToolRequest, _ Empty) (*mcpsdk.CallToolResult, QueryMonitorsOutput, error) {
	rows, err := s.daemon.Query(ctx)
	if err != nil {
		return nil, QueryMonitorsOutput{}, err
	}
	out := QueryMonitorsOutput{Monitors: make([]Monitor, 0, len(rows))}
	for _, r := range rows {
		out.Monitors = append(out.Monitors, monitorOf(r))
	}
	return nil, out, nil
}

func (s *Server) handleSetWallpaper(ctx context.Context, _ *mcpsdk.CallToolRequest, args SetWallpaperInput) (*mcpsdk.CallToolResult, OKOutput, error) {
	if err := s.daemon.SetWallpaper(ctx, args.Wallpaper, args.Monitor); err != nil {
		return nil, OKOutput{}, err
	}
	return nil, OKOutput{OK: true}, nil
}

func (s *Server) handleLoadWallpaper(ctx context.Context, _ *mcpsdk.CallToolRequest, args LoadWallpaperInput) (*mcpsdk.CallToolResult, LoadWallpaperOutput, error) {
	id, err := s.daemon.LoadWallpaper(ctx, args.Path)
	if err != nil {
		return nil, LoadWallpaperOutput{}, err
	}
	return nil, LoadWallpaperOutput{ID: id}, nil
}

func (s *Server) handleInstallWallpaper(ctx context.Context, _ *mcpsdk.CallToolRequest, args InstallWallpaperInput) (*mcpsdk.CallToolResult, Wallpaper, error) {
	sum, err := s.daemon.InstallWallpaper(ctx, args.Path, args.Name)
	if err != nil {
		return nil, Wallpaper{}, err
	}
	return nil, wallpaperOf(sum), nil
}

func (s *Server) handlePause(ctx context.Context, _ *mcpsdk.CallToolRequest, args MonitorInput) (*mcpsdk.CallToolResult, OKOutput, error) {
	if err := s.daemon.Pause(ctx, args.Monitor); err != nil {
		return nil, OKOutput{}, err
	}
	return nil, OKOutput{OK: true}, nil
}

func (s *Server) handleResume(ctx context.Context, _ *mcpsdk.CallToolRequest, args MonitorInput) (*mcpsdk.CallToolResult, OKOutput, error) {
	if err := s.daemon.Resume(ctx, args.Monitor); err != nil {
		return nil, OKOutput{}, err
	}
	return nil, OKOutput{OK: true}, nil
}

func (s *Server) handleForceTick(ctx context.Context, _ *mcpsdk.CallToolRequest, args ForceTickInput) (*mcpsdk.CallToolResult, OKOutput, error) {
	if err := s.daemon.ForceTick(ctx, args.Monitor, time.Duration(args.DtMs)*time.Millisecond); err != nil {
		return nil, OKOutput{}, err
	}
	return nil, OKOutput{OK: true}, nil
}
