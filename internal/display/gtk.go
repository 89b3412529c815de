package display

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"os"
	"sync"
	"time"
	"unsafe"

	"github.com/diamondburned/gotk4-adwaita/pkg/adw"
	layershell "github.com/diamondburned/gotk4-layer-shell/pkg/gtk4layershell"
	coreglib "github.com/diamondburned/gotk4/pkg/core/glib"
	"github.com/diamondburned/gotk4/pkg/gdk/v4"
	"github.com/diamondburned/gotk4/pkg/gio/v2"
	"github.com/diamondburned/gotk4/pkg/glib/v2"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"

	"github.com/jmylchreest/wlrs/internal/monitor"
)

// ErrNoDisplay is returned when GTK has no default display.
var ErrNoDisplay = errors.New("no display available")

// ErrLayerShellUnsupported is returned when the compositor lacks
// wlr-layer-shell.
var ErrLayerShellUnsupported = errors.New("compositor does not support wlr-layer-shell")

// surface is the background window on one output. GTK thread only.
type surface struct {
	window  *gtk.Window
	picture *gtk.Picture
	output  monitor.Output
}

// GTKHost draws each output's frames into a background layer-shell window
// and drives compositor-driven wallpapers from the GTK frame clock.
type GTKHost struct {
	appID  string
	logger *slog.Logger

	app      *adw.Application
	events   Events
	frames   Frames
	surfaces map[string]*surface

	mu        sync.Mutex
	pending   map[string]*image.RGBA
	scheduled bool
}

// NewGTKHost creates a host registered under appID.
func NewGTKHost(appID string, logger *slog.Logger) *GTKHost {
	if logger == nil {
		logger = slog.Default()
	}
	return &GTKHost{
		appID:    appID,
		logger:   logger,
		surfaces: make(map[string]*surface),
		pending:  make(map[string]*image.RGBA),
	}
}

// HostRefresh is true: every window has a tick callback.
func (h *GTKHost) HostRefresh() bool { return true }

// Present queues frame for the output's window. Only the newest pending
// frame per output is uploaded.
func (h *GTKHost) Present(outputID string, frame *image.RGBA) error {
	cp := copyFrame(frame)
	h.mu.Lock()
	h.pending[outputID] = cp
	schedule := !h.scheduled
	h.scheduled = true
	h.mu.Unlock()

	if schedule {
		glib.IdleAdd(h.flush)
	}
	return nil
}

func (h *GTKHost) flush() {
	h.mu.Lock()
	pending := h.pending
	h.pending = make(map[string]*image.RGBA)
	h.scheduled = false
	h.mu.Unlock()

	for id, frame := range pending {
		s, ok := h.surfaces[id]
		if !ok {
			continue
		}
		b := frame.Rect
		texture := gdk.NewMemoryTexture(b.Dx(), b.Dy(), gdk.MemoryR8G8B8A8Premultiplied,
			glib.NewBytes(frame.Pix), uint(frame.Stride))
		s.picture.SetPaintable(texture)
	}
}

// Run runs the GTK application on the calling goroutine until ctx is
// cancelled. It must be called from the main goroutine.
func (h *GTKHost) Run(ctx context.Context, events Events, frames Frames) error {
	h.events = events
	h.frames = frames
	h.app = adw.NewApplication(h.appID, 0)

	var runErr error
	h.app.ConnectActivate(func() {
		display := gdk.DisplayGetDefault()
		if display == nil {
			runErr = ErrNoDisplay
			h.app.Quit()
			return
		}
		if !layershell.IsSupported() {
			runErr = ErrLayerShellUnsupported
			h.app.Quit()
			return
		}

		monitors := display.Monitors()
		monitors.ConnectItemsChanged(func(_, _, _ uint) {
			h.sync(monitors)
		})
		h.sync(monitors)

		// GTK applications quit when their last window closes; outputs can
		// all disappear transiently.
		h.app.Hold()
		h.logger.Info("gtk host running", "outputs", len(h.surfaces))
	})

	h.app.ConnectShutdown(func() {
		for id, s := range h.surfaces {
			s.window.Destroy()
			delete(h.surfaces, id)
			h.events.MonitorRemoved(id)
		}
	})

	go func() {
		<-ctx.Done()
		glib.IdleAdd(func() {
			h.app.Quit()
		})
	}()

	status := h.app.Run([]string{os.Args[0]})
	if runErr != nil {
		return runErr
	}
	if status != 0 && ctx.Err() == nil {
		return errors.New("gtk application exited with an error")
	}
	return nil
}

// sync reconciles windows with the display's monitor list.
func (h *GTKHost) sync(monitors *gio.ListModel) {
	seen := make(map[string]bool)
	for i := uint(0); i < monitors.NItems(); i++ {
		mon := wrapMonitor(monitors.Item(i))
		if mon == nil {
			continue
		}
		out := outputOf(mon)
		if out.ID == "" {
			continue
		}
		seen[out.ID] = true

		if s, ok := h.surfaces[out.ID]; ok {
			if s.output != out {
				s.output = out
				h.events.MonitorAdded(out)
			}
			continue
		}
		h.surfaces[out.ID] = h.newSurface(mon, out)
		h.events.MonitorAdded(out)
	}

	for id, s := range h.surfaces {
		if seen[id] {
			continue
		}
		s.window.Destroy()
		delete(h.surfaces, id)
		h.events.MonitorRemoved(id)
	}
}

func (h *GTKHost) newSurface(mon *gdk.Monitor, out monitor.Output) *surface {
	window := gtk.NewWindow()
	window.SetApplication(&h.app.Application)
	window.SetDecorated(false)

	layershell.InitForWindow(window)
	layershell.SetLayer(window, layershell.LayerShellLayerBackground)
	layershell.SetNamespace(window, "wlrs-wallpaper")
	layershell.SetExclusiveZone(window, -1)
	layershell.SetKeyboardMode(window, layershell.LayerShellKeyboardModeNone)
	layershell.SetMonitor(window, mon)
	layershell.SetAnchor(window, layershell.LayerShellEdgeTop, true)
	layershell.SetAnchor(window, layershell.LayerShellEdgeBottom, true)
	layershell.SetAnchor(window, layershell.LayerShellEdgeLeft, true)
	layershell.SetAnchor(window, layershell.LayerShellEdgeRight, true)

	picture := gtk.NewPicture()
	picture.SetContentFit(gtk.ContentFitFill)
	picture.SetCanShrink(true)
	window.SetChild(picture)

	id := out.ID
	picture.AddTickCallback(func(_ gtk.Widgetter, _ gdk.FrameClocker) bool {
		if h.frames.HostDriven(id) {
			if _, err := h.frames.FrameOpportunity(id, time.Now()); err != nil {
				h.logger.Debug("frame opportunity failed", "monitor", id, "error", err)
			}
		}
		return true
	})

	window.SetVisible(true)
	h.logger.Debug("background surface created", "monitor", id, "width", out.Width, "height", out.Height)
	return &surface{window: window, picture: picture, output: out}
}

// outputOf describes mon in device pixels.
func outputOf(mon *gdk.Monitor) monitor.Output {
	geom := mon.Geometry()
	scale := max(mon.ScaleFactor(), 1)
	return monitor.Output{
		ID:     mon.Connector(),
		Name:   mon.Model(),
		Width:  geom.Width() * scale,
		Height: geom.Height() * scale,
	}
}

// wrapMonitor wraps a list model item as a gdk.Monitor; gotk4 does not
// export its own wrapper.
func wrapMonitor(obj *coreglib.Object) *gdk.Monitor {
	if obj == nil {
		return nil
	}
	type monitor struct {
		_ [0]func()
		*coreglib.Object
	}
	m := &monitor{Object: obj}
	return (*gdk.Monitor)(unsafe.Pointer(m))
}
