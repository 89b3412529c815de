// Package x11 presents wallpapers on the X11 root window. Outputs come from
// RandR; frames are drawn into one root-sized pixmap that is installed as
// the root background and advertised through _XROOTPMAP_ID.
package x11

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/xgraphics"
	"github.com/BurntSushi/xgbutil/xprop"

	"github.com/jmylchreest/wlrs/internal/display"
	"github.com/jmylchreest/wlrs/internal/monitor"
)

// DefaultPollInterval is how often RandR is queried for output changes.
const DefaultPollInterval = 2 * time.Second

type placed struct {
	output monitor.Output
	origin image.Point
}

// Host is an X11 root window presenter.
type Host struct {
	xu     *xgbutil.XUtil
	root   xproto.Window
	logger *slog.Logger

	pollInterval time.Duration

	mu      sync.Mutex
	outputs map[string]placed
	canvas  *xgraphics.Image
}

// NewHost connects to the X server named by $DISPLAY.
func NewHost(logger *slog.Logger) (*Host, error) {
	if logger == nil {
		logger = slog.Default()
	}
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, fmt.Errorf("connect to X server: %w", err)
	}
	if err := randr.Init(xu.Conn()); err != nil {
		xu.Conn().Close()
		return nil, fmt.Errorf("randr init failed: %w", err)
	}
	return &Host{
		xu:           xu,
		root:         xu.RootWin(),
		logger:       logger,
		pollInterval: DefaultPollInterval,
		outputs:      make(map[string]placed),
	}, nil
}

// SetPollInterval sets how often outputs are re-read.
func (h *Host) SetPollInterval(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pollInterval = d
}

// HostRefresh is false: X11 gives no per-output refresh clock here.
func (h *Host) HostRefresh() bool { return false }

// Present draws frame at the output's position on the root pixmap.
func (h *Host) Present(outputID string, frame *image.RGBA) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.outputs[outputID]
	if !ok {
		return &monitor.NotFoundError{ID: outputID}
	}
	if h.canvas == nil {
		return fmt.Errorf("x11: no root surface")
	}

	r := blitBGRA(h.canvas, p.origin, frame)
	if r.Empty() {
		return nil
	}
	sub, ok := h.canvas.SubImage(r).(*xgraphics.Image)
	if !ok {
		return fmt.Errorf("x11: unexpected subimage type")
	}
	sub.XDraw()
	h.canvas.XPaint(h.root)
	h.xu.Sync()
	return nil
}

// Run polls RandR for outputs until ctx is cancelled.
func (h *Host) Run(ctx context.Context, events display.Events, _ display.Frames) error {
	defer h.close()

	var current []monitor.Output
	refresh := func() error {
		next, origins, err := h.queryOutputs()
		if err != nil {
			return err
		}
		added, removed := display.DiffOutputs(current, next)
		if len(added) == 0 && len(removed) == 0 {
			return nil
		}
		if err := h.resetCanvas(next, origins); err != nil {
			return err
		}
		for _, id := range removed {
			events.MonitorRemoved(id)
		}
		for _, o := range added {
			events.MonitorAdded(o)
		}
		current = next
		return nil
	}

	if err := refresh(); err != nil {
		return err
	}
	h.logger.Info("x11 host running", "outputs", len(current))

	h.mu.Lock()
	interval := h.pollInterval
	h.mu.Unlock()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			for _, o := range current {
				events.MonitorRemoved(o.ID)
			}
			return nil
		case <-ticker.C:
			if err := refresh(); err != nil {
				h.logger.Warn("failed to query outputs", "error", err)
			}
		}
	}
}

// queryOutputs lists active CRTCs the way xrandr reports them.
func (h *Host) queryOutputs() ([]monitor.Output, map[string]image.Point, error) {
	conn := h.xu.Conn()
	resources, err := randr.GetScreenResources(conn, h.root).Reply()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	var outs []monitor.Output
	origins := make(map[string]image.Point)
	for i, crtc := range resources.Crtcs {
		info, err := randr.GetCrtcInfo(conn, crtc, resources.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}
		if info.Width == 0 || info.Height == 0 || len(info.Outputs) == 0 {
			continue
		}
		name := fmt.Sprintf("Monitor%d", i)
		if oi, err := randr.GetOutputInfo(conn, info.Outputs[0], resources.ConfigTimestamp).Reply(); err == nil {
			name = string(oi.Name)
		}
		outs = append(outs, monitor.Output{
			ID:     name,
			Name:   name,
			Width:  int(info.Width),
			Height: int(info.Height),
		})
		origins[name] = image.Pt(int(info.X), int(info.Y))
	}
	return outs, origins, nil
}

// resetCanvas replaces the root pixmap after the output layout changed.
func (h *Host) resetCanvas(outs []monitor.Output, origins map[string]image.Point) error {
	screen := h.xu.Screen()
	bounds := image.Rect(0, 0, int(screen.WidthInPixels), int(screen.HeightInPixels))

	h.mu.Lock()
	defer h.mu.Unlock()

	h.outputs = make(map[string]placed, len(outs))
	for _, o := range outs {
		h.outputs[o.ID] = placed{output: o, origin: origins[o.ID]}
	}

	if h.canvas != nil && h.canvas.Rect.Eq(bounds) {
		return nil
	}
	if h.canvas != nil {
		h.canvas.Destroy()
	}
	canvas := xgraphics.New(h.xu, bounds)
	if err := canvas.XSurfaceSet(h.root); err != nil {
		return fmt.Errorf("create root pixmap: %w", err)
	}
	h.canvas = canvas
	for _, prop := range []string{"_XROOTPMAP_ID", "ESETROOT_PMAP_ID"} {
		if err := xprop.ChangeProp32(h.xu, h.root, prop, "PIXMAP", uint(canvas.Pixmap)); err != nil {
			h.logger.Debug("failed to set root pixmap property", "property", prop, "error", err)
		}
	}
	return nil
}

func (h *Host) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.canvas != nil {
		h.canvas.Destroy()
		h.canvas = nil
	}
	h.xu.Conn().Close()
}
