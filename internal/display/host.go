package display

import (
	"context"
	"image"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jmylchreest/wlrs/internal/monitor"
	"github.com/jmylchreest/wlrs/internal/scheduler"
)

// Events receives output hotplug notifications from a host.
type Events interface {
	MonitorAdded(out monitor.Output)
	MonitorRemoved(id string)
}

// Frames is the render side a host drives on each refresh.
type Frames interface {
	FrameOpportunity(id string, now time.Time) (scheduler.Outcome, error)
	HostDriven(id string) bool
}

// Host is a presentation backend.
type Host interface {
	monitor.Presenter
	// HostRefresh reports whether Run delivers a frame opportunity on every
	// refresh of each output.
	HostRefresh() bool
	// Run reports outputs to events and blocks until ctx is cancelled or the
	// host fails. Some hosts must be run on the main goroutine.
	Run(ctx context.Context, events Events, frames Frames) error
}

// DiffOutputs compares two output snapshots. Outputs that are new or whose
// geometry changed are returned as added; outputs that disappeared are
// returned by ID.
func DiffOutputs(prev, next []monitor.Output) (added []monitor.Output, removed []string) {
	old := make(map[string]monitor.Output, len(prev))
	for _, o := range prev {
		old[o.ID] = o
	}
	seen := make(map[string]bool, len(next))
	for _, o := range next {
		seen[o.ID] = true
		if p, ok := old[o.ID]; !ok || p != o {
			added = append(added, o)
		}
	}
	for _, o := range prev {
		if !seen[o.ID] {
			removed = append(removed, o.ID)
		}
	}
	slices.Sort(removed)
	return added, removed
}

// copyFrame returns a private copy of frame; presenters must not keep the
// registry's buffer.
func copyFrame(frame *image.RGBA) *image.RGBA {
	cp := &image.RGBA{
		Pix:    make([]uint8, len(frame.Pix)),
		Stride: frame.Stride,
		Rect:   frame.Rect,
	}
	copy(cp.Pix, frame.Pix)
	return cp
}

// HeadlessHost keeps the latest frame of each configured output in memory.
type HeadlessHost struct {
	outputs []monitor.Output
	logger  *slog.Logger

	mu     sync.Mutex
	frames map[string]*image.RGBA
	counts map[string]uint64
}

// NewHeadlessHost creates a host for fixed outputs.
func NewHeadlessHost(outputs []monitor.Output, logger *slog.Logger) *HeadlessHost {
	if logger == nil {
		logger = slog.Default()
	}
	return &HeadlessHost{
		outputs: slices.Clone(outputs),
		logger:  logger,
		frames:  make(map[string]*image.RGBA),
		counts:  make(map[string]uint64),
	}
}

// HeadlessOutputs builds same-sized outputs named after names.
func HeadlessOutputs(names []string, width, height int) []monitor.Output {
	outs := make([]monitor.Output, 0, len(names))
	for _, n := range names {
		outs = append(outs, monitor.Output{ID: n, Name: n, Width: width, Height: height})
	}
	return outs
}

// HostRefresh is false: there is no display clock.
func (h *HeadlessHost) HostRefresh() bool { return false }

// Present stores a copy of frame.
func (h *HeadlessHost) Present(outputID string, frame *image.RGBA) error {
	cp := copyFrame(frame)
	h.mu.Lock()
	h.frames[outputID] = cp
	h.counts[outputID]++
	h.mu.Unlock()
	return nil
}

// Frame returns the latest frame presented to outputID.
func (h *HeadlessHost) Frame(outputID string) (*image.RGBA, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	f, ok := h.frames[outputID]
	return f, ok
}

// Presented returns how many frames outputID has received.
func (h *HeadlessHost) Presented(outputID string) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counts[outputID]
}

// Run announces every output, waits for ctx and then removes them.
func (h *HeadlessHost) Run(ctx context.Context, events Events, _ Frames) error {
	for _, o := range h.outputs {
		events.MonitorAdded(o)
	}
	h.logger.Info("headless host running", "outputs", len(h.outputs))
	<-ctx.Done()
	for _, o := range h.outputs {
		events.MonitorRemoved(o.ID)
	}
	return nil
}
