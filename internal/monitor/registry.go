// Package monitor owns the binding table: one scheduler, compositor and set
// of effect states per connected output. It is the only component the
// control surface mutates.
package monitor

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jmylchreest/wlrs/internal/compositor"
	"github.com/jmylchreest/wlrs/internal/effect"
	"github.com/jmylchreest/wlrs/internal/model"
	"github.com/jmylchreest/wlrs/internal/scheduler"
)

// Output describes a physical display.
type Output struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Presenter puts a finished frame on an output. The frame buffer is reused
// by the next render; implementations that keep it must copy it.
type Presenter interface {
	Present(outputID string, frame *image.RGBA) error
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(outputID string, frame *image.RGBA) error

// Present calls f.
func (f PresenterFunc) Present(outputID string, frame *image.RGBA) error {
	return f(outputID, frame)
}

// NotFoundError is returned for operations naming an unknown output.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("monitor not found: %s", e.ID)
}

// Entry is one row of Query.
type Entry struct {
	Output    Output
	Wallpaper string // empty when unbound
	State     scheduler.State
	Stats     scheduler.Stats
}

// Options configure a Registry.
type Options struct {
	Effects   *effect.Registry
	Sources   compositor.SourceResolver
	Presenter Presenter
	// Now is the clock; nil means time.Now.
	Now func() time.Time
	// HostRefresh means the host calls FrameOpportunity on every refresh for
	// compositor-driven wallpapers. Without it the registry's own loop stands
	// in for the refresh signal at RefreshInterval.
	HostRefresh     bool
	RefreshInterval time.Duration
	// TraceSize > 0 records scheduler events per monitor.
	TraceSize int
	Logger    *slog.Logger
}

// Registry maps output IDs to their binding.
type Registry struct {
	mu       sync.RWMutex
	monitors map[string]*monitor
	ctx      context.Context // set by Start; nil until then

	effects     *effect.Registry
	sources     compositor.SourceResolver
	presenter   Presenter
	now         func() time.Time
	hostRefresh bool
	refresh     time.Duration
	traceSize   int
	logger      *slog.Logger
}

type monitor struct {
	// mu serializes writers (bind, unbind, resize) and frame opportunities
	// for this output.
	mu      sync.Mutex
	output  Output
	sched   *scheduler.Scheduler
	trace   *scheduler.Trace
	binding *binding
	loop    *loop
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Effects == nil {
		opts.Effects = effect.NewRegistry(opts.Logger)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = scheduler.DefaultTick
	}
	return &Registry{
		monitors:    make(map[string]*monitor),
		effects:     opts.Effects,
		sources:     opts.Sources,
		presenter:   opts.Presenter,
		now:         opts.Now,
		hostRefresh: opts.HostRefresh,
		refresh:     opts.RefreshInterval,
		traceSize:   opts.TraceSize,
		logger:      opts.Logger,
	}
}

// Start launches a driving loop for every known output and for outputs
// added later. Loops stop when ctx is cancelled or their output goes away.
func (r *Registry) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx != nil {
		return
	}
	r.ctx = ctx
	for id, m := range r.monitors {
		m.mu.Lock()
		m.loop = r.startLoop(ctx, id)
		m.mu.Unlock()
	}
}

// Stop unbinds every output and waits for the driving loops to exit.
func (r *Registry) Stop() {
	r.mu.Lock()
	monitors := make([]*monitor, 0, len(r.monitors))
	for _, m := range r.monitors {
		monitors = append(monitors, m)
	}
	r.mu.Unlock()

	now := r.now()
	for _, m := range monitors {
		m.mu.Lock()
		m.sched.Unbind(now)
		m.binding = nil
		l := m.loop
		m.loop = nil
		m.mu.Unlock()
		if l != nil {
			l.stop()
		}
	}
}

// OnMonitorAdded registers an output. For an output that is already known
// the geometry is updated and any binding keeps running at the new size.
// It reports whether the output is new.
func (r *Registry) OnMonitorAdded(out Output) bool {
	r.mu.Lock()
	if m, ok := r.monitors[out.ID]; ok {
		r.mu.Unlock()
		m.mu.Lock()
		defer m.mu.Unlock()
		m.output = out
		if m.binding != nil {
			m.binding.resize(out.Width, out.Height)
		}
		r.logger.Debug("output updated", "monitor", out.ID, "width", out.Width, "height", out.Height)
		return false
	}

	m := &monitor{output: out, sched: scheduler.New()}
	if r.traceSize > 0 {
		m.trace = m.sched.EnableTrace(r.traceSize)
	}
	r.monitors[out.ID] = m
	if r.ctx != nil {
		m.loop = r.startLoop(r.ctx, out.ID)
	}
	r.mu.Unlock()

	r.logger.Info("output added", "monitor", out.ID, "name", out.Name, "width", out.Width, "height", out.Height)
	return true
}

// OnMonitorRemoved destroys the output's binding and forgets it.
func (r *Registry) OnMonitorRemoved(id string) {
	r.mu.Lock()
	m, ok := r.monitors[id]
	delete(r.monitors, id)
	r.mu.Unlock()
	if !ok {
		return
	}

	m.mu.Lock()
	m.sched.Unbind(r.now())
	m.binding = nil
	l := m.loop
	m.loop = nil
	m.mu.Unlock()
	if l != nil {
		l.stop()
	}
	r.logger.Info("output removed", "monitor", id)
}

// Monitors returns the known outputs ordered by ID.
func (r *Registry) Monitors() []Output {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Output, 0, len(r.monitors))
	for _, m := range r.monitors {
		m.mu.Lock()
		out = append(out, m.output)
		m.mu.Unlock()
	}
	slices.SortFunc(out, func(a, b Output) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Bind attaches w to the output, replacing any current binding. The old
// scheduler is unbound, which waits for an in-flight frame, and its effect
// states are dropped before the new binding starts with every state at
// elapsed zero. Layers whose effect cannot be instantiated are dropped with
// a warning; the rest of the wallpaper still renders.
func (r *Registry) Bind(id string, w *model.Wallpaper) error {
	m, err := r.get(id)
	if err != nil {
		return err
	}

	states, _ := r.effects.InstantiateAll(w)

	m.mu.Lock()
	now := r.now()
	m.sched.Unbind(now)
	m.binding = nil

	b := newBinding(m.output, w, states, r.sources, r.presenter, r.logger.With("monitor", id))
	if err := m.sched.Bind(b, w.Framerate(), w.Tickrate(), now); err != nil {
		m.mu.Unlock()
		return err
	}
	m.binding = b
	l := m.loop
	m.mu.Unlock()

	if l != nil {
		l.wake()
	}
	r.logger.Info("wallpaper bound", "monitor", id, "wallpaper", w.Name(),
		"framerate", w.Framerate().String(), "tickrate", w.Tickrate().String())
	return nil
}

// Unbind detaches the output's wallpaper. Unbinding an unbound output is
// not an error.
func (r *Registry) Unbind(id string) error {
	m, err := r.get(id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.sched.Unbind(r.now())
	if m.binding != nil {
		r.logger.Info("wallpaper unbound", "monitor", id, "wallpaper", m.binding.wallpaper.Name())
	}
	m.binding = nil
	m.mu.Unlock()
	r.wake(m)
	return nil
}

// Query lists every output with its active wallpaper, ordered by ID.
func (r *Registry) Query() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]Entry, 0, len(r.monitors))
	for _, m := range r.monitors {
		m.mu.Lock()
		e := Entry{Output: m.output, Stats: m.sched.Stats()}
		e.State = e.Stats.State
		if m.binding != nil {
			e.Wallpaper = m.binding.wallpaper.Name()
		}
		m.mu.Unlock()
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b Entry) int { return strings.Compare(a.Output.ID, b.Output.ID) })
	return entries
}

// Wallpaper returns the wallpaper bound to the output, or nil.
func (r *Registry) Wallpaper(id string) (*model.Wallpaper, error) {
	m, err := r.get(id)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.binding == nil {
		return nil, nil
	}
	return m.binding.wallpaper, nil
}

// EffectStates returns copies of the output's effect states.
func (r *Registry) EffectStates(id string) (map[string]*effect.State, error) {
	m, err := r.get(id)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.binding == nil {
		return nil, nil
	}
	return m.binding.snapshot(), nil
}

// Trace returns the output's scheduler trace when tracing is enabled.
func (r *Registry) Trace(id string) (*scheduler.Trace, error) {
	m, err := r.get(id)
	if err != nil {
		return nil, err
	}
	return m.trace, nil
}

// Pause suspends ticking and presentation on the output.
func (r *Registry) Pause(id string) error {
	m, err := r.get(id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	err = m.sched.Pause(r.now())
	m.mu.Unlock()
	if err != nil {
		return err
	}
	r.wake(m)
	return nil
}

// Resume restarts a paused output.
func (r *Registry) Resume(id string) error {
	m, err := r.get(id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	err = m.sched.Resume(r.now())
	m.mu.Unlock()
	if err != nil {
		return err
	}
	r.wake(m)
	return nil
}

// ForceTick advances the output's effect states once and schedules a frame.
func (r *Registry) ForceTick(id string, dt time.Duration) error {
	m, err := r.get(id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	err = m.sched.ForceTick(dt, r.now())
	m.mu.Unlock()
	if err != nil {
		return err
	}
	r.wake(m)
	return nil
}

// FrameOpportunity runs one scheduler step for the output. Hosts call it
// from their refresh signal; the registry's own loops call it on a timer.
func (r *Registry) FrameOpportunity(id string, now time.Time) (scheduler.Outcome, error) {
	m, err := r.get(id)
	if err != nil {
		return scheduler.Outcome{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sched.FrameOpportunity(now)
}

// HostDriven reports whether the output's binding wants the host refresh
// signal.
func (r *Registry) HostDriven(id string) bool {
	m, err := r.get(id)
	if err != nil {
		return false
	}
	hostDriven, _ := m.sched.Cadence()
	return hostDriven && m.sched.State() == scheduler.Running
}

func (r *Registry) get(id string) (*monitor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.monitors[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	return m, nil
}

func (r *Registry) wake(m *monitor) {
	m.mu.Lock()
	l := m.loop
	m.mu.Unlock()
	if l != nil {
		l.wake()
	}
}
