// Package scheduler implements the per-monitor state machine that decides,
// at every frame opportunity, whether animation state advances (a tick) and
// whether a new frame is composited and presented. The two cadences are
// independent.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/jmylchreest/wlrs/internal/model"
)

// State is the lifecycle state of a scheduler.
type State int

const (
	Idle    State = iota // no wallpaper bound
	Running              // ticking and presenting
	Paused               // bound, neither ticking nor presenting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Paused:
		return "paused"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StateError reports an operation that is not valid in the current state.
// The operation is a no-op.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("scheduler: cannot %s while %s", e.Op, e.State)
}

// Renderer is the bound work driven by a scheduler.
type Renderer interface {
	// Advance moves every effect state forward by dt.
	Advance(dt time.Duration, now time.Time)
	// Render composites and presents one frame.
	Render(now time.Time) error
}

// maxCatchUp bounds how many ticks one opportunity may run after a stall.
const maxCatchUp = 8

// DefaultTick is the step used by a force-tick when no fixed tickrate
// gives a natural one.
const DefaultTick = time.Second / 60

// Outcome describes what one frame opportunity did.
type Outcome struct {
	Ticks  int
	Framed bool
}

// Stats are cumulative counters since the last bind.
type Stats struct {
	State     State
	Ticks     uint64
	Frames    uint64
	Errors    uint64
	BoundAt   time.Time
	LastFrame time.Time
}

// Scheduler drives one monitor. All methods are safe for concurrent use;
// Render runs under the scheduler lock so Unbind waits for an in-flight
// frame to finish and no later opportunity can reach the old renderer.
type Scheduler struct {
	mu sync.Mutex

	state      State
	renderer   Renderer
	framerate  model.RatePolicy
	tickrate   model.RatePolicy
	generation uint64

	lastFrame    time.Time
	lastTick     time.Time
	pendingFrame bool
	stats        Stats

	trace *Trace
}

// New returns an idle scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// EnableTrace records the last n events.
func (s *Scheduler) EnableTrace(n int) *Trace {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trace = NewTrace(n)
	return s.trace
}

// State returns the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Generation identifies the current binding; it increases on every bind.
func (s *Scheduler) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Stats returns a snapshot of the counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.State = s.state
	return st
}

// Bind moves Idle to Running with r driven by the given policies.
func (s *Scheduler) Bind(r Renderer, framerate, tickrate model.RatePolicy, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Idle {
		return s.reject("bind", now)
	}
	s.generation++
	s.state = Running
	s.renderer = r
	s.framerate = framerate
	s.tickrate = tickrate
	s.lastFrame = now
	s.lastTick = now
	s.pendingFrame = true
	s.stats = Stats{BoundAt: now}
	s.record(EventBind, now, 0)
	return nil
}

// Unbind moves any state to Idle and releases the renderer.
func (s *Scheduler) Unbind(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = Idle
	s.renderer = nil
	s.pendingFrame = false
	s.record(EventUnbind, now, 0)
}

// Pause moves Running to Paused.
func (s *Scheduler) Pause(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Running {
		return s.reject("pause", now)
	}
	s.state = Paused
	s.record(EventPause, now, 0)
	return nil
}

// Resume moves Paused to Running. Time spent paused is not caught up.
func (s *Scheduler) Resume(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Paused {
		return s.reject("resume", now)
	}
	s.state = Running
	s.lastFrame = now
	s.lastTick = now
	s.pendingFrame = true
	s.record(EventResume, now, 0)
	return nil
}

// ForceTick advances animation state once regardless of the tickrate
// policy. dt <= 0 uses the tickrate interval, or DefaultTick. The next
// opportunity presents a frame even under a static framerate.
func (s *Scheduler) ForceTick(dt time.Duration, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Idle {
		return s.reject("force-tick", now)
	}
	if dt <= 0 {
		dt = s.tickrate.Interval()
	}
	if dt <= 0 {
		dt = DefaultTick
	}
	s.renderer.Advance(dt, now)
	s.stats.Ticks++
	s.pendingFrame = true
	s.record(EventForceTick, now, 1)
	return nil
}

// FrameOpportunity is called whenever the host could present a new image.
// When Running it first runs every tick due under the tickrate, then
// renders if a frame is due under the framerate. Otherwise it is a no-op
// that returns a *StateError.
func (s *Scheduler) FrameOpportunity(now time.Time) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Running {
		return Outcome{}, s.reject("present", now)
	}

	framed := s.frameDue(now)
	ticks, step := s.ticksDue(now, framed)
	for i := 0; i < ticks; i++ {
		s.renderer.Advance(step, now)
	}
	s.stats.Ticks += uint64(ticks)
	if ticks > 0 {
		s.record(EventTick, now, ticks)
	}

	if !framed {
		return Outcome{Ticks: ticks}, nil
	}

	s.pendingFrame = false
	s.stats.Frames++
	s.stats.LastFrame = now
	err := s.renderer.Render(now)
	if err != nil {
		s.stats.Errors++
	}
	s.record(EventFrame, now, ticks)
	return Outcome{Ticks: ticks, Framed: true}, err
}

// Cadence tells the host how to drive opportunities: hostDriven means on
// every refresh signal; otherwise interval is the timer period, and 0 means
// opportunities are only needed after a force-tick.
func (s *Scheduler) Cadence() (hostDriven bool, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Cadence(s.framerate, s.tickrate)
}

// Cadence computes the driving cadence for a pair of policies.
func Cadence(framerate, tickrate model.RatePolicy) (hostDriven bool, interval time.Duration) {
	if framerate.Kind == model.RateCompositor || tickrate.Kind == model.RateCompositor {
		return true, 0
	}
	for _, p := range []model.RatePolicy{framerate, tickrate} {
		if iv := p.Interval(); iv > 0 && (interval == 0 || iv < interval) {
			interval = iv
		}
	}
	return false, interval
}

// frameDue decides whether this opportunity presents, advancing lastFrame
// by whole intervals so a fixed rate does not drift.
func (s *Scheduler) frameDue(now time.Time) bool {
	switch s.framerate.Kind {
	case model.RateCompositor:
		s.lastFrame = now
		return true
	case model.RateStatic:
		return s.pendingFrame
	}

	if s.pendingFrame {
		s.lastFrame = now
		return true
	}
	iv := s.framerate.Interval()
	if now.Sub(s.lastFrame) < iv-iv/8 {
		return false
	}
	s.lastFrame = s.lastFrame.Add(iv)
	if now.Sub(s.lastFrame) > iv {
		s.lastFrame = now
	}
	return true
}

// ticksDue returns how many ticks to run now and the step of each.
func (s *Scheduler) ticksDue(now time.Time, framed bool) (int, time.Duration) {
	switch s.tickrate.Kind {
	case model.RateStatic:
		return 0, 0
	case model.RateCompositor:
		if !framed {
			return 0, 0
		}
		dt := now.Sub(s.lastTick)
		s.lastTick = now
		return 1, dt
	}

	iv := s.tickrate.Interval()
	elapsed := now.Sub(s.lastTick)
	n := int((elapsed + iv/8) / iv)
	if n <= 0 {
		return 0, iv
	}
	if n > maxCatchUp {
		s.lastTick = now
		return maxCatchUp, iv
	}
	s.lastTick = s.lastTick.Add(time.Duration(n) * iv)
	return n, iv
}

func (s *Scheduler) reject(op string, now time.Time) error {
	s.record(EventRejected, now, 0)
	return &StateError{Op: op, State: s.state}
}

func (s *Scheduler) record(kind EventKind, now time.Time, ticks int) {
	if s.trace != nil {
		s.trace.add(Event{Kind: kind, At: now, Generation: s.generation, State: s.state, Ticks: ticks})
	}
}
