package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/wlrs/internal/model"
)

type fakeRenderer struct {
	ticks   int
	frames  int
	elapsed time.Duration
	// ticksAtFrame records the tick count seen by each frame.
	ticksAtFrame []int
	err          error
}

func (f *fakeRenderer) Advance(dt time.Duration, _ time.Time) {
	f.ticks++
	f.elapsed += dt
}

func (f *fakeRenderer) Render(time.Time) error {
	f.frames++
	f.ticksAtFrame = append(f.ticksAtFrame, f.ticks)
	return f.err
}

var epoch = time.Unix(1_700_000_000, 0)

// drive delivers opportunities every step for the given duration.
func drive(s *Scheduler, start time.Time, step, dur time.Duration) time.Time {
	now := start
	for end := start.Add(dur); now.Before(end); {
		now = now.Add(step)
		_, _ = s.FrameOpportunity(now)
	}
	return now
}

func TestTransitions(t *testing.T) {
	s := New()
	assert.Equal(t, Idle, s.State())

	r := &fakeRenderer{}
	require.NoError(t, s.Bind(r, model.Fixed(30), model.Fixed(30), epoch))
	assert.Equal(t, Running, s.State())

	var serr *StateError
	assert.ErrorAs(t, s.Bind(r, model.Fixed(30), model.Fixed(30), epoch), &serr, "bind while running")
	assert.ErrorAs(t, s.Resume(epoch), &serr, "resume while running")

	require.NoError(t, s.Pause(epoch))
	assert.Equal(t, Paused, s.State())
	assert.ErrorAs(t, s.Pause(epoch), &serr)

	require.NoError(t, s.Resume(epoch))
	assert.Equal(t, Running, s.State())

	s.Unbind(epoch)
	assert.Equal(t, Idle, s.State())
	s.Unbind(epoch)
	assert.Equal(t, Idle, s.State(), "unbind from idle is allowed")
}

func TestCadence_TicksAndFramesIndependent(t *testing.T) {
	s := New()
	r := &fakeRenderer{}
	require.NoError(t, s.Bind(r, model.Fixed(30), model.Fixed(60), epoch))

	hostDriven, interval := s.Cadence()
	require.False(t, hostDriven)
	require.Equal(t, time.Second/60, interval)

	drive(s, epoch, interval, time.Second)

	assert.GreaterOrEqual(t, r.ticks, 55)
	assert.GreaterOrEqual(t, r.frames, 25)
	assert.LessOrEqual(t, r.frames, 32, "framerate is not tied to tickrate")
}

func TestCadence_JitteredDriver(t *testing.T) {
	s := New()
	r := &fakeRenderer{}
	require.NoError(t, s.Bind(r, model.Fixed(30), model.Fixed(60), epoch))

	now := epoch
	jitter := []time.Duration{-2 * time.Millisecond, 3 * time.Millisecond, 0, time.Millisecond, -time.Millisecond}
	for i := 0; i < 60; i++ {
		now = now.Add(time.Second/60 + jitter[i%len(jitter)])
		_, _ = s.FrameOpportunity(now)
	}

	assert.GreaterOrEqual(t, r.ticks, 55)
	assert.GreaterOrEqual(t, r.frames, 25)
}

func TestFrameWithoutTicks(t *testing.T) {
	s := New()
	r := &fakeRenderer{}
	require.NoError(t, s.Bind(r, model.Fixed(60), model.Fixed(30), epoch))

	drive(s, epoch, time.Second/60, 200*time.Millisecond)

	require.Greater(t, len(r.ticksAtFrame), 2)
	repeated := false
	for i := 1; i < len(r.ticksAtFrame); i++ {
		if r.ticksAtFrame[i] == r.ticksAtFrame[i-1] {
			repeated = true
		}
	}
	assert.True(t, repeated, "some frame saw zero ticks since the previous frame")
}

func TestStaticTickrate_OnlyForceTickAdvances(t *testing.T) {
	s := New()
	r := &fakeRenderer{}
	require.NoError(t, s.Bind(r, model.Fixed(30), model.Static(), epoch))

	drive(s, epoch, time.Second/30, time.Second)
	assert.Zero(t, r.ticks)
	assert.Greater(t, r.frames, 0)

	require.NoError(t, s.ForceTick(0, epoch))
	assert.Equal(t, 1, r.ticks)
	assert.Equal(t, DefaultTick, r.elapsed)
}

func TestStaticFramerate_PresentsOnceThenOnDemand(t *testing.T) {
	s := New()
	r := &fakeRenderer{}
	require.NoError(t, s.Bind(r, model.Static(), model.Static(), epoch))

	hostDriven, interval := s.Cadence()
	assert.False(t, hostDriven)
	assert.Zero(t, interval)

	now := drive(s, epoch, 10*time.Millisecond, 100*time.Millisecond)
	assert.Equal(t, 1, r.frames, "first frame after bind only")

	require.NoError(t, s.ForceTick(50*time.Millisecond, now))
	out, err := s.FrameOpportunity(now.Add(time.Millisecond))
	require.NoError(t, err)
	assert.True(t, out.Framed)
	assert.Equal(t, 2, r.frames)
}

func TestCompositorDriven_TicksWithEachFrame(t *testing.T) {
	s := New()
	r := &fakeRenderer{}
	require.NoError(t, s.Bind(r, model.CompositorDriven(), model.CompositorDriven(), epoch))

	hostDriven, _ := s.Cadence()
	require.True(t, hostDriven)

	now := epoch
	for i := 0; i < 10; i++ {
		now = now.Add(7 * time.Millisecond)
		out, err := s.FrameOpportunity(now)
		require.NoError(t, err)
		assert.True(t, out.Framed)
		assert.Equal(t, 1, out.Ticks)
	}
	assert.Equal(t, 70*time.Millisecond, r.elapsed)
}

func TestCatchUpIsBounded(t *testing.T) {
	s := New()
	r := &fakeRenderer{}
	require.NoError(t, s.Bind(r, model.Fixed(60), model.Fixed(60), epoch))

	out, err := s.FrameOpportunity(epoch.Add(10 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, maxCatchUp, out.Ticks)
}

func TestPausedAndIdleRejectOpportunities(t *testing.T) {
	s := New()
	var serr *StateError

	_, err := s.FrameOpportunity(epoch)
	assert.ErrorAs(t, err, &serr)
	assert.ErrorAs(t, s.ForceTick(0, epoch), &serr, "force-tick on idle")

	r := &fakeRenderer{}
	require.NoError(t, s.Bind(r, model.Fixed(60), model.Fixed(60), epoch))
	require.NoError(t, s.Pause(epoch))

	drive(s, epoch, time.Second/60, 500*time.Millisecond)
	assert.Zero(t, r.ticks)
	assert.Zero(t, r.frames)
}

func TestResumeDoesNotCatchUp(t *testing.T) {
	s := New()
	r := &fakeRenderer{}
	require.NoError(t, s.Bind(r, model.Fixed(60), model.Fixed(60), epoch))
	require.NoError(t, s.Pause(epoch))

	later := epoch.Add(time.Hour)
	require.NoError(t, s.Resume(later))
	out, err := s.FrameOpportunity(later.Add(time.Second / 60))
	require.NoError(t, err)
	assert.Equal(t, 1, out.Ticks)
}

func TestRenderErrorsAreCounted(t *testing.T) {
	s := New()
	r := &fakeRenderer{err: errors.New("present failed")}
	require.NoError(t, s.Bind(r, model.CompositorDriven(), model.CompositorDriven(), epoch))

	_, err := s.FrameOpportunity(epoch.Add(time.Millisecond))
	assert.Error(t, err)
	assert.Equal(t, uint64(1), s.Stats().Errors)
}

func TestUnbindTrace_NoFrameAfterUnbind(t *testing.T) {
	s := New()
	trace := s.EnableTrace(64)

	old := &fakeRenderer{}
	require.NoError(t, s.Bind(old, model.CompositorDriven(), model.CompositorDriven(), epoch))
	oldGen := s.Generation()
	now := drive(s, epoch, 10*time.Millisecond, 30*time.Millisecond)

	s.Unbind(now)
	framesBefore := old.frames
	ticksBefore := old.ticks

	_, err := s.FrameOpportunity(now.Add(10 * time.Millisecond))
	var serr *StateError
	require.ErrorAs(t, err, &serr)

	fresh := &fakeRenderer{}
	require.NoError(t, s.Bind(fresh, model.CompositorDriven(), model.CompositorDriven(), now))
	drive(s, now, 10*time.Millisecond, 20*time.Millisecond)

	assert.Equal(t, framesBefore, old.frames, "old renderer never rendered again")
	assert.Equal(t, ticksBefore, old.ticks, "old state never advanced again")

	events := trace.Events()
	unbound := false
	for _, e := range events {
		switch {
		case e.Kind == EventUnbind:
			unbound = true
			assert.Equal(t, Idle, e.State)
		case unbound && (e.Kind == EventFrame || e.Kind == EventTick):
			assert.NotEqual(t, oldGen, e.Generation, "frame after unbind used the removed binding")
		}
	}

	var kinds []EventKind
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	assert.Contains(t, kinds, EventRejected)
}

func TestTrace_Ring(t *testing.T) {
	tr := NewTrace(3)
	for i := 0; i < 5; i++ {
		tr.add(Event{Ticks: i})
	}
	events := tr.Events()
	require.Len(t, events, 3)
	assert.Equal(t, 2, events[0].Ticks)
	assert.Equal(t, 4, events[2].Ticks)
}
