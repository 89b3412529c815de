package scheduler

import (
	"sync"
	"time"
)

// EventKind labels a trace entry.
type EventKind string

const (
	EventBind      EventKind = "bind"
	EventUnbind    EventKind = "unbind"
	EventPause     EventKind = "pause"
	EventResume    EventKind = "resume"
	EventTick      EventKind = "tick"
	EventForceTick EventKind = "force-tick"
	EventFrame     EventKind = "frame"
	EventRejected  EventKind = "rejected"
)

// Event is one recorded scheduler transition or opportunity outcome.
// Generation is the binding the event ran against, State the state after it.
type Event struct {
	Kind       EventKind
	At         time.Time
	Generation uint64
	State      State
	Ticks      int
}

// Trace is a bounded ring of events.
type Trace struct {
	mu     sync.Mutex
	events []Event
	next   int
	full   bool
}

// NewTrace keeps the last n events (n <= 0 means 256).
func NewTrace(n int) *Trace {
	if n <= 0 {
		n = 256
	}
	return &Trace{events: make([]Event, n)}
}

func (t *Trace) add(e Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events[t.next] = e
	t.next = (t.next + 1) % len(t.events)
	if t.next == 0 {
		t.full = true
	}
}

// Events returns the recorded events, oldest first.
func (t *Trace) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.full {
		return append([]Event(nil), t.events[:t.next]...)
	}
	out := make([]Event, 0, len(t.events))
	out = append(out, t.events[t.next:]...)
	return append(out, t.events[:t.next]...)
}
