package buildsys

import (
	"sync"
	"time"
)

// Kind tags a build Event.
type Kind int

const (
	KindStarted Kind = iota
	KindComplete
	KindFailure
)

func (k Kind) String() string {
	switch k {
	case KindStarted:
		return "started"
	case KindComplete:
		return "complete"
	case KindFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Event is a build lifecycle notification. Result is set for KindComplete and
// Err for KindFailure. Events of one task run share a RunID; install failures
// carry an empty RunID.
type Event struct {
	Kind   Kind
	System *System
	RunID  string
	Time   time.Time
	Result Result
	Err    error
}

// Listener receives build lifecycle events.
type Listener interface {
	BuildStarted(Event)
	BuildComplete(Event)
	BuildFailure(Event)
}

// ListenerFuncs adapts plain functions to Listener. Use it by pointer so it
// can be unsubscribed.
type ListenerFuncs struct {
	Started  func(Event)
	Complete func(Event)
	Failure  func(Event)
}

func (f *ListenerFuncs) BuildStarted(e Event) {
	if f.Started != nil {
		f.Started(e)
	}
}

func (f *ListenerFuncs) BuildComplete(e Event) {
	if f.Complete != nil {
		f.Complete(e)
	}
}

func (f *ListenerFuncs) BuildFailure(e Event) {
	if f.Failure != nil {
		f.Failure(e)
	}
}

// Recorder is a Listener that keeps every event it receives.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) BuildStarted(e Event)  { r.add(e) }
func (r *Recorder) BuildComplete(e Event) { r.add(e) }
func (r *Recorder) BuildFailure(e Event)  { r.add(e) }

func (r *Recorder) add(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events in arrival order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns the kinds of the recorded events in arrival order.
func (r *Recorder) Kinds() []Kind {
	events := r.Events()
	kinds := make([]Kind, len(events))
	for i, e := range events {
		kinds[i] = e.Kind
	}
	return kinds
}
