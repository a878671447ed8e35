// Package event provides an ordered, identity-keyed listener registry used to
// broadcast build and download notifications.
package event

import (
	"fmt"
	"sync"
)

// PanicError wraps a value recovered from a listener callback.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("listener panicked: %v", e.Value)
}

// Registry holds listeners in subscription order. Listeners are compared by
// identity, so L should be a pointer or an interface holding one.
//
// The zero value is ready to use. All methods are safe for concurrent use.
type Registry[L comparable] struct {
	mu        sync.Mutex
	listeners []L
}

// NewRegistry returns a registry pre-populated with listeners.
func NewRegistry[L comparable](listeners ...L) *Registry[L] {
	r := &Registry[L]{}
	for _, l := range listeners {
		r.Subscribe(l)
	}
	return r
}

// Subscribe appends l. Subscribing a listener that is already present is a
// no-op and keeps its original position.
func (r *Registry[L]) Subscribe(l L) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexLocked(l) >= 0 {
		return
	}
	r.listeners = append(r.listeners, l)
}

// Unsubscribe removes l if present.
func (r *Registry[L]) Unsubscribe(l L) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexLocked(l)
	if i < 0 {
		return
	}
	next := make([]L, 0, len(r.listeners)-1)
	next = append(next, r.listeners[:i]...)
	r.listeners = append(next, r.listeners[i+1:]...)
}

// Contains reports whether l is subscribed.
func (r *Registry[L]) Contains(l L) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.indexLocked(l) >= 0
}

// Len returns the number of subscribed listeners.
func (r *Registry[L]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners)
}

// Clear removes every listener.
func (r *Registry[L]) Clear() {
	r.mu.Lock()
	r.listeners = nil
	r.mu.Unlock()
}

// ForEach calls action for every listener subscribed when ForEach starts, in
// subscription order, on the calling goroutine. Callbacks run without the
// registry lock held, so they may subscribe or unsubscribe; such changes apply
// to the next broadcast.
//
// A failing listener does not stop delivery. Every listener runs, panics are
// recovered as *PanicError, and the first error encountered is returned once
// the whole snapshot has been notified.
func (r *Registry[L]) ForEach(action func(L) error) error {
	var first error
	for _, l := range r.snapshot() {
		if err := invoke(action, l); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (r *Registry[L]) snapshot() []L {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.listeners) == 0 {
		return nil
	}
	out := make([]L, len(r.listeners))
	copy(out, r.listeners)
	return out
}

func (r *Registry[L]) indexLocked(l L) int {
	for i, existing := range r.listeners {
		if existing == l {
			return i
		}
	}
	return -1
}

func invoke[L any](action func(L) error, l L) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v}
		}
	}()
	return action(l)
}
