// Package event implements the synchronous broadcast channel used for
// engine lifecycle and device notifications.
//
// An Event[T] holds an ordered list of listeners. Notify invokes every
// listener in registration order on the caller's goroutine and returns only
// after the last listener returns. There is no queueing or deferral.
//
// Failure policy: a panicking listener aborts the remainder of the broadcast.
// Listeners registered after it are not invoked and the panic propagates to
// the publisher. Publishers that need isolation (the engine) recover at their
// own boundary.
package event

import "sync"

// Listener receives notifications carrying a payload of type T.
type Listener[T any] interface {
	Handle(arg T)
}

// ListenerFunc adapts a plain function to the Listener interface.
type ListenerFunc[T any] func(arg T)

// Handle calls f(arg).
func (f ListenerFunc[T]) Handle(arg T) {
	f(arg)
}

// Subscription identifies a single registration on an Event.
// The zero value never matches a registration.
type Subscription uint64

type registration[T any] struct {
	id       Subscription
	listener Listener[T]
}

// Event is an ordered, synchronous, many-listener notification channel.
//
// The listener slice is copy-on-write: Attach and Detach build a new slice,
// and Notify iterates the slice it loaded. A listener that attaches or
// detaches during a broadcast affects the next broadcast only.
//
// The zero value is ready to use. An Event must not be copied after first use.
type Event[T any] struct {
	mu        sync.Mutex
	listeners []registration[T]
	nextID    Subscription
}

// Attach registers l at the end of the listener list.
func (e *Event[T]) Attach(l Listener[T]) Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	next := make([]registration[T], len(e.listeners), len(e.listeners)+1)
	copy(next, e.listeners)
	e.listeners = append(next, registration[T]{id: e.nextID, listener: l})
	return e.nextID
}

// AttachFunc registers fn at the end of the listener list.
func (e *Event[T]) AttachFunc(fn func(arg T)) Subscription {
	return e.Attach(ListenerFunc[T](fn))
}

// Detach removes the registration identified by sub.
// Returns false if sub is not (or no longer) registered.
func (e *Event[T]) Detach(sub Subscription) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, r := range e.listeners {
		if r.id != sub {
			continue
		}
		next := make([]registration[T], 0, len(e.listeners)-1)
		next = append(next, e.listeners[:i]...)
		next = append(next, e.listeners[i+1:]...)
		e.listeners = next
		return true
	}
	return false
}

// Len returns the number of registered listeners.
func (e *Event[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}

// Notify invokes every registered listener with arg, in registration order.
func (e *Event[T]) Notify(arg T) {
	e.mu.Lock()
	listeners := e.listeners
	e.mu.Unlock()

	for _, r := range listeners {
		r.listener.Handle(arg)
	}
}
