package transport

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Emitter is a listener registry with synchronous delivery.
// Concrete transports embed it to provide On and Once.
type Emitter struct {
	listeners map[EventName][]*listener
	mu        sync.RWMutex
}

type listener struct {
	handler Handler
	once    bool
	fired   atomic.Bool
}

// On registers a persistent listener for an event.
func (e *Emitter) On(event EventName, handler Handler) error {
	return e.add(event, handler, false)
}

// Once registers a listener fired at most once.
func (e *Emitter) Once(event EventName, handler Handler) error {
	return e.add(event, handler, true)
}

func (e *Emitter) add(event EventName, handler Handler, once bool) error {
	if !event.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	if handler == nil {
		return ErrNilHandler
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.listeners == nil {
		e.listeners = make(map[EventName][]*listener)
	}
	e.listeners[event] = append(e.listeners[event], &listener{handler: handler, once: once})
	return nil
}

// Emit delivers an event to its listeners in registration order.
// Listeners run on the caller's goroutine without the registry lock held,
// so they may register further listeners.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	snapshot := make([]*listener, len(e.listeners[ev.Name]))
	copy(snapshot, e.listeners[ev.Name])
	e.mu.RUnlock()

	fired := false
	for _, l := range snapshot {
		if l.once {
			if !l.fired.CompareAndSwap(false, true) {
				continue
			}
			fired = true
		}
		l.handler(ev)
	}

	if fired {
		e.prune(ev.Name)
	}
}

// prune drops fired one-shot listeners.
func (e *Emitter) prune(event EventName) {
	e.mu.Lock()
	defer e.mu.Unlock()

	kept := e.listeners[event][:0]
	for _, l := range e.listeners[event] {
		if l.once && l.fired.Load() {
			continue
		}
		kept = append(kept, l)
	}
	e.listeners[event] = kept
}

// ListenerCount returns the number of listeners registered for an event.
func (e *Emitter) ListenerCount(event EventName) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners[event])
}

// TotalListeners returns the number of listeners across all events.
func (e *Emitter) TotalListeners() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	total := 0
	for _, ls := range e.listeners {
		total += len(ls)
	}
	return total
}
