package event

import "sync"

// Handler receives an emitted event.
type Handler func(*Event)

// HandlerID identifies a registration for Off.
type HandlerID uint64

type registration struct {
	id      HandlerID
	handler Handler
	once    bool
}

// Emitter dispatches events to registered handlers.
//
// Emission cost is proportional to the handlers registered for the emitted
// type plus wildcard handlers; with none registered, Emit allocates only the
// event itself.
//
// Thread-safety: registration and emission are safe for concurrent use.
// The lock is never held while a handler runs, so handlers may register,
// deregister and emit.
type Emitter struct {
	mu       sync.Mutex
	handlers map[Type][]registration
	nextID   HandlerID
}

// NewEmitter creates an emitter with no handlers.
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[Type][]registration)}
}

// On registers h for events of type t (or every event for Wildcard).
func (e *Emitter) On(t Type, h Handler) HandlerID {
	return e.add(t, h, false)
}

// Once registers h to run at most once. It is deregistered when an
// emission reaches it, just before it runs.
func (e *Emitter) Once(t Type, h Handler) HandlerID {
	return e.add(t, h, true)
}

func (e *Emitter) add(t Type, h Handler, once bool) HandlerID {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	e.handlers[t] = append(e.handlers[t], registration{id: id, handler: h, once: once})
	return id
}

// Off removes the registration id from type t.
// Returns false if no such registration exists.
func (e *Emitter) Off(t Type, id HandlerID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.removeLocked(t, id)
}

func (e *Emitter) removeLocked(t Type, id HandlerID) bool {
	regs := e.handlers[t]
	for i, r := range regs {
		if r.id != id {
			continue
		}
		// Copy-on-write so snapshots taken by in-flight emissions stay valid.
		next := make([]registration, 0, len(regs)-1)
		next = append(next, regs[:i]...)
		next = append(next, regs[i+1:]...)
		if len(next) == 0 {
			delete(e.handlers, t)
		} else {
			e.handlers[t] = next
		}
		return true
	}
	return false
}

// Count returns the number of handlers registered for exactly t.
func (e *Emitter) Count(t Type) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlers[t])
}

// Emit dispatches a fresh event to wildcard handlers, then to handlers of
// type t, each group in registration order, until one stops propagation.
func (e *Emitter) Emit(t Type, data any) *Event {
	ev := New(t, data)

	e.mu.Lock()
	wild := e.handlers[Wildcard]
	var typed []registration
	if t != Wildcard {
		typed = e.handlers[t]
	}
	if len(wild) == 0 && len(typed) == 0 {
		e.mu.Unlock()
		return ev
	}
	// Slices are replaced, never mutated, on removal; appends past len are
	// invisible to these headers.
	e.mu.Unlock()

	if e.dispatch(ev, wild) {
		return ev
	}
	e.dispatch(ev, typed)
	return ev
}

// claimOnce detaches a once-registration. It reports false when another
// emission or Off got there first.
func (e *Emitter) claimOnce(id HandlerID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for t, regs := range e.handlers {
		for _, candidate := range regs {
			if candidate.id == id {
				return e.removeLocked(t, id)
			}
		}
	}
	return false
}

// dispatch runs regs in order and reports whether propagation was stopped.
// A once-handler is detached only when dispatch reaches it.
func (e *Emitter) dispatch(ev *Event, regs []registration) bool {
	for _, r := range regs {
		if r.once && !e.claimOnce(r.id) {
			continue
		}
		r.handler(ev)
		if ev.propagationStopped {
			return true
		}
	}
	return false
}
