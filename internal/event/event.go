// Package event implements a publish/subscribe pipeline that produces a
// fresh cancelable Event per emission.
//
// Handlers registered for the wildcard type "*" see every emission and run
// before the handlers registered for the emitted type. A handler may veto
// whatever the event announces (PreventDefault) and independently skip the
// remaining handlers (StopPropagation).
package event

// Type names an event.
type Type string

// Wildcard receives every emission regardless of type.
const Wildcard Type = "*"

// Event is created fresh for each emission and never reused.
type Event struct {
	Type Type
	Data any

	defaultPrevented   bool
	propagationStopped bool
}

// New creates an event.
func New(t Type, data any) *Event {
	return &Event{Type: t, Data: data}
}

// PreventDefault vetoes the action this event announces.
func (e *Event) PreventDefault() {
	e.defaultPrevented = true
}

// DefaultPrevented reports whether any handler called PreventDefault.
func (e *Event) DefaultPrevented() bool {
	return e.defaultPrevented
}

// StopPropagation skips the handlers remaining for this emission.
func (e *Event) StopPropagation() {
	e.propagationStopped = true
}

// PropagationStopped reports whether any handler called StopPropagation.
func (e *Event) PropagationStopped() bool {
	return e.propagationStopped
}
