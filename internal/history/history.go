// Package history is an undo/redo plugin.
//
// A middleware interceptor records the previous value of every commit. Undo
// and Redo travel by committing a recorded value with SetStateSync, so they
// pass through the same veto and middleware stages as any other update and
// notify subscribers before returning.
package history

import (
	"errors"
	"fmt"

	"github.com/roach88/statekit/internal/middleware"
	"github.com/roach88/statekit/internal/store"
)

// DefaultLimit is the number of undo steps kept.
const DefaultLimit = 100

// ErrBusy is returned when travelling while the store awaits an
// asynchronous update.
var ErrBusy = errors.New("history: store is awaiting an asynchronous update")

// History records past values of one store.
type History struct {
	store *store.Store
	limit int

	past   []any
	future []any

	travelling bool
}

// Option configures History.
type Option func(*History)

// WithLimit bounds the undo stack. The oldest entries are dropped first.
//
// Default: 100 (DefaultLimit)
func WithLimit(n int) Option {
	return func(h *History) {
		if n > 0 {
			h.limit = n
		}
	}
}

// Plugin returns the initializer to pass to Store.Plugin. The plugin result
// is the *History.
func Plugin(opts ...Option) store.PluginFunc {
	return func(s *store.Store) (any, error) {
		h := &History{store: s, limit: DefaultLimit}
		for _, opt := range opts {
			opt(h)
		}
		s.Use(h.intercept)
		return h, nil
	}
}

// Install registers the plugin on s.
func Install(s *store.Store, opts ...Option) (*History, error) {
	r, err := s.Plugin(Plugin(opts...))
	if err != nil {
		return nil, err
	}
	return r.(*History), nil
}

func (h *History) intercept(c *middleware.Context[*store.Store], next middleware.Next) {
	if !h.travelling {
		h.past = append(h.past, c.Previous)
		if len(h.past) > h.limit {
			h.past = h.past[len(h.past)-h.limit:]
		}
		h.future = nil
	}
	next()
}

// Undo restores the value before the most recent commit. It reports false
// when there is nothing to undo or the transition did not commit.
func (h *History) Undo() (bool, error) {
	if len(h.past) == 0 {
		return false, nil
	}
	target := h.past[len(h.past)-1]
	replaced, ok, err := h.travel(target)
	if !ok || err != nil {
		return false, err
	}
	h.future = append(h.future, replaced)
	h.past = h.past[:len(h.past)-1]
	return true, nil
}

// Redo re-applies the most recently undone value.
func (h *History) Redo() (bool, error) {
	if len(h.future) == 0 {
		return false, nil
	}
	target := h.future[len(h.future)-1]
	replaced, ok, err := h.travel(target)
	if !ok || err != nil {
		return false, err
	}
	h.past = append(h.past, replaced)
	h.future = h.future[:len(h.future)-1]
	return true, nil
}

// travel commits target without recording it and returns the value it
// replaced.
func (h *History) travel(target any) (replaced any, ok bool, err error) {
	if h.store.Phase() == store.Waiting {
		return nil, false, ErrBusy
	}
	replaced = h.store.GetState()

	h.travelling = true
	defer func() { h.travelling = false }()

	ok, err = h.store.SetStateSync(store.UpdateFunc(func(any) any { return target }))
	if err != nil {
		return nil, false, fmt.Errorf("history: %w", err)
	}
	return replaced, ok, nil
}

// CanUndo reports whether Undo has anything to restore.
func (h *History) CanUndo() bool { return len(h.past) > 0 }

// CanRedo reports whether Redo has anything to re-apply.
func (h *History) CanRedo() bool { return len(h.future) > 0 }

// Len returns the sizes of the undo and redo stacks.
func (h *History) Len() (past, future int) { return len(h.past), len(h.future) }

// Clear forgets all recorded values.
func (h *History) Clear() {
	h.past = nil
	h.future = nil
}
