// Package actions provides action factories: small named operations bound to
// a store and, usually, a path.
//
// Factories compile their path once. The returned Action schedules an
// updater against the store, so actions coalesce, serialize and fail exactly
// like direct setter calls: type mismatches surface as SetterException events
// rather than as errors from the Action.
package actions

import (
	"errors"
	"fmt"

	"github.com/roach88/statekit/internal/pathexpr"
	"github.com/roach88/statekit/internal/store"
)

// ErrType is wrapped when an action finds a value of the wrong type at its path.
var ErrType = errors.New("actions: unexpected value type")

// Action runs a bound operation. The meaning of args depends on the factory.
type Action func(args ...any) error

// Set replaces the whole state with args[0] (a value, updater or promise).
func Set(s *store.Store) Action {
	return func(args ...any) error {
		return s.SetState(first(args))
	}
}

// SetAt replaces the value at path with args[0]. A function argument is
// applied to the old value and may itself return a promise; a promise is
// awaited.
func SetAt(s *store.Store, path string) (Action, error) {
	if _, err := pathexpr.Compile(path); err != nil {
		return nil, err
	}
	return func(args ...any) error {
		return s.SetStateAt(path, first(args))
	}, nil
}

// Merge shallow-merges args[0] into the whole state.
func Merge(s *store.Store) Action {
	return func(args ...any) error {
		return s.MergeState(first(args))
	}
}

// MergeAt shallow-merges args[0] into the value at path.
func MergeAt(s *store.Store, path string) (Action, error) {
	if _, err := pathexpr.Compile(path); err != nil {
		return nil, err
	}
	return func(args ...any) error {
		return s.MergeStateAt(path, first(args))
	}, nil
}

// Append adds args to the end of the sequence at path. A missing sequence
// is created.
func Append(s *store.Store, path string) (Action, error) {
	return bind(s, path, func(old any, args []any) (any, error) {
		switch seq := old.(type) {
		case nil:
			return append([]any{}, args...), nil
		case []any:
			out := make([]any, 0, len(seq)+len(args))
			out = append(out, seq...)
			return append(out, args...), nil
		default:
			return nil, fmt.Errorf("%w: append to %s: got %T", ErrType, path, old)
		}
	})
}

// Remove deletes the element at index args[0] from the sequence at path.
// An out-of-range index leaves the sequence unchanged.
func Remove(s *store.Store, path string) (Action, error) {
	return bind(s, path, func(old any, args []any) (any, error) {
		seq, ok := old.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: remove from %s: got %T", ErrType, path, old)
		}
		i, ok := toInt(first(args))
		if !ok {
			return nil, fmt.Errorf("%w: remove from %s: index %T", ErrType, path, first(args))
		}
		if i < 0 || i >= len(seq) {
			return seq, nil
		}
		out := make([]any, 0, len(seq)-1)
		out = append(out, seq[:i]...)
		return append(out, seq[i+1:]...), nil
	})
}

// Toggle negates the boolean at path. A missing value becomes true.
func Toggle(s *store.Store, path string) (Action, error) {
	return bind(s, path, func(old any, _ []any) (any, error) {
		switch b := old.(type) {
		case nil:
			return true, nil
		case bool:
			return !b, nil
		default:
			return nil, fmt.Errorf("%w: toggle %s: got %T", ErrType, path, old)
		}
	})
}

// Increment adds args[0] (default 1) to the number at path. A missing value
// counts as zero.
func Increment(s *store.Store, path string) (Action, error) {
	return bind(s, path, func(old any, args []any) (any, error) {
		delta := first(args)
		if delta == nil {
			delta = 1
		}
		sum, err := add(old, delta)
		if err != nil {
			return nil, fmt.Errorf("increment %s: %w", path, err)
		}
		return sum, nil
	})
}

// Compose threads the value at path through fns in order.
func Compose(s *store.Store, path string, fns ...pathexpr.Func) (Action, error) {
	p, err := pathexpr.Compile(path)
	if err != nil {
		return nil, err
	}
	upd := pathexpr.NewUpdater(p, pathexpr.Pipeline(fns...))
	return func(args ...any) error {
		return s.SetState(store.UpdateFunc(func(root any) any {
			return upd(root, args...)
		}))
	}, nil
}

// Reset returns the whole state, or the value at path when one is given, to
// its initial value.
func Reset(s *store.Store, path ...string) Action {
	return func(...any) error {
		if len(path) == 0 {
			return s.ResetState()
		}
		return s.ResetStateAt(path[0])
	}
}

// bind builds an action whose per-element transform may fail. The first
// failure aborts the whole update.
func bind(s *store.Store, path string, fn func(old any, args []any) (any, error)) (Action, error) {
	p, err := pathexpr.Compile(path)
	if err != nil {
		return nil, err
	}
	return func(args ...any) error {
		return s.SetState(store.UpdateFuncE(func(root any) (any, error) {
			var failure error
			next := pathexpr.NewUpdater(p, pathexpr.Single(func(old any, _ ...any) any {
				v, err := fn(old, args)
				if err != nil {
					if failure == nil {
						failure = err
					}
					return old
				}
				return v
			}))(root)
			if failure != nil {
				return nil, failure
			}
			return next, nil
		}))
	}, nil
}

func first(args []any) any {
	if len(args) == 0 {
		return nil
	}
	return args[0]
}
