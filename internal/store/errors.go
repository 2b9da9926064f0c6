package store

import (
	"errors"
	"fmt"
)

var (
	// ErrAsyncValue is returned by SetStateSync when the update resolves to
	// a promise.
	ErrAsyncValue = errors.New("store: synchronous update produced a promise")

	// ErrWaiting is returned by synchronous operations while an asynchronous
	// update is in flight.
	ErrWaiting = errors.New("store: awaiting an asynchronous update")

	// ErrSetterPanic is wrapped by the SetterException payload when an
	// updater function panics.
	ErrSetterPanic = errors.New("store: updater panicked")

	// ErrWildcardReset is returned by ResetStateAt for wildcard paths, whose
	// matched elements have no single counterpart in the initial value.
	ErrWildcardReset = errors.New("store: cannot reset a wildcard path")
)

// SetterError is the payload of SetterException and SetterRejection events.
type SetterError struct {
	// Path is the target path, "@" for whole-state updates.
	Path string

	// Err is the updater's error, the promise's rejection reason or the
	// reason a middleware failed the transition.
	Err error
}

// Error implements the error interface.
func (e *SetterError) Error() string {
	return fmt.Sprintf("update at %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying reason.
func (e *SetterError) Unwrap() error {
	return e.Err
}

// IsSetterError returns true if the error is a SetterError.
// Uses errors.As to handle wrapped errors.
func IsSetterError(err error) bool {
	var se *SetterError
	return errors.As(err, &se)
}
