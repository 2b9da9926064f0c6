package pathexpr

import (
	"errors"
	"fmt"
)

// ErrSyntax is wrapped by every PathSyntaxError.
var ErrSyntax = errors.New("pathexpr: syntax error")

// PathSyntaxError reports a path expression that cannot be compiled.
type PathSyntaxError struct {
	// Path is the offending expression, formatted with %v when it was not a string.
	Path string

	// Reason is a human-readable description.
	Reason string
}

// Error implements the error interface.
func (e *PathSyntaxError) Error() string {
	return fmt.Sprintf("%s: %s (path=%q)", ErrSyntax, e.Reason, e.Path)
}

// Unwrap returns ErrSyntax so callers can use errors.Is.
func (e *PathSyntaxError) Unwrap() error {
	return ErrSyntax
}

// IsSyntaxError returns true if err is or wraps a PathSyntaxError.
func IsSyntaxError(err error) bool {
	var pe *PathSyntaxError
	return errors.As(err, &pe)
}
