// Package validate checks store values against CUE schemas.
//
// A schema source is compiled once. When it defines #State that definition is
// the constraint, otherwise the whole source is. Values are encoded into CUE,
// unified with the constraint and must come out concrete and conflict-free.
//
//	schema, err := validate.Compile(`#State: {count: int & >=0}`)
//	s.Use(validate.Interceptor(schema))
package validate

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/statekit/internal/middleware"
	"github.com/roach88/statekit/internal/store"
)

// StateDefinition is the definition used as the constraint when present.
const StateDefinition = "#State"

// Schema is a compiled CUE constraint.
type Schema struct {
	// cue values share a runtime that is not safe for concurrent use
	mu         sync.Mutex
	ctx        *cue.Context
	constraint cue.Value
}

// ValidationError reports the first conflict found in a value.
type ValidationError struct {
	Path    string
	Message string
	Pos     token.Pos
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("validate: ")
	if e.Pos.IsValid() {
		fmt.Fprintf(&b, "%s:%d:%d: ", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column())
	}
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// Compile builds a schema from CUE source.
func Compile(src string) (*Schema, error) {
	return compile("schema.cue", src)
}

// CompileFile builds a schema from a CUE file.
func CompileFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return compile(path, string(data))
}

func compile(name, src string) (*Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(name))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if def := v.LookupPath(cue.ParsePath(StateDefinition)); def.Exists() {
		v = def
	}
	return &Schema{ctx: ctx, constraint: v}, nil
}

// Validate returns a *ValidationError when v does not satisfy the schema.
func (s *Schema) Validate(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.ctx.Encode(v)
	if err := data.Err(); err != nil {
		return fmt.Errorf("validate: encode value: %w", err)
	}
	unified := s.constraint.Unify(data)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// Interceptor returns store middleware that fails every transition whose
// next value does not satisfy schema. The store reports the failure as a
// SetterRejection and keeps the previous value.
func Interceptor(schema *Schema) middleware.Interceptor[*store.Store] {
	return func(c *middleware.Context[*store.Store], next middleware.Next) {
		if err := schema.Validate(c.Next); err != nil {
			c.Fail(err)
			return
		}
		next()
	}
}

// formatCUEError keeps the first error with its path and position.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &ValidationError{Message: err.Error()}
	}

	first := errs[0]
	verr := &ValidationError{
		Path:    valuePath(first),
		Message: message(first),
	}
	if positions := errors.Positions(first); len(positions) > 0 {
		verr.Pos = positions[0]
	}
	return verr
}

// valuePath is the error path relative to the validated value.
func valuePath(err errors.Error) string {
	p := errors.Path(err)
	if len(p) > 0 && p[0] == StateDefinition {
		p = p[1:]
	}
	return strings.Join(p, ".")
}

func message(err errors.Error) string {
	format, args := err.Msg()
	if format == "" {
		return err.Error()
	}
	return fmt.Sprintf(format, args...)
}

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
