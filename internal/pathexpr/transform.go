package pathexpr

// Func computes the new value at a path from the old one. args are the
// extra arguments given to the Updater.
type Func func(old any, args ...any) any

type transformKind uint8

const (
	transformImplicit transformKind = iota
	transformSingle
	transformPipeline
)

// Transform is the tagged variant applied at the end of a path:
// Single(fn), Pipeline(fn...) or Implicit(). The zero value is Implicit.
type Transform struct {
	kind transformKind
	fn   Func
	fns  []Func
}

// Single applies fn to the old value.
func Single(fn Func) Transform {
	if fn == nil {
		return Implicit()
	}
	return Transform{kind: transformSingle, fn: fn}
}

// Pipeline threads the old value through fns in order; each function
// receives the previous function's result and the same args.
func Pipeline(fns ...Func) Transform {
	cp := make([]Func, 0, len(fns))
	for _, fn := range fns {
		if fn != nil {
			cp = append(cp, fn)
		}
	}
	return Transform{kind: transformPipeline, fns: cp}
}

// Implicit uses the first call argument: a function of the old value is
// applied to it, anything else replaces it. With no arguments the new value
// is nil.
func Implicit() Transform {
	return Transform{}
}

// Replace always yields v, regardless of the old value or call arguments.
func Replace(v any) Transform {
	return Single(func(any, ...any) any { return v })
}

// Apply runs the transform against old.
func (t Transform) Apply(old any, args ...any) any {
	switch t.kind {
	case transformSingle:
		return t.fn(old, args...)
	case transformPipeline:
		acc := old
		for _, fn := range t.fns {
			acc = fn(acc, args...)
		}
		return acc
	default:
		if len(args) == 0 {
			return nil
		}
		return ApplyValue(args[0], old)
	}
}

// ApplyValue resolves a "value or function of old value" argument.
// Recognised function shapes are Func, func(any) any and
// func(any) (any, error); an error result yields the old value unchanged.
func ApplyValue(v, old any) any {
	switch fn := v.(type) {
	case Func:
		return fn(old)
	case func(any) any:
		return fn(old)
	case func(any, ...any) any:
		return fn(old)
	case func(any) (any, error):
		next, err := fn(old)
		if err != nil {
			return old
		}
		return next
	default:
		return v
	}
}
