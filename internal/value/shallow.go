package value

import "reflect"

// Copy returns a shallow copy of maps and sequences; scalars are returned as is.
func Copy(v any) any {
	switch n := v.(type) {
	case map[string]any:
		cp := make(map[string]any, len(n))
		for k, e := range n {
			cp[k] = e
		}
		return cp
	case []any:
		cp := make([]any, len(n))
		copy(cp, n)
		return cp
	default:
		return v
	}
}

// Merge shallow-combines partial into old without mutating either.
//
//   - map into map: partial keys override, other keys are kept
//   - sequence into sequence: partial indices override (extending old when
//     partial is longer), other indices are kept
//   - nil partial: old is kept
//   - anything else: partial replaces old
func Merge(old, partial any) any {
	switch p := partial.(type) {
	case nil:
		return old
	case map[string]any:
		o, ok := old.(map[string]any)
		if !ok {
			return partial
		}
		out := make(map[string]any, len(o)+len(p))
		for k, v := range o {
			out[k] = v
		}
		for k, v := range p {
			out[k] = v
		}
		return out
	case []any:
		o, ok := old.([]any)
		if !ok {
			return partial
		}
		size := len(o)
		if len(p) > size {
			size = len(p)
		}
		out := make([]any, size)
		copy(out, o)
		copy(out, p)
		return out
	default:
		return partial
	}
}

// Same reports reference identity: maps and sequences must share backing
// storage, comparable scalars must be ==. Uncomparable scalars are never Same.
func Same(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Map, reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	case reflect.Func:
		return false
	}
	if !va.Comparable() {
		return false
	}
	return a == b
}

// ShallowEqual compares one level deep: two maps (or sequences) are equal
// when they hold Same members under the same keys (indices); otherwise it
// falls back to Same.
func ShallowEqual(a, b any) bool {
	if Same(a, b) {
		return true
	}
	switch x := a.(type) {
	case map[string]any:
		y, ok := b.(map[string]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, v := range x {
			w, ok := y[k]
			if !ok || !Same(v, w) {
				return false
			}
		}
		return true
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Same(x[i], y[i]) {
				return false
			}
		}
		return true
	}
	return false
}
