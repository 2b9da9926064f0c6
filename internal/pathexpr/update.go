package pathexpr

// Updater produces a new root with the transform applied at its path.
// args are forwarded to the transform.
type Updater func(root any, args ...any) any

// NewUpdater builds an Updater for a compiled path.
//
// The root path returns the transform itself: no copying happens and scalar
// roots are passed straight through.
func NewUpdater(p *Path, t Transform) Updater {
	if p.IsRoot() {
		return t.Apply
	}
	segs := p.segs
	return func(root any, args ...any) any {
		return descend(root, segs, t, args)
	}
}

// Update compiles expr and builds its Updater.
func Update(expr string, t Transform) (Updater, error) {
	p, err := Compile(expr)
	if err != nil {
		return nil, err
	}
	return NewUpdater(p, t), nil
}

// Set returns root with v stored at p.
func Set(p *Path, root, v any) any {
	return NewUpdater(p, Replace(v))(root)
}

// descend copies node, applies the first segment and recurses with the rest.
// One stack frame per path depth.
func descend(node any, segs []Segment, t Transform, args []any) any {
	seg, rest := segs[0], segs[1:]

	switch n := node.(type) {
	case []any:
		return descendSequence(n, seg, rest, t, args)
	case map[string]any:
		return descendMap(n, seg, rest, t, args)
	case nil:
		// Absent root: vivify the container the first segment expects.
		return descend(vivify(seg), segs, t, args)
	default:
		// Scalars stop descent.
		return node
	}
}

func descendSequence(n []any, seg Segment, rest []Segment, t Transform, args []any) any {
	switch seg.Kind {
	case KindWildcard:
		cp := make([]any, len(n))
		for i, el := range n {
			if len(rest) == 0 {
				cp[i] = t.Apply(el, args...)
			} else {
				cp[i] = descend(el, rest, t, args)
			}
		}
		return cp
	case KindIndex:
		size := len(n)
		if seg.Index >= size {
			size = seg.Index + 1
		}
		cp := make([]any, size)
		copy(cp, n)
		cp[seg.Index] = step(cp[seg.Index], rest, t, args)
		return cp
	default:
		// Named members on a sequence are not addressable.
		return n
	}
}

func descendMap(n map[string]any, seg Segment, rest []Segment, t Transform, args []any) any {
	if seg.Kind == KindWildcard {
		return n
	}
	cp := make(map[string]any, len(n)+1)
	for k, v := range n {
		cp[k] = v
	}
	cp[seg.Name] = step(cp[seg.Name], rest, t, args)
	return cp
}

// step resolves one member: transform it when it is the last segment,
// otherwise recurse, vivifying a missing member first.
func step(old any, rest []Segment, t Transform, args []any) any {
	if len(rest) == 0 {
		return t.Apply(old, args...)
	}
	if old == nil {
		old = vivify(rest[0])
	}
	return descend(old, rest, t, args)
}

// vivify creates the container a segment will index into.
func vivify(next Segment) any {
	if next.Kind == KindIndex || next.Kind == KindWildcard {
		return []any{}
	}
	return map[string]any{}
}
