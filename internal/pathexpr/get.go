package pathexpr

// Get reads the value at p. A wildcard yields a []any holding the read of
// every element; missing members yield nil.
func (p *Path) Get(root any) any {
	return get(root, p.segs)
}

// GetAt compiles expr and reads it from root.
func GetAt(root any, expr string) (any, error) {
	p, err := Compile(expr)
	if err != nil {
		return nil, err
	}
	return p.Get(root), nil
}

func get(node any, segs []Segment) any {
	if len(segs) == 0 {
		return node
	}
	seg, rest := segs[0], segs[1:]

	switch n := node.(type) {
	case []any:
		switch seg.Kind {
		case KindWildcard:
			out := make([]any, len(n))
			for i, el := range n {
				out[i] = get(el, rest)
			}
			return out
		case KindIndex:
			if seg.Index >= len(n) {
				return nil
			}
			return get(n[seg.Index], rest)
		}
		return nil
	case map[string]any:
		if seg.Kind == KindWildcard {
			return nil
		}
		v, ok := n[seg.Name]
		if !ok {
			return nil
		}
		return get(v, rest)
	default:
		return nil
	}
}
