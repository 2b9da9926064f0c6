package pathexpr

import (
	"fmt"
	"strconv"
	"strings"
)

// RootMarker is the path that addresses the whole value.
const RootMarker = "@"

// WildcardToken is the segment that fans out over every sequence element.
const WildcardToken = "*"

// MaxIndex is the largest numeric segment a path may hold. Writing through an
// index grows the sequence to index+1 elements.
const MaxIndex = 1 << 20

// SegmentKind distinguishes the three segment shapes.
type SegmentKind uint8

const (
	// KindName addresses a keyed-map member.
	KindName SegmentKind = iota + 1
	// KindIndex addresses a sequence element (and the map member with the
	// same decimal key).
	KindIndex
	// KindWildcard addresses every element of a sequence.
	KindWildcard
)

// String returns the kind name for diagnostics.
func (k SegmentKind) String() string {
	switch k {
	case KindName:
		return "name"
	case KindIndex:
		return "index"
	case KindWildcard:
		return "wildcard"
	default:
		return fmt.Sprintf("SegmentKind(%d)", k)
	}
}

// Segment is one compiled path step.
type Segment struct {
	Kind  SegmentKind
	Name  string // raw token; also the map key for KindIndex
	Index int    // valid for KindIndex
}

// String returns the raw token.
func (s Segment) String() string {
	return s.Name
}

// Path is a compiled path expression. Paths are immutable and safe to share.
type Path struct {
	expr     string
	segs     []Segment
	wildcard bool
}

// String returns the source expression.
func (p *Path) String() string {
	return p.expr
}

// IsRoot reports whether the path addresses the whole value.
func (p *Path) IsRoot() bool {
	return len(p.segs) == 0
}

// HasWildcard reports whether any segment is a wildcard.
func (p *Path) HasWildcard() bool {
	return p.wildcard
}

// Len returns the number of segments.
func (p *Path) Len() int {
	return len(p.segs)
}

// Segments returns a copy of the compiled segments.
func (p *Path) Segments() []Segment {
	out := make([]Segment, len(p.segs))
	copy(out, p.segs)
	return out
}

// Compile parses expr, consulting the package-level cache first.
//
// Returns *PathSyntaxError when expr yields zero segments.
func Compile(expr string) (*Path, error) {
	return defaultCache.Compile(expr)
}

// MustCompile is like Compile but panics on error.
// Intended for package-level path variables.
func MustCompile(expr string) *Path {
	p, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// FromValue compiles a dynamically typed path, as found in YAML scenarios or
// plugin configuration. Non-string values are rejected with *PathSyntaxError.
func FromValue(v any) (*Path, error) {
	switch p := v.(type) {
	case string:
		return Compile(p)
	case *Path:
		if p == nil {
			return nil, &PathSyntaxError{Path: "<nil>", Reason: "path must be a string"}
		}
		return p, nil
	default:
		return nil, &PathSyntaxError{
			Path:   fmt.Sprintf("%v", v),
			Reason: fmt.Sprintf("path must be a string, got %T", v),
		}
	}
}

// compile does the actual parsing; it never touches the cache.
func compile(expr string) (*Path, error) {
	if expr == RootMarker {
		return &Path{expr: expr}, nil
	}

	tokens := tokenize(expr)
	if len(tokens) > 0 && tokens[0] == RootMarker {
		tokens = tokens[1:]
		// "@." and "@[]" say nothing beyond the root marker itself
		if len(tokens) == 0 {
			return &Path{expr: expr}, nil
		}
	}
	if len(tokens) == 0 {
		return nil, &PathSyntaxError{Path: expr, Reason: "expression has no segments"}
	}

	p := &Path{expr: expr, segs: make([]Segment, 0, len(tokens))}
	for _, tok := range tokens {
		seg := Segment{Kind: KindName, Name: tok}
		switch {
		case tok == WildcardToken:
			seg.Kind = KindWildcard
			p.wildcard = true
		case isIndex(tok):
			n, err := strconv.Atoi(tok)
			if err != nil || n > MaxIndex {
				return nil, &PathSyntaxError{Path: expr, Reason: fmt.Sprintf("index %q out of range", tok)}
			}
			seg.Kind = KindIndex
			seg.Index = n
		}
		p.segs = append(p.segs, seg)
	}
	return p, nil
}

// tokenize splits on '.', '[' and ']' and drops empty tokens.
func tokenize(expr string) []string {
	return strings.FieldsFunc(expr, func(r rune) bool {
		return r == '.' || r == '[' || r == ']'
	})
}

func isIndex(tok string) bool {
	if tok == "" {
		return false
	}
	for i := 0; i < len(tok); i++ {
		if tok[i] < '0' || tok[i] > '9' {
			return false
		}
	}
	return true
}
