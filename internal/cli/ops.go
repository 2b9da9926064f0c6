package cli

import (
	"fmt"
	"strings"

	"github.com/roach88/statekit/internal/actions"
	"github.com/roach88/statekit/internal/store"
)

// Op is one update given on the command line:
//
//	set=VALUE          replace the whole state
//	set:PATH=VALUE     replace the value at PATH
//	merge[:PATH]=VALUE shallow-merge a map
//	append:PATH=VALUE  append to a sequence
//	remove:PATH=INDEX  delete a sequence element
//	toggle:PATH        negate a boolean
//	increment:PATH[=N] add N (default 1)
//	reset[:PATH]       restore the initial value
//
// VALUE is YAML (or JSON).
type Op struct {
	Name     string
	Path     string
	Value    any
	HasValue bool
}

// opRules lists, per op, whether a path and a value are required.
var opRules = map[string]struct{ path, value, optionalValue bool }{
	"set":       {value: true},
	"merge":     {value: true},
	"append":    {path: true, value: true},
	"remove":    {path: true, value: true},
	"toggle":    {path: true},
	"increment": {path: true, optionalValue: true},
	"reset":     {},
}

// ParseOp parses an op argument.
func ParseOp(arg string) (Op, error) {
	var op Op
	rest := arg
	if i := strings.IndexAny(rest, ":="); i >= 0 {
		op.Name = rest[:i]
		rest = rest[i:]
	} else {
		op.Name = rest
		rest = ""
	}

	rule, ok := opRules[op.Name]
	if !ok {
		return Op{}, fmt.Errorf("unknown op %q in %q", op.Name, arg)
	}

	if strings.HasPrefix(rest, ":") {
		rest = rest[1:]
		path, raw, hasValue := strings.Cut(rest, "=")
		op.Path = path
		rest = ""
		if hasValue {
			rest = "=" + raw
		}
		if op.Path == "" {
			return Op{}, fmt.Errorf("empty path in %q", arg)
		}
	}

	if strings.HasPrefix(rest, "=") {
		v, err := parseValue(rest[1:])
		if err != nil {
			return Op{}, err
		}
		op.Value = v
		op.HasValue = true
	}

	switch {
	case rule.path && op.Path == "":
		return Op{}, fmt.Errorf("%s requires a path: %s:PATH", op.Name, op.Name)
	case rule.value && !op.HasValue:
		return Op{}, fmt.Errorf("%s requires a value: %s=VALUE", op.Name, op.Name)
	case !rule.value && !rule.optionalValue && op.HasValue:
		return Op{}, fmt.Errorf("%s takes no value", op.Name)
	}
	return op, nil
}

// String formats op the way ParseOp reads it, without the value.
func (op Op) String() string {
	if op.Path == "" {
		return op.Name
	}
	return op.Name + ":" + op.Path
}

// Apply schedules op on s.
func (op Op) Apply(s *store.Store) error {
	switch op.Name {
	case "set":
		if op.Path == "" {
			return actions.Set(s)(op.Value)
		}
		return bindAndCall(actions.SetAt, s, op)
	case "merge":
		if op.Path == "" {
			return actions.Merge(s)(op.Value)
		}
		return bindAndCall(actions.MergeAt, s, op)
	case "append":
		return bindAndCall(actions.Append, s, op)
	case "remove":
		return bindAndCall(actions.Remove, s, op)
	case "toggle":
		return bindAndCall(actions.Toggle, s, op)
	case "increment":
		return bindAndCall(actions.Increment, s, op)
	case "reset":
		if op.Path == "" {
			return actions.Reset(s)()
		}
		return actions.Reset(s, op.Path)()
	}
	return fmt.Errorf("unknown op %q", op.Name)
}

func bindAndCall(factory func(*store.Store, string) (actions.Action, error), s *store.Store, op Op) error {
	action, err := factory(s, op.Path)
	if err != nil {
		return err
	}
	if !op.HasValue {
		return action()
	}
	return action(op.Value)
}
