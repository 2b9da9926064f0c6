package actions

import (
	"encoding/json"
	"fmt"
)

// add sums two numbers. Integer operands stay integers; any float operand
// makes the result a float64. nil counts as zero.
func add(a, b any) (any, error) {
	ai, aInt := toInt64(a)
	bi, bInt := toInt64(b)
	if aInt && bInt {
		_, aWide := a.(int64)
		_, bWide := b.(int64)
		if aWide || bWide {
			return ai + bi, nil
		}
		return int(ai + bi), nil
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok {
		return nil, fmt.Errorf("%w: got %T", ErrType, a)
	}
	if !bok {
		return nil, fmt.Errorf("%w: delta %T", ErrType, b)
	}
	return af + bf, nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	if i, ok := toInt64(v); ok && v != nil {
		return int(i), true
	}
	if f, ok := v.(float64); ok && f == float64(int(f)) {
		return int(f), true
	}
	return 0, false
}
