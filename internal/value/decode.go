package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// DecodeJSON parses data into a state tree. Integral numbers decode as int64
// and the rest as float64, so integers round-trip through persistence
// without turning into floats.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return normalizeNumbers(v), nil
}

func normalizeNumbers(v any) any {
	switch n := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
			return i
		}
		f, err := n.Float64()
		if err != nil {
			return string(n)
		}
		return f
	case []any:
		for i := range n {
			n[i] = normalizeNumbers(n[i])
		}
		return n
	case map[string]any:
		for k, e := range n {
			n[k] = normalizeNumbers(e)
		}
		return n
	default:
		return v
	}
}
