package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"null", nil, `null`},
		{"bool", true, `true`},
		{"int", 42, `42`},
		{"int64", int64(-7), `-7`},
		{"integral float", float64(3), `3`},
		{"fraction", 1.5, `1.5`},
		{"string", "a<b>&c", `"a<b>&c"`},
		{"array", []any{1, "x", nil}, `[1,"x",null]`},
		{"sorted keys", map[string]any{"b": 1, "a": 2, "c": []any{}}, `{"a":2,"b":1,"c":[]}`},
		{"nested", map[string]any{"z": map[string]any{"y": true}}, `{"z":{"y":true}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalCanonical_NFC(t *testing.T) {
	// "e" + combining acute accent normalizes to a single code point.
	got, err := MarshalCanonical("e\u0301")
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(got))
}

func TestMarshalCanonical_LineSeparators(t *testing.T) {
	got, err := MarshalCanonical("a\u2028b")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(got))
}

func TestMarshalCanonical_Errors(t *testing.T) {
	_, err := MarshalCanonical(math.NaN())
	assert.Error(t, err)

	_, err = MarshalCanonical(map[string]any{"f": func() {}})
	assert.Error(t, err)

	_, err = MarshalCanonical(struct{}{})
	assert.Error(t, err)
}

func TestCanonicalEqual(t *testing.T) {
	assert.True(t, CanonicalEqual(map[string]any{"n": 1}, map[string]any{"n": float64(1)}))
	assert.False(t, CanonicalEqual(map[string]any{"n": 1}, map[string]any{"n": 2}))
	assert.False(t, CanonicalEqual(func() {}, func() {}))
}

func TestDecodeJSON(t *testing.T) {
	v, err := DecodeJSON([]byte(`{"n": 3, "f": 1.25, "list": [1, {"k": 10}]}`))
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"n":    int64(3),
		"f":    1.25,
		"list": []any{int64(1), map[string]any{"k": int64(10)}},
	}, v)

	_, err = DecodeJSON([]byte(`{`))
	assert.Error(t, err)
}
