package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadState(t *testing.T, path string) any {
	t.Helper()
	state, found, err := readState(path)
	require.NoError(t, err)
	require.True(t, found)
	return state
}

func TestApply_WritesYAML(t *testing.T) {
	state := writeFile(t, "state.yaml", "count: 1\nuser:\n  name: Ada\n")

	out, err := executeCommand(t, "apply", state, "increment:count", "set:user.name=Grace", "append:tags=x")
	require.NoError(t, err)
	assert.Contains(t, out, "name: Grace")

	assert.Equal(t, map[string]any{
		"count": 2,
		"user":  map[string]any{"name": "Grace"},
		"tags":  []any{"x"},
	}, loadState(t, state))
}

func TestApply_WritesJSON(t *testing.T) {
	state := writeFile(t, "state.json", `{"on": false}`)

	out, err := executeCommand(t, "--format", "json", "apply", state, "toggle:on")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, map[string]any{"on": true}, data["state"])
	assert.Equal(t, []any{"toggle:on"}, data["applied"])

	raw, err := os.ReadFile(state)
	require.NoError(t, err)
	assert.JSONEq(t, `{"on": true}`, string(raw))
}

func TestApply_MissingFileStartsEmpty(t *testing.T) {
	state := filepath.Join(t.TempDir(), "new.yaml")

	_, err := executeCommand(t, "apply", state, "set:greeting=hi")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"greeting": "hi"}, loadState(t, state))
}

func TestApply_DryRun(t *testing.T) {
	state := writeFile(t, "state.yaml", "count: 1\n")

	out, err := executeCommand(t, "apply", state, "increment:count=9", "--dry-run")
	require.NoError(t, err)
	assert.Equal(t, "count: 10\n", out)
	assert.Equal(t, map[string]any{"count": 1}, loadState(t, state))
}

func TestApply_SchemaRejection(t *testing.T) {
	dir := t.TempDir()
	schema := filepath.Join(dir, "schema.cue")
	require.NoError(t, os.WriteFile(schema, []byte("#State: {\n\tcount: int & <=2\n}\n"), 0644))
	state := filepath.Join(dir, "state.yaml")
	require.NoError(t, os.WriteFile(state, []byte("count: 1\n"), 0644))

	_, err := executeCommand(t, "apply", state, "increment:count", "--schema", schema)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"count": 2}, loadState(t, state))

	out, err := executeCommand(t, "--format", "json", "apply", state, "increment:count", "--schema", schema)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeRejected, resp.Error.Code)

	assert.Equal(t, map[string]any{"count": 2}, loadState(t, state), "a rejected update leaves the file alone")
}

func TestApply_BadSchema(t *testing.T) {
	schema := writeFile(t, "schema.cue", "#State: {\n")
	state := writeFile(t, "state.yaml", "count: 1\n")

	_, err := executeCommand(t, "apply", state, "increment:count", "--schema", schema)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestApply_TypeErrorIsAFailure(t *testing.T) {
	state := writeFile(t, "state.yaml", "name: Ada\n")

	_, err := executeCommand(t, "apply", state, "increment:name")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, map[string]any{"name": "Ada"}, loadState(t, state))
}

func TestApply_CommandErrors(t *testing.T) {
	state := writeFile(t, "state.yaml", "count: 1\n")

	tests := []struct {
		name string
		args []string
	}{
		{"unknown op", []string{"apply", state, "frob:x"}},
		{"bad path", []string{"apply", state, "set:[]=1"}},
		{"no ops", []string{"apply", state}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeCommand(t, tt.args...)
			require.Error(t, err)
			if tt.name != "no ops" {
				assert.Equal(t, ExitCommandError, GetExitCode(err))
			}
		})
	}
}

func TestApply_PersistsSnapshots(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "state.db")
	state := filepath.Join(dir, "state.yaml")
	require.NoError(t, os.WriteFile(state, []byte("count: 0\n"), 0644))

	out, err := executeCommand(t, "--format", "json", "apply", state, "increment:count", "increment:count", "--db", db, "--key", "counter")
	require.NoError(t, err)
	data := decodeResponse(t, out).Data.(map[string]any)
	assert.Equal(t, float64(1), data["snapshots"], "one snapshot per notification wave")

	// the next run hydrates from the database, not the file
	require.NoError(t, os.WriteFile(state, []byte("count: 0\n"), 0644))
	_, err = executeCommand(t, "apply", state, "increment:count", "--db", db, "--key", "counter")
	require.NoError(t, err)

	v, err := executeCommand(t, "get", state, "count")
	require.NoError(t, err)
	assert.Equal(t, "3\n", v)
}
