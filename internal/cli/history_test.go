package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedDB applies ops to a fresh state file with persistence under key and
// returns the database path.
func seedDB(t *testing.T, dir, key string, runs ...string) string {
	t.Helper()
	db := filepath.Join(dir, "state.db")
	state := filepath.Join(dir, key+".yaml")
	require.NoError(t, os.WriteFile(state, []byte("count: 0\n"), 0644))

	for _, op := range runs {
		_, err := executeCommand(t, "apply", state, op, "--db", db, "--key", key)
		require.NoError(t, err)
	}
	return db
}

func TestHistory_ListsSnapshots(t *testing.T) {
	db := seedDB(t, t.TempDir(), "counter", "increment:count", "increment:count=5")

	out, err := executeCommand(t, "--format", "json", "history", "--db", db, "--key", "counter")
	require.NoError(t, err)

	entries := decodeResponse(t, out).Data.([]any)
	require.Len(t, entries, 2)

	first := entries[0].(map[string]any)
	last := entries[1].(map[string]any)
	assert.Equal(t, float64(1), first["seq"])
	assert.Equal(t, map[string]any{"count": float64(1)}, first["state"])
	assert.Equal(t, map[string]any{"count": float64(6)}, last["state"])
	assert.Len(t, first["hash"], 12)
}

func TestHistory_Limit(t *testing.T) {
	db := seedDB(t, t.TempDir(), "counter", "increment:count", "increment:count", "increment:count")

	out, err := executeCommand(t, "--format", "json", "history", "--db", db, "--key", "counter", "--limit", "1")
	require.NoError(t, err)

	entries := decodeResponse(t, out).Data.([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, float64(3), entries[0].(map[string]any)["seq"])
}

func TestHistory_Keys(t *testing.T) {
	dir := t.TempDir()
	seedDB(t, dir, "b", "increment:count")
	db := seedDB(t, dir, "a", "increment:count")

	out, err := executeCommand(t, "history", "--db", db, "--keys")
	require.NoError(t, err)
	assert.Equal(t, "- a\n- b\n", out)
}

func TestHistory_Errors(t *testing.T) {
	dir := t.TempDir()
	db := seedDB(t, dir, "counter", "increment:count")

	_, err := executeCommand(t, "history", "--db", filepath.Join(dir, "missing.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.NoFileExists(t, filepath.Join(dir, "missing.db"))

	_, err = executeCommand(t, "history", "--db", db, "--key", "other")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestShortHash(t *testing.T) {
	assert.Equal(t, "abc", shortHash("abc"))
	assert.Equal(t, "0123456789ab", shortHash("0123456789abcdef"))
}
