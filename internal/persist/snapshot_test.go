package persist

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSnapshot_AssignsSeqPerKey(t *testing.T) {
	d := createTestDB(t)
	ctx := context.Background()

	s1, written, err := d.WriteSnapshot(ctx, "app", map[string]any{"n": 1})
	require.NoError(t, err)
	assert.True(t, written)
	assert.Equal(t, int64(1), s1.Seq)

	s2, _, err := d.WriteSnapshot(ctx, "app", map[string]any{"n": 2})
	require.NoError(t, err)
	assert.Equal(t, int64(2), s2.Seq)

	other, _, err := d.WriteSnapshot(ctx, "other", "x")
	require.NoError(t, err)
	assert.Equal(t, int64(1), other.Seq)
}

func TestWriteSnapshot_SkipsDuplicateOfLatest(t *testing.T) {
	d := createTestDB(t)
	ctx := context.Background()

	first, _, err := d.WriteSnapshot(ctx, "app", map[string]any{"a": 1, "b": []any{true}})
	require.NoError(t, err)

	// Same content, different key order: same canonical JSON.
	again, written, err := d.WriteSnapshot(ctx, "app", map[string]any{"b": []any{true}, "a": 1})
	require.NoError(t, err)
	assert.False(t, written)
	assert.Equal(t, first.Seq, again.Seq)
	assert.Equal(t, first.Hash, again.Hash)

	list, err := d.List(ctx, "app")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestWriteSnapshot_RevertIsWritten(t *testing.T) {
	d := createTestDB(t)
	ctx := context.Background()

	for _, v := range []any{1, 2, 1} {
		_, written, err := d.WriteSnapshot(ctx, "app", v)
		require.NoError(t, err)
		assert.True(t, written)
	}
}

func TestWriteSnapshot_Unencodable(t *testing.T) {
	d := createTestDB(t)
	_, _, err := d.WriteSnapshot(context.Background(), "app", math.NaN())
	assert.Error(t, err)
}

func TestLatestAndList(t *testing.T) {
	d := createTestDB(t)
	ctx := context.Background()

	_, found, err := d.Latest(ctx, "app")
	require.NoError(t, err)
	assert.False(t, found)

	list, err := d.List(ctx, "app")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	_, _, err = d.WriteSnapshot(ctx, "app", map[string]any{"n": 1, "f": 1.5})
	require.NoError(t, err)
	_, _, err = d.WriteSnapshot(ctx, "app", map[string]any{"n": 2, "f": 1.5})
	require.NoError(t, err)

	latest, found, err := d.Latest(ctx, "app")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(2), latest.Seq)
	// Integers decode as int64, other numbers as float64.
	assert.Equal(t, map[string]any{"n": int64(2), "f": 1.5}, latest.State)

	list, err = d.List(ctx, "app")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(1), list[0].Seq)
	assert.Equal(t, int64(2), list[1].Seq)

	keys, err := d.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"app"}, keys)
}

func TestHash_DomainSeparated(t *testing.T) {
	h, err := Hash(map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Len(t, h, 64)

	canonical := []byte(`{"a":1}`)
	assert.Equal(t, h, hashWithDomain(DomainSnapshot, canonical))
	assert.NotEqual(t, h, hashWithDomain("other/v1", canonical))
}
