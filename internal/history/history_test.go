package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/statekit/internal/async"
	"github.com/roach88/statekit/internal/event"
	"github.com/roach88/statekit/internal/store"
	"github.com/roach88/statekit/internal/subscriber"
	"github.com/roach88/statekit/internal/testutil"
)

func setup(t *testing.T, initial any, opts ...Option) (*store.Store, *History) {
	t.Helper()
	s := store.New(initial, store.WithLogger(testutil.QuietLogger()))
	h, err := Install(s, opts...)
	require.NoError(t, err)
	return s, h
}

func TestUndoRedo(t *testing.T) {
	s, h := setup(t, 0)
	assert.False(t, h.CanUndo())

	require.NoError(t, s.SetState(1))
	require.NoError(t, s.SetState(2))
	past, future := h.Len()
	assert.Equal(t, 2, past)
	assert.Equal(t, 0, future)

	ok, err := h.Undo()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, s.GetState())

	ok, err = h.Undo()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, s.GetState())

	ok, err = h.Undo()
	require.NoError(t, err)
	assert.False(t, ok, "nothing left to undo")

	ok, err = h.Redo()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, s.GetState())
	assert.True(t, h.CanRedo())

	ok, err = h.Redo()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, s.GetState())
	assert.False(t, h.CanRedo())
}

func TestNewCommitClearsRedo(t *testing.T) {
	s, h := setup(t, "a")
	require.NoError(t, s.SetState("b"))

	_, err := h.Undo()
	require.NoError(t, err)
	assert.True(t, h.CanRedo())

	require.NoError(t, s.SetState("c"))
	assert.False(t, h.CanRedo())
}

func TestUndoNotifiesSynchronously(t *testing.T) {
	s, h := setup(t, 0)
	require.NoError(t, s.SetState(1))
	s.Loop().Drain()

	var got []any
	s.Subscribe(&subscriber.Descriptor{Notify: func(v any) { got = append(got, v) }})

	_, err := h.Undo()
	require.NoError(t, err)
	assert.Equal(t, []any{0}, got)
}

func TestUndoVetoed(t *testing.T) {
	s, h := setup(t, 0)
	require.NoError(t, s.SetState(1))
	s.On(store.BeforeUpdate, func(ev *event.Event) { ev.PreventDefault() })

	ok, err := h.Undo()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, s.GetState())
	past, _ := h.Len()
	assert.Equal(t, 1, past, "a failed undo keeps its entry")
}

func TestUndoBusy(t *testing.T) {
	s, h := setup(t, 0)
	require.NoError(t, s.SetState(1))
	require.NoError(t, s.SetState(async.NewPromise()))

	_, err := h.Undo()
	assert.ErrorIs(t, err, ErrBusy)
}

func TestWithLimit(t *testing.T) {
	s, h := setup(t, 0, WithLimit(2))
	for i := 1; i <= 5; i++ {
		require.NoError(t, s.SetState(i))
	}
	past, _ := h.Len()
	assert.Equal(t, 2, past)

	_, _ = h.Undo()
	_, _ = h.Undo()
	assert.Equal(t, 3, s.GetState())
	assert.False(t, h.CanUndo())
}

func TestClear(t *testing.T) {
	s, h := setup(t, 0)
	require.NoError(t, s.SetState(1))
	h.Clear()
	assert.False(t, h.CanUndo())
	assert.False(t, h.CanRedo())
}
