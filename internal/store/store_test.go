package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/statekit/internal/async"
	"github.com/roach88/statekit/internal/event"
	"github.com/roach88/statekit/internal/middleware"
	"github.com/roach88/statekit/internal/pathexpr"
	"github.com/roach88/statekit/internal/subscriber"
	"github.com/roach88/statekit/internal/testutil"
	"github.com/roach88/statekit/internal/value"
)

func newTestStore(t *testing.T, initial any, opts ...Option) (*Store, *testutil.Recorder) {
	t.Helper()
	rec := testutil.NewRecorder()
	base := []Option{
		WithLogger(testutil.QuietLogger()),
		WithID("test-store"),
		WithHandler(event.Wildcard, rec.Handler()),
	}
	return New(initial, append(base, opts...)...), rec
}

func increment(v any) any { return v.(int) + 1 }

func lastTransition(t *testing.T, rec *testutil.Recorder, typ event.Type) *Transition {
	t.Helper()
	r, ok := rec.Last(typ)
	require.True(t, ok, "no %s recorded", typ)
	tr, ok := r.Data.(*Transition)
	require.True(t, ok)
	return tr
}

func lastSetterError(t *testing.T, rec *testutil.Recorder, typ event.Type) *SetterError {
	t.Helper()
	r, ok := rec.Last(typ)
	require.True(t, ok, "no %s recorded", typ)
	se, ok := r.Data.(*SetterError)
	require.True(t, ok)
	return se
}

func nexts(rec *testutil.Recorder, typ event.Type) []any {
	var out []any
	for _, r := range rec.Records() {
		if r.Type == typ {
			out = append(out, r.Data.(*Transition).Next)
		}
	}
	return out
}

func TestNew_InitializeEvents(t *testing.T) {
	s, rec := newTestStore(t, 1)

	assert.Equal(t, []event.Type{BeforeInitialize, AfterInitialize}, rec.Types())
	assert.Equal(t, 1, s.GetState())
	assert.Equal(t, 1, s.GetInitialState())
	assert.Equal(t, "test-store", s.ID())
	assert.Equal(t, Idle, s.Phase())
}

func TestNew_BeforeInitializeMayReplace(t *testing.T) {
	s, _ := newTestStore(t, 1, WithHandler(BeforeInitialize, func(ev *event.Event) {
		ev.Data.(*Transition).Next = 42
	}))
	assert.Equal(t, 42, s.GetState())
	assert.Equal(t, 42, s.GetInitialState())
}

func TestNew_DefaultID(t *testing.T) {
	s := New(nil, WithLogger(testutil.QuietLogger()))
	assert.Len(t, s.ID(), 36)
}

func TestSetState_CoalescesNotifications(t *testing.T) {
	s, rec := newTestStore(t, 1)

	require.NoError(t, s.SetState(UpdateFunc(increment)))
	require.NoError(t, s.SetState(func(v any) any { return v.(int) * 10 }))

	// Commits are synchronous; the notification is deferred.
	assert.Equal(t, 20, s.GetState())
	assert.Equal(t, 0, rec.Count(AfterUpdate))
	assert.Equal(t, Queued, s.Phase())

	s.Loop().Drain()
	assert.Equal(t, 1, rec.Count(AfterUpdate))
	tr := lastTransition(t, rec, AfterUpdate)
	assert.Equal(t, 1, tr.Prev)
	assert.Equal(t, 20, tr.Next)
	assert.Equal(t, Idle, s.Phase())
}

func TestSetState_AsyncSerialization(t *testing.T) {
	s, rec := newTestStore(t, "init")
	p := async.NewPromise()

	require.NoError(t, s.SetState(p))
	require.NoError(t, s.SetState("B"))
	assert.Equal(t, Waiting, s.Phase())
	assert.Equal(t, 1, s.Buffered())
	assert.Equal(t, "init", s.GetState())

	p.Resolve("A")
	s.Loop().Drain()

	assert.Equal(t, []any{"A", "B"}, nexts(rec, BeforeUpdate))
	assert.Equal(t, "B", s.GetState())
	assert.Equal(t, 0, s.Buffered())
}

func TestSetState_BufferedReplayAwaitsAgain(t *testing.T) {
	s, rec := newTestStore(t, "init")
	p1, p2 := async.NewPromise(), async.NewPromise()

	require.NoError(t, s.SetState(p1))
	require.NoError(t, s.SetState(p2))
	require.NoError(t, s.SetState("z"))

	p2.Resolve("two")
	s.Loop().Drain()
	assert.Equal(t, "init", s.GetState(), "the second promise waits for the first")

	p1.Resolve("one")
	s.Loop().Drain()
	assert.Equal(t, []any{"one", "two", "z"}, nexts(rec, BeforeUpdate))
	assert.Equal(t, "z", s.GetState())
}

func TestSetState_PromiseOfUpdater(t *testing.T) {
	s, _ := newTestStore(t, 1)
	require.NoError(t, s.SetState(async.Resolved(UpdateFunc(increment))))
	s.Loop().Drain()
	assert.Equal(t, 2, s.GetState())
}

func TestSetState_RejectionIsolation(t *testing.T) {
	s, rec := newTestStore(t, "kept")
	reason := errors.New("x")

	assert.NotPanics(t, func() {
		err := s.SetState(AsyncUpdateFunc(func(any) *async.Promise { return async.Rejected(reason) }))
		assert.NoError(t, err)
	})
	s.Loop().Drain()

	assert.Equal(t, "kept", s.GetState())
	se := lastSetterError(t, rec, SetterRejection)
	assert.ErrorIs(t, se, reason)
	assert.Equal(t, "@", se.Path)
	assert.Equal(t, Idle, s.Phase())
	assert.Equal(t, 0, rec.Count(AfterUpdate))
}

func TestSetState_RejectionReleasesBuffered(t *testing.T) {
	s, rec := newTestStore(t, "")
	p := async.NewPromise()
	appendTo := func(suffix string) UpdateFunc {
		return func(v any) any { return v.(string) + suffix }
	}

	require.NoError(t, s.SetState(p))
	require.NoError(t, s.SetState(appendTo("-b")))
	require.NoError(t, s.SetState(appendTo("-c")))

	p.Reject(errors.New("nope"))
	s.Loop().Drain()

	assert.Equal(t, "-b-c", s.GetState())
	assert.Equal(t, 1, rec.Count(SetterRejection))
}

func TestSetState_UpdaterPanics(t *testing.T) {
	s, rec := newTestStore(t, 1)

	require.NoError(t, s.SetState(UpdateFunc(func(any) any { panic("boom") })))
	assert.Equal(t, 1, s.GetState())

	se := lastSetterError(t, rec, SetterException)
	assert.ErrorIs(t, se, ErrSetterPanic)
	assert.True(t, IsSetterError(se))
}

func TestSetState_UpdaterError(t *testing.T) {
	s, rec := newTestStore(t, 1)
	reason := errors.New("invalid")

	require.NoError(t, s.SetState(UpdateFuncE(func(any) (any, error) { return nil, reason })))
	assert.Equal(t, 1, s.GetState())
	assert.ErrorIs(t, lastSetterError(t, rec, SetterException), reason)
}

func TestSetState_ChainedCascade(t *testing.T) {
	s, _ := newTestStore(t, 0, WithCascadeMargin(5))
	var errs []error
	s.On(AfterUpdate, func(*event.Event) {
		if err := s.SetState(UpdateFunc(increment)); err != nil {
			errs = append(errs, err)
		}
	})

	require.NoError(t, s.SetState(1))
	s.Loop().Drain()

	require.Len(t, errs, 1)
	var ce *CascadeError
	require.ErrorAs(t, errs[0], &ce)
	assert.Equal(t, CascadeChained, ce.Kind)
	assert.Equal(t, 5, ce.Limit)
	assert.Equal(t, 6, s.GetState(), "committed value stays intact")
}

func TestSetState_ReentrantCascade(t *testing.T) {
	s, _ := newTestStore(t, 0, WithCascadeMargin(5))
	var (
		calls int
		err   error
		fn    UpdateFunc
	)
	fn = func(v any) any {
		calls++
		if e := s.SetState(fn); e != nil {
			err = e
		}
		return v.(int) + 1
	}

	require.NoError(t, s.SetState(fn))
	assert.Equal(t, 5, calls)
	assert.True(t, IsCascadeError(err))
	assert.Equal(t, 1, s.GetState())
}

func TestSetState_BeforeUpdateVeto(t *testing.T) {
	s, rec := newTestStore(t, "ok")
	s.On(BeforeUpdate, func(ev *event.Event) {
		if ev.Data.(*Transition).Next == "bad" {
			ev.PreventDefault()
		}
	})

	require.NoError(t, s.SetState("bad"))
	s.Loop().Drain()
	assert.Equal(t, "ok", s.GetState())
	assert.Equal(t, 0, rec.Count(AfterUpdate))
}

func TestSetState_BeforeUpdateRewrite(t *testing.T) {
	s, _ := newTestStore(t, 0)
	s.On(BeforeUpdate, func(ev *event.Event) {
		tr := ev.Data.(*Transition)
		tr.Next = tr.Next.(int) * 2
	})

	require.NoError(t, s.SetState(4))
	assert.Equal(t, 8, s.GetState())
}

func TestMiddleware_NeverContinuing(t *testing.T) {
	s, rec := newTestStore(t, 1)
	s.Use(func(*middleware.Context[*Store], middleware.Next) {})

	require.NoError(t, s.SetState(2))
	s.Loop().Drain()
	assert.Equal(t, 1, s.GetState())
	assert.Equal(t, 0, rec.Count(AfterUpdate))
}

func TestMiddleware_DeferredContinuation(t *testing.T) {
	s, rec := newTestStore(t, 1)
	var held middleware.Next
	s.Use(func(c *middleware.Context[*Store], next middleware.Next) {
		assert.Equal(t, 1, c.Previous)
		assert.Same(t, s, c.Store)
		c.Next = c.Next.(int) * 2
		held = next
	})

	require.NoError(t, s.SetState(3))
	s.Loop().Drain()
	assert.Equal(t, 1, s.GetState())

	held()
	s.Loop().Drain()
	assert.Equal(t, 6, s.GetState())
	assert.Equal(t, 1, rec.Count(AfterUpdate))
}

func TestMiddleware_DeferredCommitLandsLast(t *testing.T) {
	s, _ := newTestStore(t, 1)
	var held middleware.Next
	s.Use(func(c *middleware.Context[*Store], next middleware.Next) {
		if held == nil && c.Next == 3 {
			held = next
			return
		}
		next()
	})

	require.NoError(t, s.SetState(3))
	require.NoError(t, s.SetState(5))
	s.Loop().Drain()
	assert.Equal(t, 5, s.GetState())

	held()
	s.Loop().Drain()
	assert.Equal(t, 3, s.GetState())
}

func TestMiddleware_FailAndPanic(t *testing.T) {
	s, rec := newTestStore(t, 1)
	reason := errors.New("rejected by policy")
	s.Use(func(c *middleware.Context[*Store], next middleware.Next) {
		switch c.Next {
		case "fail":
			c.Fail(reason)
		case "panic":
			panic("interceptor bug")
		default:
			next()
		}
	})

	require.NoError(t, s.SetState("fail"))
	assert.ErrorIs(t, lastSetterError(t, rec, SetterRejection), reason)

	require.NoError(t, s.SetState("panic"))
	assert.ErrorIs(t, lastSetterError(t, rec, SetterException), middleware.ErrInterceptorPanic)

	assert.Equal(t, 1, s.GetState())
}

func TestWithMiddleware(t *testing.T) {
	s, _ := newTestStore(t, 0, WithMiddleware(func(c *middleware.Context[*Store], next middleware.Next) {
		c.Next = c.Next.(int) + 100
		next()
	}))
	require.NoError(t, s.SetState(1))
	assert.Equal(t, 101, s.GetState())
}

func TestSubscribe_SelectorGating(t *testing.T) {
	s, _ := newTestStore(t, map[string]any{"a": 1, "b": 1})
	var selected, plain int
	s.Subscribe(&subscriber.Descriptor{
		Notify:   func(any) { selected++ },
		Selector: func(v any) any { return v.(map[string]any)["a"] },
	})
	s.Subscribe(&subscriber.Descriptor{Notify: func(any) { plain++ }})

	require.NoError(t, s.SetStateAt("b", 2))
	s.Loop().Drain()
	assert.Equal(t, 0, selected)
	assert.Equal(t, 1, plain)

	require.NoError(t, s.SetStateAt("a", 5))
	s.Loop().Drain()
	assert.Equal(t, 1, selected)
	assert.Equal(t, 2, plain)
}

func TestSubscribe_PanickingSubscriber(t *testing.T) {
	s, rec := newTestStore(t, 0)
	s.Subscribe(&subscriber.Descriptor{Notify: func(any) { panic("render failed") }})

	require.NoError(t, s.SetState(1))
	s.Loop().Drain()
	assert.Equal(t, 1, s.GetState())
	assert.Equal(t, 1, rec.Count(SetterException))
}

func TestSubscribe_Lifecycle(t *testing.T) {
	s, rec := newTestStore(t, 0)
	a := &subscriber.Descriptor{Notify: func(any) {}}
	b := &subscriber.Descriptor{Notify: func(any) {}}

	rec.Reset()
	s.Subscribe(a)
	assert.Equal(t, []event.Type{BeforeFirstUse, AfterFirstUse, AfterFirstMount, AfterMount}, rec.Types())

	rec.Reset()
	s.Subscribe(b)
	s.Subscribe(b)
	assert.Equal(t, []event.Type{AfterMount}, rec.Types())
	assert.Equal(t, 2, s.Subscribers())

	rec.Reset()
	s.Unsubscribe(a)
	s.Unsubscribe(a)
	s.Unsubscribe(b)
	assert.Equal(t, []event.Type{AfterUnmount, AfterUnmount, AfterLastUnmount}, rec.Types())

	rec.Reset()
	s.Subscribe(a)
	assert.Equal(t, []event.Type{AfterFirstMount, AfterMount}, rec.Types())
}

func TestWithAutoReset(t *testing.T) {
	s, _ := newTestStore(t, "initial", WithAutoReset())
	d := &subscriber.Descriptor{Notify: func(any) {}}

	s.Subscribe(d)
	require.NoError(t, s.SetState("changed"))
	s.Loop().Drain()

	s.Unsubscribe(d)
	assert.Equal(t, "initial", s.GetState())
}

func TestSetStateAt(t *testing.T) {
	name := map[string]any{"first": "Ada"}
	initial := map[string]any{
		"user":  map[string]any{"name": name, "age": 1},
		"other": map[string]any{"x": 1},
	}
	s, _ := newTestStore(t, initial)

	require.NoError(t, s.SetStateAt("user.age", UpdateFunc(increment)))

	age, err := s.GetStateAt("user.age")
	require.NoError(t, err)
	assert.Equal(t, 2, age)

	got, _ := s.GetStateAt("user.name")
	assert.True(t, value.Same(name, got), "sibling subtree is shared")
	assert.Equal(t, 1, initial["user"].(map[string]any)["age"], "initial value is never mutated")
}

func TestSetStateAt_BadPath(t *testing.T) {
	s, _ := newTestStore(t, nil)
	err := s.SetStateAt("..", 1)
	assert.True(t, pathexpr.IsSyntaxError(err))

	err = s.SetStateAt("a.1099511627776", 1)
	assert.True(t, pathexpr.IsSyntaxError(err))
	assert.Nil(t, s.GetState())

	_, err = s.GetStateAt("")
	assert.True(t, pathexpr.IsSyntaxError(err))
}

func TestSetStateAt_WildcardFunction(t *testing.T) {
	s, rec := newTestStore(t, map[string]any{
		"items": []any{
			map[string]any{"done": false},
			map[string]any{"done": false},
		},
	})

	require.NoError(t, s.SetStateAt("items.*.done", func(any) any { return true }))
	assert.Equal(t, map[string]any{
		"items": []any{
			map[string]any{"done": true},
			map[string]any{"done": true},
		},
	}, s.GetState())
	assert.Equal(t, 1, rec.Count(BeforeUpdate))
}

func TestSetStateAt_WildcardAsync(t *testing.T) {
	s, rec := newTestStore(t, map[string]any{
		"items": []any{map[string]any{"n": 1}, map[string]any{"n": 2}},
	})
	slow := async.NewPromise()
	calls := 0

	require.NoError(t, s.SetStateAt("items[*].n", AsyncUpdateFunc(func(v any) *async.Promise {
		calls++
		if calls == 1 {
			return slow
		}
		return async.Resolved(v.(int) * 10)
	})))
	assert.Equal(t, Waiting, s.Phase())
	s.Loop().Drain()
	assert.Equal(t, 0, rec.Count(BeforeUpdate), "waits for every element")

	slow.Resolve(100)
	s.Loop().Drain()

	n0, _ := s.GetStateAt("items[0].n")
	n1, _ := s.GetStateAt("items[1].n")
	assert.Equal(t, 100, n0)
	assert.Equal(t, 20, n1)
	assert.Equal(t, 1, rec.Count(BeforeUpdate))
	assert.Equal(t, Idle, s.Phase())
}

func TestSetStateAt_WildcardAsyncRejection(t *testing.T) {
	initial := map[string]any{"items": []any{1, 2}}
	s, rec := newTestStore(t, initial)

	require.NoError(t, s.SetStateAt("items.*", AsyncUpdateFunc(func(v any) *async.Promise {
		if v.(int) == 2 {
			return async.Rejected(errors.New("element failed"))
		}
		return async.Resolved(v)
	})))
	s.Loop().Drain()

	assert.Equal(t, initial, s.GetState())
	assert.Equal(t, "items.*", lastSetterError(t, rec, SetterRejection).Path)
}

func TestMergeState(t *testing.T) {
	s, _ := newTestStore(t, map[string]any{"a": 1})

	require.NoError(t, s.MergeState(map[string]any{"b": 2}))
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, s.GetState())

	require.NoError(t, s.MergeState(func(old any) any {
		return map[string]any{"a": old.(map[string]any)["a"].(int) + 10}
	}))
	assert.Equal(t, map[string]any{"a": 11, "b": 2}, s.GetState())

	require.NoError(t, s.MergeState(async.Resolved(map[string]any{"c": 3})))
	s.Loop().Drain()
	assert.Equal(t, map[string]any{"a": 11, "b": 2, "c": 3}, s.GetState())
}

func TestMergeState_NilPartialKeepsState(t *testing.T) {
	s, _ := newTestStore(t, map[string]any{"a": 1, "b": 2})

	require.NoError(t, s.MergeState(nil))
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, s.GetState())

	require.NoError(t, s.MergeState(func(any) any { return nil }))
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, s.GetState())
}

func TestMergeStateAt(t *testing.T) {
	s, _ := newTestStore(t, map[string]any{
		"user":  map[string]any{"name": "Ada", "age": 36},
		"users": []any{map[string]any{"n": 1}, map[string]any{"n": 2}},
	})

	require.NoError(t, s.MergeStateAt("user", map[string]any{"age": 37}))
	user, _ := s.GetStateAt("user")
	assert.Equal(t, map[string]any{"name": "Ada", "age": 37}, user)

	require.NoError(t, s.MergeStateAt("users.*", func(any) any { return map[string]any{"seen": true} }))
	users, _ := s.GetStateAt("users")
	assert.Equal(t, []any{
		map[string]any{"n": 1, "seen": true},
		map[string]any{"n": 2, "seen": true},
	}, users)
}

func TestResetState(t *testing.T) {
	s, _ := newTestStore(t, map[string]any{"user": map[string]any{"age": 1}, "items": []any{1}})

	require.NoError(t, s.SetStateAt("user.age", 5))
	require.NoError(t, s.ResetStateAt("user.age"))
	age, _ := s.GetStateAt("user.age")
	assert.Equal(t, 1, age)

	err := s.ResetStateAt("items.*")
	assert.ErrorIs(t, err, ErrWildcardReset)

	require.NoError(t, s.SetState("gone"))
	require.NoError(t, s.ResetState())
	assert.Equal(t, s.GetInitialState(), s.GetState())

	v, err := s.GetInitialStateAt("user.age")
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestSetStateSync(t *testing.T) {
	t.Run("notifies immediately", func(t *testing.T) {
		s, rec := newTestStore(t, 1)
		var got []any
		s.Subscribe(&subscriber.Descriptor{Notify: func(v any) { got = append(got, v) }})

		ok, err := s.SetStateSync(UpdateFunc(increment))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []any{2}, got)
		assert.Equal(t, 1, rec.Count(AfterUpdate))
	})

	t.Run("folds a pending wave", func(t *testing.T) {
		s, rec := newTestStore(t, 1)
		require.NoError(t, s.SetState(2))

		ok, err := s.SetStateSync(3)
		require.NoError(t, err)
		require.True(t, ok)
		s.Loop().Drain()

		assert.Equal(t, 1, rec.Count(AfterUpdate))
		tr := lastTransition(t, rec, AfterUpdate)
		assert.Equal(t, 1, tr.Prev)
		assert.Equal(t, 3, tr.Next)
	})

	t.Run("refuses promises", func(t *testing.T) {
		s, _ := newTestStore(t, 1)
		ok, err := s.SetStateSync(async.Resolved(2))
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrAsyncValue)
		assert.Equal(t, 1, s.GetState())
	})

	t.Run("refuses while waiting", func(t *testing.T) {
		s, _ := newTestStore(t, 1)
		require.NoError(t, s.SetState(async.NewPromise()))
		_, err := s.SetStateSync(2)
		assert.ErrorIs(t, err, ErrWaiting)
	})

	t.Run("middleware that does not continue", func(t *testing.T) {
		s, _ := newTestStore(t, 1)
		s.Use(func(*middleware.Context[*Store], middleware.Next) {})
		ok, err := s.SetStateSync(2)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 1, s.GetState())
	})
}

func TestExtendState(t *testing.T) {
	s, rec := newTestStore(t, map[string]any{"a": 1})
	notified := 0
	d := &subscriber.Descriptor{Notify: func(any) { notified++ }}

	rec.Reset()
	s.ExtendState(map[string]any{"b": 2})
	s.Loop().Drain()

	assert.Equal(t, map[string]any{"a": 1, "b": 2}, s.GetState())
	assert.Empty(t, rec.Records())

	s.Subscribe(d)
	s.Loop().Drain()
	assert.Equal(t, 0, notified)
}

func TestPlugin(t *testing.T) {
	s, rec := newTestStore(t, 0)

	result, err := s.Plugin(func(st *Store) (any, error) {
		st.Use(func(c *middleware.Context[*Store], next middleware.Next) { next() })
		return "api", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "api", result)
	last, ok := rec.Last(AfterPlugin)
	require.True(t, ok)
	assert.Equal(t, "api", last.Data)

	_, err = s.Plugin(func(*Store) (any, error) { return nil, errors.New("bad config") })
	assert.EqualError(t, err, "install plugin: bad config")

	_, err = s.Plugin(func(*Store) (any, error) { panic("broken plugin") })
	assert.Error(t, err)
	assert.Equal(t, 1, rec.Count(AfterPlugin))
	assert.Equal(t, 3, rec.Count(BeforePlugin))
}

func TestRun_DispatchFromOtherGoroutine(t *testing.T) {
	s, _ := newTestStore(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Loop().Run(ctx) }()

	updated := make(chan any, 1)
	s.Dispatch(func() {
		s.Subscribe(&subscriber.Descriptor{Notify: func(v any) { updated <- v }})
		_ = s.SetState(async.Go(func() (any, error) { return 7, nil }))
	})

	select {
	case v := <-updated:
		assert.Equal(t, 7, v)
	case <-time.After(time.Second):
		t.Fatal("no notification")
	}
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "waiting", Waiting.String())
	assert.Equal(t, "phase(9)", Phase(9).String())
}
