package store

import (
	"errors"
	"fmt"

	"github.com/roach88/statekit/internal/async"
	"github.com/roach88/statekit/internal/event"
	"github.com/roach88/statekit/internal/middleware"
	"github.com/roach88/statekit/internal/pathexpr"
	"github.com/roach88/statekit/internal/value"
)

// UpdateFunc computes the next value from the current one.
type UpdateFunc func(old any) any

// UpdateFuncE is an UpdateFunc that may fail. An error surfaces as a
// SetterException event and leaves the value unchanged.
type UpdateFuncE func(old any) (any, error)

// AsyncUpdateFunc computes the next value asynchronously.
type AsyncUpdateFunc func(old any) *async.Promise

// Phase is the scheduler's position in its state machine.
type Phase uint8

const (
	// Idle has no pending notification and nothing in flight.
	Idle Phase = iota
	// Queued has committed changes whose notification wave is posted.
	Queued
	// Committing is inside the commit path.
	Committing
	// Waiting has an awaited promise in flight; new requests are buffered.
	Waiting
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Queued:
		return "queued"
	case Committing:
		return "committing"
	case Waiting:
		return "waiting"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// Phase reports the scheduler phase.
func (s *Store) Phase() Phase {
	switch {
	case s.waiting:
		return Waiting
	case s.committing > 0:
		return Committing
	case s.notifyPending:
		return Queued
	}
	return Idle
}

// Buffered returns the number of requests waiting for the in-flight
// asynchronous update.
func (s *Store) Buffered() int {
	return len(s.buffered)
}

var rootPath = pathexpr.MustCompile(pathexpr.RootMarker)

// target is where an update lands: a path, replaced or shallow-merged.
type target struct {
	path  *pathexpr.Path
	merge bool
}

func (t target) label() string {
	return t.path.String()
}

func (t target) read(root any) any {
	return t.path.Get(root)
}

// write folds v into root at the target path.
func (t target) write(root, v any) any {
	return pathexpr.NewUpdater(t.path, pathexpr.Single(func(old any, _ ...any) any {
		if t.merge {
			return value.Merge(old, v)
		}
		return v
	}))(root)
}

// SetState replaces the value. v may be a literal, an updater function
// (UpdateFunc, UpdateFuncE, AsyncUpdateFunc or the equivalent plain func
// types) or an *async.Promise settling to either.
//
// The returned error is reserved for API misuse (a runaway cascade); failures
// of user code surface as events.
func (s *Store) SetState(v any) error {
	return s.schedule(target{path: rootPath}, v)
}

// SetStateAt replaces the value at path. A wildcard path with an updater
// function maps the function over every matched element and commits once,
// after all asynchronous results have settled.
func (s *Store) SetStateAt(path string, v any) error {
	p, err := pathexpr.Compile(path)
	if err != nil {
		return err
	}
	return s.schedule(target{path: p}, v)
}

// MergeState shallow-merges the resolved value into the current one.
func (s *Store) MergeState(partial any) error {
	return s.schedule(target{path: rootPath, merge: true}, partial)
}

// MergeStateAt shallow-merges the resolved value into the value at path.
func (s *Store) MergeStateAt(path string, partial any) error {
	p, err := pathexpr.Compile(path)
	if err != nil {
		return err
	}
	return s.schedule(target{path: p, merge: true}, partial)
}

// ResetState schedules a return to the initial value.
func (s *Store) ResetState() error {
	initial := s.initial
	return s.schedule(target{path: rootPath}, UpdateFunc(func(any) any { return initial }))
}

// ResetStateAt schedules a return to the initial value at path.
func (s *Store) ResetStateAt(path string) error {
	p, err := pathexpr.Compile(path)
	if err != nil {
		return err
	}
	if p.HasWildcard() {
		return fmt.Errorf("%w: %s", ErrWildcardReset, path)
	}
	initial := p.Get(s.initial)
	return s.schedule(target{path: p}, UpdateFunc(func(any) any { return initial }))
}

// SetStateSync commits v and notifies before returning. It reports whether
// the commit happened: a veto, a failed updater or an interceptor that does
// not continue synchronously all report false. Updates that resolve to a
// promise are refused with ErrAsyncValue, and ErrWaiting is returned while an
// asynchronous update is in flight.
func (s *Store) SetStateSync(v any) (bool, error) {
	if err := s.enter("@"); err != nil {
		return false, err
	}
	defer s.guard.leave()

	if s.waiting {
		return false, ErrWaiting
	}
	cand, err := resolve(v, s.state)
	if err != nil {
		s.fail(SetterException, "@", err)
		return false, nil
	}
	if p, ok := cand.(*async.Promise); ok && p != nil {
		return false, ErrAsyncValue
	}

	s.committing++
	defer func() { s.committing-- }()

	prev := s.state
	tr := &Transition{Prev: prev, Next: cand}
	if s.events.Emit(BeforeUpdate, tr).DefaultPrevented() {
		return false, nil
	}

	c := &middleware.Context[*Store]{Previous: prev, Next: tr.Next, Store: s}
	ok, err := s.middleware.RunSync(c)
	if err != nil {
		s.fail(failureKind(err), "@", err)
		return false, nil
	}
	if !ok {
		s.logger.Debug("synchronous update not completed by middleware")
		return false, nil
	}

	s.state = c.Next
	s.commits++

	// Fold any posted wave into this one.
	from := prev
	if s.notifyPending {
		from = s.notifyPrev
		s.notifyPending = false
		s.notifyPrev = nil
		s.notifyGen++
	}
	s.notify(from, s.state)
	return true, nil
}

// enter applies the cascade guard for one setter call.
func (s *Store) enter(label string) error {
	if err := s.guard.enter(s.id, len(s.buffered), s.flushing); err != nil {
		s.logger.Error("update refused", "path", label, "error", err)
		return err
	}
	return nil
}

// schedule is the entry point of every asynchronous-capable setter.
func (s *Store) schedule(t target, v any) error {
	if err := s.enter(t.label()); err != nil {
		return err
	}
	defer s.guard.leave()

	if s.waiting {
		s.buffered = append(s.buffered, func() {
			// Errors are logged by enter.
			_ = s.schedule(t, v)
		})
		s.logger.Debug("update buffered", "path", t.label(), "buffered", len(s.buffered))
		return nil
	}

	if t.path.HasWildcard() && asUpdater(v) != nil {
		s.applyEach(t, v)
		return nil
	}

	cand, err := resolve(v, t.read(s.state))
	if err != nil {
		s.fail(SetterException, t.label(), err)
		return nil
	}
	s.land(t, cand, false)
	return nil
}

// land commits a resolved candidate, or awaits it if it is a promise.
// owned marks the update that holds the Waiting slot.
func (s *Store) land(t target, cand any, owned bool) {
	if p, ok := cand.(*async.Promise); ok {
		if p != nil {
			s.await(t, p)
			return
		}
		cand = nil
	}
	s.commit(t.label(), t.write(s.state, cand), owned)
}

// await enters Waiting until p settles. A promise may settle to another
// promise or to an updater function, which is applied to the value current
// at that time.
func (s *Store) await(t target, p *async.Promise) {
	s.waiting = true
	p.Then(s.loop,
		func(v any) {
			cand, err := resolve(v, t.read(s.state))
			if err != nil {
				s.fail(SetterException, t.label(), err)
				s.release()
				return
			}
			s.land(t, cand, true)
		},
		func(err error) {
			s.fail(SetterRejection, t.label(), err)
			s.release()
		},
	)
}

// applyEach maps an updater over every element matched by a wildcard path.
// Synchronous results commit at once; if any result is a promise, all of
// them are awaited and written back in match order against the root current
// when they settle.
func (s *Store) applyEach(t target, v any) {
	fn := asUpdater(v)
	var (
		results []any
		failure error
		pending bool
	)
	probe := pathexpr.NewUpdater(t.path, pathexpr.Single(func(old any, _ ...any) any {
		cand, err := evaluate(fn, old)
		if err != nil && failure == nil {
			failure = err
		}
		if p, ok := cand.(*async.Promise); ok && p != nil {
			pending = true
		}
		results = append(results, cand)
		if t.merge {
			return value.Merge(old, cand)
		}
		return cand
	}))
	next := probe(s.state)

	if failure != nil {
		s.fail(SetterException, t.label(), failure)
		return
	}
	if !pending {
		s.commit(t.label(), next, false)
		return
	}

	ps := make([]*async.Promise, len(results))
	for i, r := range results {
		if p, ok := r.(*async.Promise); ok && p != nil {
			ps[i] = p
			continue
		}
		ps[i] = async.Resolved(r)
	}

	s.waiting = true
	async.All(ps...).Then(s.loop,
		func(v any) {
			vals := v.([]any)
			i := 0
			fill := pathexpr.NewUpdater(t.path, pathexpr.Single(func(old any, _ ...any) any {
				if i >= len(vals) {
					return old
				}
				nv := vals[i]
				i++
				if t.merge {
					return value.Merge(old, nv)
				}
				return nv
			}))
			s.commit(t.label(), fill(s.state), true)
		},
		func(err error) {
			s.fail(SetterRejection, t.label(), err)
			s.release()
		},
	)
}

// commit runs the veto and middleware stages and stores the result.
func (s *Store) commit(label string, next any, owned bool) {
	s.committing++
	defer func() { s.committing-- }()

	prev := s.state
	tr := &Transition{Prev: prev, Next: next}
	if s.events.Emit(BeforeUpdate, tr).DefaultPrevented() {
		s.logger.Debug("update vetoed", "path", label)
		if owned {
			s.release()
		}
		return
	}

	c := &middleware.Context[*Store]{Previous: prev, Next: tr.Next, Store: s}
	s.middleware.Run(c, s.post,
		func(c *middleware.Context[*Store]) {
			s.replace(c.Next)
			if owned {
				s.release()
			}
		},
		func(_ *middleware.Context[*Store], err error) {
			s.fail(failureKind(err), label, err)
			if owned {
				s.release()
			}
		},
	)
}

// replace stores next and joins (or starts) the pending notification wave.
func (s *Store) replace(next any) {
	prev := s.state
	s.state = next
	s.commits++
	s.logger.Debug("state committed", "commits", s.commits)

	if s.notifyPending {
		return
	}
	s.notifyPending = true
	s.notifyPrev = prev
	gen := s.notifyGen
	s.post(func() { s.flush(gen) })
}

// flush runs one coalesced notification wave.
func (s *Store) flush(gen uint64) {
	if gen != s.notifyGen || !s.notifyPending {
		return
	}
	s.notifyGen++
	prev := s.notifyPrev
	s.notifyPending = false
	s.notifyPrev = nil

	before := s.commits
	s.notify(prev, s.state)
	s.guard.wave(s.commits != before)
}

func (s *Store) notify(prev, next any) {
	was := s.flushing
	s.flushing = true
	defer func() { s.flushing = was }()

	s.events.Emit(AfterUpdate, &Transition{Prev: prev, Next: next})
	n := s.subs.Notify(prev, next)
	s.logger.Debug("subscribers notified", "notified", n)
}

// release clears Waiting and replays buffered requests in arrival order
// until one of them awaits again.
func (s *Store) release() {
	s.waiting = false
	for !s.waiting && len(s.buffered) > 0 {
		next := s.buffered[0]
		s.buffered[0] = nil
		s.buffered = s.buffered[1:]
		next()
	}
}

func (s *Store) post(fn func()) {
	if !s.loop.Post(fn) {
		s.logger.Warn("loop stopped; continuation dropped")
	}
}

// fail emits a SetterException or SetterRejection event.
func (s *Store) fail(kind event.Type, path string, err error) {
	s.logger.Debug("update failed", "event", string(kind), "path", path, "error", err)
	s.events.Emit(kind, &SetterError{Path: path, Err: err})
}

func failureKind(err error) event.Type {
	if errors.Is(err, middleware.ErrInterceptorPanic) {
		return SetterException
	}
	return SetterRejection
}

// asUpdater returns v as a uniform updater, or nil if v is a literal.
func asUpdater(v any) func(old any) (any, error) {
	switch fn := v.(type) {
	case UpdateFunc:
		return func(old any) (any, error) { return fn(old), nil }
	case func(any) any:
		return func(old any) (any, error) { return fn(old), nil }
	case pathexpr.Func:
		return func(old any) (any, error) { return fn(old), nil }
	case func(any, ...any) any:
		return func(old any) (any, error) { return fn(old), nil }
	case UpdateFuncE:
		return fn
	case func(any) (any, error):
		return fn
	case AsyncUpdateFunc:
		return asyncUpdater(fn)
	case func(any) *async.Promise:
		return asyncUpdater(fn)
	}
	return nil
}

func asyncUpdater(fn func(any) *async.Promise) func(old any) (any, error) {
	return func(old any) (any, error) {
		if p := fn(old); p != nil {
			return p, nil
		}
		return nil, nil
	}
}

// evaluate calls fn, converting a panic into an error wrapping ErrSetterPanic.
func evaluate(fn func(any) (any, error), old any) (cand any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrSetterPanic, r)
		}
	}()
	return fn(old)
}

// resolve turns an update argument into a candidate value.
func resolve(v, old any) (any, error) {
	fn := asUpdater(v)
	if fn == nil {
		return v, nil
	}
	return evaluate(fn, old)
}
