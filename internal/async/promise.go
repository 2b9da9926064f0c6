package async

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrLoopStopped is returned when waiting on a loop that has been stopped.
	ErrLoopStopped = errors.New("async: loop stopped")

	// ErrPanicked is wrapped by the rejection of a promise whose producer panicked.
	ErrPanicked = errors.New("async: producer panicked")
)

type promiseState uint8

const (
	statePending promiseState = iota
	stateFulfilled
	stateRejected
)

// Promise is a single-assignment result that may be settled from any
// goroutine. The first Resolve or Reject wins; later calls are ignored.
//
// Resolving with another *Promise adopts its eventual result.
type Promise struct {
	mu        sync.Mutex
	state     promiseState
	value     any
	err       error
	callbacks []func()
}

// NewPromise returns a pending promise.
func NewPromise() *Promise {
	return &Promise{}
}

// Resolved returns a promise already fulfilled with v.
func Resolved(v any) *Promise {
	p := NewPromise()
	p.Resolve(v)
	return p
}

// Rejected returns a promise already rejected with err.
func Rejected(err error) *Promise {
	p := NewPromise()
	p.Reject(err)
	return p
}

// Go runs fn in a new goroutine and settles the returned promise with its
// result. A panic in fn rejects the promise with an error wrapping ErrPanicked.
func Go(fn func() (any, error)) *Promise {
	p := NewPromise()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.Reject(fmt.Errorf("%w: %v", ErrPanicked, r))
			}
		}()
		v, err := fn()
		if err != nil {
			p.Reject(err)
			return
		}
		p.Resolve(v)
	}()
	return p
}

// Resolve fulfils the promise with v. Returns false if already settled.
// If v is a *Promise, this promise follows it instead.
func (p *Promise) Resolve(v any) bool {
	if other, ok := v.(*Promise); ok && other != nil {
		if other == p {
			return p.Reject(errors.New("async: promise resolved with itself"))
		}
		p.mu.Lock()
		if p.state != statePending {
			p.mu.Unlock()
			return false
		}
		p.mu.Unlock()
		other.onSettle(func(val any, err error) {
			if err != nil {
				p.Reject(err)
				return
			}
			p.Resolve(val)
		})
		return true
	}
	return p.settle(stateFulfilled, v, nil)
}

// Reject settles the promise with err. A nil err is replaced with a generic
// rejection so that rejected promises always carry a reason.
// Returns false if already settled.
func (p *Promise) Reject(err error) bool {
	if err == nil {
		err = errors.New("async: rejected without reason")
	}
	return p.settle(stateRejected, nil, err)
}

func (p *Promise) settle(state promiseState, v any, err error) bool {
	p.mu.Lock()
	if p.state != statePending {
		p.mu.Unlock()
		return false
	}
	p.state = state
	p.value = v
	p.err = err
	callbacks := p.callbacks
	p.callbacks = nil
	p.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
	return true
}

// Settled reports whether the promise has been fulfilled or rejected.
func (p *Promise) Settled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state != statePending
}

// Result returns the settled value and error; ok is false while pending.
func (p *Promise) Result() (v any, ok bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value, p.state != statePending, p.err
}

// onSettle calls cb once the promise settles, in the settling goroutine
// (or immediately if already settled). Internal: user continuations go
// through Then so they run on a loop.
func (p *Promise) onSettle(cb func(v any, err error)) {
	run := func() {
		p.mu.Lock()
		v, err := p.value, p.err
		p.mu.Unlock()
		cb(v, err)
	}

	p.mu.Lock()
	if p.state == statePending {
		p.callbacks = append(p.callbacks, run)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	run()
}

// Then posts onFulfilled or onRejected to l once the promise settles.
// Continuations never run synchronously inside Then, even for a promise
// that is already settled. Either callback may be nil.
func (p *Promise) Then(l *Loop, onFulfilled func(any), onRejected func(error)) {
	p.onSettle(func(v any, err error) {
		l.Post(func() {
			if err != nil {
				if onRejected != nil {
					onRejected(err)
				}
				return
			}
			if onFulfilled != nil {
				onFulfilled(v)
			}
		})
	})
}

// All fulfils with the values of ps, in order, once every promise has
// fulfilled. It rejects with the first rejection observed.
func All(ps ...*Promise) *Promise {
	out := NewPromise()
	if len(ps) == 0 {
		out.Resolve([]any{})
		return out
	}

	var mu sync.Mutex
	values := make([]any, len(ps))
	remaining := len(ps)

	for i, p := range ps {
		if p == nil {
			p = Resolved(nil)
		}
		p.onSettle(func(v any, err error) {
			if err != nil {
				out.Reject(err)
				return
			}
			mu.Lock()
			values[i] = v
			remaining--
			done := remaining == 0
			mu.Unlock()
			if done {
				out.Resolve(values)
			}
		})
	}
	return out
}
