// Package middleware implements the interceptor chain that wraps every
// pending state transition.
//
// Each interceptor receives the transition Context and a continuation. The
// transition proceeds only when every interceptor has called its
// continuation; an interceptor that never calls it suspends the transition
// indefinitely, which is a legitimate way to hold a change pending
// confirmation.
//
// Continuations are trampolined: calling next while the interceptor is still
// running records the decision and the pipeline advances once the
// interceptor returns. Calling next later, from any goroutine, hands the
// rest of the chain to the dispatch function supplied to Run.
package middleware

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInterceptorPanic is wrapped by the abort reason when an interceptor panics.
var ErrInterceptorPanic = errors.New("middleware: interceptor panicked")

// Context describes one pending transition. Interceptors may replace Next;
// downstream interceptors and the eventual commit observe the replacement.
type Context[S any] struct {
	Previous any
	Next     any
	Store    S

	mu   sync.Mutex
	link *link
}

// Fail abandons the transition with err. Only the first of next or Fail
// called for the pending interceptor takes effect.
func (c *Context[S]) Fail(err error) {
	if err == nil {
		err = errors.New("middleware: transition failed")
	}
	c.mu.Lock()
	l := c.link
	c.mu.Unlock()
	if l != nil {
		l.settle(err)
	}
}

func (c *Context[S]) setLink(l *link) {
	c.mu.Lock()
	c.link = l
	c.mu.Unlock()
}

// Next is the continuation handed to an interceptor.
type Next func()

// Interceptor observes, rewrites or blocks a transition.
type Interceptor[S any] func(c *Context[S], next Next)

// Pipeline is an ordered interceptor chain.
//
// Use must not race with Run; the store registers and runs interceptors on
// its loop goroutine.
type Pipeline[S any] struct {
	interceptors []Interceptor[S]
}

// Use appends i; interceptors run in registration order.
func (p *Pipeline[S]) Use(i Interceptor[S]) {
	if i == nil {
		return
	}
	p.interceptors = append(p.interceptors, i)
}

// Len returns the number of registered interceptors.
func (p *Pipeline[S]) Len() int {
	return len(p.interceptors)
}

// Run drives c through the chain. complete is called once every interceptor
// has continued; abort is called if one fails or panics. Neither is called
// while an interceptor withholds its continuation. dispatch schedules
// continuations that arrive after their interceptor returned; nil runs them
// directly in the calling goroutine.
func (p *Pipeline[S]) Run(c *Context[S], dispatch func(func()), complete func(*Context[S]), abort func(*Context[S], error)) {
	if dispatch == nil {
		dispatch = func(f func()) { f() }
	}
	r := &run[S]{
		chain:    p.interceptors[:len(p.interceptors):len(p.interceptors)],
		c:        c,
		dispatch: dispatch,
		complete: complete,
		abort:    abort,
	}
	r.step(0)
}

// RunSync drives c through the chain without waiting. It reports false if
// any interceptor returned without continuing; a later continuation from
// such an interceptor is ignored. A failed or panicking interceptor is
// reported as an error.
func (p *Pipeline[S]) RunSync(c *Context[S]) (bool, error) {
	var (
		completed bool
		failure   error
	)
	r := &run[S]{
		chain:    p.interceptors[:len(p.interceptors):len(p.interceptors)],
		c:        c,
		dispatch: func(func()) {},
		complete: func(*Context[S]) { completed = true },
		abort:    func(_ *Context[S], err error) { failure = err },
	}
	r.step(0)
	if failure != nil {
		return false, failure
	}
	return completed, nil
}

type outcome uint8

const (
	pending outcome = iota
	continued
	failed
)

// link tracks the decision of one interceptor invocation.
type link struct {
	mu      sync.Mutex
	running bool
	outcome outcome
	err     error
	resume  func(err error) // set for decisions arriving after return
}

// settle records next (err == nil) or Fail. Decisions made while the
// interceptor runs are picked up when it returns.
func (l *link) settle(err error) {
	l.mu.Lock()
	if l.outcome != pending {
		l.mu.Unlock()
		return
	}
	if err != nil {
		l.outcome, l.err = failed, err
	} else {
		l.outcome = continued
	}
	running := l.running
	l.mu.Unlock()

	if !running {
		l.resume(err)
	}
}

type run[S any] struct {
	chain    []Interceptor[S]
	c        *Context[S]
	dispatch func(func())
	complete func(*Context[S])
	abort    func(*Context[S], error)
}

func (r *run[S]) step(i int) {
	for ; i < len(r.chain); i++ {
		l := &link{running: true}
		next := i + 1
		l.resume = func(err error) {
			r.dispatch(func() {
				if err != nil {
					r.finish(err)
					return
				}
				r.step(next)
			})
		}
		r.c.setLink(l)

		if perr := r.invoke(i, l); perr != nil {
			l.mu.Lock()
			l.outcome, l.err = failed, perr
			l.mu.Unlock()
		}

		l.mu.Lock()
		l.running = false
		out, err := l.outcome, l.err
		l.mu.Unlock()

		switch out {
		case pending:
			return
		case failed:
			r.finish(err)
			return
		}
	}
	r.c.setLink(nil)
	r.complete(r.c)
}

func (r *run[S]) finish(err error) {
	r.c.setLink(nil)
	r.abort(r.c, err)
}

func (r *run[S]) invoke(i int, l *link) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrInterceptorPanic, rec)
		}
	}()
	r.chain[i](r.c, func() { l.settle(nil) })
	return nil
}
