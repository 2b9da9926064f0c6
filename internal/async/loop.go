// Package async provides the cooperative scheduling primitives the store is
// built on: a single-threaded task Loop and a Promise whose continuations
// always run as loop tasks.
//
// ARCHITECTURE:
//
// Single-Writer Task Loop:
// Every state transition happens on the goroutine that drives the Loop,
// either via Run (a dedicated goroutine) or Drain (the caller's goroutine,
// used by tests and the CLI). Tasks posted while a task runs are appended
// and executed after it, in FIFO order, so a task that posts follow-up work
// always sees its own call stack unwind first.
//
// Promises may be settled from any goroutine. Their continuations are posted
// onto the loop, never run inline, which gives callers JavaScript-style
// microtask semantics without shared-memory races on store state.
package async

import (
	"context"
	"log/slog"
	"sync"
)

// Task is a unit of work executed by the loop.
type Task func()

// taskQueue is a thread-safe FIFO queue of tasks.
//
// The queue is unbounded so that cascading updates can post arbitrarily many
// follow-up tasks without blocking; runaway cascades are bounded by the
// store's cascade guard instead.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in Run (prevents goroutine hangs on context cancellation).
type taskQueue struct {
	mu     sync.Mutex
	tasks  []Task
	closed bool
	signal chan struct{} // Signals task availability (buffered, size 1)
}

func newTaskQueue() *taskQueue {
	return &taskQueue{
		tasks:  make([]Task, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// push adds a task to the back of the queue.
// Returns false if the queue is closed.
func (q *taskQueue) push(t Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.tasks = append(q.tasks, t)

	// Non-blocking: buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// pop removes and returns the front task without blocking.
func (q *taskQueue) pop() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return nil, false
	}

	t := q.tasks[0]
	// Nil out the slot so the closure (and whatever state it captured) can be collected.
	q.tasks[0] = nil
	if len(q.tasks) == 1 {
		q.tasks = q.tasks[:0]
	} else {
		q.tasks = q.tasks[1:]
	}
	return t, true
}

func (q *taskQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *taskQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal) // Wakes all waiters
}

func (q *taskQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Loop is a single-threaded cooperative task loop.
//
// Thread-safety model:
//   - Post(): safe from any goroutine
//   - Run() / Drain(): must not be called concurrently with each other
type Loop struct {
	queue  *taskQueue
	logger *slog.Logger
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithLoopLogger sets the logger used for task panics and lifecycle messages.
func WithLoopLogger(l *slog.Logger) LoopOption {
	return func(lp *Loop) {
		lp.logger = l
	}
}

// NewLoop creates an empty loop.
func NewLoop(opts ...LoopOption) *Loop {
	l := &Loop{
		queue:  newTaskQueue(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Post schedules t to run after every task already queued.
// Thread-safe: may be called from any goroutine.
// Returns false if the loop has been stopped.
func (l *Loop) Post(t Task) bool {
	if t == nil {
		return false
	}
	return l.queue.push(t)
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	return l.queue.len()
}

// Drain runs queued tasks in the calling goroutine until the queue is empty,
// including tasks posted by the tasks it runs. Returns the number executed.
//
// Drain does not wait for promises that are still pending in other
// goroutines; use DrainUntil for that.
func (l *Loop) Drain() int {
	n := 0
	for {
		t, ok := l.queue.pop()
		if !ok {
			return n
		}
		l.exec(t)
		n++
	}
}

// DrainUntil runs tasks until done returns true, blocking for new tasks in
// between. It returns ctx.Err() if the context ends first.
func (l *Loop) DrainUntil(ctx context.Context, done func() bool) error {
	for {
		l.Drain()
		if done() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-l.queue.signal:
			if !ok && l.queue.len() == 0 {
				if done() {
					return nil
				}
				return ErrLoopStopped
			}
		}
	}
}

// Run executes tasks until ctx is cancelled or Stop is called.
// Blocks; must be called from exactly one goroutine.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Debug("loop starting")

	for {
		if t, ok := l.queue.pop(); ok {
			l.exec(t)
			continue
		}

		select {
		case <-ctx.Done():
			l.logger.Debug("loop stopping: context cancelled")
			l.queue.close()
			return ctx.Err()

		case <-l.queue.signal:
			// The signal channel closes when the queue is closed,
			// which makes this case fire immediately.
			if l.queue.isClosed() && l.queue.len() == 0 {
				l.logger.Debug("loop stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the loop. Queued tasks still run; new posts are rejected.
func (l *Loop) Stop() {
	l.queue.close()
}

// exec runs a task, logging and swallowing panics so one faulty callback
// cannot take the loop down.
func (l *Loop) exec(t Task) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("loop task panicked", "panic", r)
		}
	}()
	t()
}
