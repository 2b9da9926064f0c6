package testutil

import "sync/atomic"

// Clock is a monotonic logical clock for tests and scenario traces. The zero
// value is ready to use; the first Next returns 1.
//
// A Recorder and a scenario runner can share one Clock so that events and
// steps interleave in a single numbering.
type Clock struct {
	seq atomic.Int64
}

// NewClock returns a clock at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next advances the clock and returns the new value. Safe for concurrent use.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out by Next.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// Reset sets the clock back to 0.
func (c *Clock) Reset() {
	c.seq.Store(0)
}
