// Package testutil provides helpers shared by package tests.
package testutil

import (
	"io"
	"log/slog"
	"sync"

	"github.com/roach88/statekit/internal/event"
)

// Record is one observed event, numbered in arrival order.
type Record struct {
	Seq  int64
	Type event.Type
	Data any
}

// Recorder captures emitted events with a monotonic sequence number.
//
// The sequence is logical, not wall-clock: two runs of the same scenario
// produce identical records, which keeps assertions and golden files
// deterministic.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Recorder struct {
	mu      sync.Mutex
	clock   *Clock
	records []Record
}

// NewRecorder creates an empty recorder. The first record has Seq 1.
func NewRecorder() *Recorder {
	return &Recorder{clock: NewClock()}
}

// NewRecorderWithClock creates a recorder numbering records from c.
func NewRecorderWithClock(c *Clock) *Recorder {
	return &Recorder{clock: c}
}

// Handler returns an event handler that records every event it receives.
// Register it for event.Wildcard to capture everything.
func (r *Recorder) Handler() event.Handler {
	return func(ev *event.Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.records = append(r.records, Record{Seq: r.clock.Next(), Type: ev.Type, Data: ev.Data})
	}
}

// Records returns a copy of everything recorded so far.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []event.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Type, len(r.records))
	for i, rec := range r.records {
		out[i] = rec.Type
	}
	return out
}

// Count returns how many events of type t were recorded.
func (r *Recorder) Count(t event.Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.records {
		if rec.Type == t {
			n++
		}
	}
	return n
}

// Last returns the most recent record of type t.
func (r *Recorder) Last(t event.Type) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].Type == t {
			return r.records[i], true
		}
	}
	return Record{}, false
}

// Reset forgets all records. After Reset, the next record has Seq 1.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock.Reset()
	r.records = nil
}

// QuietLogger returns a logger that discards everything.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
