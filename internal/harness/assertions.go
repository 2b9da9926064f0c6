package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/statekit/internal/pathexpr"
	"github.com/roach88/statekit/internal/value"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", ev.Seq, describe(ev))
		}
	}

	return buf.String()
}

func describe(ev TraceEvent) string {
	var b strings.Builder
	b.WriteString(ev.Type)
	if ev.Op != "" {
		b.WriteString(" " + ev.Op)
	}
	if ev.Path != "" {
		b.WriteString(" " + ev.Path)
	}
	if ev.Value != nil {
		fmt.Fprintf(&b, " %v", ev.Value)
	}
	if ev.Error != "" {
		b.WriteString(" error=" + ev.Error)
	}
	return b.String()
}

// matches reports whether ev is of the named type. "step:<op>" matches a
// step with that operation.
func matches(ev TraceEvent, name string) bool {
	if op, ok := strings.CutPrefix(name, TraceStep+":"); ok {
		return ev.Type == TraceStep && ev.Op == op
	}
	return ev.Type == name
}

// assertTraceContains checks that the trace contains an event of the given
// type, at the given path when one is specified.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, ev := range trace {
		if matches(ev, assertion.Event) && (assertion.Path == "" || ev.Path == assertion.Path) {
			return nil
		}
	}

	expected := assertion.Event
	if assertion.Path != "" {
		expected += " at " + assertion.Path
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that events appear in the specified order.
// Events don't need to be consecutive (intervening events are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	next := 0
	for _, ev := range trace {
		if next < len(assertion.Events) && matches(ev, assertion.Events[next]) {
			next++
		}
	}
	if next == len(assertion.Events) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("events in order: %v", assertion.Events),
		Actual:   fmt.Sprintf("no %s after %v", assertion.Events[next], assertion.Events[:next]),
		Trace:    trace,
	}
}

// assertTraceCount checks that the event appears exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, ev := range trace {
		if matches(ev, assertion.Event) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Event),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertFinalState compares the value at Path with Expect. Numbers compare
// by value, so an expected 3 matches int 3, int64 3 and float64 3.
func assertFinalState(final any, assertion Assertion) error {
	actual := final
	where := "state"
	if assertion.Path != "" {
		p, err := pathexpr.Compile(assertion.Path)
		if err != nil {
			return fmt.Errorf("final_state: %w", err)
		}
		actual = p.Get(final)
		where = assertion.Path
	}

	if !value.CanonicalEqual(actual, assertion.Expect) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %v", where, assertion.Expect),
			Actual:   fmt.Sprintf("%s = %v", where, actual),
		}
	}
	return nil
}

func assertUpdateCount(result *Result, assertion Assertion) error {
	if result.Updates != assertion.Count {
		return &AssertionError{
			Type:     AssertUpdateCount,
			Expected: fmt.Sprintf("%d notifications", assertion.Count),
			Actual:   fmt.Sprintf("%d notifications", result.Updates),
			Trace:    result.Trace,
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			err = assertFinalState(result.Final, assertion)
		case AssertUpdateCount:
			err = assertUpdateCount(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
