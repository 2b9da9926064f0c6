// Package harness runs YAML scenarios against a store and checks the
// resulting event trace.
//
// A scenario names an initial value, an optional CUE schema and a list of
// steps (setter calls, action invocations, promise settlements, loop drains,
// undo/redo). Every step and every update event is appended to one trace,
// numbered by a shared logical clock, so two runs of the same scenario
// produce byte-identical traces. Assertions then inspect the trace, the
// final value and the number of subscriber notifications.
//
// Traced event types: AfterInitialize, BeforeUpdate, AfterUpdate,
// SetterException and SetterRejection. Mount and plugin lifecycle events
// are left out; they are covered by the store's own tests.
//
// # Golden Files
//
// RunWithGolden serializes the trace and final value as canonical JSON and
// compares it with testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
