// Package store implements the reactive state container: the update
// scheduler that owns the current value, and the Store surface that composes
// the event, middleware and subscriber pipelines around it.
//
// ARCHITECTURE:
//
// Loop Confinement:
// A Store belongs to one async.Loop. Every method must be called from the
// goroutine driving that loop (or before it starts); other goroutines hand
// work over with Dispatch. Promise continuations and late middleware
// continuations are posted to the loop, so the scheduler never needs locks.
//
// Commit Path:
// A setter evaluates its argument against the current value immediately.
// Plain values (and updater results) commit synchronously:
//
//	BeforeUpdate (vetoable) -> middleware chain -> state replaced
//
// Notifications are deferred: the first commit posts one flush task and
// later commits in the same tick join it, so N synchronous setters produce a
// single AfterUpdate and a single subscriber wave describing the net change.
//
// Waiting:
// When an update resolves to a promise the store enters Waiting. Further
// requests are buffered and replayed in arrival order once the in-flight
// update commits or is rejected, so asynchronous updates never interleave.
//
// Deferred Middleware:
// An interceptor that continues after returning does not put the store in
// Waiting, since one that never continues would stall every later update.
// Commits that pass the chain meanwhile land first; the deferred one then
// stores the Next it was given, computed against its own Previous. The last
// commit to finish wins.
//
// Failure Isolation:
// Errors and panics from updaters, promises and interceptors never reach the
// caller. They surface as SetterException or SetterRejection events and the
// committed value is kept. Misuse of the API itself (bad paths, runaway
// cascades) is returned as an error from the call.
package store
