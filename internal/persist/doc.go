// Package persist provides SQLite-backed snapshot persistence for stores.
//
// The database holds an append-only snapshot log per store key:
//   - seq: per-key logical clock, NEVER timestamps, so replays are
//     deterministic regardless of wall time
//   - state: RFC 8785 canonical JSON of the committed value
//   - hash: SHA-256 of state with domain separation; a snapshot identical to
//     the latest one for its key is not written again
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// The Plugin hydrates a store from its latest snapshot at install time and
// appends a snapshot after every notification wave.
package persist
