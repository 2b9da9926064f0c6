// Package value holds the shallow operations the store performs on
// JSON-shaped state trees: copy, merge, identity and shallow equality, plus
// canonical JSON for hashing and golden traces.
//
// Structured values are map[string]any and []any. Every helper treats other
// types as opaque scalars.
package value
