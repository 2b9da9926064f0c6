// Package pathexpr compiles path expressions and builds copy-on-write
// updaters over JSON-shaped state trees.
//
// # Grammar
//
// A path is a list of segments separated by '.' or bracket syntax:
//
//	@                      the whole value (root)
//	user.name              keyed-map members
//	items[0].done          sequence index
//	items.0.done           same as above
//	users[*].profile.age   wildcard: every element of the sequence
//
// Empty tokens are discarded, so "a..b" and "a[0]" both produce two
// segments. A leading '@' token is an explicit root marker and is stripped.
// An all-digit token addresses a sequence index; the literal '*' is the
// wildcard.
//
// # Structural sharing
//
// Updaters shallow-copy every node along the path and reuse all siblings.
// Neither the input root nor any sub-structure off the path is mutated, so
// the same compiled path can be applied to many roots.
//
// State trees are built from map[string]any (keyed maps), []any
// (sequences) and scalars. Any other value is treated as a scalar: descent
// stops there and the node is returned unchanged.
package pathexpr
