package store

import (
	"errors"
	"fmt"
)

// DefaultCascadeMargin is the number of nested updates (or consecutive
// notification waves that each trigger another commit) tolerated on top of
// the buffered request count before an update is refused.
const DefaultCascadeMargin = 100

// cascadeGuard bounds update cascades.
//
// Two shapes are caught:
//   - Reentrant: an updater, handler or interceptor calls a setter which
//     synchronously calls a setter again (stack growth).
//   - Chained: every notification wave commits again, which posts another
//     wave (an endless loop of tasks).
//
// The limit for both is the buffered request count at entry plus the margin.
type cascadeGuard struct {
	margin int
	depth  int // Nesting of setter calls on the loop goroutine
	chain  int // Consecutive notification waves that committed
}

// enter records one setter call. Returns CascadeError if the call would
// exceed the limit; on success the caller must call leave.
func (g *cascadeGuard) enter(storeID string, buffered int, flushing bool) error {
	limit := buffered + g.margin
	if g.depth+1 > limit {
		return &CascadeError{StoreID: storeID, Kind: CascadeReentrant, Count: g.depth + 1, Limit: limit}
	}
	if flushing && g.chain >= limit {
		return &CascadeError{StoreID: storeID, Kind: CascadeChained, Count: g.chain, Limit: limit}
	}
	g.depth++
	return nil
}

func (g *cascadeGuard) leave() {
	g.depth--
}

// wave records whether a notification wave committed further updates.
func (g *cascadeGuard) wave(committed bool) {
	if committed {
		g.chain++
		return
	}
	g.chain = 0
}

// CascadeKind names the shape of a runaway cascade.
type CascadeKind string

const (
	// CascadeReentrant is unbounded synchronous reentry into the setters.
	CascadeReentrant CascadeKind = "reentrant"

	// CascadeChained is an unbounded chain of notification waves.
	CascadeChained CascadeKind = "chained"
)

// CascadeError is returned by a setter that would extend a runaway update
// cascade. The committed value is left untouched.
type CascadeError struct {
	StoreID string
	Kind    CascadeKind
	Count   int // Depth or chain length reached
	Limit   int
}

// Error implements the error interface.
func (e *CascadeError) Error() string {
	return fmt.Sprintf("store %s: %s update cascade exceeded limit: %d > %d",
		e.StoreID, e.Kind, e.Count, e.Limit)
}

// IsCascadeError returns true if the error is a CascadeError.
// Uses errors.As to handle wrapped errors.
func IsCascadeError(err error) bool {
	var ce *CascadeError
	return errors.As(err, &ce)
}
