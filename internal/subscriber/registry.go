// Package subscriber tracks the parties interested in a store's commits and
// decides, per commit, which of them need to hear about it.
package subscriber

import (
	"fmt"
	"sync"

	"github.com/roach88/statekit/internal/value"
)

// Descriptor is one subscription. Identity is the pointer: the same
// descriptor must be passed to Remove.
//
// Without a Selector the descriptor is notified with the full new value on
// every commit. With one, it is notified with Selector(next) only when Equal
// reports the selected slices of the previous and next value as different.
type Descriptor struct {
	Notify   func(v any)
	Selector func(state any) any
	Equal    func(a, b any) bool // defaults to value.ShallowEqual
}

// Change describes the registry after an Add.
type Change struct {
	Added     bool // false when d was already registered
	FirstEver bool // no descriptor had ever been added before
	First     bool // the registry went from empty to one
	Count     int
}

// Registry holds descriptors in subscription order.
type Registry struct {
	mu    sync.Mutex
	subs  []*Descriptor
	added bool

	// OnPanic receives panics recovered from Notify, Selector or Equal.
	// The remaining descriptors are still notified.
	OnPanic func(d *Descriptor, err error)
}

// Add registers d. Adding a descriptor that is already present is a no-op
// apart from reporting the current count.
func (r *Registry) Add(d *Descriptor) Change {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.subs {
		if s == d {
			return Change{Count: len(r.subs)}
		}
	}
	ch := Change{Added: true, FirstEver: !r.added, First: len(r.subs) == 0}
	r.added = true
	r.subs = append(r.subs, d)
	ch.Count = len(r.subs)
	return ch
}

// Remove deregisters d. last is true when the registry became empty.
func (r *Registry) Remove(d *Descriptor) (removed, last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, s := range r.subs {
		if s != d {
			continue
		}
		next := make([]*Descriptor, 0, len(r.subs)-1)
		next = append(next, r.subs[:i]...)
		next = append(next, r.subs[i+1:]...)
		r.subs = next
		return true, len(next) == 0
	}
	return false, false
}

// Len returns the number of registered descriptors.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Notify runs one notification wave for the transition prev to next and
// returns how many descriptors were notified. Descriptors added during the
// wave are not visited until the next one.
func (r *Registry) Notify(prev, next any) int {
	r.mu.Lock()
	subs := r.subs
	r.mu.Unlock()

	notified := 0
	for _, d := range subs {
		if r.notifyOne(d, prev, next) {
			notified++
		}
	}
	return notified
}

func (r *Registry) notifyOne(d *Descriptor, prev, next any) (notified bool) {
	defer func() {
		if rec := recover(); rec != nil {
			notified = false
			if r.OnPanic != nil {
				r.OnPanic(d, fmt.Errorf("subscriber panicked: %v", rec))
			}
		}
	}()

	if d.Notify == nil {
		return false
	}
	if d.Selector == nil {
		d.Notify(next)
		return true
	}
	eq := d.Equal
	if eq == nil {
		eq = value.ShallowEqual
	}
	before, after := d.Selector(prev), d.Selector(next)
	if eq(before, after) {
		return false
	}
	d.Notify(after)
	return true
}
