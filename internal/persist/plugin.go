package persist

import (
	"context"
	"fmt"

	"github.com/roach88/statekit/internal/event"
	"github.com/roach88/statekit/internal/store"
)

// Persister saves one store's commits under a key.
type Persister struct {
	db    *DB
	key   string
	store *store.Store

	written int
	lastErr error
}

// Plugin returns the initializer to pass to Store.Plugin. At install time
// the store is hydrated from the latest snapshot for key (a non-notifying
// ExtendState); afterwards a snapshot is appended after every AfterUpdate.
// The plugin result is the *Persister.
func Plugin(db *DB, key string) store.PluginFunc {
	return func(s *store.Store) (any, error) {
		if key == "" {
			return nil, fmt.Errorf("persist: empty store key")
		}
		p := &Persister{db: db, key: key, store: s}

		snap, found, err := db.Latest(context.Background(), key)
		if err != nil {
			return nil, fmt.Errorf("persist: hydrate %q: %w", key, err)
		}
		if found {
			s.ExtendState(snap.State)
			s.Logger().Debug("store hydrated", "key", key, "seq", snap.Seq)
		}

		s.On(store.AfterUpdate, func(*event.Event) {
			if _, _, err := p.Save(context.Background()); err != nil {
				s.Logger().Error("snapshot failed", "key", key, "error", err)
			}
		})
		return p, nil
	}
}

// Install registers the plugin on s.
func Install(s *store.Store, db *DB, key string) (*Persister, error) {
	r, err := s.Plugin(Plugin(db, key))
	if err != nil {
		return nil, err
	}
	return r.(*Persister), nil
}

// Save writes the store's current value now.
func (p *Persister) Save(ctx context.Context) (Snapshot, bool, error) {
	snap, written, err := p.db.WriteSnapshot(ctx, p.key, p.store.GetState())
	if err != nil {
		p.lastErr = err
		return Snapshot{}, false, err
	}
	if written {
		p.written++
	}
	return snap, written, nil
}

// Written returns how many snapshots this persister has appended.
func (p *Persister) Written() int {
	return p.written
}

// Err returns the most recent save error, if any.
func (p *Persister) Err() error {
	return p.lastErr
}
