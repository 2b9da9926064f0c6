package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/statekit/internal/value"
)

// Snapshot is one persisted value of a store.
type Snapshot struct {
	Key   string
	Seq   int64
	Hash  string
	State any
}

// WriteSnapshot appends state to the log for key. If the latest snapshot
// for key has the same hash, nothing is written and that snapshot is
// returned with written == false.
func (d *DB) WriteSnapshot(ctx context.Context, key string, state any) (snap Snapshot, written bool, err error) {
	canonical, hash, err := encode(state)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("write snapshot: %w", err)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("write snapshot: begin: %w", err)
	}
	defer tx.Rollback()

	var (
		lastSeq  int64
		lastHash string
	)
	err = tx.QueryRowContext(ctx, `
		SELECT seq, hash FROM snapshots
		WHERE store_key = ?
		ORDER BY seq DESC
		LIMIT 1
	`, key).Scan(&lastSeq, &lastHash)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return Snapshot{}, false, fmt.Errorf("write snapshot: latest: %w", err)
	case lastHash == hash:
		return Snapshot{Key: key, Seq: lastSeq, Hash: hash, State: state}, false, nil
	}

	seq := lastSeq + 1
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO snapshots (store_key, seq, hash, state)
		VALUES (?, ?, ?, ?)
	`, key, seq, hash, string(canonical)); err != nil {
		return Snapshot{}, false, fmt.Errorf("write snapshot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Snapshot{}, false, fmt.Errorf("write snapshot: commit: %w", err)
	}
	return Snapshot{Key: key, Seq: seq, Hash: hash, State: state}, true, nil
}

// Latest returns the most recent snapshot for key; found is false if none
// exists.
func (d *DB) Latest(ctx context.Context, key string) (snap Snapshot, found bool, err error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT store_key, seq, hash, state FROM snapshots
		WHERE store_key = ?
		ORDER BY seq DESC
		LIMIT 1
	`, key)
	snap, err = scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("latest snapshot: %w", err)
	}
	return snap, true, nil
}

// List returns every snapshot for key ordered by seq ascending.
// Returns an empty slice (not nil) if none exist.
func (d *DB) List(ctx context.Context, key string) ([]Snapshot, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT store_key, seq, hash, state FROM snapshots
		WHERE store_key = ?
		ORDER BY seq ASC
	`, key)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	snaps := []Snapshot{}
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snaps, nil
}

// Keys returns every store key with at least one snapshot, sorted.
func (d *DB) Keys(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT DISTINCT store_key FROM snapshots
		ORDER BY store_key COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query keys: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keys: %w", err)
	}
	return keys, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (Snapshot, error) {
	var (
		snap Snapshot
		raw  string
	)
	if err := row.Scan(&snap.Key, &snap.Seq, &snap.Hash, &raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Snapshot{}, err
		}
		return Snapshot{}, fmt.Errorf("scan snapshot: %w", err)
	}
	state, err := value.DecodeJSON([]byte(raw))
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot %s/%d: %w", snap.Key, snap.Seq, err)
	}
	snap.State = state
	return snap, nil
}
