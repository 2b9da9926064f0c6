package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/statekit/internal/persist"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	DB    string
	Key   string
	Keys  bool // list keys instead of snapshots
	Limit int  // newest N snapshots, 0 for all
}

// HistoryEntry is one snapshot in the history output.
type HistoryEntry struct {
	Seq   int64  `json:"seq" yaml:"seq"`
	Hash  string `json:"hash" yaml:"hash"`
	State any    `json:"state" yaml:"state"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List persisted snapshots",
		Long: `List the snapshots recorded for a key in a SQLite snapshot database,
oldest first, or list every key with --keys.

Examples:
  statekit history --db state.db --key prefs
  statekit history --db state.db --keys
  statekit history --db state.db --key prefs --limit 5 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "SQLite snapshot database (overrides persist.database)")
	cmd.Flags().StringVar(&opts.Key, "key", "", "snapshot key (default: persist.key)")
	cmd.Flags().BoolVar(&opts.Keys, "keys", false, "list keys instead of snapshots")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "show only the newest N snapshots")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	cfg := opts.cfg()

	dbPath := firstNonEmpty(opts.DB, cfg.Persist.Database)
	if dbPath == "" {
		return NewExitError(ExitCommandError, "no database: pass --db or set persist.database")
	}
	// Open creates missing files; a typo should not leave an empty database behind.
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		_ = out.Error(ErrCodeNotFound, "database not found: "+dbPath, nil)
		return NewExitError(ExitCommandError, "database not found: "+dbPath)
	}

	db, err := persist.Open(dbPath)
	if err != nil {
		_ = out.Error(ErrCodeStorage, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer db.Close()

	ctx := cmd.Context()

	if opts.Keys {
		keys, err := db.Keys(ctx)
		if err != nil {
			_ = out.Error(ErrCodeStorage, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to list keys", err)
		}
		return out.Success(keys)
	}

	key := firstNonEmpty(opts.Key, cfg.Persist.Key)
	snaps, err := db.List(ctx, key)
	if err != nil {
		_ = out.Error(ErrCodeStorage, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to list snapshots", err)
	}
	if len(snaps) == 0 {
		_ = out.Error(ErrCodeNotFound, fmt.Sprintf("no snapshots for key %q", key), nil)
		return NewExitError(ExitFailure, fmt.Sprintf("no snapshots for key %q", key))
	}
	if opts.Limit > 0 && len(snaps) > opts.Limit {
		snaps = snaps[len(snaps)-opts.Limit:]
	}

	entries := make([]HistoryEntry, len(snaps))
	for i, snap := range snaps {
		entries[i] = HistoryEntry{Seq: snap.Seq, Hash: shortHash(snap.Hash), State: snap.State}
	}
	return out.Success(entries)
}

// shortHash trims a snapshot hash for display.
func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
