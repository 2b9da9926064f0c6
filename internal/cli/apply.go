package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/statekit/internal/event"
	"github.com/roach88/statekit/internal/persist"
	"github.com/roach88/statekit/internal/store"
	"github.com/roach88/statekit/internal/validate"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	Schema string // CUE schema file
	DB     string // SQLite snapshot database
	Key    string // snapshot key
	DryRun bool   // do not write the state file
}

// ApplyResult is the apply command's output.
type ApplyResult struct {
	State     any      `json:"state"`
	Applied   []string `json:"applied"`
	Failures  []string `json:"failures,omitempty"`
	Snapshots int      `json:"snapshots,omitempty"`
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply <state-file> <op>...",
		Short: "Apply updates to a state file",
		Long: `Load a YAML or JSON state file into a store, apply each op in order and
write the result back.

Ops:
  set=VALUE            replace the whole state
  set:PATH=VALUE       replace the value at PATH
  merge[:PATH]=VALUE   shallow-merge a map
  append:PATH=VALUE    append to a sequence
  remove:PATH=INDEX    delete a sequence element
  toggle:PATH          negate a boolean
  increment:PATH[=N]   add N (default 1)
  reset[:PATH]         restore the value loaded from the file

With --schema every transition is validated against the CUE schema. If any
update is rejected the state file is left untouched. With --db the store is hydrated
from, and snapshotted to, a SQLite database.

Exit codes:
  0 - All ops applied
  1 - One or more updates were rejected
  2 - Command error (bad op, unreadable file, etc.)

Examples:
  statekit apply state.yaml 'set:user.name=Ada' 'increment:visits'
  statekit apply state.json 'append:todos={title: ship, done: false}' --schema schema.cue
  statekit apply state.yaml toggle:dark --db state.db --key prefs`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Schema, "schema", "", "CUE schema file (overrides validate.schema)")
	cmd.Flags().StringVar(&opts.DB, "db", "", "SQLite snapshot database (overrides persist.database)")
	cmd.Flags().StringVar(&opts.Key, "key", "", "snapshot key (default: persist.key)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "print the result without writing the state file")

	return cmd
}

func runApply(opts *ApplyOptions, statePath string, args []string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	cfg := opts.cfg()
	logger := opts.logger()

	ops := make([]Op, 0, len(args))
	for _, arg := range args {
		op, err := ParseOp(arg)
		if err != nil {
			_ = out.Error(ErrCodeBadOp, err.Error(), nil)
			return WrapExitError(ExitCommandError, "invalid op", err)
		}
		ops = append(ops, op)
	}

	initial, _, err := readState(statePath)
	if err != nil {
		_ = out.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load state", err)
	}

	storeOpts := append(cfg.StoreOptions(),
		store.WithLogger(logger),
		store.WithID(filepath.Base(statePath)),
	)

	schemaPath := firstNonEmpty(opts.Schema, cfg.Schema.Schema)
	if schemaPath != "" {
		schema, err := validate.CompileFile(schemaPath)
		if err != nil {
			_ = out.Error(ErrCodeSchema, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to compile schema", err)
		}
		storeOpts = append(storeOpts, store.WithMiddleware(validate.Interceptor(schema)))
	}

	var failures []string
	record := func(ev *event.Event) {
		if serr, ok := ev.Data.(*store.SetterError); ok {
			failures = append(failures, serr.Error())
		}
	}
	storeOpts = append(storeOpts,
		store.WithHandler(store.SetterException, record),
		store.WithHandler(store.SetterRejection, record),
	)

	s := store.New(initial, storeOpts...)

	var persister *persist.Persister
	if dbPath := firstNonEmpty(opts.DB, cfg.Persist.Database); dbPath != "" {
		db, err := persist.Open(dbPath)
		if err != nil {
			_ = out.Error(ErrCodeStorage, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer db.Close()

		persister, err = persist.Install(s, db, firstNonEmpty(opts.Key, cfg.Persist.Key))
		if err != nil {
			_ = out.Error(ErrCodeStorage, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to install persistence", err)
		}
	}

	result := ApplyResult{Applied: make([]string, 0, len(ops))}
	for _, op := range ops {
		if err := op.Apply(s); err != nil {
			_ = out.Error(ErrCodeBadPath, err.Error(), map[string]string{"op": op.String()})
			return WrapExitError(ExitCommandError, fmt.Sprintf("op %s", op), err)
		}
		result.Applied = append(result.Applied, op.String())
		logger.Debug("op applied", "op", op.String())
	}
	s.Loop().Drain()

	result.State = s.GetState()
	result.Failures = failures

	if persister != nil {
		if err := persister.Err(); err != nil {
			_ = out.Error(ErrCodeStorage, err.Error(), nil)
			return WrapExitError(ExitFailure, "failed to write snapshot", err)
		}
		result.Snapshots = persister.Written()
	}

	if len(failures) > 0 {
		_ = out.Error(ErrCodeRejected, fmt.Sprintf("%d update(s) rejected", len(failures)), failures)
		return NewExitError(ExitFailure, strings.Join(failures, "; "))
	}

	if !opts.DryRun {
		if err := writeState(statePath, result.State); err != nil {
			_ = out.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to write state", err)
		}
	}

	if out.Format == "json" {
		return out.Success(result)
	}
	return out.Success(result.State)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
