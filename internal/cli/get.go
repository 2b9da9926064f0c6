package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/theory/jsonpath"

	"github.com/roach88/statekit/internal/pathexpr"
	"github.com/roach88/statekit/internal/value"
)

// GetOptions holds flags for the get command.
type GetOptions struct {
	*RootOptions
	JSONPath string // RFC 9535 query, instead of a path expression
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get <state-file> [path]",
		Short: "Read a value from a state file",
		Long: `Print the state, the value at a path expression, or the nodes selected
by a JSONPath query.

Path expressions use the store's grammar: "@" is the root, segments are
separated by "." or brackets, digits index sequences and "*" fans out over
every element. A wildcard path prints a sequence of the matched values.

Examples:
  statekit get state.yaml
  statekit get state.yaml 'users[*].name'
  statekit get state.yaml --jsonpath '$.users[?@.age > 30].name'`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 2 {
				path = args[1]
			}
			return runGet(opts, args[0], path, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.JSONPath, "jsonpath", "", "select nodes with a JSONPath query")

	return cmd
}

func runGet(opts *GetOptions, statePath, path string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	if path != "" && opts.JSONPath != "" {
		return NewExitError(ExitCommandError, "give either a path or --jsonpath, not both")
	}

	state, found, err := readState(statePath)
	if err != nil {
		_ = out.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load state", err)
	}
	if !found {
		_ = out.Error(ErrCodeNotFound, "state file not found: "+statePath, nil)
		return NewExitError(ExitCommandError, "state file not found: "+statePath)
	}

	switch {
	case opts.JSONPath != "":
		nodes, err := selectJSONPath(state, opts.JSONPath)
		if err != nil {
			_ = out.Error(ErrCodeBadPath, err.Error(), nil)
			return WrapExitError(ExitCommandError, "invalid query", err)
		}
		return out.Success(nodes)
	case path != "":
		v, err := pathexpr.GetAt(state, path)
		if err != nil {
			_ = out.Error(ErrCodeBadPath, err.Error(), nil)
			return WrapExitError(ExitCommandError, "invalid path", err)
		}
		return out.Success(v)
	default:
		return out.Success(state)
	}
}

// selectJSONPath runs a JSONPath query over the JSON form of state.
func selectJSONPath(state any, expr string) ([]any, error) {
	p, err := jsonpath.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid JSONPath %s: %w", expr, err)
	}

	data, err := value.MarshalCanonical(state)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	nodes := p.Select(doc)
	out := make([]any, len(nodes))
	copy(out, nodes)
	return out, nil
}
