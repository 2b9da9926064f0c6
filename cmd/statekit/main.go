// Command statekit applies updates to state files, queries them, lists
// persisted snapshots and runs scenario files.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/statekit/internal/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return cli.GetExitCode(err)
	}
	return cli.ExitSuccess
}
