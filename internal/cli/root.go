// Package cli implements the memcore CLI commands.
//
// Every command runs fully in-process: the tool inspects keys, ranks
// metric snapshots, and replays demo scenarios against an in-memory
// store. Nothing here persists state between invocations.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "memcore",
	Short: "Associative memory toolkit for conversational agents",
	Long:  "Inspect canonical keys, rank metric snapshots, and replay demo scenarios against the memcore library. Everything runs in-process; no state survives the invocation.",
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
