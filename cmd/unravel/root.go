package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "unravel",
	Short: "Recursive problem-solving engine",
	Long: `Unravel decomposes a high-level objective into sub-problems, asks a
generative oracle for an executable program for each, runs it, and lets
generated programs recurse back into the engine.

Recursion is bounded by a depth guard and loop detection, so every solve
terminates. Everything that happens is recorded on a shared, append-only
timeline that can be archived and queried afterwards.

Core capabilities:
- Decomposes problems recursively via oracle-generated programs
- Guarantees termination with depth limits and loop detection
- Runs independent sub-problems concurrently on a worker pool
- Archives the full audit trail of every session to SQLite`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(solveCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(traceCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
