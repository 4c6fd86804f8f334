package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "planweave",
	Short: "Hierarchical task orchestration for reasoning agents",
	Long: `Planweave breaks a complicated task into a roadmap of subtasks,
creates workers with capability subsets matched to each subtask, and
drives them to completion while snapshotting state for resumability.

Core capabilities:
- Decomposes tasks into an ordered, revisable roadmap
- Creates workers scoped to subsets of the capability registry
- Dispatches subtasks and folds worker results back into the roadmap
- Snapshots full state after every reasoning step and tool execution
- Resumes interrupted runs from their last snapshot`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(snapshotsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
