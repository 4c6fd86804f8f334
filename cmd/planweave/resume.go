package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/planweave/planweave/internal/config"
	"github.com/planweave/planweave/internal/snapshot"
)

var resumeVerbose bool

var resumeCmd = &cobra.Command{
	Use:   "resume <run-id>",
	Short: "Resume an interrupted run from its last snapshot",
	Long: `Resume a run. The latest snapshot for the run is restored: the
notebook, the roadmap, and the worker pool come back exactly as they
were, and work continues from the first unfinished subtask.

If the snapshot was written by an incompatible version of planweave,
the run cannot be restored; start a fresh run instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runID := args[0]

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		sess, err := buildSession(cfg, resumeVerbose)
		if err != nil {
			return err
		}
		defer sess.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sess.orch.SetEventHandler(printEvent)

		fmt.Printf("%s %s\n\n", headerStyle.Render("resume"), runID)
		res, err := sess.orch.Resume(ctx, runID)
		if err != nil {
			if errors.Is(err, snapshot.ErrIncompatibleVersion) {
				fmt.Println(warnStyle.Render("snapshot was written by an incompatible version"))
				fmt.Println("start over with: planweave run <task>")
				return nil
			}
			return err
		}
		printResult(res)
		return nil
	},
}

func init() {
	resumeCmd.Flags().BoolVarP(&resumeVerbose, "verbose", "v", false, "verbose logging")
}
