package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/planweave/planweave/internal/config"
	"github.com/planweave/planweave/internal/reason"
)

var (
	runMode    string
	runVerbose bool
)

var runCmd = &cobra.Command{
	Use:   "run <task>",
	Short: "Run a task through the orchestrator",
	Long: `Run a task. Depending on the planner mode, the task is either
answered directly or decomposed into a roadmap and dispatched to
workers. State is snapshotted throughout, so an interrupted run can be
resumed with 'planweave resume'.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		task := strings.Join(args, " ")

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := overrideMode(cfg, runMode); err != nil {
			return err
		}

		sess, err := buildSession(cfg, runVerbose)
		if err != nil {
			return err
		}
		defer sess.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sess.orch.SetEventHandler(printEvent)

		fmt.Printf("%s %s\n\n", headerStyle.Render("run"), sess.orch.RunID())
		res, err := sess.orch.Run(ctx, task)
		if err != nil {
			if errors.Is(err, reason.ErrBudgetExceeded) {
				fmt.Println(warnStyle.Render("iteration budget exhausted; partial state saved"))
				printResult(res)
				return nil
			}
			return err
		}
		printResult(res)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runMode, "mode", "", "planner mode for this run (disable, dynamic, enforced)")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "verbose logging")
}
