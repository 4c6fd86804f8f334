package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/planweave/planweave/internal/config"
	"github.com/planweave/planweave/internal/snapshot"
)

var snapshotsPurgeDays int

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots [run-id]",
	Short: "List stored run snapshots",
	Long: `List runs with snapshots in the project store. With a run id,
list every snapshot recorded for that run in order.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}

		path := storePath(cfg, cwd)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			fmt.Println("no snapshot store yet; run 'planweave run <task>' first")
			return nil
		}
		store, err := snapshot.Open(path)
		if err != nil {
			return fmt.Errorf("open snapshot store: %w", err)
		}
		defer store.Close()

		if snapshotsPurgeDays > 0 {
			n, err := store.PurgeOldSnapshots(time.Duration(snapshotsPurgeDays) * 24 * time.Hour)
			if err != nil {
				return err
			}
			fmt.Printf("purged %d snapshots older than %d days\n", n, snapshotsPurgeDays)
			return nil
		}

		if len(args) == 1 {
			return listRunSnapshots(store, args[0])
		}
		return listRuns(store)
	},
}

func listRuns(store *snapshot.Store) error {
	metas, err := store.ListRuns()
	if err != nil {
		return err
	}
	if len(metas) == 0 {
		fmt.Println("no snapshots stored")
		return nil
	}
	fmt.Println(headerStyle.Render("runs"))
	for _, m := range metas {
		fmt.Printf("%s  %s  %s\n",
			m.RunID,
			m.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			faintStyle.Render(string(m.Phase)))
	}
	return nil
}

func listRunSnapshots(store *snapshot.Store, runID string) error {
	metas, err := store.ListByRun(runID)
	if err != nil {
		return err
	}
	if len(metas) == 0 {
		fmt.Printf("no snapshots for run %s\n", runID)
		return nil
	}
	fmt.Println(headerStyle.Render("snapshots for " + runID))
	for _, m := range metas {
		phase := string(m.Phase)
		if m.Phase == snapshot.PhasePostAction {
			phase = toolStyle.Render(phase)
		}
		fmt.Printf("%s  %s  %s  v%d\n",
			m.ID,
			m.CreatedAt.Local().Format("15:04:05.000"),
			phase,
			m.SchemaVersion)
	}
	return nil
}

func init() {
	snapshotsCmd.Flags().IntVar(&snapshotsPurgeDays, "purge-older-than", 0, "delete snapshots older than N days")
}
