package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/slaclab/elogfetch/internal/lock"
	"github.com/slaclab/elogfetch/internal/sync"
	"github.com/slaclab/elogfetch/internal/ui"
)

var (
	flagIncremental bool
	flagBasePath    string
	flagDryRun      bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync recently updated experiments into a new database",
	Long: `Sync experiments updated within the lookback window.

Each invocation writes a new timestamped database (elog_YYYY_MMDD_HHMM.db)
in the database directory. With --incremental the new database starts as a
copy of the newest existing one, so experiments outside the window are
carried forward. Failed experiments are recorded in failed_experiments.json
for a later 'elogfetch retry'.

Per-experiment failures do not fail the run; the exit code is non-zero only
when the run as a whole cannot proceed (lock held, listing unreachable,
authentication failure).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		opts := sync.Options{
			Client:        newClient(cfg),
			DatabaseDir:   cfg.DatabaseDir,
			HoursLookback: cfg.HoursLookback,
			Exclude:       cfg.ExcludePatterns,
			ParallelJobs:  cfg.ParallelJobs,
			QueueSize:     cfg.QueueSize,
			BatchSize:     cfg.BatchSize,
			MaxAttempts:   cfg.MaxAttempts,
			Incremental:   flagIncremental,
			BasePath:      flagBasePath,
			DryRun:        flagDryRun,
			Logger:        logger,
		}

		summary, err := sync.Run(cmd.Context(), opts)
		if err != nil {
			if errors.Is(err, lock.ErrAlreadyRunning) {
				return fmt.Errorf("another sync is already running in %s", cfg.DatabaseDir)
			}
			return err
		}

		if flagDryRun {
			fmt.Printf("%s %d experiments would be synced:\n", ui.RenderAccent("Plan:"), len(summary.Planned))
			for _, id := range summary.Planned {
				fmt.Printf("   %s\n", id)
			}
			return nil
		}

		printSummary(summary)
		return nil
	},
}

func init() {
	syncCmd.Flags().Int("hours", 0, "lookback window in hours")
	syncCmd.Flags().StringSlice("exclude", nil, "glob patterns of experiment ids to skip")
	syncCmd.Flags().String("output-dir", "", "database directory")
	syncCmd.Flags().Int("parallel", 0, "number of fetch workers")
	syncCmd.Flags().Int("queue-size", 0, "result queue bound")
	syncCmd.Flags().Int("batch-size", 0, "experiments per commit")
	syncCmd.Flags().BoolVar(&flagIncremental, "incremental", false,
		"seed the new database from the newest existing one")
	syncCmd.Flags().StringVar(&flagBasePath, "base", "",
		"existing database to seed from (implies --incremental)")
	syncCmd.Flags().BoolVar(&flagDryRun, "dry-run", false,
		"resolve and print the change set without fetching")

	rootCmd.AddCommand(syncCmd)
}

func printSummary(s *sync.Summary) {
	if len(s.Failed) == 0 {
		fmt.Printf("%s Sync complete in %v\n", ui.RenderPass("✓"), s.Duration.Round(time.Millisecond))
	} else {
		fmt.Printf("%s Sync finished with failures in %v\n", ui.RenderWarn("⚠"), s.Duration.Round(time.Millisecond))
	}
	fmt.Printf("   Committed: %d\n", s.Committed)
	fmt.Printf("   Failed: %d\n", len(s.Failed))
	fmt.Printf("   Database: %s\n", s.StorePath)
	if len(s.Failed) > 0 {
		fmt.Printf("   Ledger: %s\n", s.LedgerPath)
		for _, e := range s.Failed {
			fmt.Printf("   %s %s: %s\n", ui.RenderFail("✗"), e.ExperimentID, e.Error)
		}
		fmt.Fprintf(os.Stderr, "Run 'elogfetch retry' to re-sync the failed experiments.\n")
	}
}
