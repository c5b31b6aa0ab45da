package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/slaclab/elogfetch/internal/sync"
	"github.com/slaclab/elogfetch/internal/ui"
)

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Re-sync the experiments recorded in the failure ledger",
	Long: `Re-sync exactly the experiments listed in failed_experiments.json.

The retry extends the newest existing database. Experiments that succeed
are removed from the ledger; those that fail again stay in it, so repeated
retries converge on the stubborn ones.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		opts := sync.Options{
			Client:       newClient(cfg),
			DatabaseDir:  cfg.DatabaseDir,
			LedgerPath:   flagRetryFile,
			ParallelJobs: cfg.ParallelJobs,
			QueueSize:    cfg.QueueSize,
			BatchSize:    cfg.BatchSize,
			MaxAttempts:  cfg.MaxAttempts,
			Logger:       logger,
		}

		summary, err := sync.RetryFailed(cmd.Context(), opts)
		if err != nil {
			return err
		}

		if len(summary.Planned) == 0 {
			fmt.Printf("%s Nothing to retry\n", ui.RenderPass("✓"))
			return nil
		}
		printSummary(summary)
		return nil
	},
}

var flagRetryFile string

func init() {
	retryCmd.Flags().String("output-dir", "", "database directory")
	retryCmd.Flags().Int("parallel", 0, "number of fetch workers")
	retryCmd.Flags().StringVar(&flagRetryFile, "file", "",
		"failure ledger to retry (default failed_experiments.json in the database directory)")
	rootCmd.AddCommand(retryCmd)
}
