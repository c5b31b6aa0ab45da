package main

import (
	"github.com/spf13/cobra"

	"github.com/slaclab/elogfetch/internal/sync"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <experiment-id>...",
	Short: "Sync specific experiments regardless of update time",
	Long: `Fetch the named experiments and commit them to a new database,
bypassing change-set resolution. Useful for backfilling an experiment the
window missed or re-pulling one after a data fix upstream.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		opts := sync.Options{
			Client:       newClient(cfg),
			DatabaseDir:  cfg.DatabaseDir,
			ParallelJobs: cfg.ParallelJobs,
			QueueSize:    cfg.QueueSize,
			BatchSize:    cfg.BatchSize,
			MaxAttempts:  cfg.MaxAttempts,
			Incremental:  flagFetchIncremental,
			Experiments:  args,
			Logger:       logger,
		}

		summary, err := sync.Run(cmd.Context(), opts)
		if err != nil {
			return err
		}

		printSummary(summary)
		return nil
	},
}

var flagFetchIncremental bool

func init() {
	fetchCmd.Flags().String("output-dir", "", "database directory")
	fetchCmd.Flags().BoolVar(&flagFetchIncremental, "incremental", true,
		"seed the new database from the newest existing one")
	rootCmd.AddCommand(fetchCmd)
}
