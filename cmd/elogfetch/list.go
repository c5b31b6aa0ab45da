package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/slaclab/elogfetch/internal/store"
	"github.com/slaclab/elogfetch/internal/sync"
	"github.com/slaclab/elogfetch/internal/ui"
)

var flagListDatabases bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List experiments updated within the lookback window",
	Long: `List the experiment ids a sync would fetch, without writing
anything. With --databases, list the local database files instead (the
newest one is marked).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		if flagListDatabases {
			paths, err := store.ListPaths(cfg.DatabaseDir)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				fmt.Printf("%s No databases in %s\n", ui.RenderWarn("⚠"), cfg.DatabaseDir)
				return nil
			}
			for i, path := range paths {
				marker := " "
				if i == len(paths)-1 {
					marker = ui.RenderPass("*")
				}
				fmt.Printf("%s %s\n", marker, path)
			}
			return nil
		}

		ids, err := sync.Resolve(cmd.Context(), newClient(cfg), cfg.HoursLookback, cfg.ExcludePatterns)
		if err != nil {
			return err
		}
		fmt.Printf("%s %d experiments updated in the last %dh:\n",
			ui.RenderAccent("Updated:"), len(ids), cfg.HoursLookback)
		for _, id := range ids {
			fmt.Printf("   %s\n", id)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().Int("hours", 0, "lookback window in hours")
	listCmd.Flags().StringSlice("exclude", nil, "glob patterns of experiment ids to skip")
	listCmd.Flags().String("output-dir", "", "database directory")
	listCmd.Flags().BoolVar(&flagListDatabases, "databases", false,
		"list local database files instead of remote experiments")
	rootCmd.AddCommand(listCmd)
}
