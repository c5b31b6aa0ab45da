package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/slaclab/elogfetch/internal/ledger"
	"github.com/slaclab/elogfetch/internal/store"
	"github.com/slaclab/elogfetch/internal/sync"
	"github.com/slaclab/elogfetch/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the newest database and any pending failures",
	Long: `Display the state of the database directory.

Shows the newest database file, its row counts and last sync time, and the
contents of the failure ledger if one exists.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		latest, err := store.LatestPath(cfg.DatabaseDir)
		if err != nil {
			return err
		}
		if latest == "" {
			fmt.Printf("%s No databases in %s\n", ui.RenderWarn("⚠"), cfg.DatabaseDir)
			fmt.Printf("   Run 'elogfetch sync' to create one\n")
			return nil
		}

		info, err := os.Stat(latest)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", latest, err)
		}

		db, err := store.Open(latest)
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.Stats(cmd.Context())
		if err != nil {
			return err
		}
		lastUpdate, err := db.Metadata(cmd.Context(), sync.MetaLastUpdate)
		if err != nil {
			return err
		}

		fmt.Printf("\n%s %s\n\n", ui.RenderAccent("Database:"), latest)
		fmt.Printf("Size: %s\n", formatSize(info.Size()))
		if lastUpdate != "" {
			fmt.Printf("Last update: %s\n", lastUpdate)
		}
		if window, err := db.Metadata(cmd.Context(), sync.MetaHoursLookback); err == nil && window != "" {
			fmt.Printf("Lookback hours: %s\n", window)
		}
		fmt.Printf("Experiments: %d\n", stats["Experiment"])
		fmt.Printf("Runs: %d\n", stats["Run"])
		fmt.Printf("Logbook entries: %d\n", stats["Logbook"])
		fmt.Printf("Questionnaire fields: %d\n", stats["Questionnaire"])
		fmt.Printf("Workflows: %d\n", stats["Workflow"])

		ledgerPath := filepath.Join(cfg.DatabaseDir, ledger.FileName)
		led, err := ledger.Load(ledgerPath)
		if err != nil {
			fmt.Printf("\n%s failure ledger unreadable: %v\n", ui.RenderFail("✗"), err)
			return nil
		}
		if led.Len() > 0 {
			fmt.Printf("\n%s %d experiments pending retry:\n", ui.RenderWarn("⚠"), led.Len())
			for _, e := range led.Entries() {
				fmt.Printf("   %s (%d attempts): %s\n", e.ExperimentID, e.Attempts, e.Error)
			}
		}
		return nil
	},
}

func formatSize(size int64) string {
	switch {
	case size > 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
	case size > 1024:
		return fmt.Sprintf("%.1f KB", float64(size)/1024)
	default:
		return fmt.Sprintf("%d bytes", size)
	}
}

func init() {
	statusCmd.Flags().String("output-dir", "", "database directory")
	rootCmd.AddCommand(statusCmd)
}
