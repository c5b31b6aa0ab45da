package main

import (
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/slaclab/elogfetch/internal/config"
	"github.com/slaclab/elogfetch/internal/elog"
)

var (
	flagConfig  string
	flagVerbose bool
	flagQuiet   bool
	flagLogFile string
)

var rootCmd = &cobra.Command{
	Use:   "elogfetch",
	Short: "Mirror experiment logbook data into local SQLite databases",
	Long: `elogfetch pulls experiment data (info, elog entries, run tables,
file manager listings, questionnaires and workflow definitions) from the
logbook web service into a timestamped local SQLite database.

Runs are incremental by default at the experiment level: each run fetches
only experiments updated within the lookback window, and --incremental
carries everything else forward from the newest existing database.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "",
		"config file (default elogfetch.yaml in . or ~/.config/elogfetch/)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false,
		"log progress detail")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false,
		"suppress progress output")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "",
		"append logs to this file (rotated) instead of stderr")
}

// newLogger builds the run logger. With --log-file the log goes to a
// rotating file; otherwise progress goes to stderr unless --quiet.
func newLogger(cfg *config.Config) *log.Logger {
	logFile := flagLogFile
	if logFile == "" {
		logFile = cfg.LogFile
	}

	var out io.Writer = os.Stderr
	if logFile != "" {
		out = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
	} else if flagQuiet {
		out = io.Discard
	}

	logFlags := log.LstdFlags
	if flagVerbose {
		logFlags |= log.Lmicroseconds
	}
	return log.New(out, "[elogfetch] ", logFlags)
}

// newClient builds the API client from the resolved configuration.
func newClient(cfg *config.Config) *elog.Client {
	principal := cfg.KerberosPrincipal
	if principal == "" {
		principal = elog.DefaultPrincipal
	}
	return elog.NewClient(cfg.BaseURL, elog.NewKerberosCredential(principal))
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(flagConfig, cmd.Flags())
}
