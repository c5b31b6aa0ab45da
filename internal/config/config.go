// Package config loads tool configuration with the precedence
// flags > environment > config file > defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g.
// ELOGFETCH_HOURS_LOOKBACK.
const EnvPrefix = "ELOGFETCH"

// Defaults.
const (
	DefaultHoursLookback = 168
	DefaultParallelJobs  = 10
	DefaultQueueSize     = 100
	DefaultBatchSize     = 50
	DefaultMaxAttempts   = 3
)

// Config is the resolved tool configuration.
type Config struct {
	HoursLookback     int      `mapstructure:"hours_lookback"`
	ExcludePatterns   []string `mapstructure:"exclude_patterns"`
	ParallelJobs      int      `mapstructure:"parallel_jobs"`
	QueueSize         int      `mapstructure:"queue_size"`
	BatchSize         int      `mapstructure:"batch_size"`
	MaxAttempts       int      `mapstructure:"max_attempts"`
	DatabaseDir       string   `mapstructure:"database_dir"`
	BaseURL           string   `mapstructure:"base_url"`
	KerberosPrincipal string   `mapstructure:"kerberos_principal"`
	LogFile           string   `mapstructure:"log_file"`
}

// Load resolves the configuration. configFile may be empty, in which case
// elogfetch.yaml is searched in the working directory and
// $HOME/.config/elogfetch/. flags, when non-nil, binds the given flag set
// on top so explicitly-set flags win over everything else.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetDefault("hours_lookback", DefaultHoursLookback)
	v.SetDefault("exclude_patterns", []string{})
	v.SetDefault("parallel_jobs", DefaultParallelJobs)
	v.SetDefault("queue_size", DefaultQueueSize)
	v.SetDefault("batch_size", DefaultBatchSize)
	v.SetDefault("max_attempts", DefaultMaxAttempts)
	v.SetDefault("database_dir", ".")
	v.SetDefault("base_url", "")
	v.SetDefault("kerberos_principal", "")
	v.SetDefault("log_file", "")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("elogfetch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "elogfetch"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine unless the operator named one explicitly.
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if configFile != "" || !notFound {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		// CLI flag names differ from config keys for ergonomics.
		aliases := map[string]string{
			"hours":      "hours_lookback",
			"exclude":    "exclude_patterns",
			"output-dir": "database_dir",
			"parallel":   "parallel_jobs",
			"queue-size": "queue_size",
			"batch-size": "batch_size",
			"log-file":   "log_file",
		}
		for flagName, key := range aliases {
			if f := flags.Lookup(flagName); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", flagName, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.HoursLookback <= 0 {
		return fmt.Errorf("hours_lookback must be positive, got %d", c.HoursLookback)
	}
	if c.ParallelJobs <= 0 {
		return fmt.Errorf("parallel_jobs must be positive, got %d", c.ParallelJobs)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be positive, got %d", c.QueueSize)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be positive, got %d", c.MaxAttempts)
	}
	return nil
}
