package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "elogfetch.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

// TestLoad_Defaults tests the built-in defaults
func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""), nil)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.HoursLookback != 168 {
		t.Errorf("HoursLookback = %d, want 168", cfg.HoursLookback)
	}
	if cfg.ParallelJobs != 10 {
		t.Errorf("ParallelJobs = %d, want 10", cfg.ParallelJobs)
	}
	if cfg.QueueSize != 100 {
		t.Errorf("QueueSize = %d, want 100", cfg.QueueSize)
	}
	if cfg.BatchSize != 50 {
		t.Errorf("BatchSize = %d, want 50", cfg.BatchSize)
	}
	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
	}
	if len(cfg.ExcludePatterns) != 0 {
		t.Errorf("ExcludePatterns = %v, want empty", cfg.ExcludePatterns)
	}
}

// TestLoad_ConfigFile tests YAML values overriding defaults
func TestLoad_ConfigFile(t *testing.T) {
	path := writeConfig(t, `
hours_lookback: 24
parallel_jobs: 4
exclude_patterns:
  - "txi*"
  - "tst*"
database_dir: /data/elog
`)

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.HoursLookback != 24 {
		t.Errorf("HoursLookback = %d, want 24", cfg.HoursLookback)
	}
	if cfg.ParallelJobs != 4 {
		t.Errorf("ParallelJobs = %d, want 4", cfg.ParallelJobs)
	}
	if len(cfg.ExcludePatterns) != 2 || cfg.ExcludePatterns[0] != "txi*" {
		t.Errorf("ExcludePatterns = %v", cfg.ExcludePatterns)
	}
	if cfg.DatabaseDir != "/data/elog" {
		t.Errorf("DatabaseDir = %q", cfg.DatabaseDir)
	}
	// Untouched keys keep their defaults.
	if cfg.BatchSize != 50 {
		t.Errorf("BatchSize = %d, want 50", cfg.BatchSize)
	}
}

// TestLoad_EnvOverridesFile tests env beating the config file
func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "hours_lookback: 24\n")
	t.Setenv("ELOGFETCH_HOURS_LOOKBACK", "48")

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.HoursLookback != 48 {
		t.Errorf("HoursLookback = %d, want 48", cfg.HoursLookback)
	}
}

// TestLoad_FlagOverridesEnv tests explicit flags beating everything
func TestLoad_FlagOverridesEnv(t *testing.T) {
	path := writeConfig(t, "hours_lookback: 24\n")
	t.Setenv("ELOGFETCH_HOURS_LOOKBACK", "48")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("hours", 0, "")
	if err := flags.Set("hours", "72"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	cfg, err := Load(path, flags)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.HoursLookback != 72 {
		t.Errorf("HoursLookback = %d, want 72", cfg.HoursLookback)
	}
}

// TestLoad_UnchangedFlagIgnored tests that a flag left at its default does
// not mask lower-precedence sources
func TestLoad_UnchangedFlagIgnored(t *testing.T) {
	path := writeConfig(t, "hours_lookback: 24\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("hours", 0, "")

	cfg, err := Load(path, flags)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.HoursLookback != 24 {
		t.Errorf("HoursLookback = %d, want 24", cfg.HoursLookback)
	}
}

// TestLoad_MissingExplicitFile tests that naming an absent file fails
func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	if err == nil {
		t.Fatal("Load() succeeded, want error")
	}
}

// TestValidate_RejectsNonPositive tests validation of pipeline sizes
func TestValidate_RejectsNonPositive(t *testing.T) {
	for _, content := range []string{
		"hours_lookback: 0\n",
		"parallel_jobs: -1\n",
		"queue_size: 0\n",
		"batch_size: 0\n",
		"max_attempts: 0\n",
	} {
		if _, err := Load(writeConfig(t, content), nil); err == nil {
			t.Errorf("Load(%q) succeeded, want error", content)
		}
	}
}
