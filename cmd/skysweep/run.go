package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"Skysweep/internal/config"
	"Skysweep/internal/core/sweep"
	"Skysweep/internal/logging"
)

type runOptions struct {
	schedule     string
	logLevel     string
	preserveDays int
	dryRun       bool
}

var runFlags runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a retention pass",
	Long: `Run one retention pass over the account's own feed and its likes.

Every post older than the retention window is handled in order: the account's like is
removed, then its repost, then the post itself if the account wrote it.

Examples:
  # Single pass with settings from the environment
  skysweep run

  # Only report what would be removed
  skysweep run --dry-run

  # Override the retention window
  skysweep run --preserve-days 14

  # Run on a schedule until interrupted
  skysweep run --schedule "0 3 * * *"`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(runCmd)
	bindRunFlags(runCmd.Flags())

	runCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return sweep.ConfigurationError(err)
	})
}

func bindRunFlags(fs *pflag.FlagSet) {
	fs.IntVar(&runFlags.preserveDays, "preserve-days", 0, "override SKYSWEEP_PRESERVE_DAYS")
	fs.BoolVar(&runFlags.dryRun, "dry-run", false, "report eligible posts without removing anything")
	fs.StringVar(&runFlags.schedule, "schedule", "", "cron expression; run passes on this schedule until interrupted")
	fs.StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
}

func runSweep(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return sweep.ConfigurationError(err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := sweep.NewService(cfg, sweep.WithLogger(logger))

	if cfg.Schedule == "" {
		return svc.RunPass(ctx)
	}

	// Reject bad settings up front rather than at the first tick
	if err := cfg.Validate(); err != nil {
		return sweep.ConfigurationError(err)
	}

	scheduler, err := sweep.NewScheduler(svc, cfg.Schedule, logger)
	if err != nil {
		return sweep.ConfigurationError(err)
	}
	if err := scheduler.Start(ctx); err != nil {
		return sweep.ConfigurationError(err)
	}

	logger.Info("waiting for the first scheduled pass", "next_run", scheduler.NextRun())
	return scheduler.Wait(ctx)
}

// loadConfig reads the environment and applies the flags that were set explicitly.
func loadConfig(flags *pflag.FlagSet) (config.Config, error) {
	if err := config.LoadEnvFile(envFile); err != nil {
		return config.Config{}, sweep.ConfigurationError(err)
	}

	cfg, err := config.ConfigFromEnv()
	if err != nil {
		return config.Config{}, sweep.ConfigurationError(err)
	}

	applyFlagOverrides(flags, &cfg)
	return cfg, nil
}

func applyFlagOverrides(flags *pflag.FlagSet, cfg *config.Config) {
	if flags.Changed("preserve-days") {
		cfg.PreserveDays = runFlags.preserveDays
	}
	if flags.Changed("dry-run") {
		cfg.DryRun = runFlags.dryRun
	}
	if flags.Changed("schedule") {
		cfg.Schedule = runFlags.schedule
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = runFlags.logLevel
	}
}
