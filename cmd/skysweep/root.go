package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"Skysweep/internal/core/sweep"
)

// envFile is the .env file loaded before reading the environment
var envFile string

var rootCmd = &cobra.Command{
	Use:   "skysweep",
	Short: "Skysweep - retention for Bluesky accounts",
	Long: `Skysweep deletes an account's posts and undoes its likes and reposts once they are
older than a retention window.

Settings come from SKYSWEEP_* environment variables, optionally loaded from a .env file.
Flags on the run command override them.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with the status of the outcome.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps command errors to exit statuses. Anything that is not the result of a pass is a
// usage problem.
func exitCode(err error) int {
	var sweepErr *sweep.Error
	if errors.As(err, &sweepErr) {
		return sweepErr.ExitCode()
	}
	return sweep.ExitConfiguration
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load variables from this file (default: .env if present)")
}
