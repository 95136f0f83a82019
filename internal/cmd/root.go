package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dosanma1/wheelforge/internal/logging"
)

// Version is overridden at link time.
var Version = "0.1.0"

var (
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "wheelforge",
	Short: "Build, repair and test Python wheels",
	Long: `wheelforge builds a wheel for a Python project, optionally repairs it
with an external tool such as delvewheel, installs it into a fresh
virtual environment for testing and moves it into the output directory.

Settings come from wheelforge.yaml, CIBW_* environment variables and
command line flags, in increasing order of precedence.`,
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupLogging,
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text|json)")
}

func setupLogging(cmd *cobra.Command, _ []string) error {
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	if logFormat != "text" && logFormat != "json" {
		return fmt.Errorf("invalid log format %q (must be text or json)", logFormat)
	}
	logging.Init(level, logFormat, cmd.ErrOrStderr())
	return nil
}
