// Package cli provides the command-line interface for flightboard.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/skyhub/flightboard/internal/logging"
	"github.com/skyhub/flightboard/internal/version"
)

var (
	// Global flags
	cfgFile    string
	listenAddr string
	verbose    bool

	// Global logger, initialized before any command runs
	logger *logging.Logger
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "flightboard",
		Short: "Flightboard - data acquisition backend for the flight dashboard",
		Long: `Flightboard ` + version.Version + ` - Built: ` + version.BuildTime + `
Backend service that turns two rate-limit-sensitive upstreams (a schedule
aggregator and a flight-tracking page) into cached JSON for the dashboard.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.NewDefaultLogger()
			if verbose {
				logging.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	rootCmd.AddCommand(newServeCmd())

	return rootCmd
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		return 1
	}
	return 0
}
