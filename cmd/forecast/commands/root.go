package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Demandcast - ensemble demand forecasting core",
	Long: `Demandcast CLI

Risk-aware, explainable demand forecasting: a trusted historical series
enriched with unreliable external signals, forecast by a performance-
weighted model ensemble with uncertainty bounds and attributions.

Usage:
  go run ./cmd/forecast [command]

Examples:
  go run ./cmd/forecast run --demo
  go run ./cmd/forecast scenario --demand-multiplier 1.2
  go run ./cmd/forecast evaluate
  go run ./cmd/forecast sources
  go run ./cmd/forecast scheduler`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called once by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
