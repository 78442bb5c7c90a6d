// Package cmd provides the CLI commands for transport-cost.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"transport-cost/internal/config"
	"transport-cost/internal/logging"
)

// Version is the tool version
const Version = "0.3.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "transport-cost",
	Short: "Quote transport jobs",
	Long: `transport-cost builds route timelines and produces deterministic,
itemized cost quotes: fuel and tolls per country, driver pay, overheads and
timeline events.

Examples:
  transport-cost quote job.json
  transport-cost quote --format json job.json
  transport-cost settings show --route 6f1c...
  transport-cost overrides add --business 2b7e... --country DE --class 2 --multiplier 1.25`,
	SilenceUsage: true,
}

// Execute runs the CLI
func Execute() error {
	defer logging.Sync()
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.transport-cost/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	path := cfgFile
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.LoadWithEnv(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	config.Set(cfg)

	// Initialize logging
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := logging.Initialize(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
	}
}

// versionCmd prints version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "transport-cost version %s\n", Version)
	},
}
