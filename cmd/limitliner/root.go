package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version    = "dev"
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "limitliner",
	Short: "LimitLiner - screen time tracking and daily app limits",
	Long: `LimitLiner reconstructs app usage sessions from foreground/background
events, aggregates daily usage per app and alerts when an app or the
whole day goes over its limit.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to server command
		return runServer(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/limitliner/config.yaml", "Path to configuration file")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
