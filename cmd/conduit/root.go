package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "conduit",
	Short: "Conduit - multi-backend model request router",
	Long: `Conduit is a router that presents one OpenAI-compatible endpoint and
dispatches completion requests across many upstream channels.

It provides:
  - Channel registry with encrypted credential storage
  - Health-aware weighted channel selection
  - Per-vendor request and response translation (OpenAI, Anthropic)
  - Automatic failover on retryable upstream errors
  - Usage accounting and cost attribution per tenant`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
