package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"conduit-hq/conduit/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load and validate the configuration file without starting the server.

Exits non-zero if the configuration cannot be read, parsed, or fails
validation. Secret references are resolved, so the environment must
carry any ${secret:name} values the file uses.

Examples:
  # Validate the default config
  conduit validate

  # Validate a specific file
  conduit validate --config /etc/conduit/config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Configuration valid: %s\n", cfgFile)
		fmt.Printf("  listen address: %s\n", cfg.Server.ListenAddress)
		fmt.Printf("  store path:     %s\n", cfg.Store.Path)
		fmt.Printf("  api keys:       %d\n", len(cfg.Auth.APIKeys))
		fmt.Printf("  pricing models: %d\n", len(cfg.Usage.Pricing))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
