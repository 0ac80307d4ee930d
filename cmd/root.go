// Package cmd holds the workflow-builder command tree.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"workflow-builder/api/pkg/config"
	"workflow-builder/api/pkg/logging"
)

// cfg is resolved once before any subcommand runs.
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:          "workflow-builder",
	Short:        "Visual workflow builder API and tooling",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			loaded.LogLevel = level
		}
		cfg = loaded
		logging.Setup(cmd.ErrOrStderr(), cfg.LogLevel)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "override LOG_LEVEL (DEBUG, INFO, WARN, ERROR)")
	rootCmd.AddCommand(newServeCmd(), newRunCmd(), newCatalogCmd(), newCredentialCmd())
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
