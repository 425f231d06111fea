// Package cmd defines the CLI commands for the harvester executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/structharvest/harvester/internal/config"
	"github.com/structharvest/harvester/internal/logging"
)

var cfgFile string

// newRootCmd creates and configures the root command. The service graph is
// built in PersistentPreRunE so every subcommand gets the same wiring.
func newRootCmd() *cobra.Command {
	var a *app

	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Structured-data web harvester",
		Long: `harvester crawls sites breadth-first, extracts embedded structured
data, fills gaps with heuristic inference, and persists fingerprinted
capsules with a full audit manifest per run.`,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)

			a, err = buildApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("initialize services: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a != nil {
				a.close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")

	cmd.AddCommand(newServeCmd(func() *app { return a }))
	cmd.AddCommand(newHarvestCmd(func() *app { return a }))

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "harvester: %v\n", err)
		os.Exit(1)
	}
}
