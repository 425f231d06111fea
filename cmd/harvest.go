package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/structharvest/harvester/internal/capsule"
)

// newHarvestCmd runs one harvest job synchronously for the given seed URL.
func newHarvestCmd(getApp func() *app) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "harvest <url>",
		Short: "Harvest a single site and exit",
		Long: `Runs one harvest job to completion: crawls from the seed URL,
persists capsules, and writes the run manifest before exiting.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if owner == "" {
				owner = a.cfg.Harvest.DefaultOwner
			}
			job := capsule.Job{OwnerSlug: owner, URL: args[0]}

			result, err := a.orchestrator.RunJob(ctx, job)
			if err != nil {
				return fmt.Errorf("harvest %s: %w", args[0], err)
			}

			a.logger.Info("harvest complete",
				zap.String("run_id", result.RunID),
				zap.String("manifest", result.ManifestPath))
			fmt.Fprintf(cmd.OutOrStdout(), "run %s complete, manifest at %s\n",
				result.RunID, result.ManifestPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner slug for the harvested node")
	return cmd
}
