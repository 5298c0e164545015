// Package worker implements the worker command that runs the research
// job pool.
package worker

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/funnelforge/cmd/common"
	"github.com/jonesrussell/funnelforge/internal/jobs"
)

// Command returns the worker command for use in the root command.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the research worker pool",
		Long: `Starts a pool of workers that claim pending research jobs,
audit the target pages, and record the results. Runs until
interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.Build(common.ConfigFlag(cmd))
			if err != nil {
				return err
			}
			defer deps.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pool := jobs.NewPool(deps.Jobs, deps.Projects, deps.Auditor, jobs.PoolConfig{
				WorkerCount: deps.Config.Worker.Count,
				PollDelay:   deps.Config.Worker.PollDelay,
			}, deps.Logger)

			deps.Logger.Info("Worker pool starting", "workers", deps.Config.Worker.Count)
			pool.Start(ctx)
			deps.Logger.Info("Worker pool stopped")
			return nil
		},
	}

	return cmd
}
