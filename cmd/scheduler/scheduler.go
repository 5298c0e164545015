// Package scheduler implements the scheduler command that runs audit
// and classification sweeps on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	auditcmd "github.com/jonesrussell/funnelforge/cmd/audit"
	classifycmd "github.com/jonesrussell/funnelforge/cmd/classify"
	"github.com/jonesrussell/funnelforge/cmd/common"
)

// Scheduler drives periodic sweeps for a single project.
type Scheduler struct {
	deps      *common.Deps
	projectID string
}

// Start registers the sweep schedules and blocks until interrupted.
func (s *Scheduler) Start(ctx context.Context) error {
	log := s.deps.Logger
	cfg := s.deps.Config.Scheduler

	c := cron.New()

	if _, err := c.AddFunc(cfg.AuditSpec, func() {
		if err := auditcmd.Sweep(ctx, s.deps, s.projectID); err != nil {
			log.Error("Scheduled audit sweep failed", "project_id", s.projectID, "error", err)
		}
	}); err != nil {
		return fmt.Errorf("scheduling audit sweep %q: %w", cfg.AuditSpec, err)
	}

	if _, err := c.AddFunc(cfg.ClassifySpec, func() {
		if err := classifycmd.Sweep(ctx, s.deps, s.projectID); err != nil {
			log.Error("Scheduled classification sweep failed", "project_id", s.projectID, "error", err)
		}
	}); err != nil {
		return fmt.Errorf("scheduling classification sweep %q: %w", cfg.ClassifySpec, err)
	}

	log.Info("Scheduler starting",
		"project_id", s.projectID,
		"audit_spec", cfg.AuditSpec,
		"classify_spec", cfg.ClassifySpec)

	c.Start()
	<-ctx.Done()

	log.Info("Scheduler stopping")
	<-c.Stop().Done()
	return nil
}

// Command returns the scheduler command for use in the root command.
func Command() *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Run periodic audit and classification sweeps",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.Build(common.ConfigFlag(cmd))
			if err != nil {
				return err
			}
			defer deps.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s := &Scheduler{deps: deps, projectID: projectID}
			return s.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "project ID to sweep")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}
