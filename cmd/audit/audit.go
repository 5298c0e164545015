// Package audit implements the audit command that refreshes technical
// signals for a project's pages.
package audit

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/funnelforge/cmd/common"
)

// Sweep audits every page of a project and merges the resulting
// signals into storage.
func Sweep(ctx context.Context, deps *common.Deps, projectID string) error {
	project, err := deps.Projects.GetByID(ctx, projectID)
	if err != nil {
		return fmt.Errorf("loading project %s: %w", projectID, err)
	}

	pages, err := deps.Pages.ListByProject(ctx, project.ID)
	if err != nil {
		return fmt.Errorf("listing pages: %w", err)
	}

	audited := 0
	skipped := 0
	for _, page := range pages {
		allowed, err := deps.Robots.IsAllowed(ctx, page.URL)
		if err == nil && !allowed {
			deps.Logger.Debug("Skipping robots-blocked page",
				"page_id", page.ID, "url", page.URL)
			skipped++
			continue
		}

		signals := deps.Auditor.Audit(ctx, page, project.Locale)

		result, err := signals.ToMap()
		if err != nil {
			deps.Logger.Error("Failed to encode audit signals",
				"page_id", page.ID, "url", page.URL, "error", err)
			continue
		}
		if err := deps.Pages.UpdateSignals(ctx, page.ID, result); err != nil {
			deps.Logger.Error("Failed to store audit signals",
				"page_id", page.ID, "url", page.URL, "error", err)
			continue
		}
		audited++
	}

	deps.Logger.Info("Audit sweep finished",
		"project_id", project.ID,
		"pages", len(pages),
		"audited", audited,
		"robots_skipped", skipped)
	return nil
}

// Command returns the audit command for use in the root command.
func Command() *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Audit a project's pages and refresh their technical signals",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.Build(common.ConfigFlag(cmd))
			if err != nil {
				return err
			}
			defer deps.Close()

			return Sweep(cmd.Context(), deps, projectID)
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "project ID to audit")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}
