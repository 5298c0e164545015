// Package classify implements the classify command that assigns content
// types and funnel stages to a project's pages.
package classify

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/funnelforge/cmd/common"
)

// Sweep runs one classification pass over a project's pages.
func Sweep(ctx context.Context, deps *common.Deps, projectID string) error {
	stats, err := deps.Classifier().Run(ctx, projectID)
	if err != nil {
		return fmt.Errorf("classifying project %s: %w", projectID, err)
	}

	deps.Logger.Info("Classification sweep finished",
		"project_id", projectID,
		"examined", stats.Examined,
		"classified", stats.Classified,
		"skipped", stats.Skipped)
	return nil
}

// Command returns the classify command for use in the root command.
func Command() *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a project's pages by content type and funnel stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.Build(common.ConfigFlag(cmd))
			if err != nil {
				return err
			}
			defer deps.Close()

			return Sweep(cmd.Context(), deps, projectID)
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "project ID to classify")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}
