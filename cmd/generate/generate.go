// Package generate implements the generate command that creates funnel
// child pages for a parent and optionally drafts their articles.
package generate

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/funnelforge/cmd/common"
	"github.com/jonesrussell/funnelforge/internal/jobs"
)

// Generator handles the generate operation.
type Generator struct {
	deps   *common.Deps
	pageID string
	draft  bool
}

// Start creates child pages under the parent page and, when requested,
// drafts an article for each child still awaiting one.
func (g *Generator) Start(ctx context.Context) error {
	parent, err := g.deps.Pages.GetByID(ctx, g.pageID)
	if err != nil {
		return fmt.Errorf("loading parent page %s: %w", g.pageID, err)
	}

	project, err := g.deps.Projects.GetByID(ctx, parent.ProjectID)
	if err != nil {
		return fmt.Errorf("loading project %s: %w", parent.ProjectID, err)
	}

	runner := jobs.NewGenerationRunner(g.deps.FunnelGenerator(), g.deps.Pages, g.deps.Logger)

	stats, err := runner.CreateChildren(ctx, parent, project.Locale)
	if err != nil {
		return fmt.Errorf("generating children for %s: %w", parent.URL, err)
	}

	g.deps.Logger.Info("Child generation finished",
		"parent_url", parent.URL,
		"created", stats.Created,
		"skipped", stats.Skipped)

	if !g.draft {
		return nil
	}

	children, err := g.deps.Pages.ListByParent(ctx, parent.ID)
	if err != nil {
		return fmt.Errorf("listing children of %s: %w", parent.URL, err)
	}

	draftStats := runner.DraftArticles(ctx, children)
	g.deps.Logger.Info("Article drafting finished",
		"parent_url", parent.URL,
		"drafted", draftStats.Drafted,
		"failed", draftStats.Failed,
		"skipped", draftStats.Skipped)
	return nil
}

// Command returns the generate command for use in the root command.
func Command() *cobra.Command {
	var (
		pageID string
		draft  bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate funnel child pages for a parent page",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.Build(common.ConfigFlag(cmd))
			if err != nil {
				return err
			}
			defer deps.Close()

			g := &Generator{deps: deps, pageID: pageID, draft: draft}
			return g.Start(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&pageID, "page", "", "parent page ID to generate children for")
	cmd.Flags().BoolVar(&draft, "draft", false, "draft an article for each child after creation")
	_ = cmd.MarkFlagRequired("page")

	return cmd
}
