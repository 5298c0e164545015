// Package pages implements the pages command group for inspecting a
// project's page inventory.
package pages

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/funnelforge/cmd/common"
	"github.com/jonesrussell/funnelforge/internal/domain"
)

// TableRenderer displays pages in a formatted table.
type TableRenderer struct {
	out *os.File
}

// NewTableRenderer creates a renderer writing to stdout.
func NewTableRenderer() *TableRenderer {
	return &TableRenderer{out: os.Stdout}
}

// RenderTable formats and displays the pages in a table.
func (r *TableRenderer) RenderTable(pages []*domain.Page) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"URL", "Type", "Stage", "Score", "State"})

	for _, page := range pages {
		t.AppendRow(table.Row{
			page.URL,
			page.ContentType,
			page.FunnelStage,
			formatScore(page.Signals),
			page.GenerationState,
		})
	}

	t.Render()
}

// formatScore extracts the last audit score from the page's signals.
func formatScore(signals domain.JSONBMap) string {
	raw, ok := signals["onPageScore"]
	if !ok {
		return "-"
	}
	score, ok := raw.(float64)
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.0f", score)
}

func list(ctx context.Context, deps *common.Deps, projectID string) error {
	pages, err := deps.Pages.ListByProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("listing pages for %s: %w", projectID, err)
	}

	if len(pages) == 0 {
		deps.Logger.Info("No pages found", "project_id", projectID)
		return nil
	}

	NewTableRenderer().RenderTable(pages)
	return nil
}

// Command returns the pages command group for use in the root command.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pages",
		Short: "Inspect a project's page inventory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var projectID string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List a project's pages in a table",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.Build(common.ConfigFlag(cmd))
			if err != nil {
				return err
			}
			defer deps.Close()

			return list(cmd.Context(), deps, projectID)
		},
	}
	listCmd.Flags().StringVar(&projectID, "project", "", "project ID to list pages for")
	_ = listCmd.MarkFlagRequired("project")

	cmd.AddCommand(listCmd)
	return cmd
}
