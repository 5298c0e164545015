// Package crawl implements the crawl command for discovering a site's
// pages through its sitemaps.
package crawl

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/funnelforge/cmd/common"
	"github.com/jonesrussell/funnelforge/internal/domain"
	"github.com/jonesrussell/funnelforge/internal/sitemap"
)

// Crawler handles the crawl operation.
type Crawler struct {
	deps    *common.Deps
	domain  string
	locale  string
	budget  int
	enqueue bool
}

// Start discovers pages for the configured domain and persists the new
// ones, optionally enqueueing a research job per inserted page.
func (c *Crawler) Start(ctx context.Context) error {
	log := c.deps.Logger

	language, _, _ := strings.Cut(c.locale, "-")
	project, err := c.deps.Projects.GetOrCreateByDomain(ctx, uuid.NewString(), c.domain, c.locale, language)
	if err != nil {
		return fmt.Errorf("resolving project for %s: %w", c.domain, err)
	}

	crawler := sitemap.New(c.deps.Fetcher, c.deps.Robots, log)

	budget := c.budget
	if budget <= 0 {
		budget = c.deps.Config.Crawler.PageBudget
	}

	discovered, err := crawler.Crawl(ctx, c.domain, budget)
	if err != nil {
		return fmt.Errorf("crawling %s: %w", c.domain, err)
	}

	inserted := 0
	for _, d := range discovered {
		page := &domain.Page{
			ID:              uuid.NewString(),
			ProjectID:       project.ID,
			URL:             d.URL,
			ContentType:     domain.ContentTypeUnclassified,
			FunnelStage:     domain.StageUnassigned,
			GenerationState: domain.GenerationIdle,
		}

		isNew, err := c.deps.Pages.Insert(ctx, page)
		if err != nil {
			return fmt.Errorf("inserting page %s: %w", d.URL, err)
		}
		if !isNew {
			continue
		}
		inserted++

		if c.enqueue {
			job := &domain.ResearchJob{
				ID:        page.ID,
				ProjectID: project.ID,
				TargetURL: page.URL,
				Status:    domain.JobPending,
			}
			if err := c.deps.Jobs.Enqueue(ctx, job); err != nil {
				return fmt.Errorf("enqueueing research job for %s: %w", page.URL, err)
			}
		}
	}

	log.Info("Crawl finished",
		"project_id", project.ID,
		"discovered", len(discovered),
		"inserted", inserted,
		"enqueued", c.enqueue)
	return nil
}

// Command returns the crawl command for use in the root command.
func Command() *cobra.Command {
	var (
		siteDomain string
		locale     string
		budget     int
		enqueue    bool
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Discover a site's pages via its sitemaps",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.Build(common.ConfigFlag(cmd))
			if err != nil {
				return err
			}
			defer deps.Close()

			c := &Crawler{
				deps:    deps,
				domain:  siteDomain,
				locale:  locale,
				budget:  budget,
				enqueue: enqueue,
			}
			return c.Start(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&siteDomain, "domain", "", "site domain to crawl (e.g. example.com)")
	cmd.Flags().StringVar(&locale, "locale", "en-US", "locale used for fetch headers and keyword research")
	cmd.Flags().IntVar(&budget, "budget", 0, "page discovery budget (0 uses the configured default)")
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "enqueue a research job per newly inserted page")
	_ = cmd.MarkFlagRequired("domain")

	return cmd
}
