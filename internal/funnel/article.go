package funnel

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonesrussell/funnelforge/internal/domain"
	"github.com/jonesrussell/funnelforge/internal/gemini"
)

const articlePromptFormat = `Write a complete SEO article in Markdown for the page titled %q.
Target keywords, most important first:
%s
The article supports this page in a content funnel. Parent page: %q (%s).%s
Hard requirement: link to %s at least twice, once within the opening third
of the article and once in the closing section, using natural anchor text.
Write 1200-1800 words. Respond with only the article body.`

// DraftArticle generates the article body for a Topic page, enforcing
// the anchor-link contract against the page's ultimate bottom-stage
// ancestor. The returned body is not persisted.
func (g *Generator) DraftArticle(ctx context.Context, page *domain.Page) (string, error) {
	if page.ContentType != domain.ContentTypeTopic || page.ParentPageID == nil {
		return "", fmt.Errorf("%w: type %s", ErrIneligibleParent, page.ContentType)
	}

	parent, err := g.pages.GetByID(ctx, *page.ParentPageID)
	if err != nil {
		return "", fmt.Errorf("loading parent page: %w", err)
	}

	// Top-stage articles anchor to the grandparent, the original
	// transactional page; middle-stage articles anchor to the parent.
	anchor := parent
	var grandparentNote string
	if page.FunnelStage == domain.StageTop && parent.ParentPageID != nil {
		anchor, err = g.pages.GetByID(ctx, *parent.ParentPageID)
		if err != nil {
			return "", fmt.Errorf("loading anchor page: %w", err)
		}
		grandparentNote = fmt.Sprintf("\nUltimate anchor page: %q (%s).", anchor.Title(), anchor.URL)
	}

	keywordLines := make([]string, 0, len(page.KeywordCluster))
	for _, ref := range page.KeywordCluster {
		keywordLines = append(keywordLines, "- "+ref.Keyword)
	}

	prompt := fmt.Sprintf(articlePromptFormat,
		page.Title(),
		strings.Join(keywordLines, "\n"),
		parent.Title(), parent.URL,
		grandparentNote+g.competitorNote(ctx, page),
		anchor.URL)

	body, err := g.llm.Generate(ctx, prompt, gemini.GenerateOptions{})
	if err != nil {
		return "", fmt.Errorf("drafting article: %w", err)
	}

	if !VerifyAnchorLinks(body, anchor.URL) {
		return "", fmt.Errorf("%w: anchor %s", ErrMissingAnchorLinks, anchor.URL)
	}

	g.logger.Info("article drafted",
		"page_id", page.ID,
		"anchor_url", anchor.URL,
		"chars", len(body))
	return body, nil
}

// competitorNote builds an optional prompt section listing the top
// organic results for the page's primary keyword. Only middle-stage
// pages get it, and lookup failures degrade to an empty section.
func (g *Generator) competitorNote(ctx context.Context, page *domain.Page) string {
	if g.competitors == nil || page.FunnelStage != domain.StageMiddle {
		return ""
	}

	keyword := page.KeywordCluster.Primary()
	if keyword == "" {
		return ""
	}

	competitors, err := g.competitors.TopCompetitors(ctx, keyword, "")
	if err != nil {
		g.logger.Debug("competitor lookup skipped",
			"page_id", page.ID, "keyword", keyword, "error", err)
		return ""
	}

	lines := make([]string, 0, len(competitors))
	for _, c := range competitors {
		lines = append(lines, fmt.Sprintf("- %s (%s)", c.Title, c.Domain))
	}
	if len(lines) == 0 {
		return ""
	}
	return "\nPages currently ranking for the primary keyword, for positioning context:\n" +
		strings.Join(lines, "\n")
}

// VerifyAnchorLinks reports whether the body references the anchor URL
// at least twice, with one mention in the opening third and one in the
// closing third.
func VerifyAnchorLinks(body, anchorURL string) bool {
	if anchorURL == "" || len(body) == 0 {
		return false
	}
	if strings.Count(body, anchorURL) < minAnchorMentions {
		return false
	}

	first := strings.Index(body, anchorURL)
	last := strings.LastIndex(body, anchorURL)
	third := len(body) / 3
	return first < third && last >= len(body)-third
}
