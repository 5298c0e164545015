package sitemap

import (
	"context"
	"strings"

	"github.com/jonesrussell/funnelforge/internal/fetcher"
	"github.com/jonesrussell/funnelforge/internal/logger"
)

// maxIndexChildren bounds fan-out when recursing into a sitemap index:
// only the first N child sitemaps are visited.
const maxIndexChildren = 5

// candidatePaths are probed when robots.txt declares no sitemaps.
var candidatePaths = []string{
	"/sitemap.xml",
	"/sitemap_index.xml",
	"/sitemap.php",
}

// DiscoveredPage is a URL found in a leaf sitemap. Pages come back
// unclassified; deduplication against already-known URLs happens at the
// persistence boundary, not here.
type DiscoveredPage struct {
	URL string
}

// Fetcher retrieves URLs. Satisfied by *fetcher.Client.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL, locale string) (*fetcher.Result, error)
}

// SitemapSource lists the sitemap URLs a site declares in robots.txt.
// Satisfied by *fetcher.RobotsChecker.
type SitemapSource interface {
	Sitemaps(ctx context.Context, siteURL string) ([]string, error)
}

// Crawler walks a site's sitemap tree up to a page budget.
type Crawler struct {
	fetcher Fetcher
	robots  SitemapSource
	log     logger.Interface
}

// New creates a sitemap crawler.
func New(f Fetcher, robots SitemapSource, log logger.Interface) *Crawler {
	return &Crawler{
		fetcher: f,
		robots:  robots,
		log:     log.WithComponent("sitemap"),
	}
}

// Crawl discovers up to budget pages for the domain. Malformed or
// unreachable sitemaps are skipped so one bad branch never aborts its
// siblings; an empty result with nil error means nothing was discoverable.
func (c *Crawler) Crawl(ctx context.Context, domain string, budget int) ([]DiscoveredPage, error) {
	if budget <= 0 {
		return nil, nil
	}

	roots := c.sitemapRoots(ctx, domain)

	var pages []DiscoveredPage
	remaining := budget

	for _, root := range roots {
		if remaining <= 0 {
			break
		}
		pages = c.walk(ctx, root, pages, &remaining)
	}

	c.log.Info("sitemap crawl finished",
		"domain", domain,
		"discovered", len(pages),
		"budget", budget,
	)

	return pages, nil
}

// sitemapRoots returns the sitemap URLs to start from: robots.txt
// directives when present, otherwise the fixed candidate paths.
func (c *Crawler) sitemapRoots(ctx context.Context, domain string) []string {
	declared, err := c.robots.Sitemaps(ctx, domain)
	if err != nil {
		c.log.Warn("robots.txt lookup failed, falling back to candidate paths",
			"domain", domain, "error", err.Error())
	}
	if len(declared) > 0 {
		return declared
	}

	base := strings.TrimRight(domain, "/")
	roots := make([]string, 0, len(candidatePaths))
	for _, path := range candidatePaths {
		roots = append(roots, base+path)
	}

	return roots
}

// walk fetches one sitemap URL and either recurses into its children
// (index) or collects its page locations (leaf). The remaining budget is
// shared across the whole traversal and checked at every step.
func (c *Crawler) walk(ctx context.Context, sitemapURL string, pages []DiscoveredPage, remaining *int) []DiscoveredPage {
	if *remaining <= 0 {
		return pages
	}

	result, fetchErr := c.fetcher.Fetch(ctx, sitemapURL, "")
	if fetchErr != nil {
		c.log.Warn("sitemap unreachable, skipping", "url", sitemapURL, "error", fetchErr.Error())
		return pages
	}
	if result.StatusCode != 200 {
		c.log.Debug("sitemap fetch returned non-200, skipping",
			"url", sitemapURL, "status", result.StatusCode)
		return pages
	}

	doc, parseErr := parseDocument(result.Body)
	if parseErr != nil {
		c.log.Warn("malformed sitemap, skipping", "url", sitemapURL, "error", parseErr.Error())
		return pages
	}

	if doc.IsIndex {
		children := doc.Children
		if len(children) > maxIndexChildren {
			children = children[:maxIndexChildren]
		}
		for _, child := range children {
			if *remaining <= 0 {
				break
			}
			pages = c.walk(ctx, child, pages, remaining)
		}
		return pages
	}

	for _, loc := range doc.Locations {
		if *remaining <= 0 {
			break
		}
		pages = append(pages, DiscoveredPage{URL: loc})
		*remaining--
	}

	return pages
}
