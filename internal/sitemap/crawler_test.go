package sitemap_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/funnelforge/internal/fetcher"
	"github.com/jonesrussell/funnelforge/internal/logger"
	"github.com/jonesrussell/funnelforge/internal/sitemap"
)

// fakeFetcher serves canned bodies by URL. Unknown URLs get a 404.
type fakeFetcher struct {
	bodies  map[string]string
	fetched []string
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL, _ string) (*fetcher.Result, error) {
	f.fetched = append(f.fetched, rawURL)
	body, ok := f.bodies[rawURL]
	if !ok {
		return &fetcher.Result{StatusCode: 404}, nil
	}
	return &fetcher.Result{StatusCode: 200, Body: []byte(body)}, nil
}

// fakeRobots returns a fixed sitemap list.
type fakeRobots struct {
	sitemaps []string
	err      error
}

func (f *fakeRobots) Sitemaps(context.Context, string) ([]string, error) {
	return f.sitemaps, f.err
}

func leafSitemap(urls ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><urlset>`)
	for _, u := range urls {
		fmt.Fprintf(&b, "<url><loc>%s</loc></url>", u)
	}
	b.WriteString(`</urlset>`)
	return b.String()
}

func indexSitemap(children ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><sitemapindex>`)
	for _, c := range children {
		fmt.Fprintf(&b, "<sitemap><loc>%s</loc></sitemap>", c)
	}
	b.WriteString(`</sitemapindex>`)
	return b.String()
}

func leafURLs(prefix string, n int) []string {
	urls := make([]string, 0, n)
	for i := 0; i < n; i++ {
		urls = append(urls, fmt.Sprintf("https://example.com/%s/page-%d", prefix, i))
	}
	return urls
}

func TestCrawl_PrettyPrintedSitemapsYieldTrimmedURLs(t *testing.T) {
	// Formatters put <loc> data on its own indented line; the
	// surrounding whitespace must not survive into the URLs.
	prettyIndex := `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex>
  <sitemap>
    <loc>
      https://example.com/sm-1.xml
    </loc>
  </sitemap>
</sitemapindex>`
	prettyLeaf := `<?xml version="1.0" encoding="UTF-8"?>
<urlset>
  <url>
    <loc>
      https://example.com/page
    </loc>
  </url>
</urlset>`
	f := &fakeFetcher{bodies: map[string]string{
		"https://example.com/index.xml": prettyIndex,
		"https://example.com/sm-1.xml":  prettyLeaf,
	}}
	robots := &fakeRobots{sitemaps: []string{"https://example.com/index.xml"}}
	c := sitemap.New(f, robots, logger.NewNoOp())

	pages, err := c.Crawl(context.Background(), "example.com", 10)

	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "https://example.com/page", pages[0].URL)
}

func TestCrawl_IndexTruncatesWithinBudget(t *testing.T) {
	// robots.txt lists one index with three 100-URL children; budget 150
	// must truncate inside the second child.
	children := []string{
		"https://example.com/sm-1.xml",
		"https://example.com/sm-2.xml",
		"https://example.com/sm-3.xml",
	}
	f := &fakeFetcher{bodies: map[string]string{
		"https://example.com/sitemap_index.xml": indexSitemap(children...),
		children[0]:                             leafSitemap(leafURLs("a", 100)...),
		children[1]:                             leafSitemap(leafURLs("b", 100)...),
		children[2]:                             leafSitemap(leafURLs("c", 100)...),
	}}
	robots := &fakeRobots{sitemaps: []string{"https://example.com/sitemap_index.xml"}}

	pages, err := sitemap.New(f, robots, logger.NewNoOp()).
		Crawl(context.Background(), "https://example.com", 150)
	require.NoError(t, err)
	require.Len(t, pages, 150)

	// Child order preserved: first 100 from child a, next 50 from child b.
	assert.Equal(t, "https://example.com/a/page-0", pages[0].URL)
	assert.Equal(t, "https://example.com/a/page-99", pages[99].URL)
	assert.Equal(t, "https://example.com/b/page-0", pages[100].URL)
	assert.Equal(t, "https://example.com/b/page-49", pages[149].URL)

	// The third child is never fetched once the budget is spent.
	assert.NotContains(t, f.fetched, children[2])
}

func TestCrawl_BudgetHoldsAcrossTreeShapes(t *testing.T) {
	tests := []struct {
		name   string
		bodies map[string]string
		roots  []string
		budget int
	}{
		{
			name: "wide index",
			bodies: map[string]string{
				"https://example.com/root.xml": indexSitemap(
					"https://example.com/c1.xml",
					"https://example.com/c2.xml",
					"https://example.com/c3.xml",
					"https://example.com/c4.xml",
				),
				"https://example.com/c1.xml": leafSitemap(leafURLs("c1", 40)...),
				"https://example.com/c2.xml": leafSitemap(leafURLs("c2", 40)...),
				"https://example.com/c3.xml": leafSitemap(leafURLs("c3", 40)...),
				"https://example.com/c4.xml": leafSitemap(leafURLs("c4", 40)...),
			},
			roots:  []string{"https://example.com/root.xml"},
			budget: 90,
		},
		{
			name: "nested index",
			bodies: map[string]string{
				"https://example.com/root.xml":  indexSitemap("https://example.com/inner.xml"),
				"https://example.com/inner.xml": indexSitemap("https://example.com/leaf.xml"),
				"https://example.com/leaf.xml":  leafSitemap(leafURLs("deep", 200)...),
			},
			roots:  []string{"https://example.com/root.xml"},
			budget: 25,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFetcher{bodies: tt.bodies}
			robots := &fakeRobots{sitemaps: tt.roots}

			pages, err := sitemap.New(f, robots, logger.NewNoOp()).
				Crawl(context.Background(), "https://example.com", tt.budget)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(pages), tt.budget)
			assert.Len(t, pages, tt.budget) // enough URLs exist to fill it
		})
	}
}

func TestCrawl_IndexFanOutCappedAtFive(t *testing.T) {
	children := make([]string, 8)
	bodies := map[string]string{}
	for i := range children {
		children[i] = fmt.Sprintf("https://example.com/c%d.xml", i)
		bodies[children[i]] = leafSitemap(fmt.Sprintf("https://example.com/c%d/only", i))
	}
	bodies["https://example.com/root.xml"] = indexSitemap(children...)

	f := &fakeFetcher{bodies: bodies}
	robots := &fakeRobots{sitemaps: []string{"https://example.com/root.xml"}}

	pages, err := sitemap.New(f, robots, logger.NewNoOp()).
		Crawl(context.Background(), "https://example.com", 100)
	require.NoError(t, err)
	assert.Len(t, pages, 5)
}

func TestCrawl_FallsBackToCandidatePathsWhenRobotsEmpty(t *testing.T) {
	f := &fakeFetcher{bodies: map[string]string{
		"https://example.com/sitemap.xml": leafSitemap("https://example.com/home"),
	}}
	robots := &fakeRobots{err: errors.New("robots fetch failed")}

	pages, err := sitemap.New(f, robots, logger.NewNoOp()).
		Crawl(context.Background(), "https://example.com", 10)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "https://example.com/home", pages[0].URL)
}

func TestCrawl_BadChildDoesNotAbortSiblings(t *testing.T) {
	f := &fakeFetcher{bodies: map[string]string{
		"https://example.com/root.xml": indexSitemap(
			"https://example.com/broken.xml",
			"https://example.com/good.xml",
		),
		"https://example.com/broken.xml": "<<< not xml at all",
		"https://example.com/good.xml":   leafSitemap("https://example.com/ok"),
	}}
	robots := &fakeRobots{sitemaps: []string{"https://example.com/root.xml"}}

	pages, err := sitemap.New(f, robots, logger.NewNoOp()).
		Crawl(context.Background(), "https://example.com", 10)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "https://example.com/ok", pages[0].URL)
}
