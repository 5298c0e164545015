package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// robotsCacheTTL is how long parsed robots.txt data is reused per host.
const robotsCacheTTL = 24 * time.Hour

// maxRobotsBodyBytes limits the size of robots.txt responses we will read.
const maxRobotsBodyBytes = 512 * 1024 // 512 KB

// RobotsChecker checks and caches robots.txt rules per host. A missing or
// errored robots.txt allows everything, per convention.
type RobotsChecker struct {
	httpClient *http.Client
	userAgent  string
	mu         sync.RWMutex
	cache      map[string]*robotsEntry // keyed by host
}

type robotsEntry struct {
	data      *robotstxt.RobotsData
	raw       string
	fetchedAt time.Time
	allowAll  bool
}

// NewRobotsChecker creates a robots.txt checker using the given client
// settings for its own fetches.
func NewRobotsChecker(timeout time.Duration, userAgent string) *RobotsChecker {
	return &RobotsChecker{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
		cache:      make(map[string]*robotsEntry),
	}
}

// IsAllowed reports whether the URL may be fetched under the host's
// robots.txt rules.
func (r *RobotsChecker) IsAllowed(ctx context.Context, rawURL string) (bool, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("robots: parse url: %w", err)
	}

	entry, entryErr := r.entryFor(ctx, parsed)
	if entryErr != nil {
		return false, entryErr
	}

	if entry.allowAll {
		return true, nil
	}

	return entry.data.TestAgent(parsed.Path, r.userAgent), nil
}

// Sitemaps returns the Sitemap directive values declared in the host's
// robots.txt, in file order.
func (r *RobotsChecker) Sitemaps(ctx context.Context, siteURL string) ([]string, error) {
	parsed, err := url.Parse(siteURL)
	if err != nil {
		return nil, fmt.Errorf("robots: parse url: %w", err)
	}

	entry, entryErr := r.entryFor(ctx, parsed)
	if entryErr != nil {
		return nil, entryErr
	}

	return extractSitemapDirectives(entry.raw), nil
}

// entryFor returns the cached robots entry for the URL's host, fetching and
// parsing robots.txt when absent or stale.
func (r *RobotsChecker) entryFor(ctx context.Context, parsed *url.URL) (*robotsEntry, error) {
	host := strings.ToLower(parsed.Host)
	if host == "" {
		return nil, fmt.Errorf("robots: empty host in url %q", parsed.String())
	}

	r.mu.RLock()
	entry, ok := r.cache[host]
	r.mu.RUnlock()

	if ok && time.Since(entry.fetchedAt) < robotsCacheTTL {
		return entry, nil
	}

	entry = r.fetchEntry(ctx, parsed.Scheme, host)

	r.mu.Lock()
	r.cache[host] = entry
	r.mu.Unlock()

	return entry, nil
}

// fetchEntry retrieves and parses robots.txt for a host. Fetch or parse
// failures degrade to allow-all with no sitemap directives.
func (r *RobotsChecker) fetchEntry(ctx context.Context, scheme, host string) *robotsEntry {
	entry := &robotsEntry{fetchedAt: time.Now(), allowAll: true}

	if scheme == "" {
		scheme = "https"
	}
	robotsURL := scheme + "://" + host + "/robots.txt"

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, http.NoBody)
	if reqErr != nil {
		return entry
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, doErr := r.httpClient.Do(req)
	if doErr != nil {
		return entry
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return entry
	}

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBodyBytes))
	if readErr != nil {
		return entry
	}

	data, parseErr := robotstxt.FromBytes(body)
	if parseErr != nil {
		return entry
	}

	entry.data = data
	entry.raw = string(body)
	entry.allowAll = false
	return entry
}

// extractSitemapDirectives scans robots.txt text for Sitemap lines.
// The directive name is case-insensitive per the protocol.
func extractSitemapDirectives(body string) []string {
	var sitemaps []string

	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) < len("sitemap:") {
			continue
		}
		if !strings.EqualFold(trimmed[:len("sitemap:")], "sitemap:") {
			continue
		}

		value := strings.TrimSpace(trimmed[len("sitemap:"):])
		if value != "" {
			sitemaps = append(sitemaps, value)
		}
	}

	return sitemaps
}
