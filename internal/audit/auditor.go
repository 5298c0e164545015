package audit

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/jonesrussell/funnelforge/internal/domain"
	"github.com/jonesrussell/funnelforge/internal/fetcher"
	"github.com/jonesrussell/funnelforge/internal/logger"
)

// Fetcher retrieves page bodies. Satisfied by *fetcher.Client.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL, locale string) (*fetcher.Result, error)
}

// SiblingCounter answers duplicate-content queries against pages in the
// same project, excluding the page being audited.
type SiblingCounter interface {
	CountDuplicateTitle(ctx context.Context, projectID, title, excludePageID string) (int, error)
	CountDuplicateDescription(ctx context.Context, projectID, desc, excludePageID string) (int, error)
}

// Auditor computes technical signals for single pages.
type Auditor struct {
	fetcher  Fetcher
	siblings SiblingCounter
	log      logger.Interface
}

// New creates an auditor.
func New(f Fetcher, siblings SiblingCounter, log logger.Interface) *Auditor {
	return &Auditor{
		fetcher:  f,
		siblings: siblings,
		log:      log.WithComponent("audit"),
	}
}

// Audit fetches the page and derives its technical signals. Fetch failures
// and HTTP error statuses come back as broken-page signals, never as an
// error: a page that cannot be audited scores zero and stays in the batch.
func (a *Auditor) Audit(ctx context.Context, page *domain.Page, locale string) *domain.TechnicalSignals {
	result, fetchErr := a.fetcher.Fetch(ctx, page.URL, locale)
	if fetchErr != nil {
		a.log.Warn("page unreachable", "url", page.URL, "error", fetchErr.Error())
		return brokenSignals(0)
	}

	if result.StatusCode != http.StatusOK {
		a.log.Debug("non-200 page, skipping parse", "url", page.URL, "status", result.StatusCode)
		return brokenSignals(result.StatusCode)
	}

	ex, parseErr := extractSignals(result.Body)
	if parseErr != nil {
		a.log.Warn("unparseable page body", "url", page.URL, "error", parseErr.Error())
		return brokenSignals(result.StatusCode)
	}

	score, checks := scoreSignals(ex)

	signals := &domain.TechnicalSignals{
		StatusCode:      result.StatusCode,
		LoadTimeMs:      result.Elapsed.Milliseconds(),
		Title:           ex.Title,
		MetaDescription: ex.MetaDescription,
		H1:              ex.H1,
		CanonicalURL:    ex.CanonicalURL,
		OGTitle:         ex.OGTitle,
		OGDescription:   ex.OGDescription,
		SchemaType:      ex.SchemaType,
		WordCount:       ex.WordCount,
		MissingAltCount: ex.MissingAltCount,
		HasSchema:       ex.HasSchema,
		RedirectCount:   result.Redirects,
		OnPageScore:     score,
		Checks:          checks,
	}

	signals.CanonicalMismatch = ex.CanonicalURL != "" &&
		normalizeURL(ex.CanonicalURL) != normalizeURL(page.URL)

	a.applyDuplicateChecks(ctx, page, signals)

	return signals
}

// applyDuplicateChecks queries sibling pages for identical titles and
// descriptions. Lookup failures are logged and leave the flags unset.
func (a *Auditor) applyDuplicateChecks(ctx context.Context, page *domain.Page, signals *domain.TechnicalSignals) {
	if a.siblings == nil {
		return
	}

	if signals.Title != "" {
		n, err := a.siblings.CountDuplicateTitle(ctx, page.ProjectID, signals.Title, page.ID)
		if err != nil {
			a.log.Warn("duplicate title lookup failed", "url", page.URL, "error", err.Error())
		} else {
			signals.DuplicateTitle = n > 0
		}
	}

	if signals.MetaDescription != "" {
		n, err := a.siblings.CountDuplicateDescription(ctx, page.ProjectID, signals.MetaDescription, page.ID)
		if err != nil {
			a.log.Warn("duplicate description lookup failed", "url", page.URL, "error", err.Error())
		} else {
			signals.DuplicateDesc = n > 0
		}
	}
}

// brokenSignals builds the signal set for an unreachable or error page.
func brokenSignals(statusCode int) *domain.TechnicalSignals {
	return &domain.TechnicalSignals{
		StatusCode:  statusCode,
		IsBroken:    statusCode == 0 || statusCode >= http.StatusBadRequest,
		OnPageScore: 0,
		Checks:      []string{},
	}
}

// normalizeURL lowercases scheme and host, drops fragments, and strips the
// trailing slash so canonical comparisons ignore cosmetic differences.
func normalizeURL(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return strings.TrimRight(strings.ToLower(raw), "/")
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.Path = strings.TrimRight(parsed.Path, "/")

	return parsed.String()
}
