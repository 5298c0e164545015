// Package classify assigns content types to audited pages using a
// layered rule set: structured-data signals first, then URL path
// patterns, with unmatched pages left unclassified.
package classify

import (
	"net/url"
	"strings"

	ahocorasick "github.com/cloudflare/ahocorasick"

	"github.com/jonesrussell/funnelforge/internal/domain"
	"github.com/jonesrussell/funnelforge/internal/logger"
)

// Classification methods, recorded on each result for auditability.
const (
	MethodStructuredData = "structured_data"
	MethodURLPattern     = "url_pattern"
	MethodDefault        = "default"
)

// Marker sets matched against the URL path. Order matters: product
// markers win over service markers, service over category.
var (
	productMarkers = []string{
		"/product/", "/products/", "/item/", "/p/", "/shop/",
	}
	serviceMarkers = []string{
		"/service/", "/services/", "/solution/", "/solutions/",
		"/consulting/", "/offering/",
	}
	categoryMarkers = []string{
		"/category/", "/categories/", "/collection/", "/collections/",
		"/blog/", "/blogs/", "/article/", "/news/",
	}
	// Generic taxonomy words checked anywhere in the path, after the
	// slash-delimited markers above.
	taxonomyWords = []string{
		"guide", "editorial", "bestsellers",
	}
)

// Result describes a single classification decision.
type Result struct {
	Type   domain.ContentType
	Method string
	Reason string
}

// Classifier resolves a page's content type. Matchers are built once
// at construction and are safe for concurrent use.
type Classifier struct {
	productMatcher  *ahocorasick.Matcher
	serviceMatcher  *ahocorasick.Matcher
	categoryMatcher *ahocorasick.Matcher
	taxonomyMatcher *ahocorasick.Matcher
	logger          logger.Interface
}

// New builds a Classifier with the curated marker sets compiled into
// Aho-Corasick automatons.
func New(log logger.Interface) *Classifier {
	return &Classifier{
		productMatcher:  ahocorasick.NewStringMatcher(productMarkers),
		serviceMatcher:  ahocorasick.NewStringMatcher(serviceMarkers),
		categoryMatcher: ahocorasick.NewStringMatcher(categoryMarkers),
		taxonomyMatcher: ahocorasick.NewStringMatcher(taxonomyWords),
		logger:          log.WithComponent("classifier"),
	}
}

// Classify resolves the content type for a page. Layers are consulted
// in order; the first layer that yields a decision wins.
func (c *Classifier) Classify(page *domain.Page) Result {
	if result, ok := c.classifyFromSignals(page); ok {
		return result
	}
	if result, ok := c.classifyFromURL(page.URL); ok {
		return result
	}
	return Result{
		Type:   domain.ContentTypeUnclassified,
		Method: MethodDefault,
		Reason: "no structured-data or URL pattern matched",
	}
}

// classifyFromSignals inspects the schema/Open Graph type recorded
// during the audit.
func (c *Classifier) classifyFromSignals(page *domain.Page) (Result, bool) {
	schemaType := signalString(page, "schemaType")
	if schemaType == "" {
		schemaType = signalString(page, "ogType")
	}
	if schemaType == "" {
		return Result{}, false
	}

	lowered := strings.ToLower(schemaType)
	switch {
	case strings.Contains(lowered, "product"):
		return Result{
			Type:   domain.ContentTypeProduct,
			Method: MethodStructuredData,
			Reason: "structured-data type " + schemaType,
		}, true
	case strings.Contains(lowered, "service"):
		return Result{
			Type:   domain.ContentTypeService,
			Method: MethodStructuredData,
			Reason: "structured-data type " + schemaType,
		}, true
	case strings.Contains(lowered, "article"), strings.Contains(lowered, "blog"):
		return Result{
			Type:   domain.ContentTypeCategory,
			Method: MethodStructuredData,
			Reason: "structured-data type " + schemaType,
		}, true
	}
	return Result{}, false
}

// classifyFromURL runs the marker automatons against the normalized
// URL path.
func (c *Classifier) classifyFromURL(rawURL string) (Result, bool) {
	path := normalizePath(rawURL)
	if path == "" {
		return Result{}, false
	}
	haystack := []byte(path)

	if hits := c.productMatcher.Match(haystack); len(hits) > 0 {
		return Result{
			Type:   domain.ContentTypeProduct,
			Method: MethodURLPattern,
			Reason: "path matched product marker " + productMarkers[hits[0]],
		}, true
	}
	if hits := c.serviceMatcher.Match(haystack); len(hits) > 0 {
		return Result{
			Type:   domain.ContentTypeService,
			Method: MethodURLPattern,
			Reason: "path matched service marker " + serviceMarkers[hits[0]],
		}, true
	}
	if hits := c.categoryMatcher.Match(haystack); len(hits) > 0 {
		return Result{
			Type:   domain.ContentTypeCategory,
			Method: MethodURLPattern,
			Reason: "path matched category marker " + categoryMarkers[hits[0]],
		}, true
	}
	if hits := c.taxonomyMatcher.Match(haystack); len(hits) > 0 {
		return Result{
			Type:   domain.ContentTypeCategory,
			Method: MethodURLPattern,
			Reason: "path matched taxonomy word " + taxonomyWords[hits[0]],
		}, true
	}
	return Result{}, false
}

// normalizePath lowers the path and guarantees leading/trailing
// slashes so the slash-delimited markers match segment boundaries.
func normalizePath(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	path := strings.ToLower(parsed.Path)
	if path == "" {
		path = "/"
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return path
}

func signalString(page *domain.Page, key string) string {
	if page.Signals == nil {
		return ""
	}
	value, ok := page.Signals[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}
