// Package audit fetches a single page and computes its on-page SEO signals
// and deterministic 0-100 score.
package audit

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// schemaTypesOfInterest are JSON-LD @type values used as Open Graph
// fallbacks, checked in order.
var schemaTypesOfInterest = []string{"product", "article", "webpage"}

// extraction holds the raw on-page fields pulled from a document.
type extraction struct {
	Title           string
	MetaDescription string
	H1              string
	CanonicalURL    string
	OGTitle         string
	OGDescription   string
	SchemaType      string
	HasSchema       bool
	WordCount       int
	MissingAltCount int
}

// extractSignals parses HTML and pulls every field the rubric needs.
func extractSignals(body []byte) (*extraction, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	ex := &extraction{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
		H1:    strings.TrimSpace(doc.Find("h1").First().Text()),
	}

	if desc, ok := doc.Find("meta[name='description']").Attr("content"); ok {
		ex.MetaDescription = strings.TrimSpace(desc)
	}
	if canonical, ok := doc.Find("link[rel='canonical']").Attr("href"); ok {
		ex.CanonicalURL = strings.TrimSpace(canonical)
	}
	if ogTitle, ok := doc.Find("meta[property='og:title']").Attr("content"); ok {
		ex.OGTitle = strings.TrimSpace(ogTitle)
	}
	if ogDesc, ok := doc.Find("meta[property='og:description']").Attr("content"); ok {
		ex.OGDescription = strings.TrimSpace(ogDesc)
	}

	applyStructuredData(doc, ex)

	ex.HasSchema = ex.HasSchema || doc.Find("[itemscope]").Length() > 0
	ex.WordCount = visibleWordCount(doc)
	ex.MissingAltCount = missingAltCount(doc)

	return ex, nil
}

// applyStructuredData scans JSON-LD blocks for Product/Article/WebPage
// entities, filling og title/description when the meta tags were absent.
func applyStructuredData(doc *goquery.Document, ex *extraction) {
	doc.Find("script[type='application/ld+json']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		entity, ok := parseJSONLD(s.Text())
		if entity == nil {
			ex.HasSchema = ex.HasSchema || ok
			return true
		}

		ex.HasSchema = true
		if ex.SchemaType == "" {
			ex.SchemaType, _ = entity["@type"].(string)
		}
		if ex.OGTitle == "" {
			ex.OGTitle, _ = entity["name"].(string)
		}
		if ex.OGDescription == "" {
			ex.OGDescription, _ = entity["description"].(string)
		}

		return ex.OGTitle == "" || ex.OGDescription == ""
	})
}

// parseJSONLD decodes one JSON-LD block and returns the first entity whose
// @type is of interest, or nil. The second return reports whether the block
// parsed as valid JSON-LD at all.
func parseJSONLD(raw string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, false
	}

	var single map[string]any
	if err := json.Unmarshal([]byte(trimmed), &single); err == nil {
		if isTypeOfInterest(single) {
			return single, true
		}
		return nil, true
	}

	var many []map[string]any
	if err := json.Unmarshal([]byte(trimmed), &many); err == nil {
		for _, entity := range many {
			if isTypeOfInterest(entity) {
				return entity, true
			}
		}
		return nil, true
	}

	return nil, false
}

// isTypeOfInterest checks an entity's @type against the fallback list.
func isTypeOfInterest(entity map[string]any) bool {
	typ, _ := entity["@type"].(string)
	if typ == "" {
		return false
	}

	lowered := strings.ToLower(typ)
	for _, want := range schemaTypesOfInterest {
		if lowered == want {
			return true
		}
	}

	return false
}

// nonContentSelectors lists elements stripped before counting visible words.
const nonContentSelectors = "script, style, noscript"

// visibleWordCount counts whitespace-separated tokens of visible body text.
func visibleWordCount(doc *goquery.Document) int {
	body := doc.Find("body").First()
	if body.Length() == 0 {
		return 0
	}

	clone := body.Clone()
	clone.Find(nonContentSelectors).Remove()

	return len(strings.Fields(clone.Text()))
}

// missingAltCount counts <img> elements without a non-empty alt attribute.
func missingAltCount(doc *goquery.Document) int {
	count := 0
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		alt, ok := s.Attr("alt")
		if !ok || strings.TrimSpace(alt) == "" {
			count++
		}
	})

	return count
}
