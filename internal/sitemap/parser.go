// Package sitemap discovers a site's pages by walking its sitemap tree.
// Sitemap locations come from robots.txt directives with a fixed candidate
// list as fallback; index files are recursed with bounded fan-out and the
// whole traversal respects a shared page budget.
package sitemap

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// xmlURLSet is the root element of a standard sitemap file.
type xmlURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []xmlURL `xml:"url"`
}

// xmlURL is a single <url> entry inside a <urlset>.
type xmlURL struct {
	Loc string `xml:"loc"`
}

// xmlSitemapIndex is the root element of a sitemap index file.
type xmlSitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []xmlSitemap `xml:"sitemap"`
}

// xmlSitemap is a single <sitemap> entry inside a <sitemapindex>.
type xmlSitemap struct {
	Loc string `xml:"loc"`
}

// document is the parsed form of one sitemap file: either a leaf with page
// locations or an index with child sitemap locations.
type document struct {
	// IsIndex is true when the file is a sitemap index.
	IsIndex bool
	// Children are child sitemap URLs (index documents only).
	Children []string
	// Locations are page URLs (leaf documents only).
	Locations []string
}

// parseDocument parses sitemap XML, detecting index vs leaf by the root
// element. Documents with <sitemap> entries are treated as indexes.
func parseDocument(body []byte) (*document, error) {
	var index xmlSitemapIndex
	if err := xml.Unmarshal(body, &index); err == nil && len(index.Sitemaps) > 0 {
		doc := &document{IsIndex: true}
		for _, child := range index.Sitemaps {
			// Pretty-printed sitemaps wrap <loc> data in whitespace.
			if loc := strings.TrimSpace(child.Loc); loc != "" {
				doc.Children = append(doc.Children, loc)
			}
		}
		return doc, nil
	}

	var urlset xmlURLSet
	if err := xml.Unmarshal(body, &urlset); err != nil {
		return nil, fmt.Errorf("parse sitemap: %w", err)
	}

	doc := &document{}
	for _, entry := range urlset.URLs {
		if loc := strings.TrimSpace(entry.Loc); loc != "" {
			doc.Locations = append(doc.Locations, loc)
		}
	}

	return doc, nil
}
