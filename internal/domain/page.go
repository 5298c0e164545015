// Package domain provides domain models used across the application.
package domain

import (
	"time"
)

// ContentType classifies what kind of page a URL represents.
type ContentType string

const (
	// ContentTypeProduct is a transactional product page.
	ContentTypeProduct ContentType = "product"
	// ContentTypeCategory is a listing or editorial taxonomy page.
	ContentTypeCategory ContentType = "category"
	// ContentTypeService is a service or solution offering page.
	ContentTypeService ContentType = "service"
	// ContentTypeTopic is a generated funnel content page.
	ContentTypeTopic ContentType = "topic"
	// ContentTypeUnclassified is a discovered page with no assigned type yet.
	ContentTypeUnclassified ContentType = "unclassified"
	// ContentTypeIgnored is a page excluded from the pipeline by an operator.
	ContentTypeIgnored ContentType = "ignored"
)

// FunnelStage places a page within the content funnel.
type FunnelStage string

const (
	// StageBottom is transactional content (products, services).
	StageBottom FunnelStage = "bottom"
	// StageMiddle is comparison and evaluation content.
	StageMiddle FunnelStage = "middle"
	// StageTop is educational and awareness content.
	StageTop FunnelStage = "top"
	// StageUnassigned is a page without a funnel position.
	StageUnassigned FunnelStage = "unassigned"
)

// GenerationState tracks per-page content generation progress.
type GenerationState string

const (
	// GenerationIdle means no generation is in flight for the page.
	GenerationIdle GenerationState = "idle"
	// GenerationProcessing means a generation run holds the page.
	GenerationProcessing GenerationState = "processing"
	// GenerationDone means the last generation run succeeded.
	GenerationDone GenerationState = "generated"
	// GenerationFailed means the last generation run failed.
	GenerationFailed GenerationState = "failed"
)

// Page represents a discovered or generated URL within a project.
// Signals holds the merged technical audit data as an open JSONB map;
// use TechnicalSignals for the typed view.
type Page struct {
	ID              string          `db:"id" json:"id"`
	ProjectID       string          `db:"project_id" json:"project_id"`
	URL             string          `db:"url" json:"url"`
	ContentType     ContentType     `db:"content_type" json:"content_type"`
	FunnelStage     FunnelStage     `db:"funnel_stage" json:"funnel_stage"`
	ParentPageID    *string         `db:"parent_page_id" json:"parent_page_id,omitempty"`
	Signals         JSONBMap        `db:"signals" json:"signals,omitempty"`
	KeywordCluster  KeywordCluster  `db:"keyword_cluster" json:"keyword_cluster,omitempty"`
	GenerationState GenerationState `db:"generation_state" json:"generation_state"`
	GenerationError *string         `db:"generation_error" json:"generation_error,omitempty"`
	ArticleBody     *string         `db:"article_body" json:"article_body,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// IsTerminalType reports whether the page's content type is protected from
// re-classification. Product and Category assignments are final; everything
// else stays eligible for another pass.
func (p *Page) IsTerminalType() bool {
	return p.ContentType == ContentTypeProduct || p.ContentType == ContentTypeCategory
}

// IsGeneratedChild reports whether the page was created by funnel
// generation. Generated children inherit their URL from the parent, so
// URL-marker heuristics must never rewrite their type or stage.
func (p *Page) IsGeneratedChild() bool {
	return p.ContentType == ContentTypeTopic || p.ParentPageID != nil
}

// Title returns the audited page title, or empty if no audit has run.
func (p *Page) Title() string {
	if p.Signals == nil {
		return ""
	}
	if title, ok := p.Signals["title"].(string); ok {
		return title
	}
	return ""
}

// Project is a crawl target owning many pages. The pipeline only reads its
// domain and locale configuration; projects are created externally.
type Project struct {
	ID        string    `db:"id" json:"id"`
	Domain    string    `db:"domain" json:"domain"`
	Locale    string    `db:"locale" json:"locale"`
	Language  string    `db:"language" json:"language"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
