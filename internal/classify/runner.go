package classify

import (
	"context"
	"fmt"

	"github.com/jonesrussell/funnelforge/internal/domain"
	"github.com/jonesrussell/funnelforge/internal/logger"
)

// PageStore is the persistence surface the batch runner needs.
type PageStore interface {
	ListForClassification(ctx context.Context, projectID string, limit int) ([]*domain.Page, error)
	UpdateClassification(ctx context.Context, pageID string, contentType domain.ContentType, stage domain.FunnelStage) error
}

// RunStats summarizes one classification batch.
type RunStats struct {
	Examined   int
	Classified int
	Skipped    int
	ByType     map[domain.ContentType]int
}

// Runner classifies pages in bounded batches, oldest first.
type Runner struct {
	classifier *Classifier
	store      PageStore
	batchLimit int
	logger     logger.Interface
}

// NewRunner wires a Runner. batchLimit bounds the number of pages
// examined per run.
func NewRunner(classifier *Classifier, store PageStore, batchLimit int, log logger.Interface) *Runner {
	return &Runner{
		classifier: classifier,
		store:      store,
		batchLimit: batchLimit,
		logger:     log.WithComponent("classify-runner"),
	}
}

// Run classifies one batch of a project's pages. Pages already holding
// a terminal type are never re-evaluated, and generated funnel children
// keep their assigned type and stage; other pages may be re-classified
// as URL taxonomies evolve. Transactional page types are anchored to
// the bottom of the funnel at assignment time.
func (r *Runner) Run(ctx context.Context, projectID string) (*RunStats, error) {
	pages, err := r.store.ListForClassification(ctx, projectID, r.batchLimit)
	if err != nil {
		return nil, fmt.Errorf("listing pages for classification: %w", err)
	}

	stats := &RunStats{ByType: make(map[domain.ContentType]int)}
	for _, page := range pages {
		stats.Examined++

		if page.IsTerminalType() || page.IsGeneratedChild() {
			stats.Skipped++
			continue
		}

		result := r.classifier.Classify(page)
		if result.Type == page.ContentType {
			stats.Skipped++
			continue
		}

		stage := page.FunnelStage
		if stage == "" {
			stage = domain.StageUnassigned
		}
		if result.Type == domain.ContentTypeProduct || result.Type == domain.ContentTypeService {
			stage = domain.StageBottom
		}

		if err := r.store.UpdateClassification(ctx, page.ID, result.Type, stage); err != nil {
			return stats, fmt.Errorf("updating classification for page %s: %w", page.ID, err)
		}

		r.logger.Debug("page classified",
			"page_id", page.ID,
			"url", page.URL,
			"type", result.Type,
			"method", result.Method,
			"reason", result.Reason)
		stats.Classified++
		stats.ByType[result.Type]++
	}

	r.logger.Info("classification batch complete",
		"project_id", projectID,
		"examined", stats.Examined,
		"classified", stats.Classified,
		"skipped", stats.Skipped)
	return stats, nil
}
