package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonesrussell/funnelforge/internal/database"
	"github.com/jonesrussell/funnelforge/internal/domain"
	"github.com/jonesrussell/funnelforge/internal/logger"
)

// ChildGenerator proposes and synthesizes Topic pages under a parent.
type ChildGenerator interface {
	GenerateChildren(ctx context.Context, parent *domain.Page, locale string) ([]*domain.Page, error)
	DraftArticle(ctx context.Context, page *domain.Page) (string, error)
}

// GenerationStore is the persistence surface for generation runs.
type GenerationStore interface {
	Insert(ctx context.Context, page *domain.Page) (bool, error)
	UpdateGenerationState(ctx context.Context, pageID string, from, to domain.GenerationState, errorMessage *string) error
	SaveArticle(ctx context.Context, pageID, body string) error
}

// GenerationStats summarizes one generation batch.
type GenerationStats struct {
	Created int
	Drafted int
	Failed  int
	Skipped int
}

// GenerationRunner creates child topic pages and drafts their
// articles. Each page is an independent unit of failure: one page's
// error is recorded against that page and the batch continues.
type GenerationRunner struct {
	generator ChildGenerator
	store     GenerationStore
	logger    logger.Interface
}

// NewGenerationRunner wires a GenerationRunner.
func NewGenerationRunner(generator ChildGenerator, store GenerationStore, log logger.Interface) *GenerationRunner {
	return &GenerationRunner{
		generator: generator,
		store:     store,
		logger:    log.WithComponent("generation-runner"),
	}
}

// CreateChildren generates Topic pages under the parent and persists
// them. Slug collisions with existing siblings are absorbed by the
// store's conflict handling and counted as skips.
func (r *GenerationRunner) CreateChildren(ctx context.Context, parent *domain.Page, locale string) (*GenerationStats, error) {
	children, err := r.generator.GenerateChildren(ctx, parent, locale)
	if err != nil {
		return nil, fmt.Errorf("generating children for page %s: %w", parent.ID, err)
	}

	stats := &GenerationStats{}
	for _, child := range children {
		inserted, insertErr := r.store.Insert(ctx, child)
		if insertErr != nil {
			return stats, fmt.Errorf("inserting child page %s: %w", child.URL, insertErr)
		}
		if !inserted {
			r.logger.Debug("child URL already exists, skipping", "url", child.URL)
			stats.Skipped++
			continue
		}
		stats.Created++
	}

	r.logger.Info("child pages created",
		"parent_id", parent.ID,
		"created", stats.Created,
		"skipped", stats.Skipped)
	return stats, nil
}

// DraftArticles drafts article bodies for the given Topic pages. Every
// page passes through the generation state machine: Idle is claimed to
// Processing before drafting, then the page lands in Generated or
// Failed. Pages another run is already processing are skipped.
func (r *GenerationRunner) DraftArticles(ctx context.Context, pages []*domain.Page) *GenerationStats {
	stats := &GenerationStats{}
	for _, page := range pages {
		switch r.draftOne(ctx, page) {
		case draftDone:
			stats.Drafted++
		case draftFailed:
			stats.Failed++
		case draftSkipped:
			stats.Skipped++
		}
	}

	r.logger.Info("article batch complete",
		"drafted", stats.Drafted,
		"failed", stats.Failed,
		"skipped", stats.Skipped)
	return stats
}

type draftOutcome int

const (
	draftDone draftOutcome = iota
	draftFailed
	draftSkipped
)

func (r *GenerationRunner) draftOne(ctx context.Context, page *domain.Page) draftOutcome {
	claimErr := r.store.UpdateGenerationState(ctx, page.ID,
		domain.GenerationIdle, domain.GenerationProcessing, nil)
	if claimErr != nil {
		if errors.Is(claimErr, database.ErrStateConflict) {
			r.logger.Debug("page not idle, skipping", "page_id", page.ID)
			return draftSkipped
		}
		r.logger.Error("claiming page for drafting failed", "page_id", page.ID, "error", claimErr)
		return draftSkipped
	}

	body, draftErr := r.generator.DraftArticle(ctx, page)
	if draftErr != nil {
		message := draftErr.Error()
		r.logger.Warn("article drafting failed", "page_id", page.ID, "error", draftErr)
		if failErr := r.store.UpdateGenerationState(ctx, page.ID,
			domain.GenerationProcessing, domain.GenerationFailed, &message); failErr != nil {
			r.logger.Error("marking page failed", "page_id", page.ID, "error", failErr)
		}
		return draftFailed
	}

	if saveErr := r.store.SaveArticle(ctx, page.ID, body); saveErr != nil {
		message := saveErr.Error()
		r.logger.Error("saving article failed", "page_id", page.ID, "error", saveErr)
		if failErr := r.store.UpdateGenerationState(ctx, page.ID,
			domain.GenerationProcessing, domain.GenerationFailed, &message); failErr != nil {
			r.logger.Error("marking page failed", "page_id", page.ID, "error", failErr)
		}
		return draftFailed
	}
	return draftDone
}

// ResetGenerationState returns a terminal-state page to Idle so it can
// be re-run.
func (r *GenerationRunner) ResetGenerationState(ctx context.Context, page *domain.Page) error {
	if page.GenerationState != domain.GenerationDone && page.GenerationState != domain.GenerationFailed {
		return fmt.Errorf("page %s is %s, only terminal states reset", page.ID, page.GenerationState)
	}
	return r.store.UpdateGenerationState(ctx, page.ID, page.GenerationState, domain.GenerationIdle, nil)
}
