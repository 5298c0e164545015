package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/funnelforge/internal/domain"
)

// ErrStateConflict is returned when a conditional state update matched
// no rows, meaning another actor changed the row first.
var ErrStateConflict = errors.New("state transition conflict")

// ErrPageNotFound is returned when a page lookup matches no row.
var ErrPageNotFound = errors.New("page not found")

// pageSelectColumns lists columns for SELECT queries on pages.
const pageSelectColumns = `id, project_id, url, content_type, funnel_stage, parent_page_id,
	signals, keyword_cluster, generation_state, generation_error, article_body,
	created_at, updated_at`

// PageRepository handles database operations for pages.
type PageRepository struct {
	db *sqlx.DB
}

// NewPageRepository creates a new page repository.
func NewPageRepository(db *sqlx.DB) *PageRepository {
	return &PageRepository{db: db}
}

// Insert stores a newly discovered or generated page. A page already
// present for the same project and URL is left untouched; the return
// value reports whether a row was written.
func (r *PageRepository) Insert(ctx context.Context, page *domain.Page) (bool, error) {
	query := `
		INSERT INTO pages (id, project_id, url, content_type, funnel_stage, parent_page_id,
			signals, keyword_cluster, generation_state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (project_id, url) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		page.ID, page.ProjectID, page.URL, page.ContentType, page.FunnelStage,
		page.ParentPageID, page.Signals, page.KeywordCluster, page.GenerationState)
	if err != nil {
		return false, fmt.Errorf("failed to insert page: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetByID returns a single page.
func (r *PageRepository) GetByID(ctx context.Context, pageID string) (*domain.Page, error) {
	query := `SELECT ` + pageSelectColumns + ` FROM pages WHERE id = $1`

	var page domain.Page
	if err := r.db.GetContext(ctx, &page, query, pageID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPageNotFound
		}
		return nil, fmt.Errorf("failed to get page: %w", err)
	}
	return &page, nil
}

// ListByProject returns all of a project's pages, oldest first.
func (r *PageRepository) ListByProject(ctx context.Context, projectID string) ([]*domain.Page, error) {
	query := `SELECT ` + pageSelectColumns + ` FROM pages WHERE project_id = $1 ORDER BY created_at ASC`

	var pages []*domain.Page
	if err := r.db.SelectContext(ctx, &pages, query, projectID); err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	if pages == nil {
		pages = []*domain.Page{}
	}
	return pages, nil
}

// ListByParent returns the direct children of a page, oldest first.
func (r *PageRepository) ListByParent(ctx context.Context, parentPageID string) ([]*domain.Page, error) {
	query := `SELECT ` + pageSelectColumns + ` FROM pages WHERE parent_page_id = $1 ORDER BY created_at ASC`

	var pages []*domain.Page
	if err := r.db.SelectContext(ctx, &pages, query, parentPageID); err != nil {
		return nil, fmt.Errorf("failed to list child pages: %w", err)
	}
	if pages == nil {
		pages = []*domain.Page{}
	}
	return pages, nil
}

// ListForClassification returns a bounded batch of pages eligible for
// (re-)classification, oldest first. Ignored pages are excluded.
func (r *PageRepository) ListForClassification(ctx context.Context, projectID string, limit int) ([]*domain.Page, error) {
	query := `
		SELECT ` + pageSelectColumns + `
		FROM pages
		WHERE project_id = $1 AND content_type != $2
		ORDER BY created_at ASC
		LIMIT $3
	`

	var pages []*domain.Page
	if err := r.db.SelectContext(ctx, &pages, query, projectID, domain.ContentTypeIgnored, limit); err != nil {
		return nil, fmt.Errorf("failed to list pages for classification: %w", err)
	}
	if pages == nil {
		pages = []*domain.Page{}
	}
	return pages, nil
}

// UpdateSignals merges freshly audited signals onto the stored map
// inside a transaction, so fields not re-derived on this run survive.
func (r *PageRepository) UpdateSignals(ctx context.Context, pageID string, signals domain.JSONBMap) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	var existing domain.JSONBMap
	selectQuery := `SELECT signals FROM pages WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &existing, selectQuery, pageID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPageNotFound
		}
		return fmt.Errorf("failed to read signals: %w", err)
	}

	merged := domain.MergeSignals(existing, signals)

	updateQuery := `UPDATE pages SET signals = $2, updated_at = NOW() WHERE id = $1`
	result, err := tx.ExecContext(ctx, updateQuery, pageID, merged)
	if err := execRequireRows(result, err, ErrPageNotFound); err != nil {
		return fmt.Errorf("failed to update signals: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit signals update: %w", err)
	}
	return nil
}

// UpdateClassification stores the classifier's decision for a page.
func (r *PageRepository) UpdateClassification(ctx context.Context, pageID string, contentType domain.ContentType, stage domain.FunnelStage) error {
	query := `
		UPDATE pages
		SET content_type = $2, funnel_stage = $3, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, pageID, contentType, stage)
	return execRequireRows(result, err, ErrPageNotFound)
}

// UpdateGenerationState transitions a page's generation state, guarded
// by the expected current state. A zero-row update means another actor
// moved the page first and surfaces as ErrStateConflict.
func (r *PageRepository) UpdateGenerationState(ctx context.Context, pageID string, from, to domain.GenerationState, errorMessage *string) error {
	query := `
		UPDATE pages
		SET generation_state = $3, generation_error = $4, updated_at = NOW()
		WHERE id = $1 AND generation_state = $2
	`

	result, err := r.db.ExecContext(ctx, query, pageID, from, to, errorMessage)
	return execRequireRows(result, err, ErrStateConflict)
}

// SaveArticle stores a drafted article body and marks the page
// generated, guarded against concurrent transitions.
func (r *PageRepository) SaveArticle(ctx context.Context, pageID, body string) error {
	query := `
		UPDATE pages
		SET article_body = $2, generation_state = $3, generation_error = NULL, updated_at = NOW()
		WHERE id = $1 AND generation_state = $4
	`

	result, err := r.db.ExecContext(ctx, query, pageID, body, domain.GenerationDone, domain.GenerationProcessing)
	return execRequireRows(result, err, ErrStateConflict)
}

// CountDuplicateTitle counts sibling pages in the project whose audited
// title equals the given one, excluding the page itself.
func (r *PageRepository) CountDuplicateTitle(ctx context.Context, projectID, title, excludePageID string) (int, error) {
	query := `
		SELECT COUNT(*) FROM pages
		WHERE project_id = $1 AND id != $2 AND signals->>'title' = $3
	`

	var count int
	if err := r.db.GetContext(ctx, &count, query, projectID, excludePageID, title); err != nil {
		return 0, fmt.Errorf("failed to count duplicate titles: %w", err)
	}
	return count, nil
}

// CountDuplicateDescription counts sibling pages in the project whose
// audited meta description equals the given one, excluding the page itself.
func (r *PageRepository) CountDuplicateDescription(ctx context.Context, projectID, description, excludePageID string) (int, error) {
	query := `
		SELECT COUNT(*) FROM pages
		WHERE project_id = $1 AND id != $2 AND signals->>'metaDescription' = $3
	`

	var count int
	if err := r.db.GetContext(ctx, &count, query, projectID, excludePageID, description); err != nil {
		return 0, fmt.Errorf("failed to count duplicate descriptions: %w", err)
	}
	return count, nil
}

// execRequireRows folds the exec error and rows-affected check for the
// conditional updates above. Zero rows affected means the WHERE guard
// did not hold, reported as conflictErr (a claim race, a stale state,
// or a missing row depending on the caller).
func execRequireRows(result sql.Result, err, conflictErr error) error {
	if err != nil {
		return err
	}
	rows, rowsErr := result.RowsAffected()
	if rowsErr != nil {
		return rowsErr
	}
	if rows == 0 {
		return conflictErr
	}
	return nil
}
