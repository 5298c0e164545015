package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/funnelforge/internal/domain"
)

// ErrProjectNotFound is returned when a project lookup matches no row.
var ErrProjectNotFound = errors.New("project not found")

// ProjectRepository handles database operations for projects.
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository creates a new project repository.
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// GetByID returns a single project.
func (r *ProjectRepository) GetByID(ctx context.Context, projectID string) (*domain.Project, error) {
	query := `SELECT id, domain, locale, language, created_at FROM projects WHERE id = $1`

	var project domain.Project
	if err := r.db.GetContext(ctx, &project, query, projectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &project, nil
}

// GetOrCreateByDomain returns the project for a domain, creating it
// with the given defaults when absent.
func (r *ProjectRepository) GetOrCreateByDomain(ctx context.Context, id, domainName, locale, language string) (*domain.Project, error) {
	insertQuery := `
		INSERT INTO projects (id, domain, locale, language)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (domain) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, insertQuery, id, domainName, locale, language); err != nil {
		return nil, fmt.Errorf("failed to insert project: %w", err)
	}

	selectQuery := `SELECT id, domain, locale, language, created_at FROM projects WHERE domain = $1`
	var project domain.Project
	if err := r.db.GetContext(ctx, &project, selectQuery, domainName); err != nil {
		return nil, fmt.Errorf("failed to select project: %w", err)
	}
	return &project, nil
}
