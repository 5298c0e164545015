package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/funnelforge/internal/domain"
)

// ErrJobClaimed is returned when a claim matched no rows because
// another worker already moved the job out of pending.
var ErrJobClaimed = errors.New("job already claimed")

// ErrNoPendingJobs is returned when the queue holds no pending work.
var ErrNoPendingJobs = errors.New("no pending jobs")

// researchJobSelectColumns lists columns for SELECT queries on research_jobs.
const researchJobSelectColumns = `id, project_id, target_url, status, result,
	error_message, created_at, updated_at`

// ResearchJobRepository handles database operations for research jobs.
type ResearchJobRepository struct {
	db *sqlx.DB
}

// NewResearchJobRepository creates a new research job repository.
func NewResearchJobRepository(db *sqlx.DB) *ResearchJobRepository {
	return &ResearchJobRepository{db: db}
}

// Enqueue inserts a new pending job.
func (r *ResearchJobRepository) Enqueue(ctx context.Context, job *domain.ResearchJob) error {
	query := `
		INSERT INTO research_jobs (id, project_id, target_url, status)
		VALUES ($1, $2, $3, $4)
	`

	if _, err := r.db.ExecContext(ctx, query,
		job.ID, job.ProjectID, job.TargetURL, domain.JobPending); err != nil {
		return fmt.Errorf("failed to enqueue research job: %w", err)
	}
	return nil
}

// NextPending returns the oldest pending job without claiming it.
func (r *ResearchJobRepository) NextPending(ctx context.Context) (*domain.ResearchJob, error) {
	query := `
		SELECT ` + researchJobSelectColumns + `
		FROM research_jobs
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT 1
	`

	var job domain.ResearchJob
	if err := r.db.GetContext(ctx, &job, query, domain.JobPending); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoPendingJobs
		}
		return nil, fmt.Errorf("failed to select pending job: %w", err)
	}
	return &job, nil
}

// Claim atomically transitions a pending job to processing. The status
// guard in the WHERE clause is the lock: under concurrent workers at
// most one update affects a row, the rest get ErrJobClaimed.
func (r *ResearchJobRepository) Claim(ctx context.Context, jobID string) error {
	query := `
		UPDATE research_jobs
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`

	result, err := r.db.ExecContext(ctx, query, jobID, domain.JobProcessing, domain.JobPending)
	return execRequireRows(result, err, ErrJobClaimed)
}

// Complete marks a processing job completed with its result payload.
func (r *ResearchJobRepository) Complete(ctx context.Context, jobID string, result domain.JSONBMap) error {
	query := `
		UPDATE research_jobs
		SET status = $2, result = $3, error_message = NULL, updated_at = NOW()
		WHERE id = $1 AND status = $4
	`

	execResult, err := r.db.ExecContext(ctx, query, jobID, domain.JobCompleted, result, domain.JobProcessing)
	return execRequireRows(execResult, err, ErrStateConflict)
}

// Fail marks a processing job failed, retaining the error message for
// the operator.
func (r *ResearchJobRepository) Fail(ctx context.Context, jobID, message string) error {
	query := `
		UPDATE research_jobs
		SET status = $2, error_message = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4
	`

	result, err := r.db.ExecContext(ctx, query, jobID, domain.JobFailed, message, domain.JobProcessing)
	return execRequireRows(result, err, ErrStateConflict)
}
