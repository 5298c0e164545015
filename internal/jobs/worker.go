// Package jobs runs the background state machines: research job
// workers and batched per-page content generation.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonesrussell/funnelforge/internal/database"
	"github.com/jonesrussell/funnelforge/internal/domain"
	"github.com/jonesrussell/funnelforge/internal/logger"
)

// JobQueue claims and resolves research jobs.
type JobQueue interface {
	NextPending(ctx context.Context) (*domain.ResearchJob, error)
	Claim(ctx context.Context, jobID string) error
	Complete(ctx context.Context, jobID string, result domain.JSONBMap) error
	Fail(ctx context.Context, jobID, message string) error
}

// ProjectLookup resolves a job's project for locale-aware auditing.
type ProjectLookup interface {
	GetByID(ctx context.Context, projectID string) (*domain.Project, error)
}

// Auditor runs a single-page audit for a job's target URL.
type Auditor interface {
	Audit(ctx context.Context, page *domain.Page, locale string) *domain.TechnicalSignals
}

// PoolConfig configures the worker pool.
type PoolConfig struct {
	WorkerCount int
	// PollDelay is how long an idle worker waits before checking the
	// queue again.
	PollDelay time.Duration
}

// Pool runs research jobs over a fixed set of workers. Each job is
// claimed with an atomic conditional update before any work starts, so
// concurrent workers never process the same job.
type Pool struct {
	queue       JobQueue
	projects    ProjectLookup
	auditor     Auditor
	workerCount int
	pollDelay   time.Duration
	logger      logger.Interface
}

// NewPool wires a Pool.
func NewPool(queue JobQueue, projects ProjectLookup, auditor Auditor, cfg PoolConfig, log logger.Interface) *Pool {
	return &Pool{
		queue:       queue,
		projects:    projects,
		auditor:     auditor,
		workerCount: cfg.WorkerCount,
		pollDelay:   cfg.PollDelay,
		logger:      log.WithComponent("job-pool"),
	}
}

// Start launches the workers and blocks until ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("starting job workers", "worker_count", p.workerCount)

	var wg sync.WaitGroup
	for i := 0; i < p.workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	p.logger.Info("job workers stopped")
}

func (p *Pool) worker(ctx context.Context, workerID int) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("worker stopping", "worker_id", workerID)
			return
		default:
		}

		if shouldReturn := p.claimAndProcess(ctx, workerID); shouldReturn {
			return
		}
	}
}

// claimAndProcess takes one job through claim and execution. Returns
// true when the worker should exit.
func (p *Pool) claimAndProcess(ctx context.Context, workerID int) bool {
	job, err := p.queue.NextPending(ctx)
	if errors.Is(err, database.ErrNoPendingJobs) {
		return p.sleepOrCancel(ctx)
	}
	if err != nil {
		p.logger.Error("selecting pending job failed", "worker_id", workerID, "error", err)
		return p.sleepOrCancel(ctx)
	}

	if claimErr := p.queue.Claim(ctx, job.ID); claimErr != nil {
		if errors.Is(claimErr, database.ErrJobClaimed) {
			// Another worker won the race. Not an error.
			p.logger.Debug("job already claimed", "worker_id", workerID, "job_id", job.ID)
			return false
		}
		p.logger.Error("claiming job failed", "worker_id", workerID, "job_id", job.ID, "error", claimErr)
		return p.sleepOrCancel(ctx)
	}

	p.runJob(ctx, workerID, job)
	return false
}

// runJob executes a claimed job and guarantees it reaches a terminal
// state even if the work panics.
func (p *Pool) runJob(ctx context.Context, workerID int, job *domain.ResearchJob) {
	defer func() {
		if r := recover(); r != nil {
			message := fmt.Sprintf("panic during job: %v", r)
			p.logger.Error("job panicked", "worker_id", workerID, "job_id", job.ID, "panic", r)
			if failErr := p.queue.Fail(ctx, job.ID, message); failErr != nil {
				p.logger.Error("marking panicked job failed", "job_id", job.ID, "error", failErr)
			}
		}
	}()

	result, err := p.research(ctx, job)
	if err != nil {
		p.logger.Warn("job failed", "worker_id", workerID, "job_id", job.ID, "error", err)
		if failErr := p.queue.Fail(ctx, job.ID, err.Error()); failErr != nil {
			p.logger.Error("marking job failed", "job_id", job.ID, "error", failErr)
		}
		return
	}

	if completeErr := p.queue.Complete(ctx, job.ID, result); completeErr != nil {
		p.logger.Error("marking job completed", "job_id", job.ID, "error", completeErr)
		return
	}
	p.logger.Info("job completed", "worker_id", workerID, "job_id", job.ID, "target_url", job.TargetURL)
}

// research audits the job's target URL and returns the signal map as
// the job result.
func (p *Pool) research(ctx context.Context, job *domain.ResearchJob) (domain.JSONBMap, error) {
	locale := ""
	project, err := p.projects.GetByID(ctx, job.ProjectID)
	if err != nil {
		p.logger.Warn("project lookup failed, auditing without locale",
			"job_id", job.ID, "project_id", job.ProjectID, "error", err)
	} else {
		locale = project.Locale
	}

	signals := p.auditor.Audit(ctx, &domain.Page{
		ID:        job.ID,
		ProjectID: job.ProjectID,
		URL:       job.TargetURL,
	}, locale)

	result, err := signals.ToMap()
	if err != nil {
		return nil, fmt.Errorf("encoding audit result: %w", err)
	}
	return result, nil
}

func (p *Pool) sleepOrCancel(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-time.After(p.pollDelay):
		return false
	}
}
