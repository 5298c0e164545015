package jobs_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/funnelforge/internal/database"
	"github.com/jonesrussell/funnelforge/internal/domain"
	"github.com/jonesrussell/funnelforge/internal/jobs"
	"github.com/jonesrussell/funnelforge/internal/logger"
)

// fakeQueue is an in-memory job queue with the same claim semantics as
// the conditional update in the repository.
type fakeQueue struct {
	mu        sync.Mutex
	jobs      map[string]*domain.ResearchJob
	order     []string
	completed map[string]domain.JSONBMap
	failures  map[string]string
}

func newFakeQueue(jobList ...*domain.ResearchJob) *fakeQueue {
	q := &fakeQueue{
		jobs:      make(map[string]*domain.ResearchJob),
		completed: make(map[string]domain.JSONBMap),
		failures:  make(map[string]string),
	}
	for _, job := range jobList {
		q.jobs[job.ID] = job
		q.order = append(q.order, job.ID)
	}
	return q
}

func (q *fakeQueue) NextPending(context.Context) (*domain.ResearchJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, id := range q.order {
		if q.jobs[id].Status == domain.JobPending {
			copied := *q.jobs[id]
			return &copied, nil
		}
	}
	return nil, database.ErrNoPendingJobs
}

func (q *fakeQueue) Claim(_ context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[jobID]
	if !ok || job.Status != domain.JobPending {
		return database.ErrJobClaimed
	}
	job.Status = domain.JobProcessing
	return nil
}

func (q *fakeQueue) Complete(_ context.Context, jobID string, result domain.JSONBMap) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs[jobID].Status = domain.JobCompleted
	q.completed[jobID] = result
	return nil
}

func (q *fakeQueue) Fail(_ context.Context, jobID, message string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs[jobID].Status = domain.JobFailed
	q.failures[jobID] = message
	return nil
}

func (q *fakeQueue) status(jobID string) domain.JobStatus {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.jobs[jobID].Status
}

type fakeProjects struct{}

func (fakeProjects) GetByID(context.Context, string) (*domain.Project, error) {
	return &domain.Project{ID: "proj", Locale: "en-US"}, nil
}

// fakeAuditor returns fixed signals, optionally panicking.
type fakeAuditor struct {
	mu     sync.Mutex
	panics bool
	urls   []string
}

func (f *fakeAuditor) Audit(_ context.Context, page *domain.Page, _ string) *domain.TechnicalSignals {
	f.mu.Lock()
	f.urls = append(f.urls, page.URL)
	f.mu.Unlock()
	if f.panics {
		panic("auditor exploded")
	}
	return &domain.TechnicalSignals{StatusCode: 200, OnPageScore: 80}
}

func pendingJob(id, url string) *domain.ResearchJob {
	return &domain.ResearchJob{ID: id, ProjectID: "proj", TargetURL: url, Status: domain.JobPending}
}

func runPool(t *testing.T, pool *jobs.Pool, queue *fakeQueue, want func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pool.Start(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for !want() {
		select {
		case <-deadline:
			cancel()
			<-done
			t.Fatal("pool did not reach the expected state in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestPool_ProcessesJobToCompletion(t *testing.T) {
	queue := newFakeQueue(pendingJob("job-1", "https://example.com/p"))
	auditor := &fakeAuditor{}
	pool := jobs.NewPool(queue, fakeProjects{}, auditor,
		jobs.PoolConfig{WorkerCount: 1, PollDelay: time.Millisecond}, logger.NewNoOp())

	runPool(t, pool, queue, func() bool {
		return queue.status("job-1") == domain.JobCompleted
	})

	require.Contains(t, queue.completed, "job-1")
	assert.EqualValues(t, 80, queue.completed["job-1"]["onPageScore"])
	assert.Equal(t, []string{"https://example.com/p"}, auditor.urls)
}

func TestPool_PanicStillReachesTerminalState(t *testing.T) {
	queue := newFakeQueue(pendingJob("job-1", "https://example.com/p"))
	pool := jobs.NewPool(queue, fakeProjects{}, &fakeAuditor{panics: true},
		jobs.PoolConfig{WorkerCount: 1, PollDelay: time.Millisecond}, logger.NewNoOp())

	runPool(t, pool, queue, func() bool {
		return queue.status("job-1") == domain.JobFailed
	})

	assert.Contains(t, queue.failures["job-1"], "panic")
}

func TestPool_ConcurrentWorkersProcessEachJobOnce(t *testing.T) {
	jobList := []*domain.ResearchJob{
		pendingJob("job-1", "https://example.com/a"),
		pendingJob("job-2", "https://example.com/b"),
		pendingJob("job-3", "https://example.com/c"),
	}
	queue := newFakeQueue(jobList...)
	auditor := &fakeAuditor{}
	pool := jobs.NewPool(queue, fakeProjects{}, auditor,
		jobs.PoolConfig{WorkerCount: 4, PollDelay: time.Millisecond}, logger.NewNoOp())

	runPool(t, pool, queue, func() bool {
		for _, job := range jobList {
			if queue.status(job.ID) != domain.JobCompleted {
				return false
			}
		}
		return true
	})

	// The claim lock means each job is audited exactly once even with
	// more workers than jobs.
	assert.Len(t, auditor.urls, 3)
}
