package domain

import (
	"time"
)

// JobStatus is the processing status of a research job.
type JobStatus string

const (
	// JobPending means the job is queued and claimable.
	JobPending JobStatus = "pending"
	// JobProcessing means a worker holds the job.
	JobProcessing JobStatus = "processing"
	// JobCompleted means the job finished with a result payload.
	JobCompleted JobStatus = "completed"
	// JobFailed means the job finished with a retained error message.
	JobFailed JobStatus = "failed"
)

// ResearchJob is an asynchronous audit task. Jobs are created externally and
// transitioned only through the job repository: Pending -> Processing is the
// claim, and every claimed job must reach Completed or Failed.
type ResearchJob struct {
	ID           string    `db:"id" json:"id"`
	ProjectID    string    `db:"project_id" json:"project_id"`
	TargetURL    string    `db:"target_url" json:"target_url"`
	Status       JobStatus `db:"status" json:"status"`
	Result       JSONBMap  `db:"result" json:"result,omitempty"`
	ErrorMessage *string   `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
