package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/statement-reconciler/internal/domain"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeExtractFile extracts the transactions of one statement file.
	JobTypeExtractFile JobType = "extract_file"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrQueueClosed = errors.New("queue is closed")
)

// ExtractFileJob extracts one statement, read from a local path or a
// gs:// URI, or carried inline in Data.
type ExtractFileJob struct {
	JobID string `json:"job_id"`

	// Source is a local path or gs:// URI. FileName defaults to its base name.
	Source   string `json:"source"`
	FileName string `json:"file_name"`
	// Data holds the file when it was uploaded directly.
	Data []byte `json:"-"`

	// Checksum is the SHA-256 of the file bytes, set once they are read.
	Checksum    string `json:"checksum,omitempty"`
	StatementID string `json:"statement_id,omitempty"`

	Status JobStatus          `json:"status"`
	Result *domain.FileResult `json:"result,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error is set when the job could not run; extraction failures are
	// reported in Result.Error instead.
	Error      string `json:"error,omitempty"`
	RetryCount int    `json:"retry_count"`
	MaxRetries int    `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *ExtractFileJob) GetID() string {
	return j.JobID
}

func (j *ExtractFileJob) GetType() JobType {
	return JobTypeExtractFile
}

func (j *ExtractFileJob) GetStatus() JobStatus {
	return j.Status
}

// Terminal reports whether the job will not run again.
func (j *ExtractFileJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Publisher enqueues jobs.
type Publisher interface {
	// PublishExtractFile enqueues a statement extraction.
	PublishExtractFile(ctx context.Context, job *ExtractFileJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer runs queued jobs.
type Consumer interface {
	// Start begins consuming jobs; handler is called for each one.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error makes the job eligible for
// a retry.
type JobHandler func(ctx context.Context, job Job) error

// JobStore keeps job state for status queries.
type JobStore interface {
	SaveJob(ctx context.Context, job *ExtractFileJob) error
	GetJob(ctx context.Context, jobID string) (*ExtractFileJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*ExtractFileJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	Source string
	Status JobStatus
	Limit  int
	Offset int
}
