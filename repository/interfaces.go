package repository

import (
	"context"
	"encoding/json"

	"trailer-engine/domain"
)

// EnqueueOptions carries the optional attributes of a new job.
type EnqueueOptions struct {
	Priority   int
	MaxRetries int // 0 means the queue default
	ProjectID  string
	SegmentID  string
}

// JobRepository is the durable, prioritized job queue. It exclusively owns job
// records; workers only hold a transient lease on a claimed job.
type JobRepository interface {
	Enqueue(ctx context.Context, jobType domain.JobType, payload json.RawMessage, opts EnqueueOptions) (string, error)
	// Dequeue atomically claims the highest-priority pending job for workerID.
	// Returns nil when no job is eligible.
	Dequeue(ctx context.Context, workerID string) (*domain.Job, error)
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
	// UpdateProgress is monotonic: a percent lower than the recorded value is a no-op.
	UpdateProgress(ctx context.Context, jobID string, percent int) error
	SetExternalHandle(ctx context.Context, jobID, handle string) error
	// Complete and Fail are idempotent terminal transitions; calling either on
	// an already-terminal job is a no-op.
	Complete(ctx context.Context, jobID string, output json.RawMessage) error
	// Fail re-enqueues the job with backoff while retry budget remains and
	// reports whether it did so.
	Fail(ctx context.Context, jobID string, errMsg string) (retried bool, err error)
	// Abort terminally fails a job regardless of retry budget (cancellation path).
	Abort(ctx context.Context, jobID string, reason string) error
	// PromoteDue moves delayed jobs whose backoff elapsed back into the pending set.
	PromoteDue(ctx context.Context) (int, error)
	RequestCancel(ctx context.Context, projectID string) error
	IsCancelRequested(ctx context.Context, projectID string) (bool, error)
	JobsForProject(ctx context.Context, projectID string) ([]string, error)
	QueueDepths(ctx context.Context) (pending, delayed int64, err error)
}

// SegmentRepository handles segment state persistence.
type SegmentRepository interface {
	CreateSegments(ctx context.Context, segments []*domain.Segment) error
	FindByID(ctx context.Context, segmentID string) (*domain.Segment, error)
	// ListByProject reads all segments of a project in a single consistent snapshot.
	ListByProject(ctx context.Context, projectID string) ([]*domain.Segment, error)
	UpdateStatus(ctx context.Context, segmentID string, status domain.SegmentStatus, progress int, resultURL string) error
	AttachJob(ctx context.Context, segmentID, jobID string) error
}

// ProjectRepository handles the aggregate status fields this service owns on
// the project row.
type ProjectRepository interface {
	GetStatus(ctx context.Context, projectID string) (*domain.Project, error)
	UpdateStatus(ctx context.Context, projectID string, status domain.ProjectStatus, overallProgress int) error
}

// VideoGateway wraps the external video generation provider.
type VideoGateway interface {
	// Submit starts a generation and returns an opaque external job handle.
	Submit(ctx context.Context, input *domain.GenerationInput) (string, error)
	// PollStatus reads the provider-side state for a handle. Transient
	// transport errors are absorbed into a processing-equivalent status;
	// malformed handles and permanent provider failures return an error.
	PollStatus(ctx context.Context, handle string) (*domain.GenerationStatus, error)
}

// ScriptGateway wraps the external script generation provider.
type ScriptGateway interface {
	GenerateScript(ctx context.Context, req *domain.ScriptRequest) (*domain.Script, error)
}
