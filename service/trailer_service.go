// ABOUTME: Submission, cancellation and status-query operations behind the HTTP API
// ABOUTME: Requests are validated before any job record exists
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"trailer-engine/domain"
	"trailer-engine/repository"
)

// SegmentSpec describes one segment of a project render request.
type SegmentSpec struct {
	OrderIndex   int    `json:"order_index"`
	Script       string `json:"script"`
	VisualPrompt string `json:"visual_prompt"`
}

// JobStatusView is the per-job status payload served to pollers.
type JobStatusView struct {
	JobID    string          `json:"job_id"`
	Status   domain.JobStatus `json:"status"`
	Progress int             `json:"progress"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// TrailerService coordinates job submission and status reads. It owns no state
// of its own; everything lives in the queue and the segment store.
type TrailerService struct {
	jobRepo     repository.JobRepository
	segmentRepo repository.SegmentRepository
	aggregator  *Aggregator
	logger      *slog.Logger
}

// NewTrailerService creates the submission/query service.
func NewTrailerService(jobRepo repository.JobRepository, segmentRepo repository.SegmentRepository, aggregator *Aggregator, logger *slog.Logger) *TrailerService {
	return &TrailerService{
		jobRepo:     jobRepo,
		segmentRepo: segmentRepo,
		aggregator:  aggregator,
		logger:      logger,
	}
}

// SubmitVideoJob validates a generation request and enqueues it. Validation
// failures never create a job record.
func (s *TrailerService) SubmitVideoJob(ctx context.Context, input *domain.GenerationInput, opts repository.EnqueueOptions) (string, error) {
	if err := input.Validate(); err != nil {
		return "", err
	}

	payload, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("failed to marshal generation input: %w", err)
	}

	jobID, err := s.jobRepo.Enqueue(ctx, domain.JobTypeVideoGenerate, payload, opts)
	if err != nil {
		return "", err
	}

	if opts.SegmentID != "" {
		if err := s.segmentRepo.AttachJob(ctx, opts.SegmentID, jobID); err != nil {
			s.logger.WarnContext(ctx, "failed to attach job to segment", "error", err, "segment_id", opts.SegmentID, "job_id", jobID)
		}
	}

	return jobID, nil
}

// SubmitScriptJob validates a script request and enqueues it.
func (s *TrailerService) SubmitScriptJob(ctx context.Context, jobType domain.JobType, req *domain.ScriptRequest, opts repository.EnqueueOptions) (string, error) {
	if jobType != domain.JobTypeScriptGenerate && jobType != domain.JobTypeScriptRefine {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownJobType, jobType)
	}
	if err := req.Validate(jobType); err != nil {
		return "", err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal script request: %w", err)
	}

	return s.jobRepo.Enqueue(ctx, jobType, payload, opts)
}

// StartProjectRender creates the project's segments and enqueues one video
// generation job per segment. All inputs are validated before any segment or
// job is persisted.
func (s *TrailerService) StartProjectRender(ctx context.Context, projectID string, specs []SegmentSpec, render domain.GenerationInput, priority int) ([]string, error) {
	if projectID == "" {
		return nil, fmt.Errorf("project ID cannot be empty")
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: at least one segment is required", domain.ErrInvalidRequest)
	}

	segments := make([]*domain.Segment, 0, len(specs))
	inputs := make([]*domain.GenerationInput, 0, len(specs))
	for _, spec := range specs {
		input := render
		input.Prompt = spec.VisualPrompt
		if err := input.Validate(); err != nil {
			return nil, fmt.Errorf("segment %d: %w", spec.OrderIndex, err)
		}
		inputs = append(inputs, &input)
		segments = append(segments, &domain.Segment{
			ID:           uuid.New().String(),
			ProjectID:    projectID,
			OrderIndex:   spec.OrderIndex,
			Script:       spec.Script,
			VisualPrompt: spec.VisualPrompt,
			Status:       domain.SegmentStatusPending,
		})
	}

	if err := s.segmentRepo.CreateSegments(ctx, segments); err != nil {
		return nil, err
	}

	jobIDs := make([]string, 0, len(segments))
	for i, seg := range segments {
		jobID, err := s.SubmitVideoJob(ctx, inputs[i], repository.EnqueueOptions{
			Priority:  priority,
			ProjectID: projectID,
			SegmentID: seg.ID,
		})
		if err != nil {
			return jobIDs, fmt.Errorf("failed to enqueue segment %d: %w", seg.OrderIndex, err)
		}
		jobIDs = append(jobIDs, jobID)
	}

	s.logger.InfoContext(ctx, "project render started", "project_id", projectID, "segment_count", len(segments))
	return jobIDs, nil
}

// CancelProject raises the project cancel flag and aborts its not-yet-claimed
// jobs. Active jobs notice the flag between poll iterations.
func (s *TrailerService) CancelProject(ctx context.Context, projectID string) error {
	if err := s.jobRepo.RequestCancel(ctx, projectID); err != nil {
		return err
	}

	jobIDs, err := s.jobRepo.JobsForProject(ctx, projectID)
	if err != nil {
		return err
	}

	for _, jobID := range jobIDs {
		job, err := s.jobRepo.GetJob(ctx, jobID)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to load job during cancel", "error", err, "job_id", jobID)
			continue
		}
		if job.IsTerminal() || job.Status == domain.JobStatusActive {
			// Active jobs abort themselves at the next cancel check.
			continue
		}
		if err := s.jobRepo.Abort(ctx, jobID, domain.ErrJobCancelled.Error()); err != nil {
			s.logger.WarnContext(ctx, "failed to abort pending job", "error", err, "job_id", jobID)
		}
	}

	return nil
}

// JobStatus builds the per-job status view.
func (s *TrailerService) JobStatus(ctx context.Context, jobID string) (*JobStatusView, error) {
	job, err := s.jobRepo.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	view := &JobStatusView{
		JobID:    job.ID,
		Status:   job.Status,
		Progress: job.Progress,
		Result:   job.Output,
	}
	if job.Error != nil {
		view.Error = *job.Error
	}
	return view, nil
}

// ProjectProgress builds the project-level aggregate view.
func (s *TrailerService) ProjectProgress(ctx context.Context, projectID string) (*domain.ProjectProgress, error) {
	return s.aggregator.ProjectProgress(ctx, projectID)
}
