// ABOUTME: Derives project-level status and progress from the states of its segments
// ABOUTME: Segment reads use a consistent snapshot so aggregates never mix generations
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"trailer-engine/domain"
	"trailer-engine/repository"
)

// Aggregator recomputes segment and project derived state from the job queue
// whenever a generation changes state.
type Aggregator struct {
	jobRepo      repository.JobRepository
	segmentRepo  repository.SegmentRepository
	projectRepo  repository.ProjectRepository
	failureRatio float64
	logger       *slog.Logger
}

// NewAggregator creates a new state aggregator. failureRatio is the fraction
// of failed segments beyond which the whole project counts as failed.
func NewAggregator(jobRepo repository.JobRepository, segmentRepo repository.SegmentRepository, projectRepo repository.ProjectRepository, failureRatio float64, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		jobRepo:      jobRepo,
		segmentRepo:  segmentRepo,
		projectRepo:  projectRepo,
		failureRatio: failureRatio,
		logger:       logger,
	}
}

// RecomputeSegment re-derives a segment's state from its most recent job and
// refreshes the project aggregate. Converges to the same state no matter how
// often it runs, so it doubles as the repair path for a lost mirror write.
func (a *Aggregator) RecomputeSegment(ctx context.Context, segmentID string) error {
	if segmentID == "" {
		return fmt.Errorf("segment ID cannot be empty")
	}

	seg, err := a.segmentRepo.FindByID(ctx, segmentID)
	if err != nil {
		return err
	}
	if seg.LastJobID == nil {
		return nil
	}

	job, err := a.jobRepo.GetJob(ctx, *seg.LastJobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			// Pruned from retention; the stored segment state stands.
			return nil
		}
		return fmt.Errorf("failed to read segment job: %w", err)
	}

	status, progress, resultURL := segmentStateFromJob(job)
	if err := a.segmentRepo.UpdateStatus(ctx, segmentID, status, progress, resultURL); err != nil {
		return fmt.Errorf("failed to mirror job state onto segment: %w", err)
	}

	a.logger.DebugContext(ctx, "segment state recomputed",
		"segment_id", segmentID,
		"job_id", job.ID,
		"status", status,
		"progress", progress)

	if seg.ProjectID != "" {
		return a.RecomputeProject(ctx, seg.ProjectID)
	}
	return nil
}

// segmentStateFromJob maps a job onto the segment fields mirroring it.
func segmentStateFromJob(job *domain.Job) (domain.SegmentStatus, int, string) {
	switch job.Status {
	case domain.JobStatusCompleted:
		var out domain.VideoOutput
		if len(job.Output) > 0 && json.Unmarshal(job.Output, &out) == nil {
			return domain.SegmentStatusCompleted, 100, out.ResultURL
		}
		return domain.SegmentStatusCompleted, 100, ""
	case domain.JobStatusFailed:
		return domain.SegmentStatusFailed, job.Progress, ""
	case domain.JobStatusActive:
		return domain.SegmentStatusProcessing, job.Progress, ""
	default:
		return domain.SegmentStatusPending, job.Progress, ""
	}
}

// ComputeAggregate derives a project status and overall progress from segment
// states. Precedence: completed only when every segment completed, failed when
// failures exceed the ratio (strictly greater, a boundary split stays alive),
// processing when any segment is active, otherwise pending.
func ComputeAggregate(segments []*domain.Segment, failureRatio float64) (domain.ProjectStatus, int) {
	if len(segments) == 0 {
		return domain.ProjectStatusPending, 0
	}

	var completed, failed, processing, progressSum int
	for _, s := range segments {
		progressSum += s.Progress
		switch s.Status {
		case domain.SegmentStatusCompleted:
			completed++
		case domain.SegmentStatusFailed:
			failed++
		case domain.SegmentStatusProcessing:
			processing++
		}
	}

	overall := progressSum / len(segments)

	switch {
	case completed == len(segments):
		return domain.ProjectStatusCompleted, 100
	case float64(failed) > failureRatio*float64(len(segments)):
		return domain.ProjectStatusFailed, overall
	case processing > 0:
		return domain.ProjectStatusProcessing, overall
	default:
		return domain.ProjectStatusPending, overall
	}
}

// RecomputeProject reads a fresh segment snapshot and writes the derived
// status back onto the project row.
func (a *Aggregator) RecomputeProject(ctx context.Context, projectID string) error {
	if projectID == "" {
		return fmt.Errorf("project ID cannot be empty")
	}

	segments, err := a.segmentRepo.ListByProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to read segments for aggregation: %w", err)
	}

	status, overall := ComputeAggregate(segments, a.failureRatio)

	if err := a.projectRepo.UpdateStatus(ctx, projectID, status, overall); err != nil {
		return fmt.Errorf("failed to write aggregated project status: %w", err)
	}

	a.logger.DebugContext(ctx, "project aggregate recomputed",
		"project_id", projectID,
		"status", status,
		"overall_progress", overall,
		"segment_count", len(segments))
	return nil
}

// ProjectProgress builds the aggregate view served to status pollers.
func (a *Aggregator) ProjectProgress(ctx context.Context, projectID string) (*domain.ProjectProgress, error) {
	if projectID == "" {
		return nil, fmt.Errorf("project ID cannot be empty")
	}

	project, err := a.projectRepo.GetStatus(ctx, projectID)
	if err != nil {
		return nil, err
	}

	segments, err := a.segmentRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to read segments for progress: %w", err)
	}

	view := &domain.ProjectProgress{
		ProjectID:       project.ID,
		Status:          project.Status,
		OverallProgress: project.OverallProgress,
		Segments:        make([]domain.SegmentProgress, 0, len(segments)),
	}
	for _, s := range segments {
		sp := domain.SegmentProgress{
			SegmentID:  s.ID,
			OrderIndex: s.OrderIndex,
			Status:     s.Status,
			Progress:   s.Progress,
		}
		if s.ResultURL != nil {
			sp.ResultURL = *s.ResultURL
		}
		view.Segments = append(view.Segments, sp)
	}

	return view, nil
}
