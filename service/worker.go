// ABOUTME: Executes claimed generation jobs against the external gateways
// ABOUTME: Video jobs run a bounded poll loop with cooperative cancellation checks
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"trailer-engine/domain"
	"trailer-engine/metrics"
	"trailer-engine/repository"
	"trailer-engine/retry"
)

// WorkerConfig bounds the poll loop of a single worker.
type WorkerConfig struct {
	PollInterval    time.Duration
	MaxPollAttempts int
}

// Worker executes one claimed job at a time. Terminal queue writes go through
// the retrier so a transient store error cannot strand a finished job.
type Worker struct {
	jobRepo       repository.JobRepository
	segmentRepo   repository.SegmentRepository
	videoGateway  repository.VideoGateway
	scriptGateway repository.ScriptGateway
	aggregator    *Aggregator
	retrier       *retry.Retrier
	cfg           WorkerConfig
	logger        *slog.Logger
}

// NewWorker creates a job worker.
func NewWorker(
	jobRepo repository.JobRepository,
	segmentRepo repository.SegmentRepository,
	videoGateway repository.VideoGateway,
	scriptGateway repository.ScriptGateway,
	aggregator *Aggregator,
	retrier *retry.Retrier,
	cfg WorkerConfig,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		jobRepo:       jobRepo,
		segmentRepo:   segmentRepo,
		videoGateway:  videoGateway,
		scriptGateway: scriptGateway,
		aggregator:    aggregator,
		retrier:       retrier,
		cfg:           cfg,
		logger:        logger,
	}
}

// ProcessJob runs a claimed job to a terminal outcome or a retry re-enqueue.
func (w *Worker) ProcessJob(ctx context.Context, job *domain.Job) error {
	start := time.Now()
	w.logger.InfoContext(ctx, "processing job", "job_id", job.ID, "job_type", job.Type, "retry_count", job.RetryCount)

	var err error
	switch job.Type {
	case domain.JobTypeScriptGenerate, domain.JobTypeScriptRefine:
		err = w.processScriptJob(ctx, job)
	case domain.JobTypeVideoGenerate:
		err = w.processVideoJob(ctx, job)
	default:
		err = fmt.Errorf("%w: %q", domain.ErrUnknownJobType, job.Type)
		w.failJob(ctx, job, err.Error())
	}

	if err != nil {
		w.logger.ErrorContext(ctx, "job processing failed", "error", err, "job_id", job.ID, "job_type", job.Type)
		return err
	}

	w.logger.InfoContext(ctx, "job processing finished",
		"job_id", job.ID,
		"job_type", job.Type,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// processScriptJob runs a synchronous script generation call.
func (w *Worker) processScriptJob(ctx context.Context, job *domain.Job) error {
	var req domain.ScriptRequest
	if err := json.Unmarshal(job.Payload, &req); err != nil {
		w.failJob(ctx, job, fmt.Sprintf("invalid script payload: %v", err))
		return fmt.Errorf("invalid script payload: %w", err)
	}

	script, err := w.scriptGateway.GenerateScript(ctx, &req)
	if err != nil {
		w.failJob(ctx, job, err.Error())
		return fmt.Errorf("script generation failed: %w", err)
	}

	output, err := json.Marshal(domain.ScriptOutput{
		Script:       script.Script,
		VisualPrompt: script.VisualPrompt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal script output: %w", err)
	}

	return w.completeJob(ctx, job, output)
}

// processVideoJob submits to the provider and polls until a terminal state,
// the attempt budget runs out, or the project is cancelled.
func (w *Worker) processVideoJob(ctx context.Context, job *domain.Job) error {
	var input domain.GenerationInput
	if err := json.Unmarshal(job.Payload, &input); err != nil {
		w.failJob(ctx, job, fmt.Sprintf("invalid generation payload: %v", err))
		return fmt.Errorf("invalid generation payload: %w", err)
	}

	if cancelled, err := w.checkCancelled(ctx, job); err != nil {
		return err
	} else if cancelled {
		return nil
	}

	w.markSegment(ctx, job, domain.SegmentStatusProcessing, 0, "")

	handle := job.ExternalHandle
	if handle == "" {
		var err error
		handle, err = w.videoGateway.Submit(ctx, &input)
		if err != nil {
			w.failJob(ctx, job, err.Error())
			return fmt.Errorf("video submission failed: %w", err)
		}
		if err := w.jobRepo.SetExternalHandle(ctx, job.ID, handle); err != nil {
			w.logger.WarnContext(ctx, "failed to persist external handle", "error", err, "job_id", job.ID)
		}
	}

	for attempt := 1; attempt <= w.cfg.MaxPollAttempts; attempt++ {
		if cancelled, err := w.checkCancelled(ctx, job); err != nil {
			return err
		} else if cancelled {
			metrics.PollAttempts.Observe(float64(attempt))
			return nil
		}

		status, err := w.videoGateway.PollStatus(ctx, handle)
		if err != nil {
			metrics.PollAttempts.Observe(float64(attempt))
			w.clearHandle(ctx, job)
			w.failJob(ctx, job, err.Error())
			return fmt.Errorf("status poll failed: %w", err)
		}

		switch status.State {
		case domain.GenerationStateCompleted:
			metrics.PollAttempts.Observe(float64(attempt))
			output, err := json.Marshal(domain.VideoOutput{
				ResultURL:       status.ResultURL,
				DurationSeconds: status.DurationSeconds,
				Resolution:      status.Resolution,
				ExternalHandle:  handle,
			})
			if err != nil {
				return fmt.Errorf("failed to marshal video output: %w", err)
			}
			if err := w.completeJob(ctx, job, output); err != nil {
				return err
			}
			w.markSegment(ctx, job, domain.SegmentStatusCompleted, 100, status.ResultURL)
			return nil

		case domain.GenerationStateFailed:
			metrics.PollAttempts.Observe(float64(attempt))
			msg := status.Message
			if msg == "" {
				msg = "provider reported failure"
			}
			// The generation behind this handle is dead; a retry must
			// resubmit rather than re-poll it.
			w.clearHandle(ctx, job)
			w.failJob(ctx, job, msg)
			return fmt.Errorf("%w: %s", domain.ErrProviderFailed, msg)

		default:
			if err := w.jobRepo.UpdateProgress(ctx, job.ID, status.Progress); err != nil {
				w.logger.WarnContext(ctx, "failed to record job progress", "error", err, "job_id", job.ID)
			}
			if status.Progress > job.Progress {
				job.Progress = status.Progress
			}
			if status.Progress > 0 {
				w.markSegment(ctx, job, domain.SegmentStatusProcessing, status.Progress, "")
			}
		}

		select {
		case <-ctx.Done():
			// Shutdown mid-poll. The job stays active and a later restart
			// resumes polling via the persisted handle.
			return fmt.Errorf("poll loop interrupted: %w", ctx.Err())
		case <-time.After(w.cfg.PollInterval):
		}
	}

	metrics.PollAttempts.Observe(float64(w.cfg.MaxPollAttempts))
	w.failJob(ctx, job, domain.ErrPollTimeout.Error())
	return fmt.Errorf("%w: %d attempts", domain.ErrPollTimeout, w.cfg.MaxPollAttempts)
}

// checkCancelled aborts the job if its project requested cancellation.
func (w *Worker) checkCancelled(ctx context.Context, job *domain.Job) (bool, error) {
	if job.ProjectID == "" {
		return false, nil
	}

	cancelled, err := w.jobRepo.IsCancelRequested(ctx, job.ProjectID)
	if err != nil {
		w.logger.WarnContext(ctx, "failed to read cancel flag", "error", err, "project_id", job.ProjectID)
		return false, nil
	}
	if !cancelled {
		return false, nil
	}

	w.logger.InfoContext(ctx, "aborting job for cancelled project", "job_id", job.ID, "project_id", job.ProjectID)
	abortErr := w.retrier.Do(ctx, func() error {
		return w.jobRepo.Abort(ctx, job.ID, domain.ErrJobCancelled.Error())
	})
	if abortErr != nil {
		return true, fmt.Errorf("failed to abort cancelled job: %w", abortErr)
	}

	metrics.RecordJobProcessed(string(job.Type), "cancelled", 0)
	w.markSegment(ctx, job, domain.SegmentStatusFailed, job.Progress, "")
	return true, nil
}

// clearHandle drops the persisted provider handle so a retry attempt submits
// a fresh generation instead of polling a dead one. Timeout failures keep the
// handle and resume polling.
func (w *Worker) clearHandle(ctx context.Context, job *domain.Job) {
	if err := w.jobRepo.SetExternalHandle(ctx, job.ID, ""); err != nil {
		w.logger.WarnContext(ctx, "failed to clear external handle", "error", err, "job_id", job.ID)
		return
	}
	job.ExternalHandle = ""
}

// completeJob records success with retry protection on the queue write.
func (w *Worker) completeJob(ctx context.Context, job *domain.Job, output json.RawMessage) error {
	err := w.retrier.Do(ctx, func() error {
		return w.jobRepo.Complete(ctx, job.ID, output)
	})
	if err != nil {
		return fmt.Errorf("failed to record job completion: %w", err)
	}

	metrics.RecordJobProcessed(string(job.Type), string(domain.JobStatusCompleted), time.Since(job.CreatedAt).Seconds())
	return nil
}

// failJob records failure, distinguishing a retry re-enqueue from a permanent
// failure for metrics and segment state.
func (w *Worker) failJob(ctx context.Context, job *domain.Job, msg string) {
	var retried bool
	err := w.retrier.Do(ctx, func() error {
		var failErr error
		retried, failErr = w.jobRepo.Fail(ctx, job.ID, msg)
		return failErr
	})
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to record job failure", "error", err, "job_id", job.ID)
		return
	}

	if retried {
		metrics.RecordRetry(string(job.Type))
		return
	}

	metrics.RecordJobProcessed(string(job.Type), string(domain.JobStatusFailed), time.Since(job.CreatedAt).Seconds())
	w.markSegment(ctx, job, domain.SegmentStatusFailed, job.Progress, "")
}

// markSegment mirrors a job state change onto its segment and recomputes the
// project aggregate. Jobs without a segment are project-independent.
func (w *Worker) markSegment(ctx context.Context, job *domain.Job, status domain.SegmentStatus, progress int, resultURL string) {
	if job.SegmentID == "" {
		return
	}

	if err := w.segmentRepo.UpdateStatus(ctx, job.SegmentID, status, progress, resultURL); err != nil {
		w.logger.ErrorContext(ctx, "failed to update segment status", "error", err, "segment_id", job.SegmentID)
		// Repair from the job record so a lost mirror write cannot leave
		// the segment permanently stale.
		repairErr := w.retrier.Do(ctx, func() error {
			return w.aggregator.RecomputeSegment(ctx, job.SegmentID)
		})
		if repairErr != nil {
			w.logger.ErrorContext(ctx, "failed to repair segment state", "error", repairErr, "segment_id", job.SegmentID)
		}
		return
	}

	if job.ProjectID != "" {
		if err := w.aggregator.RecomputeProject(ctx, job.ProjectID); err != nil {
			w.logger.ErrorContext(ctx, "failed to recompute project aggregate", "error", err, "project_id", job.ProjectID)
		}
	}
}
