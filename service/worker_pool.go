// ABOUTME: Bounded pool of polling workers draining the job queue
// ABOUTME: Pool size caps concurrent external generations; stop is cooperative via context
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"trailer-engine/repository"
)

// WorkerPoolConfig sizes the pool and paces its idle polling.
type WorkerPoolConfig struct {
	Concurrency int
	IdleWait    time.Duration
}

// WorkerPool runs a fixed number of claim-and-process loops against the queue.
type WorkerPool struct {
	jobRepo repository.JobRepository
	worker  *Worker
	cfg     WorkerPoolConfig
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool.
func NewWorkerPool(jobRepo repository.JobRepository, worker *Worker, cfg WorkerPoolConfig, logger *slog.Logger) *WorkerPool {
	return &WorkerPool{
		jobRepo: jobRepo,
		worker:  worker,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run starts the pool and blocks until ctx is cancelled and every worker loop
// has drained its current job.
func (p *WorkerPool) Run(ctx context.Context) error {
	if p.cfg.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be positive: %d", p.cfg.Concurrency)
	}

	p.logger.InfoContext(ctx, "starting worker pool", "concurrency", p.cfg.Concurrency)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.cfg.Concurrency; i++ {
		workerID := fmt.Sprintf("worker-%d", i)
		g.Go(func() error {
			return p.runLoop(gctx, workerID)
		})
	}

	err := g.Wait()
	p.logger.InfoContext(ctx, "worker pool stopped")
	return err
}

// runLoop is one worker's claim-and-process cycle. Job failures are recorded
// and absorbed; only context cancellation ends the loop.
func (p *WorkerPool) runLoop(ctx context.Context, workerID string) error {
	p.logger.InfoContext(ctx, "worker loop started", "worker_id", workerID)

	for {
		if ctx.Err() != nil {
			p.logger.InfoContext(ctx, "worker loop stopping", "worker_id", workerID)
			return nil
		}

		job, err := p.jobRepo.Dequeue(ctx, workerID)
		if err != nil {
			p.logger.ErrorContext(ctx, "dequeue failed", "error", err, "worker_id", workerID)
			p.idle(ctx)
			continue
		}
		if job == nil {
			p.idle(ctx)
			continue
		}

		if err := p.worker.ProcessJob(ctx, job); err != nil {
			// Already logged and recorded on the job; the loop keeps going.
			continue
		}
	}
}

// idle waits out the empty-queue interval, returning early on shutdown.
func (p *WorkerPool) idle(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(p.cfg.IdleWait):
	}
}
