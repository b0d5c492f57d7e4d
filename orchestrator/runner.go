// Package orchestrator runs periodic queue maintenance jobs.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task is one periodic maintenance function.
type Task struct {
	Name     string
	Interval time.Duration
	Fn       func(ctx context.Context) error
}

// Runner owns the lifecycle of a set of periodic tasks.
type Runner struct {
	tasks  []Task
	logger *slog.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRunner creates a runner for the given tasks.
func NewRunner(tasks []Task, logger *slog.Logger) *Runner {
	return &Runner{
		tasks:  tasks,
		logger: logger,
	}
}

// Start launches every task loop in its own goroutine.
func (r *Runner) Start(ctx context.Context) {
	taskCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	for _, task := range r.tasks {
		r.wg.Add(1)
		go func(t Task) {
			defer r.wg.Done()
			r.run(taskCtx, t)
		}(task)
	}
}

// Stop cancels all task loops and waits for them to finish.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

// run drives one task on its interval. A task error is logged and the loop
// keeps ticking; only cancellation ends it.
func (r *Runner) run(ctx context.Context, task Task) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "panic in maintenance task", "task", task.Name, "panic", rec)
		}
	}()

	r.logger.InfoContext(ctx, "maintenance task started", "task", task.Name, "interval", task.Interval)

	// One immediate run so state is fresh right after startup.
	if err := task.Fn(ctx); err != nil {
		r.logger.ErrorContext(ctx, "maintenance task failed", "task", task.Name, "error", err)
	}

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "maintenance task stopped", "task", task.Name)
			return
		case <-ticker.C:
			if err := task.Fn(ctx); err != nil {
				r.logger.ErrorContext(ctx, "maintenance task failed", "task", task.Name, "error", err)
			}
		}
	}
}
