package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailer-engine/domain"
	"trailer-engine/repository"
)

func TestWorkerPool_Run(t *testing.T) {
	t.Run("should reject a non-positive concurrency", func(t *testing.T) {
		f := newWorkerFixture(t, 10)
		pool := NewWorkerPool(f.jobRepo, f.worker, WorkerPoolConfig{Concurrency: 0, IdleWait: time.Millisecond}, slog.Default())

		assert.Error(t, pool.Run(context.Background()))
	})

	t.Run("should drain queued jobs and stop on cancellation", func(t *testing.T) {
		f := newWorkerFixture(t, 10)
		f.video.statuses = []*domain.GenerationStatus{
			{State: domain.GenerationStateCompleted, Progress: 100, ResultURL: "https://cdn/a.mp4"},
			{State: domain.GenerationStateCompleted, Progress: 100, ResultURL: "https://cdn/b.mp4"},
			{State: domain.GenerationStateCompleted, Progress: 100, ResultURL: "https://cdn/c.mp4"},
		}

		payload, err := json.Marshal(domain.GenerationInput{
			Prompt:          "three short cuts",
			DurationSeconds: 5,
			Resolution:      "720p",
		})
		require.NoError(t, err)

		var jobIDs []string
		for i := 0; i < 3; i++ {
			jobID, err := f.jobRepo.Enqueue(context.Background(), domain.JobTypeVideoGenerate, payload, repository.EnqueueOptions{})
			require.NoError(t, err)
			jobIDs = append(jobIDs, jobID)
		}

		ctx, cancel := context.WithCancel(context.Background())
		pool := NewWorkerPool(f.jobRepo, f.worker, WorkerPoolConfig{Concurrency: 2, IdleWait: time.Millisecond}, slog.Default())

		done := make(chan error, 1)
		go func() { done <- pool.Run(ctx) }()

		// Wait for every job to reach a terminal state.
		require.Eventually(t, func() bool {
			for _, jobID := range jobIDs {
				job, err := f.jobRepo.GetJob(context.Background(), jobID)
				if err != nil || !job.IsTerminal() {
					return false
				}
			}
			return true
		}, 2*time.Second, 5*time.Millisecond)

		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("pool did not stop after cancellation")
		}

		for _, jobID := range jobIDs {
			job, err := f.jobRepo.GetJob(context.Background(), jobID)
			require.NoError(t, err)
			assert.Equal(t, domain.JobStatusCompleted, job.Status)
		}
	})
}
