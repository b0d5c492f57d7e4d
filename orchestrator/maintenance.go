package orchestrator

import (
	"context"
	"time"

	"trailer-engine/metrics"
	"trailer-engine/repository"
)

// QueueMaintenanceTasks builds the periodic tasks that keep the job queue
// healthy: promoting delayed retries and refreshing depth gauges.
func QueueMaintenanceTasks(jobRepo repository.JobRepository, promoteInterval time.Duration) []Task {
	return []Task{
		{
			Name:     "promote-due-jobs",
			Interval: promoteInterval,
			Fn: func(ctx context.Context) error {
				_, err := jobRepo.PromoteDue(ctx)
				return err
			},
		},
		{
			Name:     "queue-depth-gauges",
			Interval: 15 * time.Second,
			Fn: func(ctx context.Context) error {
				pending, delayed, err := jobRepo.QueueDepths(ctx)
				if err != nil {
					return err
				}
				metrics.QueueDepth.Set(float64(pending))
				metrics.DelayedDepth.Set(float64(delayed))
				return nil
			},
		},
	}
}
