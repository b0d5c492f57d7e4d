package orchestrator

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailer-engine/repository"
)

type stubQueue struct {
	repository.JobRepository
	promoteCalls atomic.Int64
	depthCalls   atomic.Int64
}

func (s *stubQueue) PromoteDue(_ context.Context) (int, error) {
	s.promoteCalls.Add(1)
	return 0, nil
}

func (s *stubQueue) QueueDepths(_ context.Context) (int64, int64, error) {
	s.depthCalls.Add(1)
	return 2, 1, nil
}

func TestQueueMaintenanceTasks(t *testing.T) {
	t.Run("should drive promotion through the runner", func(t *testing.T) {
		queue := &stubQueue{}
		runner := NewRunner(QueueMaintenanceTasks(queue, 2*time.Millisecond), slog.Default())

		runner.Start(context.Background())
		require.Eventually(t, func() bool { return queue.promoteCalls.Load() >= 2 }, time.Second, time.Millisecond)
		runner.Stop()

		// The depth gauge task ran at least its immediate pass.
		assert.GreaterOrEqual(t, queue.depthCalls.Load(), int64(1))
	})
}
