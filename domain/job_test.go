package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidJobType(t *testing.T) {
	t.Run("should accept supported types", func(t *testing.T) {
		assert.True(t, ValidJobType(JobTypeScriptGenerate))
		assert.True(t, ValidJobType(JobTypeScriptRefine))
		assert.True(t, ValidJobType(JobTypeVideoGenerate))
	})

	t.Run("should reject unknown types", func(t *testing.T) {
		assert.False(t, ValidJobType("audio-generate"))
		assert.False(t, ValidJobType(""))
	})
}

func TestJob_IsTerminal(t *testing.T) {
	tests := map[string]struct {
		status JobStatus
		want   bool
	}{
		"pending is not terminal":   {JobStatusPending, false},
		"active is not terminal":    {JobStatusActive, false},
		"completed is terminal":     {JobStatusCompleted, true},
		"failed is terminal":        {JobStatusFailed, true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			job := &Job{Status: tt.status}
			assert.Equal(t, tt.want, job.IsTerminal())
		})
	}
}

func TestJob_CanRetry(t *testing.T) {
	t.Run("should retry while under budget", func(t *testing.T) {
		job := &Job{RetryCount: 2, MaxRetries: 3}
		assert.True(t, job.CanRetry())
	})

	t.Run("should not retry at budget", func(t *testing.T) {
		job := &Job{RetryCount: 3, MaxRetries: 3}
		assert.False(t, job.CanRetry())
	})
}

func TestValidateSegmentOrder(t *testing.T) {
	t.Run("should accept contiguous indices in any input order", func(t *testing.T) {
		segments := []*Segment{
			{OrderIndex: 2},
			{OrderIndex: 0},
			{OrderIndex: 1},
		}
		assert.NoError(t, ValidateSegmentOrder(segments))
	})

	t.Run("should reject a gap in indices", func(t *testing.T) {
		segments := []*Segment{
			{OrderIndex: 0},
			{OrderIndex: 2},
		}
		assert.ErrorIs(t, ValidateSegmentOrder(segments), ErrSegmentOrderInvalid)
	})

	t.Run("should reject duplicate indices", func(t *testing.T) {
		segments := []*Segment{
			{OrderIndex: 0},
			{OrderIndex: 0},
		}
		assert.ErrorIs(t, ValidateSegmentOrder(segments), ErrSegmentOrderInvalid)
	})

	t.Run("should reject negative indices", func(t *testing.T) {
		segments := []*Segment{
			{OrderIndex: -1},
			{OrderIndex: 0},
		}
		assert.ErrorIs(t, ValidateSegmentOrder(segments), ErrSegmentOrderInvalid)
	})
}
