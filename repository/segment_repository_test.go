package repository

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"trailer-engine/domain"
)

func TestSegmentRepository_Validation(t *testing.T) {
	repo := NewSegmentRepository(nil, slog.Default())

	t.Run("should reject empty segment list", func(t *testing.T) {
		err := repo.CreateSegments(context.Background(), nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "segments cannot be empty")
	})

	t.Run("should reject non-contiguous order before touching the database", func(t *testing.T) {
		err := repo.CreateSegments(context.Background(), []*domain.Segment{
			{ID: "s1", ProjectID: "p1", OrderIndex: 0},
			{ID: "s2", ProjectID: "p1", OrderIndex: 2},
		})
		assert.ErrorIs(t, err, domain.ErrSegmentOrderInvalid)
	})

	t.Run("should reject nil database on create", func(t *testing.T) {
		err := repo.CreateSegments(context.Background(), []*domain.Segment{
			{ID: "s1", ProjectID: "p1", OrderIndex: 0},
		})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "database connection is nil")
	})

	t.Run("should reject empty segment ID on find", func(t *testing.T) {
		_, err := repo.FindByID(context.Background(), "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "segment ID cannot be empty")
	})

	t.Run("should reject nil database on find", func(t *testing.T) {
		_, err := repo.FindByID(context.Background(), "seg-1")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "database connection is nil")
	})

	t.Run("should reject empty project ID on list", func(t *testing.T) {
		_, err := repo.ListByProject(context.Background(), "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "project ID cannot be empty")
	})

	t.Run("should reject empty segment ID on status update", func(t *testing.T) {
		err := repo.UpdateStatus(context.Background(), "", domain.SegmentStatusCompleted, 100, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "segment ID cannot be empty")
	})

	t.Run("should reject empty job ID on attach", func(t *testing.T) {
		err := repo.AttachJob(context.Background(), "seg-1", "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "job ID cannot be empty")
	})
}
