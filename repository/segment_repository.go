package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"trailer-engine/domain"
)

// segmentRepository implementation.
type segmentRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewSegmentRepository creates a new segment repository.
func NewSegmentRepository(db *pgxpool.Pool, logger *slog.Logger) SegmentRepository {
	return &segmentRepository{
		db:     db,
		logger: logger,
	}
}

// CreateSegments inserts all segments of a project in one transaction so that
// order validation and persistence succeed or fail together.
func (r *segmentRepository) CreateSegments(ctx context.Context, segments []*domain.Segment) error {
	if len(segments) == 0 {
		return fmt.Errorf("segments cannot be empty")
	}

	if r.db == nil {
		r.logger.ErrorContext(ctx, "database connection is nil")
		return fmt.Errorf("database connection is nil")
	}

	if err := domain.ValidateSegmentOrder(segments); err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			r.logger.WarnContext(ctx, "failed to rollback transaction", "error", rollbackErr)
		}
	}()

	query := `
		INSERT INTO trailer_segments (id, project_id, order_index, script, visual_prompt, status, progress)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for _, s := range segments {
		if _, err := tx.Exec(ctx, query,
			s.ID, s.ProjectID, s.OrderIndex, s.Script, s.VisualPrompt, s.Status, s.Progress,
		); err != nil {
			r.logger.ErrorContext(ctx, "failed to insert segment", "error", err, "segment_id", s.ID)
			return fmt.Errorf("failed to insert segment: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit segments: %w", err)
	}

	r.logger.InfoContext(ctx, "segments created", "project_id", segments[0].ProjectID, "count", len(segments))
	return nil
}

// FindByID retrieves a segment by id.
func (r *segmentRepository) FindByID(ctx context.Context, segmentID string) (*domain.Segment, error) {
	if segmentID == "" {
		return nil, fmt.Errorf("segment ID cannot be empty")
	}

	if r.db == nil {
		r.logger.ErrorContext(ctx, "database connection is nil")
		return nil, fmt.Errorf("database connection is nil")
	}

	query := `
		SELECT id, project_id, order_index, script, visual_prompt, status,
		       progress, result_url, last_job_id, created_at, updated_at
		FROM trailer_segments
		WHERE id = $1
	`

	seg, err := scanSegment(r.db.QueryRow(ctx, query, segmentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "segment not found", "segment_id", segmentID)
			return nil, fmt.Errorf("%w: %s", domain.ErrSegmentNotFound, segmentID)
		}
		r.logger.ErrorContext(ctx, "failed to get segment", "error", err, "segment_id", segmentID)
		return nil, fmt.Errorf("failed to get segment: %w", err)
	}

	return seg, nil
}

// ListByProject reads all segments of a project ordered by index. The read
// runs inside a Read Committed transaction so aggregation sees one consistent
// snapshot rather than a mix of states.
func (r *segmentRepository) ListByProject(ctx context.Context, projectID string) ([]*domain.Segment, error) {
	if projectID == "" {
		return nil, fmt.Errorf("project ID cannot be empty")
	}

	if r.db == nil {
		r.logger.ErrorContext(ctx, "database connection is nil")
		return nil, fmt.Errorf("database connection is nil")
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			r.logger.WarnContext(ctx, "failed to rollback transaction", "error", rollbackErr)
		}
	}()

	query := `
		SELECT id, project_id, order_index, script, visual_prompt, status,
		       progress, result_url, last_job_id, created_at, updated_at
		FROM trailer_segments
		WHERE project_id = $1
		ORDER BY order_index
	`

	rows, err := tx.Query(ctx, query, projectID)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to list segments", "error", err, "project_id", projectID)
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}
	defer rows.Close()

	var segments []*domain.Segment
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", err)
		}
		segments = append(segments, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate segments: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit snapshot read: %w", err)
	}

	return segments, nil
}

// UpdateStatus writes a segment's generation state. An empty resultURL leaves
// the stored URL untouched so a failed retry does not erase a prior result.
func (r *segmentRepository) UpdateStatus(ctx context.Context, segmentID string, status domain.SegmentStatus, progress int, resultURL string) error {
	if segmentID == "" {
		return fmt.Errorf("segment ID cannot be empty")
	}

	if r.db == nil {
		r.logger.ErrorContext(ctx, "database connection is nil")
		return fmt.Errorf("database connection is nil")
	}

	query := `
		UPDATE trailer_segments
		SET status = $2,
		    progress = $3,
		    result_url = COALESCE(NULLIF($4, ''), result_url),
		    updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, segmentID, status, progress, resultURL)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to update segment status", "error", err, "segment_id", segmentID)
		return fmt.Errorf("failed to update segment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrSegmentNotFound, segmentID)
	}

	r.logger.InfoContext(ctx, "segment status updated",
		"segment_id", segmentID,
		"status", status,
		"progress", progress)
	return nil
}

// AttachJob records the id of the most recent generation job for a segment.
func (r *segmentRepository) AttachJob(ctx context.Context, segmentID, jobID string) error {
	if segmentID == "" {
		return fmt.Errorf("segment ID cannot be empty")
	}
	if jobID == "" {
		return fmt.Errorf("job ID cannot be empty")
	}

	if r.db == nil {
		r.logger.ErrorContext(ctx, "database connection is nil")
		return fmt.Errorf("database connection is nil")
	}

	query := `
		UPDATE trailer_segments
		SET last_job_id = $2, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, segmentID, jobID)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to attach job to segment", "error", err, "segment_id", segmentID, "job_id", jobID)
		return fmt.Errorf("failed to attach job to segment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrSegmentNotFound, segmentID)
	}

	return nil
}

// scanSegment maps one row into a domain segment.
func scanSegment(row pgx.Row) (*domain.Segment, error) {
	var seg domain.Segment
	var resultURL, lastJobID sql.NullString

	err := row.Scan(
		&seg.ID,
		&seg.ProjectID,
		&seg.OrderIndex,
		&seg.Script,
		&seg.VisualPrompt,
		&seg.Status,
		&seg.Progress,
		&resultURL,
		&lastJobID,
		&seg.CreatedAt,
		&seg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if resultURL.Valid {
		seg.ResultURL = &resultURL.String
	}
	if lastJobID.Valid {
		seg.LastJobID = &lastJobID.String
	}

	return &seg, nil
}
