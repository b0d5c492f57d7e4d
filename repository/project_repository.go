package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"trailer-engine/domain"
)

// projectRepository implementation.
type projectRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewProjectRepository creates a new project repository.
func NewProjectRepository(db *pgxpool.Pool, logger *slog.Logger) ProjectRepository {
	return &projectRepository{
		db:     db,
		logger: logger,
	}
}

// GetStatus retrieves the aggregate status fields of a project.
func (r *projectRepository) GetStatus(ctx context.Context, projectID string) (*domain.Project, error) {
	if projectID == "" {
		return nil, fmt.Errorf("project ID cannot be empty")
	}

	if r.db == nil {
		r.logger.ErrorContext(ctx, "database connection is nil")
		return nil, fmt.Errorf("database connection is nil")
	}

	query := `
		SELECT id, user_id, status, overall_progress, updated_at
		FROM trailer_projects
		WHERE id = $1
	`

	var project domain.Project
	err := r.db.QueryRow(ctx, query, projectID).Scan(
		&project.ID,
		&project.UserID,
		&project.Status,
		&project.OverallProgress,
		&project.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "project not found", "project_id", projectID)
			return nil, fmt.Errorf("%w: %s", domain.ErrProjectNotFound, projectID)
		}
		r.logger.ErrorContext(ctx, "failed to get project", "error", err, "project_id", projectID)
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return &project, nil
}

// UpdateStatus writes the aggregate status and overall progress of a project.
func (r *projectRepository) UpdateStatus(ctx context.Context, projectID string, status domain.ProjectStatus, overallProgress int) error {
	if projectID == "" {
		return fmt.Errorf("project ID cannot be empty")
	}

	if r.db == nil {
		r.logger.ErrorContext(ctx, "database connection is nil")
		return fmt.Errorf("database connection is nil")
	}

	query := `
		UPDATE trailer_projects
		SET status = $2, overall_progress = $3, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, projectID, status, overallProgress)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to update project status", "error", err, "project_id", projectID)
		return fmt.Errorf("failed to update project status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrProjectNotFound, projectID)
	}

	r.logger.InfoContext(ctx, "project status updated",
		"project_id", projectID,
		"status", status,
		"overall_progress", overallProgress)
	return nil
}
