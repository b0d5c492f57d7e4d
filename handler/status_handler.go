package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"trailer-engine/domain"
	"trailer-engine/service"
)

// StatusHandler serves the polling endpoints for jobs and projects.
type StatusHandler struct {
	svc    *service.TrailerService
	logger *slog.Logger
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(svc *service.TrailerService, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{svc: svc, logger: logger}
}

// HandleJobStatus handles GET /api/v1/jobs/:job_id/status.
func (h *StatusHandler) HandleJobStatus(c echo.Context) error {
	ctx := c.Request().Context()

	jobID := c.Param("job_id")
	if jobID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Job ID cannot be empty")
	}

	view, err := h.svc.JobStatus(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"status": "not_found", "job_id": jobID})
		}
		h.logger.Error("failed to read job status", "error", err, "job_id", jobID)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to read job status")
	}

	return c.JSON(http.StatusOK, view)
}

// HandleProjectProgress handles GET /api/v1/projects/:project_id/progress.
func (h *StatusHandler) HandleProjectProgress(c echo.Context) error {
	ctx := c.Request().Context()

	projectID := c.Param("project_id")
	if projectID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Project ID cannot be empty")
	}

	view, err := h.svc.ProjectProgress(ctx, projectID)
	if err != nil {
		if errors.Is(err, domain.ErrProjectNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"status": "not_found", "project_id": projectID})
		}
		h.logger.Error("failed to read project progress", "error", err, "project_id", projectID)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to read project progress")
	}

	return c.JSON(http.StatusOK, view)
}

// HandleHealth handles GET /api/v1/health.
func (h *StatusHandler) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}
