// ABOUTME: Echo handlers for submitting generation work and cancelling projects
// ABOUTME: Invalid requests are rejected before any job record is created
package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"trailer-engine/domain"
	"trailer-engine/repository"
	"trailer-engine/service"
)

// GenerationRequest is the body of POST /api/v1/generations.
type GenerationRequest struct {
	Prompt          string `json:"prompt"`
	DurationSeconds int    `json:"duration_seconds"`
	Resolution      string `json:"resolution"`
	AspectRatio     string `json:"aspect_ratio"`
	Priority        int    `json:"priority"`
	ProjectID       string `json:"project_id"`
	SegmentID       string `json:"segment_id"`
}

// ScriptJobRequest is the body of POST /api/v1/scripts.
type ScriptJobRequest struct {
	Mode           string `json:"mode"` // "generate" or "refine"
	ProjectName    string `json:"project_name"`
	Description    string `json:"description"`
	ImageCaption   string `json:"image_caption"`
	ExistingScript string `json:"existing_script"`
	Instruction    string `json:"instruction"`
	Priority       int    `json:"priority"`
	ProjectID      string `json:"project_id"`
}

// RenderRequest is the body of POST /api/v1/projects/:project_id/render.
type RenderRequest struct {
	DurationSeconds int                   `json:"duration_seconds"`
	Resolution      string                `json:"resolution"`
	AspectRatio     string                `json:"aspect_ratio"`
	Priority        int                   `json:"priority"`
	Segments        []service.SegmentSpec `json:"segments"`
}

// GenerationHandler handles job submission and project cancellation.
type GenerationHandler struct {
	svc    *service.TrailerService
	logger *slog.Logger
}

// NewGenerationHandler creates a new generation handler.
func NewGenerationHandler(svc *service.TrailerService, logger *slog.Logger) *GenerationHandler {
	return &GenerationHandler{svc: svc, logger: logger}
}

// HandleSubmitGeneration handles POST /api/v1/generations.
func (h *GenerationHandler) HandleSubmitGeneration(c echo.Context) error {
	ctx := c.Request().Context()

	var req GenerationRequest
	if err := c.Bind(&req); err != nil {
		h.logger.Warn("failed to bind generation request", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	input := &domain.GenerationInput{
		Prompt:          req.Prompt,
		DurationSeconds: req.DurationSeconds,
		Resolution:      req.Resolution,
		AspectRatio:     req.AspectRatio,
	}

	jobID, err := h.svc.SubmitVideoJob(ctx, input, repository.EnqueueOptions{
		Priority:  req.Priority,
		ProjectID: req.ProjectID,
		SegmentID: req.SegmentID,
	})
	if err != nil {
		if isValidationError(err) {
			h.logger.Warn("generation request rejected", "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		h.logger.Error("failed to enqueue generation", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to enqueue generation")
	}

	return c.JSON(http.StatusAccepted, map[string]string{"job_id": jobID})
}

// HandleSubmitScript handles POST /api/v1/scripts.
func (h *GenerationHandler) HandleSubmitScript(c echo.Context) error {
	ctx := c.Request().Context()

	var req ScriptJobRequest
	if err := c.Bind(&req); err != nil {
		h.logger.Warn("failed to bind script request", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	jobType := domain.JobTypeScriptGenerate
	if req.Mode == "refine" {
		jobType = domain.JobTypeScriptRefine
	}

	jobID, err := h.svc.SubmitScriptJob(ctx, jobType, &domain.ScriptRequest{
		ProjectName:    req.ProjectName,
		Description:    req.Description,
		ImageCaption:   req.ImageCaption,
		ExistingScript: req.ExistingScript,
		Instruction:    req.Instruction,
	}, repository.EnqueueOptions{
		Priority:  req.Priority,
		ProjectID: req.ProjectID,
	})
	if err != nil {
		if isValidationError(err) {
			h.logger.Warn("script request rejected", "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		h.logger.Error("failed to enqueue script job", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to enqueue script job")
	}

	return c.JSON(http.StatusAccepted, map[string]string{"job_id": jobID})
}

// HandleStartRender handles POST /api/v1/projects/:project_id/render.
func (h *GenerationHandler) HandleStartRender(c echo.Context) error {
	ctx := c.Request().Context()

	projectID := c.Param("project_id")
	if projectID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Project ID cannot be empty")
	}

	var req RenderRequest
	if err := c.Bind(&req); err != nil {
		h.logger.Warn("failed to bind render request", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	jobIDs, err := h.svc.StartProjectRender(ctx, projectID, req.Segments, domain.GenerationInput{
		DurationSeconds: req.DurationSeconds,
		Resolution:      req.Resolution,
		AspectRatio:     req.AspectRatio,
	}, req.Priority)
	if err != nil {
		if isValidationError(err) {
			h.logger.Warn("render request rejected", "error", err, "project_id", projectID)
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		h.logger.Error("failed to start project render", "error", err, "project_id", projectID)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to start project render")
	}

	return c.JSON(http.StatusAccepted, map[string]interface{}{"job_ids": jobIDs})
}

// HandleCancelProject handles POST /api/v1/projects/:project_id/cancel.
func (h *GenerationHandler) HandleCancelProject(c echo.Context) error {
	ctx := c.Request().Context()

	projectID := c.Param("project_id")
	if projectID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Project ID cannot be empty")
	}

	if err := h.svc.CancelProject(ctx, projectID); err != nil {
		h.logger.Error("failed to cancel project", "error", err, "project_id", projectID)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to cancel project")
	}

	return c.JSON(http.StatusAccepted, map[string]string{"status": "cancelling"})
}

// isValidationError reports whether err is a request-side rejection rather
// than an infrastructure failure.
func isValidationError(err error) bool {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrEmptyPrompt),
		errors.Is(err, domain.ErrPromptTooLong),
		errors.Is(err, domain.ErrUnsupportedDuration),
		errors.Is(err, domain.ErrUnsupportedResolution),
		errors.Is(err, domain.ErrUnsupportedAspectRatio),
		errors.Is(err, domain.ErrUnknownJobType),
		errors.Is(err, domain.ErrSegmentOrderInvalid):
		return true
	}
	return false
}
