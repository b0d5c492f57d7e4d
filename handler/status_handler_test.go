package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailer-engine/domain"
)

func (f *handlerFixture) getRequest(path string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	return f.echo.NewContext(req, rec), rec
}

func TestStatusHandler_HandleJobStatus(t *testing.T) {
	t.Run("should return the job status payload", func(t *testing.T) {
		f := newHandlerFixture()
		errMsg := "provider hiccup"
		f.jobRepo.job = &domain.Job{
			ID:       "job-9",
			Status:   domain.JobStatusActive,
			Progress: 42,
			Error:    &errMsg,
		}

		c, rec := f.getRequest("/api/v1/jobs/job-9/status")
		c.SetParamNames("job_id")
		c.SetParamValues("job-9")

		require.NoError(t, f.status.HandleJobStatus(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "job-9", body["job_id"])
		assert.Equal(t, "active", body["status"])
		assert.Equal(t, float64(42), body["progress"])
		assert.Equal(t, errMsg, body["error"])
	})

	t.Run("should return 404 not_found for an unknown job", func(t *testing.T) {
		f := newHandlerFixture()

		c, rec := f.getRequest("/api/v1/jobs/ghost/status")
		c.SetParamNames("job_id")
		c.SetParamValues("ghost")

		require.NoError(t, f.status.HandleJobStatus(c))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "not_found")
	})

	t.Run("should include the recorded output for a completed job", func(t *testing.T) {
		f := newHandlerFixture()
		f.jobRepo.job = &domain.Job{
			ID:       "job-9",
			Status:   domain.JobStatusCompleted,
			Progress: 100,
			Output:   json.RawMessage(`{"result_url":"https://cdn/v.mp4"}`),
		}

		c, rec := f.getRequest("/api/v1/jobs/job-9/status")
		c.SetParamNames("job_id")
		c.SetParamValues("job-9")

		require.NoError(t, f.status.HandleJobStatus(c))
		assert.Contains(t, rec.Body.String(), "https://cdn/v.mp4")
	})
}

func TestStatusHandler_HandleProjectProgress(t *testing.T) {
	t.Run("should return the aggregate view with segments", func(t *testing.T) {
		segRepo := &stubSegmentRepo{segments: []*domain.Segment{
			{ID: "s0", OrderIndex: 0, Status: domain.SegmentStatusCompleted, Progress: 100},
			{ID: "s1", OrderIndex: 1, Status: domain.SegmentStatusProcessing, Progress: 30},
		}}
		fx := newHandlerFixtureWith(segRepo, &stubProjectRepo{project: &domain.Project{
			ID:              "proj-1",
			Status:          domain.ProjectStatusProcessing,
			OverallProgress: 65,
		}})

		c, rec := fx.getRequest("/api/v1/projects/proj-1/progress")
		c.SetParamNames("project_id")
		c.SetParamValues("proj-1")

		require.NoError(t, fx.status.HandleProjectProgress(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		var body domain.ProjectProgress
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, domain.ProjectStatusProcessing, body.Status)
		assert.Equal(t, 65, body.OverallProgress)
		require.Len(t, body.Segments, 2)
		assert.Equal(t, "s0", body.Segments[0].SegmentID)
	})

	t.Run("should return 404 not_found for an unknown project", func(t *testing.T) {
		f := newHandlerFixture()

		c, rec := f.getRequest("/api/v1/projects/ghost/progress")
		c.SetParamNames("project_id")
		c.SetParamValues("ghost")

		require.NoError(t, f.status.HandleProjectProgress(c))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "not_found")
	})
}

func TestStatusHandler_HandleHealth(t *testing.T) {
	t.Run("should report healthy", func(t *testing.T) {
		f := newHandlerFixture()
		c, rec := f.getRequest("/api/v1/health")

		require.NoError(t, f.status.HandleHealth(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "healthy")
	})
}
