package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailer-engine/domain"
	"trailer-engine/repository"
	"trailer-engine/service"
)

// --- Local stubs backing a real TrailerService ---

type stubJobRepo struct {
	repository.JobRepository
	enqueueCalls int
	cancelCalls  int
	job          *domain.Job
}

func (r *stubJobRepo) Enqueue(_ context.Context, _ domain.JobType, _ json.RawMessage, _ repository.EnqueueOptions) (string, error) {
	r.enqueueCalls++
	return "job-123", nil
}

func (r *stubJobRepo) GetJob(_ context.Context, jobID string) (*domain.Job, error) {
	if r.job == nil || r.job.ID != jobID {
		return nil, domain.ErrJobNotFound
	}
	return r.job, nil
}

func (r *stubJobRepo) RequestCancel(_ context.Context, _ string) error {
	r.cancelCalls++
	return nil
}

func (r *stubJobRepo) JobsForProject(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}

type stubSegmentRepo struct {
	repository.SegmentRepository
	segments []*domain.Segment
}

func (r *stubSegmentRepo) AttachJob(_ context.Context, _, _ string) error { return nil }

func (r *stubSegmentRepo) CreateSegments(_ context.Context, segments []*domain.Segment) error {
	if err := domain.ValidateSegmentOrder(segments); err != nil {
		return err
	}
	r.segments = segments
	return nil
}

func (r *stubSegmentRepo) ListByProject(_ context.Context, _ string) ([]*domain.Segment, error) {
	return r.segments, nil
}

type stubProjectRepo struct {
	repository.ProjectRepository
	project *domain.Project
}

func (r *stubProjectRepo) GetStatus(_ context.Context, projectID string) (*domain.Project, error) {
	if r.project == nil || r.project.ID != projectID {
		return nil, domain.ErrProjectNotFound
	}
	return r.project, nil
}

type handlerFixture struct {
	jobRepo    *stubJobRepo
	generation *GenerationHandler
	status     *StatusHandler
	echo       *echo.Echo
}

func newHandlerFixture() *handlerFixture {
	return newHandlerFixtureWith(&stubSegmentRepo{}, &stubProjectRepo{})
}

func newHandlerFixtureWith(segRepo *stubSegmentRepo, projRepo *stubProjectRepo) *handlerFixture {
	jobRepo := &stubJobRepo{}
	agg := service.NewAggregator(jobRepo, segRepo, projRepo, 0.5, slog.Default())
	svc := service.NewTrailerService(jobRepo, segRepo, agg, slog.Default())

	return &handlerFixture{
		jobRepo:    jobRepo,
		generation: NewGenerationHandler(svc, slog.Default()),
		status:     NewStatusHandler(svc, slog.Default()),
		echo:       echo.New(),
	}
}

func (f *handlerFixture) postJSON(path, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return f.echo.NewContext(req, rec), rec
}

func TestGenerationHandler_HandleSubmitGeneration(t *testing.T) {
	t.Run("should accept a valid request with 202", func(t *testing.T) {
		f := newHandlerFixture()
		c, rec := f.postJSON("/api/v1/generations",
			`{"prompt":"a neon demo","duration_seconds":5,"resolution":"720p"}`)

		require.NoError(t, f.generation.HandleSubmitGeneration(c))
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Contains(t, rec.Body.String(), "job-123")
		assert.Equal(t, 1, f.jobRepo.enqueueCalls)
	})

	t.Run("should reject an unsupported duration without enqueueing", func(t *testing.T) {
		f := newHandlerFixture()
		c, _ := f.postJSON("/api/v1/generations",
			`{"prompt":"a neon demo","duration_seconds":7,"resolution":"720p"}`)

		err := f.generation.HandleSubmitGeneration(c)
		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusBadRequest, httpErr.Code)
		assert.Equal(t, 0, f.jobRepo.enqueueCalls)
	})

	t.Run("should reject an empty prompt without enqueueing", func(t *testing.T) {
		f := newHandlerFixture()
		c, _ := f.postJSON("/api/v1/generations",
			`{"prompt":"","duration_seconds":5,"resolution":"720p"}`)

		err := f.generation.HandleSubmitGeneration(c)
		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusBadRequest, httpErr.Code)
		assert.Equal(t, 0, f.jobRepo.enqueueCalls)
	})

	t.Run("should reject a malformed body", func(t *testing.T) {
		f := newHandlerFixture()
		c, _ := f.postJSON("/api/v1/generations", `{not json`)

		err := f.generation.HandleSubmitGeneration(c)
		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusBadRequest, httpErr.Code)
	})
}

func TestGenerationHandler_HandleSubmitScript(t *testing.T) {
	t.Run("should accept a generate request", func(t *testing.T) {
		f := newHandlerFixture()
		c, rec := f.postJSON("/api/v1/scripts",
			`{"mode":"generate","project_name":"kit","description":"a toolkit"}`)

		require.NoError(t, f.generation.HandleSubmitScript(c))
		assert.Equal(t, http.StatusAccepted, rec.Code)
	})

	t.Run("should reject refine without an existing script", func(t *testing.T) {
		f := newHandlerFixture()
		c, _ := f.postJSON("/api/v1/scripts",
			`{"mode":"refine","description":"a toolkit","instruction":"shorter"}`)

		err := f.generation.HandleSubmitScript(c)
		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusBadRequest, httpErr.Code)
		assert.Equal(t, 0, f.jobRepo.enqueueCalls)
	})
}

func TestGenerationHandler_HandleStartRender(t *testing.T) {
	t.Run("should start a render and return the job ids", func(t *testing.T) {
		f := newHandlerFixture()
		c, rec := f.postJSON("/api/v1/projects/proj-1/render",
			`{"duration_seconds":5,"resolution":"720p","segments":[
				{"order_index":0,"script":"One.","visual_prompt":"opening shot"},
				{"order_index":1,"script":"Two.","visual_prompt":"closing shot"}]}`)
		c.SetParamNames("project_id")
		c.SetParamValues("proj-1")

		require.NoError(t, f.generation.HandleStartRender(c))
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, 2, f.jobRepo.enqueueCalls)
	})

	t.Run("should reject a render with a segment order gap", func(t *testing.T) {
		f := newHandlerFixture()
		c, _ := f.postJSON("/api/v1/projects/proj-1/render",
			`{"duration_seconds":5,"resolution":"720p","segments":[
				{"order_index":0,"visual_prompt":"a"},
				{"order_index":2,"visual_prompt":"b"}]}`)
		c.SetParamNames("project_id")
		c.SetParamValues("proj-1")

		err := f.generation.HandleStartRender(c)
		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusBadRequest, httpErr.Code)
	})
}

func TestGenerationHandler_HandleCancelProject(t *testing.T) {
	t.Run("should flag the project for cancellation", func(t *testing.T) {
		f := newHandlerFixture()
		c, rec := f.postJSON("/api/v1/projects/proj-1/cancel", ``)
		c.SetParamNames("project_id")
		c.SetParamValues("proj-1")

		require.NoError(t, f.generation.HandleCancelProject(c))
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, 1, f.jobRepo.cancelCalls)
	})
}
