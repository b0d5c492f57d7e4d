package driver

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailer-engine/domain"
)

func newLiveGateway(t *testing.T, handler http.HandlerFunc) *videoGatewayClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	gw := NewVideoGatewayClient(VideoGatewayConfig{
		Host:             srv.URL,
		APIPath:          "/v1/generations",
		Timeout:          2 * time.Second,
		SubmitsPerMinute: 600,
	}, slog.Default())

	return gw.(*videoGatewayClient)
}

func TestVideoGatewayClient_Submit(t *testing.T) {
	t.Run("should return a prefixed handle on success", func(t *testing.T) {
		gw := newLiveGateway(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/generations", r.URL.Path)
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"id":"gen-42"}`))
		})

		handle, err := gw.Submit(context.Background(), validInput())
		require.NoError(t, err)
		assert.Equal(t, "ext-gen-42", handle)
	})

	t.Run("should reject invalid input without calling the provider", func(t *testing.T) {
		called := false
		gw := newLiveGateway(t, func(w http.ResponseWriter, r *http.Request) {
			called = true
		})

		in := validInput()
		in.Resolution = "480p"
		_, err := gw.Submit(context.Background(), in)
		assert.ErrorIs(t, err, domain.ErrUnsupportedResolution)
		assert.False(t, called)
	})

	t.Run("should treat a 4xx rejection as permanent", func(t *testing.T) {
		gw := newLiveGateway(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "prompt rejected by moderation", http.StatusUnprocessableEntity)
		})

		_, err := gw.Submit(context.Background(), validInput())
		assert.ErrorIs(t, err, domain.ErrProviderFailed)
	})

	t.Run("should degrade to the mock when the provider is unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close() // connection refused from here on

		gw := NewVideoGatewayClient(VideoGatewayConfig{
			Host:             srv.URL,
			APIPath:          "/v1/generations",
			Timeout:          time.Second,
			SubmitsPerMinute: 600,
		}, slog.Default())

		handle, err := gw.Submit(context.Background(), validInput())
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(handle, mockHandlePrefix))

		// A degraded handle stays pollable through the same client.
		status, err := gw.PollStatus(context.Background(), handle)
		require.NoError(t, err)
		assert.Equal(t, domain.GenerationStateQueued, status.State)
	})

	t.Run("should degrade to the mock on a 5xx", func(t *testing.T) {
		gw := newLiveGateway(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream down", http.StatusBadGateway)
		})

		handle, err := gw.Submit(context.Background(), validInput())
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(handle, mockHandlePrefix))
	})
}

func TestVideoGatewayClient_PollStatus(t *testing.T) {
	t.Run("should normalize provider status payloads", func(t *testing.T) {
		tests := map[string]struct {
			body      string
			wantState domain.GenerationState
		}{
			"queued maps to queued":         {`{"status":"queued"}`, domain.GenerationStateQueued},
			"running maps to processing":    {`{"status":"running","progress":37}`, domain.GenerationStateProcessing},
			"succeeded maps to completed":   {`{"status":"succeeded","video_url":"https://cdn/v.mp4"}`, domain.GenerationStateCompleted},
			"error maps to failed":          {`{"status":"error","error":"render crashed"}`, domain.GenerationStateFailed},
			"unknown status keeps polling":  {`{"status":"warming-up"}`, domain.GenerationStateProcessing},
		}

		for name, tt := range tests {
			t.Run(name, func(t *testing.T) {
				gw := newLiveGateway(t, func(w http.ResponseWriter, r *http.Request) {
					assert.Equal(t, "/v1/generations/gen-1", r.URL.Path)
					_, _ = w.Write([]byte(tt.body))
				})

				status, err := gw.PollStatus(context.Background(), "ext-gen-1")
				require.NoError(t, err)
				assert.Equal(t, tt.wantState, status.State)
			})
		}
	})

	t.Run("should force progress to 100 on completion", func(t *testing.T) {
		gw := newLiveGateway(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"completed","progress":97,"video_url":"https://cdn/v.mp4"}`))
		})

		status, err := gw.PollStatus(context.Background(), "ext-gen-1")
		require.NoError(t, err)
		assert.Equal(t, 100, status.Progress)
	})

	t.Run("should absorb a 5xx into a processing status", func(t *testing.T) {
		gw := newLiveGateway(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		})

		status, err := gw.PollStatus(context.Background(), "ext-gen-1")
		require.NoError(t, err)
		assert.Equal(t, domain.GenerationStateProcessing, status.State)
	})

	t.Run("should absorb transport errors into a processing status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		gw := NewVideoGatewayClient(VideoGatewayConfig{
			Host:    srv.URL,
			APIPath: "/v1/generations",
			Timeout: time.Second,
		}, slog.Default())

		status, err := gw.PollStatus(context.Background(), "ext-gen-1")
		require.NoError(t, err)
		assert.Equal(t, domain.GenerationStateProcessing, status.State)
	})

	t.Run("should fail permanently on an unknown generation", func(t *testing.T) {
		gw := newLiveGateway(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "no such generation", http.StatusNotFound)
		})

		_, err := gw.PollStatus(context.Background(), "ext-gen-unknown")
		assert.ErrorIs(t, err, domain.ErrProviderFailed)
	})

	t.Run("should reject handles it never issued", func(t *testing.T) {
		gw := newLiveGateway(t, func(w http.ResponseWriter, r *http.Request) {})

		_, err := gw.PollStatus(context.Background(), "gen-1")
		assert.ErrorIs(t, err, domain.ErrMalformedHandle)
	})
}
