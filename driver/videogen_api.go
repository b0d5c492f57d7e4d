// ABOUTME: HTTP client for the external video generation provider
// ABOUTME: Absorbs transient faults and degrades to the mock gateway when the provider is down
package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"trailer-engine/domain"
	"trailer-engine/repository"
)

const liveHandlePrefix = "ext-"

// submitRequest is the provider's generation request body.
type submitRequest struct {
	Prompt          string `json:"prompt"`
	DurationSeconds int    `json:"duration_seconds"`
	Resolution      string `json:"resolution"`
	AspectRatio     string `json:"aspect_ratio,omitempty"`
}

// submitResponse is the provider's generation acknowledgement.
type submitResponse struct {
	ID string `json:"id"`
}

// statusResponse is the provider's poll payload.
type statusResponse struct {
	Status          string `json:"status"`
	Progress        int    `json:"progress"`
	VideoURL        string `json:"video_url"`
	DurationSeconds int    `json:"duration_seconds"`
	Resolution      string `json:"resolution"`
	Error           string `json:"error"`
}

// VideoGatewayConfig configures the live video gateway client.
type VideoGatewayConfig struct {
	Host             string
	APIPath          string
	Timeout          time.Duration
	SubmitsPerMinute int
}

// videoGatewayClient talks to the real provider. Submissions are rate limited,
// and when the provider is unreachable the client falls back to the embedded
// mock so the pipeline keeps moving instead of hard-failing every job.
type videoGatewayClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	fallback   repository.VideoGateway
	logger     *slog.Logger
}

// NewVideoGatewayClient creates a live video gateway client.
func NewVideoGatewayClient(cfg VideoGatewayConfig, logger *slog.Logger) repository.VideoGateway {
	perMinute := cfg.SubmitsPerMinute
	if perMinute <= 0 {
		perMinute = 30
	}
	return &videoGatewayClient{
		baseURL:    strings.TrimSuffix(cfg.Host, "/") + cfg.APIPath,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute),
		fallback:   NewMockVideoGateway(logger),
		logger:     logger,
	}
}

// Submit starts a generation at the provider and returns its handle. Transport
// failures degrade to the mock gateway; provider rejections are permanent.
func (g *videoGatewayClient) Submit(ctx context.Context, input *domain.GenerationInput) (string, error) {
	if err := input.Validate(); err != nil {
		return "", err
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("submit rate limit wait interrupted: %w", err)
	}

	body, err := json.Marshal(submitRequest{
		Prompt:          input.Prompt,
		DurationSeconds: input.DurationSeconds,
		Resolution:      input.Resolution,
		AspectRatio:     input.AspectRatio,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.WarnContext(ctx, "video provider unreachable, degrading to mock", "error", err)
		return g.fallback.Submit(ctx, input)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 500 {
		g.logger.WarnContext(ctx, "video provider unavailable, degrading to mock", "status_code", resp.StatusCode)
		return g.fallback.Submit(ctx, input)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: submit rejected with status %d: %s", domain.ErrProviderFailed, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var ack submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return "", fmt.Errorf("%w: invalid submit response: %v", domain.ErrProviderFailed, err)
	}
	if ack.ID == "" {
		return "", fmt.Errorf("%w: submit response missing generation id", domain.ErrProviderFailed)
	}

	handle := liveHandlePrefix + ack.ID
	g.logger.InfoContext(ctx, "generation submitted", "handle", handle)
	return handle, nil
}

// PollStatus reads provider-side state for a handle. Transient faults map to a
// processing-equivalent status so a flaky provider does not fail the job.
func (g *videoGatewayClient) PollStatus(ctx context.Context, handle string) (*domain.GenerationStatus, error) {
	// Handles minted during degraded submission stay with the mock.
	if strings.HasPrefix(handle, mockHandlePrefix) {
		return g.fallback.PollStatus(ctx, handle)
	}
	if !strings.HasPrefix(handle, liveHandlePrefix) {
		return nil, fmt.Errorf("%w: %q", domain.ErrMalformedHandle, handle)
	}

	url := g.baseURL + "/" + strings.TrimPrefix(handle, liveHandlePrefix)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create status request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.WarnContext(ctx, "status poll failed, treating as in progress", "handle", handle, "error", err)
		return &domain.GenerationStatus{State: domain.GenerationStateProcessing, Message: "provider temporarily unreachable"}, nil
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: generation %q not found at provider", domain.ErrProviderFailed, handle)
	case resp.StatusCode >= 500:
		g.logger.WarnContext(ctx, "provider returned server error, treating as in progress", "handle", handle, "status_code", resp.StatusCode)
		return &domain.GenerationStatus{State: domain.GenerationStateProcessing, Message: "provider temporarily unavailable"}, nil
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status poll rejected with status %d", domain.ErrProviderFailed, resp.StatusCode)
	}

	var payload statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: invalid status response: %v", domain.ErrProviderFailed, err)
	}

	return normalizeStatus(&payload), nil
}

// normalizeStatus maps the provider's status vocabulary onto the internal
// generation states. Unknown values are treated as still processing.
func normalizeStatus(payload *statusResponse) *domain.GenerationStatus {
	status := &domain.GenerationStatus{
		Progress:        payload.Progress,
		ResultURL:       payload.VideoURL,
		DurationSeconds: payload.DurationSeconds,
		Resolution:      payload.Resolution,
		Message:         payload.Error,
	}

	switch strings.ToLower(payload.Status) {
	case "queued", "pending", "submitted":
		status.State = domain.GenerationStateQueued
	case "completed", "succeeded", "done":
		status.State = domain.GenerationStateCompleted
		if status.Progress < 100 {
			status.Progress = 100
		}
	case "failed", "error", "cancelled":
		status.State = domain.GenerationStateFailed
	default:
		status.State = domain.GenerationStateProcessing
	}

	return status
}
