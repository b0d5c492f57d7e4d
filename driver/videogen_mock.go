// ABOUTME: Deterministic in-process stand-in for the external video provider
// ABOUTME: Generation state is derived purely from the handle's embedded submit time
package driver

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"trailer-engine/domain"
	"trailer-engine/repository"
)

const (
	mockHandlePrefix = "mock-"

	// MockFailMarker anywhere in the prompt makes the simulated generation
	// end in failure instead of success.
	MockFailMarker = "[mock:fail]"

	// Simulated provider timeline, measured from submit.
	mockQueuedFor    = 2 * time.Second
	mockCompletesAt  = 12 * time.Second
	mockMinProgress  = 5
	mockMaxProgress  = 95
	mockResultURLFmt = "https://cdn.mock.invalid/videos/%s.mp4"
)

// mockVideoGateway simulates the provider without any I/O. The handle encodes
// the submit time and requested render parameters, so two gateways given the
// same handle and clock report identical status.
type mockVideoGateway struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewMockVideoGateway creates a deterministic video gateway.
func NewMockVideoGateway(logger *slog.Logger) repository.VideoGateway {
	return &mockVideoGateway{logger: logger, now: time.Now}
}

// NewMockVideoGatewayWithClock creates a mock gateway with an injected clock.
func NewMockVideoGatewayWithClock(logger *slog.Logger, now func() time.Time) repository.VideoGateway {
	return &mockVideoGateway{logger: logger, now: now}
}

// Submit validates the input and mints a handle carrying the simulation state.
func (g *mockVideoGateway) Submit(ctx context.Context, input *domain.GenerationInput) (string, error) {
	if err := input.Validate(); err != nil {
		return "", err
	}

	outcome := "ok"
	if strings.Contains(input.Prompt, MockFailMarker) {
		outcome = "fail"
	}

	handle := fmt.Sprintf("%s%d-%d-%s-%s-%s",
		mockHandlePrefix,
		g.now().UnixMilli(),
		input.DurationSeconds,
		input.Resolution,
		outcome,
		uuid.New().String()[:8],
	)

	g.logger.InfoContext(ctx, "mock generation submitted", "handle", handle)
	return handle, nil
}

// PollStatus derives the generation state from the handle's embedded timeline.
func (g *mockVideoGateway) PollStatus(ctx context.Context, handle string) (*domain.GenerationStatus, error) {
	submittedAt, duration, resolution, outcome, suffix, err := parseMockHandle(handle)
	if err != nil {
		return nil, err
	}

	elapsed := g.now().Sub(submittedAt)

	switch {
	case elapsed < mockQueuedFor:
		return &domain.GenerationStatus{State: domain.GenerationStateQueued, Progress: 0}, nil

	case elapsed < mockCompletesAt:
		// Linear ramp between the queued and completed thresholds.
		span := float64(mockCompletesAt - mockQueuedFor)
		frac := float64(elapsed-mockQueuedFor) / span
		progress := mockMinProgress + int(frac*float64(mockMaxProgress-mockMinProgress))
		return &domain.GenerationStatus{State: domain.GenerationStateProcessing, Progress: progress}, nil

	case outcome == "fail":
		return &domain.GenerationStatus{
			State:   domain.GenerationStateFailed,
			Message: "simulated provider failure",
		}, nil

	default:
		return &domain.GenerationStatus{
			State:           domain.GenerationStateCompleted,
			Progress:        100,
			ResultURL:       fmt.Sprintf(mockResultURLFmt, suffix),
			DurationSeconds: duration,
			Resolution:      resolution,
		}, nil
	}
}

// parseMockHandle decodes a mock handle. Format:
// mock-<unixmilli>-<duration>-<resolution>-<outcome>-<suffix>
func parseMockHandle(handle string) (time.Time, int, string, string, string, error) {
	if !strings.HasPrefix(handle, mockHandlePrefix) {
		return time.Time{}, 0, "", "", "", fmt.Errorf("%w: %q", domain.ErrMalformedHandle, handle)
	}

	parts := strings.SplitN(strings.TrimPrefix(handle, mockHandlePrefix), "-", 5)
	if len(parts) != 5 {
		return time.Time{}, 0, "", "", "", fmt.Errorf("%w: %q", domain.ErrMalformedHandle, handle)
	}

	ms, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, 0, "", "", "", fmt.Errorf("%w: %q", domain.ErrMalformedHandle, handle)
	}
	duration, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, 0, "", "", "", fmt.Errorf("%w: %q", domain.ErrMalformedHandle, handle)
	}

	return time.UnixMilli(ms), duration, parts[2], parts[3], parts[4], nil
}
