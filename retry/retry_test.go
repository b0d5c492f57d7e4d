// ABOUTME: This file tests the retry mechanism with exponential backoff and jitter
// ABOUTME: Covers classification, attempt budgets and context cancellation
package retry

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // Only errors in tests
	}))
}

func testConfig() Config {
	return Config{
		MaxAttempts:   3,
		BaseDelay:     time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
	}
}

func TestRetrier_Do(t *testing.T) {
	retryableAll := func(error) bool { return true }

	tests := map[string]struct {
		operation     func() func() error
		classifier    ErrorClassifier
		expectedCalls int
		wantErr       bool
	}{
		"success on first attempt": {
			operation: func() func() error {
				return func() error { return nil }
			},
			classifier:    retryableAll,
			expectedCalls: 1,
			wantErr:       false,
		},
		"success on second attempt": {
			operation: func() func() error {
				attempt := 0
				return func() error {
					attempt++
					if attempt == 1 {
						return errors.New("temporary error")
					}
					return nil
				}
			},
			classifier:    retryableAll,
			expectedCalls: 2,
			wantErr:       false,
		},
		"failure after max attempts": {
			operation: func() func() error {
				return func() error { return errors.New("keeps failing") }
			},
			classifier:    retryableAll,
			expectedCalls: 3,
			wantErr:       true,
		},
		"non-retryable error fails immediately": {
			operation: func() func() error {
				return func() error { return errors.New("permanent") }
			},
			classifier:    func(error) bool { return false },
			expectedCalls: 1,
			wantErr:       true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			calls := 0
			op := tt.operation()
			r := New(testConfig(), tt.classifier, testLogger())

			err := r.Do(context.Background(), func() error {
				calls++
				return op()
			})

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expectedCalls, calls)
		})
	}
}

func TestRetrier_Do_ContextCancellation(t *testing.T) {
	t.Run("should stop retrying when the context is cancelled", func(t *testing.T) {
		cfg := testConfig()
		cfg.BaseDelay = 100 * time.Millisecond
		cfg.MaxDelay = time.Second
		r := New(cfg, func(error) bool { return true }, testLogger())

		ctx, cancel := context.WithCancel(context.Background())
		calls := 0

		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		err := r.Do(ctx, func() error {
			calls++
			return errors.New("always failing")
		})

		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}

func TestRetrier_calculateDelay(t *testing.T) {
	t.Run("should grow exponentially up to the cap", func(t *testing.T) {
		cfg := Config{
			MaxAttempts:   5,
			BaseDelay:     time.Millisecond,
			MaxDelay:      4 * time.Millisecond,
			BackoffFactor: 2.0,
			JitterFactor:  0, // deterministic for the assertion
		}
		r := New(cfg, nil, testLogger())

		assert.Equal(t, time.Millisecond, r.calculateDelay(1))
		assert.Equal(t, 2*time.Millisecond, r.calculateDelay(2))
		assert.Equal(t, 4*time.Millisecond, r.calculateDelay(3))
		// Capped from here on.
		assert.Equal(t, 4*time.Millisecond, r.calculateDelay(4))
	})
}
