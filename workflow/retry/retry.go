// Package retry provides exponential backoff retry for Workflow Engine
// (C9) task dispatch. Adapted directly from the teacher's
// runtime/a2a/retry package: same Config shape (MaxAttempts,
// InitialBackoff, MaxBackoff, BackoffMultiplier, Jitter) and the same
// calculateBackoff formula, generalized from the teacher's HTTP/network
// retryability rules (which don't apply to specialist task failures) to a
// caller-supplied IsRetryable predicate.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Config configures retry behavior for one workflow task.
type Config struct {
	// MaxAttempts is the maximum number of attempts (including the initial
	// attempt). 0 or 1 means no retries.
	MaxAttempts int
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between retries.
	MaxBackoff time.Duration
	// BackoffMultiplier is the exponential growth factor; 2.0 doubles the
	// delay each attempt.
	BackoffMultiplier float64
	// Jitter adds up to this fraction of randomness to each backoff to
	// avoid thundering-herd retries across concurrently dispatched tasks.
	Jitter float64
}

// DefaultConfig mirrors the Workflow Engine's default retry_attempts policy
// (spec.md §4.9 step 5).
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
	}
}

// ExhaustedError is returned by Do when it stops on an error: either the
// last permitted attempt failed or an attempt returned an error that
// isRetryable rejects. Attempts is the number of attempts actually made.
type ExhaustedError struct {
	Attempts      int
	TotalDuration time.Duration
	LastError     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempts over %v: %v", e.Attempts, e.TotalDuration, e.LastError)
}

func (e *ExhaustedError) Unwrap() error { return e.LastError }

// Do executes fn, retrying while isRetryable(err) is true, up to
// cfg.MaxAttempts. A nil isRetryable treats every non-nil error as
// retryable. Each wait respects ctx cancellation.
func Do(ctx context.Context, cfg Config, isRetryable func(error) bool, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if isRetryable == nil {
		isRetryable = func(err error) bool { return err != nil }
	}

	start := time.Now()
	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		attempts = attempt
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) || attempt >= cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(calculateBackoff(cfg, attempt)):
		}
	}

	return &ExhaustedError{Attempts: attempts, TotalDuration: time.Since(start), LastError: lastErr}
}

func calculateBackoff(cfg Config, attempt int) time.Duration {
	backoff := float64(cfg.InitialBackoff) * math.Pow(cfg.BackoffMultiplier, float64(attempt-1))
	if backoff > float64(cfg.MaxBackoff) && cfg.MaxBackoff > 0 {
		backoff = float64(cfg.MaxBackoff)
	}
	if cfg.Jitter > 0 {
		backoff += backoff * cfg.Jitter * (rand.Float64()*2 - 1) //nolint:gosec // jitter, not security sensitive
	}
	return time.Duration(backoff)
}
