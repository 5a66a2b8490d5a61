// Package retry wraps fallible operations with bounded, jittered
// exponential backoff. Every I/O-touching call in the sync pipeline goes
// through it.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/vietddude/sheetsync/internal/core/domain"
)

// Config defines retry behavior for one operation.
type Config struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
	// Jitter is the upper bound of the uniform random delay added to every
	// backoff, so concurrent jobs do not retry in lockstep.
	Jitter time.Duration

	// Retryable decides whether an error consumes an attempt. A nil
	// predicate retries transient-infrastructure errors only.
	Retryable func(error) bool

	// OnRetry is invoked before each backoff sleep.
	OnRetry func(attempt int, delay time.Duration, err error)

	// NonRaising swallows the final error: the caller gets the zero value
	// and domain.ErrNoResult, and the error is logged instead of propagated.
	NonRaising bool
}

// DefaultConfig provides sensible defaults.
var DefaultConfig = Config{
	MaxAttempts:     3,
	InitialDelay:    1 * time.Second,
	MaxDelay:        60 * time.Second,
	BackoffMultiple: 2.0,
	Jitter:          500 * time.Millisecond,
}

// Do executes op until it succeeds, a non-retryable error occurs, the
// attempt budget is exhausted, or ctx is cancelled.
func Do[T any](ctx context.Context, cfg Config, name string, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig.MaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultConfig.InitialDelay
	}
	if cfg.BackoffMultiple <= 0 {
		cfg.BackoffMultiple = DefaultConfig.BackoffMultiple
	}
	retryable := cfg.Retryable
	if retryable == nil {
		retryable = domain.IsTransient
	}

	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}

		// Non-retryable errors propagate immediately without consuming
		// the remaining budget.
		if !retryable(err) {
			return zero, err
		}

		lastErr = err
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := backoff(attempt, cfg)
		slog.Warn("Operation failed, retrying",
			"op", name,
			"attempt", attempt,
			"max_attempts", cfg.MaxAttempts,
			"delay", delay,
			"error", err,
		)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, delay, err)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	if cfg.NonRaising {
		slog.Error("Operation failed after all attempts, result discarded",
			"op", name,
			"attempts", cfg.MaxAttempts,
			"error", lastErr,
		)
		return zero, domain.ErrNoResult
	}

	return zero, &ExhaustedError{Op: name, Attempts: cfg.MaxAttempts, Err: lastErr}
}

// ExhaustedError reports that every attempt of an operation failed.
type ExhaustedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

func backoff(attempt int, cfg Config) time.Duration {
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.BackoffMultiple, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter > 0 {
		delay += rand.Float64() * float64(cfg.Jitter)
	}
	return time.Duration(delay)
}
