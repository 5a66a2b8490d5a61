package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/sheetsync/internal/core/domain"
)

func fastConfig() Config {
	return Config{
		MaxAttempts:     3,
		InitialDelay:    time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		BackoffMultiple: 2.0,
		Jitter:          time.Millisecond,
	}
}

func TestDoSucceedsOnNthAttempt(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), fastConfig(), "op", func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", domain.Transient(errors.New("connection refused"))
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Errorf("result = %q, want %q", result, "ok")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastConfig(), "op", func(ctx context.Context) (int, error) {
		calls++
		return 0, domain.Transient(errors.New("timeout"))
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	var ee *ExhaustedError
	if !errors.As(err, &ee) {
		t.Fatalf("error type = %T, want *ExhaustedError", err)
	}
	if ee.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", ee.Attempts)
	}
}

func TestDoNonRetryableStopsImmediately(t *testing.T) {
	calls := 0
	sentinel := errors.New("schema mismatch")
	_, err := Do(context.Background(), fastConfig(), "op", func(ctx context.Context) (int, error) {
		calls++
		return 0, sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("error = %v, want %v", err, sentinel)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoCustomRetryablePredicate(t *testing.T) {
	marker := errors.New("special")
	cfg := fastConfig()
	cfg.Retryable = func(err error) bool { return errors.Is(err, marker) }

	calls := 0
	_, err := Do(context.Background(), cfg, "op", func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, marker
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestDoOnRetryObserver(t *testing.T) {
	var attempts []int
	var delays []time.Duration
	cfg := fastConfig()
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		attempts = append(attempts, attempt)
		delays = append(delays, delay)
	}

	_, _ = Do(context.Background(), cfg, "op", func(ctx context.Context) (int, error) {
		return 0, domain.Transient(errors.New("reset"))
	})

	// MaxAttempts=3 means two backoff sleeps.
	if len(attempts) != 2 {
		t.Fatalf("observer called %d times, want 2", len(attempts))
	}
	if attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("observed attempts = %v, want [1 2]", attempts)
	}
	for i, d := range delays {
		if d <= 0 {
			t.Errorf("delay[%d] = %v, want > 0", i, d)
		}
	}
}

func TestDoNonRaisingMode(t *testing.T) {
	cfg := fastConfig()
	cfg.NonRaising = true

	result, err := Do(context.Background(), cfg, "op", func(ctx context.Context) (string, error) {
		return "partial", domain.Transient(errors.New("broken pipe"))
	})
	if !errors.Is(err, domain.ErrNoResult) {
		t.Fatalf("error = %v, want ErrNoResult", err)
	}
	if result != "" {
		t.Errorf("result = %q, want zero value", result)
	}
}

func TestDoContextCancellationInterruptsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig()
	cfg.InitialDelay = time.Hour // would hang without cancellation

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := Do(ctx, cfg, "op", func(ctx context.Context) (int, error) {
		return 0, domain.Transient(errors.New("timeout"))
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("cancellation did not interrupt backoff sleep")
	}
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	cfg := Config{
		InitialDelay:    10 * time.Millisecond,
		MaxDelay:        40 * time.Millisecond,
		BackoffMultiple: 2.0,
	}
	d1 := backoff(1, cfg)
	d2 := backoff(2, cfg)
	d5 := backoff(5, cfg)

	if d1 != 10*time.Millisecond {
		t.Errorf("backoff(1) = %v, want 10ms", d1)
	}
	if d2 != 20*time.Millisecond {
		t.Errorf("backoff(2) = %v, want 20ms", d2)
	}
	if d5 != 40*time.Millisecond {
		t.Errorf("backoff(5) = %v, want capped 40ms", d5)
	}
}
