package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

var (
	errTestError    = errors.New("test error")
	errNonRetryable = errors.New("non-retryable error")
)

func fastConfig() Config {
	return Config{
		Enabled:      true,
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   2.0,
		Jitter:       false,
	}
}

func TestBackoff_DoublesUntilCap(t *testing.T) {
	base := time.Second
	maxDelay := 30 * time.Second
	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}

	prev := time.Duration(0)
	for i, w := range want {
		n := i + 1
		got := Backoff(base, maxDelay, n)
		if got != w {
			t.Errorf("Backoff(attempt %d) = %v, want %v", n, got, w)
		}
		if got < prev {
			t.Errorf("Backoff decreased at attempt %d: %v < %v", n, got, prev)
		}
		prev = got
	}
}

func TestBackoff_LargeAttemptStaysAtCap(t *testing.T) {
	if got := Backoff(time.Second, time.Minute, 5000); got != time.Minute {
		t.Fatalf("expected cap, got %v", got)
	}
	if got := Backoff(time.Second, time.Minute, 0); got != time.Second {
		t.Fatalf("expected attempt 0 to behave as 1, got %v", got)
	}
}

func TestRetry_SuccessAfterRetries(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastConfig(), func() error {
		attempts++
		if attempts < 3 {
			return errTestError
		}
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got: %d", attempts)
	}
}

func TestRetry_MaxAttemptsExceeded(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxAttempts = 2

	attempts := 0
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return errTestError
	})

	if !errors.Is(err, errTestError) {
		t.Errorf("Expected wrapped test error, got: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts (initial + 2 retries), got: %d", attempts)
	}
}

func TestRetry_Disabled(t *testing.T) {
	cfg := fastConfig()
	cfg.Enabled = false

	attempts := 0
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return errTestError
	})

	if err != errTestError {
		t.Errorf("Expected raw error when disabled, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got: %d", attempts)
	}
}

func TestRetry_ContextCancellation(t *testing.T) {
	cfg := fastConfig()
	cfg.InitialDelay = time.Second
	cfg.MaxDelay = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := Retry(ctx, cfg, func() error { return errTestError })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got: %v", err)
	}
}

func TestRetry_NonRetryableError(t *testing.T) {
	cfg := fastConfig()
	cfg.NonRetryableErrors = []error{errNonRetryable}

	attempts := 0
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return fmt.Errorf("dial: %w", errNonRetryable)
	})

	if !errors.Is(err, errNonRetryable) {
		t.Errorf("Expected non-retryable error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got: %d", attempts)
	}
}

func TestRetryWithResult_Success(t *testing.T) {
	attempts := 0
	result, err := RetryWithResult(context.Background(), fastConfig(), func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errTestError
		}
		return "ok", nil
	})

	if err != nil || result != "ok" {
		t.Errorf("Expected ok, got %q / %v", result, err)
	}
}

func TestCalculateDelay_WithJitter(t *testing.T) {
	cfg := fastConfig()
	cfg.InitialDelay = 100 * time.Millisecond
	cfg.MaxDelay = time.Second
	cfg.Jitter = true

	for i := 0; i < 50; i++ {
		d := calculateDelay(cfg, 1)
		if d < 150*time.Millisecond || d > 250*time.Millisecond {
			t.Fatalf("jittered delay %v out of +/-25%% range of 200ms", d)
		}
	}
}
