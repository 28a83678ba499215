package common

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ledgerline/ledgerline/internal/service"
)

func fastRetryOptions() service.RetryOptions {
	return service.RetryOptions{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &RetryableError{Err: fmt.Errorf("transient"), Retryable: true}
		}
		return nil
	}, fastRetryOptions())

	if err != nil {
		t.Fatalf("WithRetry() error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestWithRetry_StopsOnNonRetryableError(t *testing.T) {
	calls := 0
	wantErr := &RetryableError{Err: fmt.Errorf("bad request"), Retryable: false}

	err := WithRetry(context.Background(), func() error {
		calls++
		return wantErr
	}, fastRetryOptions())

	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want the non-retryable error unchanged", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on non-retryable)", calls)
	}
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		return fmt.Errorf("still failing")
	}, fastRetryOptions())

	if !errors.Is(err, ErrMaxRetries) {
		t.Errorf("err = %v, want ErrMaxRetries", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestWithRetry_ContextCancellationStopsWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := WithRetry(ctx, func() error {
		calls++
		cancel()
		return fmt.Errorf("failing while canceled")
	}, service.RetryOptions{MaxAttempts: 5, InitialDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 2.0})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestWithRetry_ZeroOptionsGetDefaults(t *testing.T) {
	opts := retryDefaults(service.RetryOptions{})

	if opts.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", opts.MaxAttempts)
	}
	if opts.InitialDelay != 100*time.Millisecond {
		t.Errorf("InitialDelay = %v, want 100ms", opts.InitialDelay)
	}
	if opts.MaxDelay != 30*time.Second {
		t.Errorf("MaxDelay = %v, want 30s", opts.MaxDelay)
	}
	if opts.Multiplier != 2.0 {
		t.Errorf("Multiplier = %v, want 2.0", opts.Multiplier)
	}
}
