// Package retry runs operations with exponential backoff.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	apperrors "github.com/wallet-portfolio/internal/errors"
	"github.com/wallet-portfolio/internal/logging"
)

// Config configures retry behavior
type Config struct {
	MaxAttempts  int           // total attempts including the first one
	InitialDelay time.Duration // delay before the second attempt
	MaxDelay     time.Duration // cap on any single delay
	Multiplier   float64       // backoff growth factor

	// Retryable decides whether an error is worth another attempt.
	// Nil retries only errors that categorize as SERVICE_UNAVAILABLE.
	Retryable func(error) bool
}

// DefaultConfig returns 1s, 2s, 4s, 8s between five attempts, capped at 30s
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:  5,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// Result describes how an operation went
type Result struct {
	Attempts      int           `json:"attempts"`
	TotalDuration time.Duration `json:"totalDuration"`
}

// Func is an operation that can be retried. attempt starts at 1.
type Func func(ctx context.Context, attempt int) error

// Do runs fn until it succeeds, returns a non-retryable error, runs out of
// attempts or ctx is done. The last error is returned unwrapped so callers can
// still categorize it.
func Do(ctx context.Context, cfg *Config, fn Func) (*Result, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	retryable := cfg.Retryable
	if retryable == nil {
		retryable = apperrors.IsUnavailable
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	logger := logging.FromContext(ctx)
	start := time.Now()
	res := &Result{}

	for attempt := 1; ; attempt++ {
		res.Attempts = attempt
		err := fn(ctx, attempt)
		res.TotalDuration = time.Since(start)
		if err == nil {
			if attempt > 1 {
				logger.WithFields(map[string]interface{}{
					"attempts":       attempt,
					"total_duration": res.TotalDuration.String(),
				}).Info("Operation succeeded after retry")
			}
			return res, nil
		}

		if !retryable(err) || attempt >= maxAttempts {
			if attempt > 1 {
				logger.WithError(err).WithField("attempts", attempt).Warn("Operation failed after retries")
			}
			return res, err
		}
		if ctx.Err() != nil {
			return res, fmt.Errorf("retry cancelled after %d attempts: %w", attempt, err)
		}

		delay := Delay(cfg, attempt)
		logger.WithError(err).WithFields(map[string]interface{}{
			"attempt":      attempt,
			"max_attempts": maxAttempts,
			"delay":        delay.String(),
		}).Warn("Operation failed, retrying with exponential backoff")

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			res.TotalDuration = time.Since(start)
			return res, fmt.Errorf("retry cancelled after %d attempts: %w", attempt, err)
		}
	}
}

// Delay returns the backoff before attempt+1: InitialDelay * Multiplier^(attempt-1), capped at MaxDelay
func Delay(cfg *Config, attempt int) time.Duration {
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}
