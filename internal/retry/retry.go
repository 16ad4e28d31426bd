package retry

import (
	"context"
	"log/slog"
	"math"
	"time"
)

// Config holds the configuration for retry logic
type Config struct {
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

// DefaultConfig returns a sensible default retry configuration
func DefaultConfig() Config {
	return Config{
		MaxRetries:      2,
		BaseDelay:       200 * time.Millisecond,
		MaxDelay:        2 * time.Second,
		BackoffMultiple: 2.0,
	}
}

// Attempt is the outcome of one call: the status code and raw body feed the
// retry decision even when err is nil.
type Attempt[T any] struct {
	Result     T
	StatusCode int
	Body       []byte
	Err        error
}

// ErrorChecker decides whether an attempt should be retried
type ErrorChecker func(err error, statusCode int, responseBody []byte) bool

// Options configures retry behavior
type Options struct {
	Config       Config
	ErrorChecker ErrorChecker
	Logger       *slog.Logger
	APIName      string
}

// calculateDelay computes the delay for the given attempt using exponential backoff
func (c Config) calculateDelay(attempt int) time.Duration {
	multiple := c.BackoffMultiple
	if multiple <= 0 {
		multiple = 1
	}
	delay := time.Duration(float64(c.BaseDelay) * math.Pow(multiple, float64(attempt)))
	if c.MaxDelay > 0 && delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	return delay
}

// Execute runs fn until it succeeds, returns a non-retryable error, or the
// retry budget is spent. The last attempt is returned in every case so callers
// can classify the failure by status code.
func Execute[T any](ctx context.Context, opts Options, fn func(attempt int) Attempt[T]) Attempt[T] {
	var last Attempt[T]

	for attempt := 0; attempt <= opts.Config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := opts.Config.calculateDelay(attempt - 1)
			if opts.Logger != nil {
				opts.Logger.DebugContext(ctx, "retrying request",
					"api", opts.APIName,
					"attempt", attempt+1,
					"max_attempts", opts.Config.MaxRetries+1,
					"delay", delay,
				)
			}

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				last.Err = ctx.Err()
				return last
			case <-timer.C:
			}
		}

		last = fn(attempt)

		retryable := opts.ErrorChecker != nil && opts.ErrorChecker(last.Err, last.StatusCode, last.Body)
		if retryable && attempt < opts.Config.MaxRetries {
			if opts.Logger != nil {
				opts.Logger.WarnContext(ctx, "retryable request failure",
					"api", opts.APIName,
					"attempt", attempt+1,
					"status", last.StatusCode,
					"error", last.Err,
				)
			}
			continue
		}

		return last
	}

	return last
}
