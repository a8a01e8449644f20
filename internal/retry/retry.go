// Package retry runs AI generation calls with exponential backoff.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strings"
	"time"
)

const (
	// DefaultMaxRetries is the default number of retry attempts.
	DefaultMaxRetries = 3
	// DefaultBaseDelay is the base delay for exponential backoff.
	DefaultBaseDelay = 2 * time.Second
	// DefaultMaxJitterPercent is the maximum jitter percentage (0-25%).
	DefaultMaxJitterPercent = 25
)

// Config holds retry configuration.
type Config struct {
	MaxRetries       int           `yaml:"maxRetries"`
	BaseDelay        time.Duration `yaml:"baseDelay"`
	MaxJitterPercent int           `yaml:"maxJitterPercent"`
	Logger           *slog.Logger  `yaml:"-"` // nil disables retry logging
	// OnRetry is called before each wait, if set.
	OnRetry func(delay time.Duration, attempt, max int, err error) `yaml:"-"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		MaxRetries:       DefaultMaxRetries,
		BaseDelay:        DefaultBaseDelay,
		MaxJitterPercent: DefaultMaxJitterPercent,
	}
}

func (c Config) normalized() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxJitterPercent < 0 || c.MaxJitterPercent > 100 {
		c.MaxJitterPercent = DefaultMaxJitterPercent
	}
	return c
}

// Do runs op, retrying retryable errors with exponential backoff and jitter.
// The last value and error are returned once op succeeds, fails with a
// non-retryable error, or the attempts are exhausted. A cancelled ctx stops
// waiting and returns ctx.Err().
func Do[T any](ctx context.Context, cfg Config, op func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.normalized()

	var (
		last T
		err  error
	)
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		last, err = op(ctx)
		if err == nil {
			return last, nil
		}

		if !IsRetryable(err) {
			if cfg.Logger != nil {
				cfg.Logger.Debug("non-retryable error", "error", err, "attempt", attempt+1)
			}
			return last, err
		}

		if attempt >= cfg.MaxRetries {
			if cfg.Logger != nil {
				cfg.Logger.Warn("retry attempts exhausted", "error", err, "max_retries", cfg.MaxRetries)
			}
			return last, err
		}

		delay := CalculateDelay(cfg.BaseDelay, attempt, cfg.MaxJitterPercent)
		if cfg.OnRetry != nil {
			cfg.OnRetry(delay, attempt+1, cfg.MaxRetries, err)
		}
		if cfg.Logger != nil {
			cfg.Logger.Info("retrying", "delay", delay, "attempt", attempt+1, "max_retries", cfg.MaxRetries, "error", err)
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(delay):
		}
	}

	return last, err
}

// CalculateDelay returns the delay for a given attempt using exponential backoff with jitter.
// Formula: base * 2^attempt + jitter (0-maxJitterPercent% of calculated delay)
func CalculateDelay(base time.Duration, attempt int, maxJitterPercent int) time.Duration {
	delay := base * time.Duration(1<<attempt)

	if maxJitterPercent > 0 {
		jitterRange := float64(delay) * float64(maxJitterPercent) / 100.0
		delay += time.Duration(rand.Float64() * jitterRange)
	}

	return delay
}

// retryablePatterns contains error message patterns that indicate retryable errors.
var retryablePatterns = []string{
	"rate limit",
	"rate_limit",
	"resource_exhausted",
	"timeout",
	"timed out",
	"deadline exceeded",
	"network",
	"connection refused",
	"connection reset",
	"temporary failure",
	"service unavailable",
	"503",
	"502",
	"429",
	"overloaded",
	"too many requests",
}

// nonRetryablePatterns contains error message patterns that indicate non-retryable errors.
var nonRetryablePatterns = []string{
	"syntax error",
	"invalid",
	"not found",
	"unauthorized",
	"forbidden",
	"authentication",
	"permission denied",
	"bad request",
	"400",
	"401",
	"403",
	"404",
}

// IsRetryable determines if an error is retryable.
// Rate limit, timeout, and network errors are retryable.
// Cancellation, malformed requests and auth errors are not.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	errStr := strings.ToLower(err.Error())

	for _, pattern := range nonRetryablePatterns {
		if strings.Contains(errStr, pattern) {
			return false
		}
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	// Unknown errors are not retried.
	return false
}
