package engine

import (
	"context"

	"github.com/jywlabs/prdforge/internal/retry"
)

// retrying wraps a Generator with exponential backoff on transient errors.
type retrying struct {
	inner Generator
	cfg   retry.Config
}

// WithRetry returns a Generator that retries rate-limit, timeout and network
// failures of inner according to cfg.
func WithRetry(inner Generator, cfg retry.Config) Generator {
	return &retrying{inner: inner, cfg: cfg}
}

func (r *retrying) Name() string { return r.inner.Name() }

func (r *retrying) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	return retry.Do(ctx, r.cfg, func(ctx context.Context) (string, error) {
		return r.inner.Generate(ctx, prompt, opts)
	})
}
