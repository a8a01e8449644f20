package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of responses kept by Cached.
const DefaultCacheSize = 256

// CachedGenerator memoizes successful responses by prompt and options.
type CachedGenerator struct {
	inner Generator
	cache *lru.Cache[string, string]
}

// Cached wraps inner with an LRU response cache of the given size.
func Cached(inner Generator, size int) (*CachedGenerator, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create response cache: %w", err)
	}
	return &CachedGenerator{inner: inner, cache: cache}, nil
}

func (c *CachedGenerator) Name() string { return c.inner.Name() }

func (c *CachedGenerator) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	key := cacheKey(prompt, opts)
	if out, ok := c.cache.Get(key); ok {
		return out, nil
	}

	out, err := c.inner.Generate(ctx, prompt, opts)
	if err != nil {
		return "", err
	}
	c.cache.Add(key, out)
	return out, nil
}

// Len returns the number of cached responses.
func (c *CachedGenerator) Len() int { return c.cache.Len() }

func cacheKey(prompt string, opts Options) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%g|%s|%s", opts.MaxTokens, opts.Temperature, opts.SystemPrompt, prompt)
	return hex.EncodeToString(h.Sum(nil))
}
