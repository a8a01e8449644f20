package cmd

import (
	"log/slog"
	"time"

	"github.com/jywlabs/prdforge/internal/config"
	"github.com/jywlabs/prdforge/internal/display"
	"github.com/jywlabs/prdforge/internal/engine"

	// Register available engines.
	_ "github.com/jywlabs/prdforge/internal/engine/claude"
	_ "github.com/jywlabs/prdforge/internal/engine/gemini"
)

// newGenerator creates an engine by name with the per-engine settings from
// config.yaml, wrapped with retries and a response cache.
func newGenerator(cfg *config.Config, name string, logger *slog.Logger, d *display.Display) (engine.Generator, error) {
	if name == "" {
		name = cfg.Engine
	}
	gen, err := engine.New(name, cfg.EngineConfig(name))
	if err != nil {
		return nil, err
	}

	rc := cfg.RetryConfig()
	rc.Logger = logger
	if d != nil {
		rc.OnRetry = func(delay time.Duration, attempt, max int, _ error) {
			d.ShowRetry(attempt, max, delay)
		}
	}
	gen = engine.WithRetry(gen, rc)

	if cfg.CacheSize > 0 {
		cached, err := engine.Cached(gen, cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		gen = cached
	}
	return gen, nil
}
