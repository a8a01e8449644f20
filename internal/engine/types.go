// Package engine defines the AI text-generation capability used to fill
// gaps in PRDs, and the registry of concrete engines.
package engine

import (
	"context"
	"errors"
	"time"
)

// Options tune a single generation request.
type Options struct {
	MaxTokens    int     // 0 = engine default
	Temperature  float64 // 0 = engine default
	SystemPrompt string  // Optional system instructions
}

// Generator produces text for a prompt. Implementations must honor ctx
// cancellation for in-flight calls.
type Generator interface {
	// Name returns the engine identifier (e.g., "claude", "gemini")
	Name() string

	// Generate returns the model's text response.
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}

// EngineConfig holds per-engine settings from config.yaml.
type EngineConfig struct {
	Model   string
	Timeout time.Duration
}

// ErrEmptyResponse is returned when an engine answers with no text.
var ErrEmptyResponse = errors.New("engine returned an empty response")

// DefaultTimeout for a single generation call.
const DefaultTimeout = 10 * time.Minute
