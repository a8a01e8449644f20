// Package gemini implements engine.Generator on the Gemini API.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/jywlabs/prdforge/internal/engine"
)

// DefaultModel is used when the config names none.
const DefaultModel = "gemini-2.5-flash"

func init() {
	engine.RegisterEngine("gemini", func(cfg *engine.EngineConfig) (engine.Generator, error) {
		return New(context.Background(), cfg)
	})
}

// Engine calls Gemini through the genai client. The API key is read from
// GEMINI_API_KEY or GOOGLE_API_KEY.
type Engine struct {
	cli   *genai.Client
	model string
	cfg   engine.EngineConfig
}

// New creates a Gemini engine.
func New(ctx context.Context, cfg *engine.EngineConfig) (*Engine, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	e := &Engine{cli: cli, model: DefaultModel}
	if cfg != nil {
		e.cfg = *cfg
		if cfg.Model != "" {
			e.model = cfg.Model
		}
	}
	return e, nil
}

// Name returns the engine identifier.
func (e *Engine) Name() string { return "gemini" }

// Generate sends the prompt as a single user turn.
func (e *Engine) Generate(ctx context.Context, prompt string, opts engine.Options) (string, error) {
	timeout := e.cfg.Timeout
	if timeout <= 0 {
		timeout = engine.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := e.cli.Models.GenerateContent(ctx, e.model,
		[]*genai.Content{{Role: genai.RoleUser, Parts: []*genai.Part{{Text: prompt}}}},
		buildConfig(opts),
	)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", engine.ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", engine.ErrEmptyResponse
	}
	return text, nil
}

func buildConfig(opts engine.Options) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if opts.SystemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: opts.SystemPrompt}}}
	}
	if opts.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	return cfg
}
