// Package claude implements engine.Generator on top of the Claude Code CLI.
package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/jywlabs/prdforge/internal/engine"
)

func init() {
	engine.RegisterEngine("claude", func(cfg *engine.EngineConfig) (engine.Generator, error) {
		return New(cfg), nil
	})
}

// Engine generates text using `claude -p`.
type Engine struct {
	Model   string
	Timeout time.Duration
}

// New creates a new Claude engine. cfg may be nil.
func New(cfg *engine.EngineConfig) *Engine {
	e := &Engine{Timeout: engine.DefaultTimeout}
	if cfg != nil {
		e.Model = cfg.Model
		if cfg.Timeout > 0 {
			e.Timeout = cfg.Timeout
		}
	}
	return e
}

// Name returns the engine identifier.
func (e *Engine) Name() string {
	return "claude"
}

// BuildArgs returns the CLI arguments for a single non-interactive call.
func (e *Engine) BuildArgs(prompt string, opts engine.Options) []string {
	args := []string{"-p", "--output-format", "json"}
	if e.Model != "" {
		args = append(args, "--model", e.Model)
	}
	if opts.SystemPrompt != "" {
		args = append(args, "--append-system-prompt", opts.SystemPrompt)
	}
	return append(args, prompt)
}

// Generate runs the prompt and returns the result text.
func (e *Engine) Generate(ctx context.Context, prompt string, opts engine.Options) (string, error) {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = engine.DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "claude", e.BuildArgs(prompt, opts)...)
	// No stdin and a new session keep the CLI from drawing interactive hints.
	cmd.Stdin = nil
	cmd.SysProcAttr = newSysProcAttr()
	setupProcessCleanup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("claude timed out after %s", timeout)
	}
	if err != nil && stdout.Len() == 0 {
		return "", fmt.Errorf("claude failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}

	return parseResponse(stdout.Bytes())
}

// response is the envelope printed by `claude -p --output-format json`.
type response struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype"`
	IsError bool   `json:"is_error"`
	Result  string `json:"result"`
}

// parseResponse extracts the result text. Output that is not a JSON envelope
// is returned as-is.
func parseResponse(out []byte) (string, error) {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return "", engine.ErrEmptyResponse
	}

	var resp response
	if err := json.Unmarshal(trimmed, &resp); err != nil || resp.Type == "" {
		return string(trimmed), nil
	}

	if resp.IsError || (resp.Subtype != "" && resp.Subtype != "success") {
		msg := resp.Result
		if msg == "" {
			msg = resp.Subtype
		}
		return "", fmt.Errorf("claude error: %s", msg)
	}
	if strings.TrimSpace(resp.Result) == "" {
		return "", engine.ErrEmptyResponse
	}
	return resp.Result, nil
}
