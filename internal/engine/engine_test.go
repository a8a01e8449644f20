package engine

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/jywlabs/prdforge/internal/retry"
)

type countingGenerator struct {
	calls int
	errs  []error
	out   string
}

func (g *countingGenerator) Name() string { return "counting" }

func (g *countingGenerator) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	g.calls++
	if len(g.errs) > 0 {
		err := g.errs[0]
		g.errs = g.errs[1:]
		return "", err
	}
	return g.out + prompt, nil
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
		wantErr  bool
	}{
		{
			name:     "bare object",
			response: `{"a": 1}`,
			want:     `{"a": 1}`,
		},
		{
			name:     "fenced block",
			response: "Here you go:\n```json\n{\"a\": 1}\n```\nDone.",
			want:     `{"a": 1}`,
		},
		{
			name:     "surrounding prose",
			response: `The result is {"a": {"b": 2}} as requested.`,
			want:     `{"a": {"b": 2}}`,
		},
		{
			name:     "no object",
			response: "no json here",
			wantErr:  true,
		},
		{
			name:     "malformed",
			response: `{"a": }`,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.response)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ExtractJSON() = %q, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractJSON() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ExtractJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Kind string `json:"kind"`
	}
	if err := DecodeJSON("```\n{\"kind\": \"schema\"}\n```", &v); err != nil {
		t.Fatalf("DecodeJSON() error = %v", err)
	}
	if v.Kind != "schema" {
		t.Errorf("Kind = %q, want schema", v.Kind)
	}

	var n struct {
		Count int `json:"count"`
	}
	if err := DecodeJSON(`{"count": "three"}`, &n); err == nil {
		t.Error("DecodeJSON() with mismatched type should fail")
	}
}

func TestCached(t *testing.T) {
	inner := &countingGenerator{out: "echo:"}
	gen, err := Cached(inner, 2)
	if err != nil {
		t.Fatalf("Cached() error = %v", err)
	}
	ctx := context.Background()

	for range 3 {
		out, err := gen.Generate(ctx, "a", Options{})
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if out != "echo:a" {
			t.Errorf("Generate() = %q, want echo:a", out)
		}
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}

	// Different options are a different key.
	if _, err := gen.Generate(ctx, "a", Options{Temperature: 0.5}); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if inner.calls != 2 {
		t.Errorf("inner calls = %d, want 2", inner.calls)
	}
	if gen.Len() != 2 {
		t.Errorf("Len() = %d, want 2", gen.Len())
	}
	if gen.Name() != "counting" {
		t.Errorf("Name() = %q, want counting", gen.Name())
	}
}

func TestCached_ErrorsAreNotCached(t *testing.T) {
	inner := &countingGenerator{out: "ok:", errs: []error{errors.New("boom")}}
	gen, err := Cached(inner, 0)
	if err != nil {
		t.Fatalf("Cached() error = %v", err)
	}

	if _, err := gen.Generate(context.Background(), "p", Options{}); err == nil {
		t.Fatal("first Generate() should fail")
	}
	out, err := gen.Generate(context.Background(), "p", Options{})
	if err != nil {
		t.Fatalf("second Generate() error = %v", err)
	}
	if out != "ok:p" || inner.calls != 2 {
		t.Errorf("Generate() = %q after %d calls, want ok:p after 2", out, inner.calls)
	}
}

func TestWithRetry(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   bool
		wantHooks int
	}{
		{
			name:      "success first try",
			wantCalls: 1,
		},
		{
			name:      "retries rate limit",
			errs:      []error{errors.New("429 rate limit"), errors.New("service unavailable")},
			wantCalls: 3,
			wantHooks: 2,
		},
		{
			name:      "stops on auth error",
			errs:      []error{errors.New("401 unauthorized")},
			wantCalls: 1,
			wantErr:   true,
		},
		{
			name:      "exhausts attempts",
			errs:      []error{errors.New("timeout"), errors.New("timeout"), errors.New("timeout")},
			wantCalls: 3,
			wantErr:   true,
			wantHooks: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := &countingGenerator{out: "ok:", errs: slices.Clone(tt.errs)}
			hooks := 0
			gen := WithRetry(inner, retry.Config{
				MaxRetries: 2,
				BaseDelay:  time.Millisecond,
				OnRetry:    func(time.Duration, int, int, error) { hooks++ },
			})

			out, err := gen.Generate(context.Background(), "p", Options{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Generate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && out != "ok:p" {
				t.Errorf("Generate() = %q, want ok:p", out)
			}
			if inner.calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", inner.calls, tt.wantCalls)
			}
			if hooks != tt.wantHooks {
				t.Errorf("OnRetry calls = %d, want %d", hooks, tt.wantHooks)
			}
		})
	}
}

func TestFactory(t *testing.T) {
	RegisterEngine("Counting-Test", func(cfg *EngineConfig) (Generator, error) {
		return &countingGenerator{}, nil
	})

	gen, err := New("counting-test", nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if gen.Name() != "counting" {
		t.Errorf("Name() = %q, want counting", gen.Name())
	}
	if !slices.Contains(Available(), "counting-test") {
		t.Errorf("Available() = %v, want counting-test listed", Available())
	}

	_, err = New("nope", nil)
	if err == nil || !strings.Contains(err.Error(), "unknown engine: nope") {
		t.Errorf("New(nope) error = %v, want unknown engine", err)
	}
}
