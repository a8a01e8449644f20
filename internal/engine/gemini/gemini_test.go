package gemini

import (
	"testing"

	"github.com/jywlabs/prdforge/internal/engine"
)

func TestBuildConfig(t *testing.T) {
	cfg := buildConfig(engine.Options{SystemPrompt: "sys", Temperature: 0.2, MaxTokens: 512})

	if cfg.SystemInstruction == nil || cfg.SystemInstruction.Parts[0].Text != "sys" {
		t.Errorf("SystemInstruction = %+v, want sys", cfg.SystemInstruction)
	}
	if cfg.Temperature == nil || *cfg.Temperature != float32(0.2) {
		t.Errorf("Temperature = %v, want 0.2", cfg.Temperature)
	}
	if cfg.MaxOutputTokens != 512 {
		t.Errorf("MaxOutputTokens = %d, want 512", cfg.MaxOutputTokens)
	}
}

func TestBuildConfig_Defaults(t *testing.T) {
	cfg := buildConfig(engine.Options{})
	if cfg.SystemInstruction != nil || cfg.Temperature != nil || cfg.MaxOutputTokens != 0 {
		t.Errorf("buildConfig(zero) = %+v, want empty config", cfg)
	}
}
