// Package template holds the project directory layout and default files.
package template

import (
	_ "embed"
)

//go:embed config.yaml
var DefaultConfig string

//go:embed patterns.md
var DefaultPatterns string

// ProjectDir is the name of the prdforge project directory.
const ProjectDir = ".prdforge"

// File and directory names inside ProjectDir.
const (
	ConfigFile       = "config.yaml"
	PatternsFile     = "patterns.md"  // Learned answers reused across sessions
	ConversationsDir = "conversations" // One JSON file per conversation (file store)
	LogsDir          = "logs"
	LogFile          = "prdforge.log"
	MetricsFile      = "metrics.prom"
	StandardsDir     = "standards" // Project standards injected into prompts
	OutputDir        = "prds"      // Default PRD-set output directory
)

// DefaultFiles returns the default files to create in ProjectDir.
func DefaultFiles() map[string]string {
	return map[string]string{
		ConfigFile:   DefaultConfig,
		PatternsFile: DefaultPatterns,
	}
}
