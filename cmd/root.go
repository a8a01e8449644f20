package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "prdforge",
	Short: "prdforge - Refine PRDs until they are executable",
	Long: `prdforge refines product requirement documents with an AI engine and
converges them to a state an autonomous agent can execute.

Workflow:
  prdforge init                       Create .prdforge/ with default config
  prdforge score docs/auth.md         Score a document against the rubric
  prdforge refine docs/auth.md        Add schema, tests and feature flags
  prdforge validate-set prds/         Check dependencies across a PRD set

Commands:
  init           Initialize .prdforge/ directory
  refine         Run the schema, test and feature phases on a document
  score          Score a document and list its gaps
  fix            Apply deterministic fixes until the document is executable
  validate-set   Validate dependencies and scores across documents
  conversation   Inspect saved refinement conversations
  standards      List project standards injected into prompts
  config         Show current configuration
  version        Show version info

Quick Start:
  1. prdforge init
  2. prdforge refine docs/auth.md --auto-approve
  3. prdforge validate-set .prdforge/prds`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(loadEnv)
}

// loadEnv reads .env so engine API keys can live next to the project.
func loadEnv() {
	_ = godotenv.Load()
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
