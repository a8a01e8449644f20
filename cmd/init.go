package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jywlabs/prdforge/internal/template"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize .prdforge/ directory",
	Long: `Initialize the .prdforge/ directory in the current project.

Creates:
  .prdforge/
    config.yaml      # Engine, budget, gate and store settings
    patterns.md      # Answers learned across sessions
    conversations/   # Saved refinement conversations (file store)
    standards/       # Project standards injected into prompts
    prds/            # Default output for refined documents

After init, run 'prdforge refine <doc>' on a PRD.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit(".", os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(dir string, w io.Writer) error {
	projectDir := filepath.Join(dir, template.ProjectDir)

	// Check if already initialized
	if _, err := os.Stat(projectDir); err == nil {
		return fmt.Errorf("%s/ already exists", template.ProjectDir)
	}

	for _, sub := range []string{template.ConversationsDir, template.StandardsDir, template.OutputDir} {
		if err := os.MkdirAll(filepath.Join(projectDir, sub), 0755); err != nil {
			return fmt.Errorf("failed to create directories: %w", err)
		}
	}

	for filename, content := range template.DefaultFiles() {
		filePath := filepath.Join(projectDir, filename)
		if err := os.WriteFile(filePath, []byte(content), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", filename, err)
		}
	}

	fmt.Fprintln(w, "Initialized .prdforge/")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Created:")
	fmt.Fprintln(w, "  .prdforge/config.yaml      - Engine and refinement settings")
	fmt.Fprintln(w, "  .prdforge/patterns.md      - Answers learned across sessions")
	fmt.Fprintln(w, "  .prdforge/conversations/   - Saved refinement conversations")
	fmt.Fprintln(w, "  .prdforge/standards/       - Project standards for prompts")
	fmt.Fprintln(w, "  .prdforge/prds/            - Refined documents")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Next steps:")
	fmt.Fprintln(w, "  1. Log in to the claude CLI, or set GEMINI_API_KEY (a .env file works)")
	fmt.Fprintln(w, "  2. Run: prdforge refine <doc>")

	return nil
}
