package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jywlabs/prdforge/internal/insights"
	"github.com/jywlabs/prdforge/internal/template"
	"github.com/spf13/cobra"
)

var standardsCmd = &cobra.Command{
	Use:   "standards",
	Short: "Manage project standards",
	Long: `Manage project-specific standards that guide the AI engine during refinement.

Standards are concise, codebase-specific rules stored in .prdforge/standards/.
They are injected into every phase prompt together with the repository
insights, so generated schemas, tests and flags follow your conventions.`,
}

var standardsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured standards",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStandardsList(".", os.Stdout)
	},
}

var standardsAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a standard",
	Long: `Create a new standard in .prdforge/standards/.

Example:
  prdforge standards add api/naming     # Creates .prdforge/standards/api/naming.md`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStandardsAdd(".", args[0], os.Stdout)
	},
}

func init() {
	standardsCmd.AddCommand(standardsListCmd, standardsAddCmd)
	rootCmd.AddCommand(standardsCmd)
}

func runStandardsList(dir string, w io.Writer) error {
	standardsDir := filepath.Join(dir, template.ProjectDir, template.StandardsDir)
	if _, err := os.Stat(standardsDir); os.IsNotExist(err) {
		fmt.Fprintln(w, "No standards directory found.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Run 'prdforge init' first, then 'prdforge standards add <name>'.")
		return nil
	}

	content, err := insights.LoadStandards(dir)
	if err != nil {
		return err
	}
	if content == "" {
		fmt.Fprintf(w, "No standards found in %s/%s/\n", template.ProjectDir, template.StandardsDir)
		return nil
	}

	var names []string
	for _, line := range strings.Split(content, "\n") {
		if name, ok := strings.CutPrefix(line, "### "); ok {
			names = append(names, name)
		}
	}
	fmt.Fprintf(w, "Standards: %d files\n", len(names))
	fmt.Fprintln(w)
	for _, n := range names {
		fmt.Fprintf(w, "  %s\n", n)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Standards are injected into every 'prdforge refine' phase automatically.")
	return nil
}

func runStandardsAdd(dir, name string, w io.Writer) error {
	projectDir := filepath.Join(dir, template.ProjectDir)
	if _, err := os.Stat(projectDir); os.IsNotExist(err) {
		return fmt.Errorf("%s/ not found - run 'prdforge init' first", template.ProjectDir)
	}

	name = strings.TrimSuffix(filepath.ToSlash(name), ".md")
	if name == "" || strings.Contains(name, "..") || strings.HasPrefix(name, "/") {
		return fmt.Errorf("invalid standard name %q", name)
	}
	path := filepath.Join(projectDir, template.StandardsDir, filepath.FromSlash(name)+".md")

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("standard %q already exists at %s", name, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create standards directory: %w", err)
	}

	content := fmt.Sprintf(`# Standard: %s

<!--
This standard is included in every refinement prompt. Keep it short and
specific to this codebase.
-->

- Add one rule per line
- Prefer concrete names, paths and commands
`, name)

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write standard: %w", err)
	}

	fmt.Fprintf(w, "Created standard: %s\n", path)
	return nil
}
