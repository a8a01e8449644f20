package insights

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jywlabs/prdforge/internal/template"
)

type section struct {
	key     string
	content string
}

// LoadStandards reads all .md files from the project's standards directory
// and returns them concatenated with section headers for prompt injection.
// Returns empty string (not error) if no standards exist.
func LoadStandards(projectDir string) (string, error) {
	standardsDir := filepath.Join(projectDir, template.ProjectDir, template.StandardsDir)

	if _, err := os.Stat(standardsDir); os.IsNotExist(err) {
		return "", nil
	}

	var sections []section
	err := filepath.WalkDir(standardsDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".md" {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read standard %s: %w", path, err)
		}
		trimmed := strings.TrimSpace(string(content))
		if trimmed == "" {
			return nil
		}

		rel, _ := filepath.Rel(standardsDir, path)
		rel = strings.TrimSuffix(filepath.ToSlash(rel), ".md")
		sections = append(sections, section{key: rel, content: trimmed})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to load standards: %w", err)
	}
	if len(sections) == 0 {
		return "", nil
	}

	sort.Slice(sections, func(i, j int) bool {
		return sections[i].key < sections[j].key
	})

	var b strings.Builder
	b.WriteString("## Project Standards\n\n")
	b.WriteString("Generated schema, tests and feature flags MUST follow these project standards:\n\n")
	for i, s := range sections {
		if i > 0 {
			b.WriteString("\n\n---\n\n")
		}
		fmt.Fprintf(&b, "### %s\n\n%s", s.key, s.content)
	}
	return b.String(), nil
}
