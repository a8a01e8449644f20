// Package insights gathers facts about the codebase a document targets:
// repository state, detected toolchain and project standards. The
// orchestrator surfaces them before each phase and uses them to infer
// answers.
package insights

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jywlabs/prdforge/internal/enhance"
)

// DefaultMaxCommits bounds the commits listed in insights.
const DefaultMaxCommits = 5

// Toolchain is a language ecosystem detected from marker files.
type Toolchain struct {
	Name    string
	Marker  string
	Testing enhance.TestingDefaults
}

var toolchains = []Toolchain{
	{Name: "go", Marker: "go.mod", Testing: enhance.TestingDefaults{Framework: "go", Command: "go test ./..."}},
	{Name: "node", Marker: "package.json", Testing: enhance.TestingDefaults{Framework: "npm", Command: "npm test"}},
	{Name: "python", Marker: "pyproject.toml", Testing: enhance.TestingDefaults{Framework: "pytest", Command: "pytest"}},
	{Name: "rust", Marker: "Cargo.toml", Testing: enhance.TestingDefaults{Framework: "cargo", Command: "cargo test"}},
}

// Insights is what is known about the project.
type Insights struct {
	Repo       *Repo
	Toolchains []Toolchain
	Standards  string
}

// Gather collects insights for the project rooted at dir. Missing pieces are
// left empty; only unreadable files are errors.
func Gather(dir string) (*Insights, error) {
	in := &Insights{}

	repo, err := ReadRepo(dir, DefaultMaxCommits)
	if err != nil {
		return nil, err
	}
	in.Repo = repo

	for _, tc := range toolchains {
		if _, err := os.Stat(filepath.Join(dir, tc.Marker)); err == nil {
			in.Toolchains = append(in.Toolchains, tc)
		}
	}

	std, err := LoadStandards(dir)
	if err != nil {
		return nil, err
	}
	in.Standards = std
	return in, nil
}

// Testing returns the testing defaults of the first detected toolchain.
func (in *Insights) Testing() (enhance.TestingDefaults, bool) {
	if in == nil || len(in.Toolchains) == 0 {
		return enhance.TestingDefaults{}, false
	}
	return in.Toolchains[0].Testing, true
}

// Empty reports whether nothing was found.
func (in *Insights) Empty() bool {
	return in == nil || (in.Repo == nil && len(in.Toolchains) == 0 && in.Standards == "")
}

// Prompt renders the insights as a prompt section.
func (in *Insights) Prompt() string {
	if in.Empty() {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Codebase Insights\n\n")
	if r := in.Repo; r != nil {
		if r.Branch != "" {
			fmt.Fprintf(&b, "- Branch: %s\n", r.Branch)
		}
		if r.Dirty {
			b.WriteString("- Working tree has uncommitted changes\n")
		}
		if len(r.Commits) > 0 {
			b.WriteString("- Recent commits:\n")
			for _, c := range r.Commits {
				fmt.Fprintf(&b, "  - %s %s\n", c.Hash, c.Subject)
			}
		}
	}
	for _, tc := range in.Toolchains {
		fmt.Fprintf(&b, "- Toolchain: %s (%s, tests: %s)\n", tc.Name, tc.Marker, tc.Testing.Command)
	}
	if in.Standards != "" {
		b.WriteString("\n")
		b.WriteString(in.Standards)
		b.WriteString("\n")
	}
	return b.String()
}

// Lines returns a short human-readable digest for the terminal.
func (in *Insights) Lines() []string {
	if in.Empty() {
		return nil
	}
	var lines []string
	if r := in.Repo; r != nil && r.Branch != "" {
		line := "branch " + r.Branch
		if len(r.Commits) > 0 {
			line += fmt.Sprintf(", last commit %s %q", r.Commits[0].Hash, r.Commits[0].Subject)
		}
		lines = append(lines, line)
	}
	for _, tc := range in.Toolchains {
		lines = append(lines, fmt.Sprintf("%s project (%s)", tc.Name, tc.Marker))
	}
	if in.Standards != "" {
		lines = append(lines, fmt.Sprintf("%d project standards", strings.Count(in.Standards, "\n### ")))
	}
	return lines
}
