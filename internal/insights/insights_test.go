package insights

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/jywlabs/prdforge/internal/template"
)

func writeFile(t *testing.T, dir, relPath, content string) {
	t.Helper()
	full := filepath.Join(dir, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatalf("failed to create dir for %s: %v", relPath, err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", relPath, err)
	}
}

// createTestRepo creates a temporary git repository with the given commits.
func createTestRepo(t *testing.T, messages ...string) string {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("Failed to init repo: %v", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Failed to get worktree: %v", err)
	}
	for i, msg := range messages {
		writeFile(t, dir, "README.md", strings.Repeat("x", i+1))
		if _, err := worktree.Add("README.md"); err != nil {
			t.Fatalf("Failed to add file: %v", err)
		}
		_, err = worktree.Commit(msg, &git.CommitOptions{
			Author: &object.Signature{Name: "Test", Email: "test@test.com", When: time.Now().Add(time.Duration(i) * time.Second)},
		})
		if err != nil {
			t.Fatalf("Failed to commit: %v", err)
		}
	}
	return dir
}

func TestReadRepo_NotARepository(t *testing.T) {
	r, err := ReadRepo(t.TempDir(), 5)
	if err != nil {
		t.Fatalf("ReadRepo() error: %v", err)
	}
	if r != nil {
		t.Errorf("ReadRepo() = %+v, want nil", r)
	}
}

func TestReadRepo_NoCommits(t *testing.T) {
	dir := createTestRepo(t)
	r, err := ReadRepo(dir, 5)
	if err != nil {
		t.Fatalf("ReadRepo() error: %v", err)
	}
	if r == nil || r.Head != "" || len(r.Commits) != 0 {
		t.Errorf("ReadRepo() = %+v, want empty repo", r)
	}
}

func TestReadRepo_Commits(t *testing.T) {
	dir := createTestRepo(t, "first", "second\n\nbody", "third")
	writeFile(t, dir, "untracked.txt", "x")

	r, err := ReadRepo(filepath.Join(dir), 2)
	if err != nil {
		t.Fatalf("ReadRepo() error: %v", err)
	}
	if r.Branch != "master" {
		t.Errorf("Branch = %q, want master", r.Branch)
	}
	if !r.Dirty {
		t.Error("Dirty = false, want true")
	}
	if len(r.Commits) != 2 {
		t.Fatalf("got %d commits, want 2", len(r.Commits))
	}
	if r.Commits[0].Subject != "third" || r.Commits[1].Subject != "second" {
		t.Errorf("Commits = %+v", r.Commits)
	}
	if len(r.Commits[0].Hash) != 7 {
		t.Errorf("Hash = %q, want short hash", r.Commits[0].Hash)
	}
}

func TestReadRepo_FromSubdirectory(t *testing.T) {
	dir := createTestRepo(t, "init")
	sub := filepath.Join(dir, "docs")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	r, err := ReadRepo(sub, 1)
	if err != nil || r == nil || len(r.Commits) != 1 {
		t.Fatalf("ReadRepo(subdir) = %+v, %v", r, err)
	}
}

func TestSubject(t *testing.T) {
	if got := subject("  fix: a\n\nlong body"); got != "fix: a" {
		t.Errorf("subject() = %q", got)
	}
	if got := subject(strings.Repeat("a", 100)); len(got) != maxSubjectLen {
		t.Errorf("subject() len = %d, want %d", len(got), maxSubjectLen)
	}
}

func TestLoadStandards(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(t *testing.T, dir string)
		wantEmpty  bool
		wantSubstr []string
	}{
		{
			name:      "no standards directory",
			setup:     func(t *testing.T, dir string) {},
			wantEmpty: true,
		},
		{
			name: "blank files ignored",
			setup: func(t *testing.T, dir string) {
				writeFile(t, dir, filepath.Join(template.ProjectDir, template.StandardsDir, "empty.md"), "  \n")
				writeFile(t, dir, filepath.Join(template.ProjectDir, template.StandardsDir, "index.yml"), "a: b")
			},
			wantEmpty: true,
		},
		{
			name: "sorted sections",
			setup: func(t *testing.T, dir string) {
				writeFile(t, dir, filepath.Join(template.ProjectDir, template.StandardsDir, "testing/table.md"), "Use table tests.")
				writeFile(t, dir, filepath.Join(template.ProjectDir, template.StandardsDir, "api/naming.md"), "Use snake_case fields.")
			},
			wantSubstr: []string{"## Project Standards", "### api/naming\n\nUse snake_case fields.", "### testing/table"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.setup(t, dir)
			got, err := LoadStandards(dir)
			if err != nil {
				t.Fatalf("LoadStandards() error: %v", err)
			}
			if tt.wantEmpty {
				if got != "" {
					t.Errorf("LoadStandards() = %q, want empty", got)
				}
				return
			}
			for _, s := range tt.wantSubstr {
				if !strings.Contains(got, s) {
					t.Errorf("LoadStandards() missing %q in:\n%s", s, got)
				}
			}
			if strings.Index(got, "api/naming") > strings.Index(got, "testing/table") {
				t.Error("sections not sorted by key")
			}
		})
	}
}

func TestGather(t *testing.T) {
	dir := createTestRepo(t, "add auth")
	writeFile(t, dir, "go.mod", "module example.com/x\n")
	writeFile(t, dir, filepath.Join(template.ProjectDir, template.StandardsDir, "go.md"), "Wrap errors.")

	in, err := Gather(dir)
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	if in.Empty() {
		t.Fatal("Gather() returned empty insights")
	}
	tc, ok := in.Testing()
	if !ok || tc.Command != "go test ./..." {
		t.Errorf("Testing() = %+v, %v", tc, ok)
	}

	prompt := in.Prompt()
	for _, want := range []string{"## Codebase Insights", "add auth", "Toolchain: go", "Wrap errors."} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Prompt() missing %q:\n%s", want, prompt)
		}
	}
	lines := in.Lines()
	if len(lines) != 3 || lines[2] != "1 project standards" {
		t.Errorf("Lines() = %q", lines)
	}
}

func TestGather_EmptyDirectory(t *testing.T) {
	in, err := Gather(t.TempDir())
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	if !in.Empty() || in.Prompt() != "" || in.Lines() != nil {
		t.Errorf("Gather(empty) = %+v", in)
	}
	if _, ok := in.Testing(); ok {
		t.Error("Testing() ok on empty insights")
	}
}
