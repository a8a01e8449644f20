package insights

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// maxSubjectLen is the maximum length of a commit subject in insights.
const maxSubjectLen = 72

// Commit is a summarized commit.
type Commit struct {
	Hash    string
	Subject string
	Author  string
}

// Repo describes the git repository containing the project.
type Repo struct {
	Branch  string
	Head    string
	Dirty   bool
	Commits []Commit
}

// ReadRepo inspects the repository containing dir. It returns (nil, nil)
// when dir is not inside a git repository.
func ReadRepo(dir string, maxCommits int) (*Repo, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	out := &Repo{}
	head, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return out, nil
		}
		return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	if head.Name().IsBranch() {
		out.Branch = head.Name().Short()
	}
	out.Head = head.Hash().String()

	if wt, err := repo.Worktree(); err == nil {
		if status, err := wt.Status(); err == nil {
			out.Dirty = !status.IsClean()
		}
	}

	if maxCommits <= 0 {
		return out, nil
	}
	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	defer iter.Close()

	errStop := errors.New("stop")
	err = iter.ForEach(func(c *object.Commit) error {
		if len(out.Commits) >= maxCommits {
			return errStop
		}
		out.Commits = append(out.Commits, Commit{
			Hash:    c.Hash.String()[:7],
			Subject: subject(c.Message),
			Author:  c.Author.Name,
		})
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	return out, nil
}

func subject(message string) string {
	s, _, _ := strings.Cut(strings.TrimSpace(message), "\n")
	if len(s) > maxSubjectLen {
		s = s[:maxSubjectLen]
	}
	return s
}
