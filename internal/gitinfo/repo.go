// internal/gitinfo/repo.go
package gitinfo

import (
	"fmt"

	"github.com/go-git/go-git/v5"
)

// Annotation records the repository state at a moment in time, attached
// to baselines and checkpoints for later correlation
type Annotation struct {
	Branch string `json:"branch,omitempty"`
	Head   string `json:"head,omitempty"`
	Dirty  bool   `json:"dirty"`
}

// Repo wraps a project's git repository
type Repo struct {
	path string
	repo *git.Repository
}

// Open opens the repository at path. Returns an error for non-repos;
// callers treat that as "no annotation available".
func Open(path string) (*Repo, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("open git repository: %w", err)
	}
	return &Repo{path: path, repo: repo}, nil
}

// Annotate captures the current branch, head commit, and dirtiness
func (r *Repo) Annotate() (*Annotation, error) {
	ann := &Annotation{}

	head, err := r.repo.Head()
	if err == nil {
		ann.Head = head.Hash().String()
		if head.Name().IsBranch() {
			ann.Branch = head.Name().Short()
		}
	}

	worktree, err := r.repo.Worktree()
	if err != nil {
		return ann, nil
	}
	status, err := worktree.Status()
	if err != nil {
		return ann, nil
	}
	ann.Dirty = !status.IsClean()

	return ann, nil
}

// TryAnnotate returns an annotation or nil when the project is not a
// git repository
func TryAnnotate(path string) *Annotation {
	repo, err := Open(path)
	if err != nil {
		return nil
	}
	ann, err := repo.Annotate()
	if err != nil {
		return nil
	}
	return ann
}
