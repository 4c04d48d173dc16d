// Package git (repo.go) provides repository discovery, branch, and status
// helpers backed by go-git.
package git

import (
	"path/filepath"
	"sort"

	"github.com/cockroachdb/errors"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/filesystem"

	"commitmate/cli/internal/erruser"
)

// stateDirName is the directory under the git dir that holds history and
// prompt overrides.
const stateDirName = "commitmate"

// Repo is an opened repository. Root is the working tree root and GitDir
// the repository's git directory (".git" or a linked worktree's gitdir).
type Repo struct {
	Root   string
	GitDir string

	repo *gogit.Repository
}

// Open discovers the repository containing dir, walking parent directories.
// Returns a user-facing error when dir is not inside a working tree.
func Open(dir string) (*Repo, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrap(err, "resolve directory")
	}
	r, err := gogit.PlainOpenWithOptions(abs, &gogit.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		return nil, erruser.New("This directory is not inside a Git repository.", err)
	}
	wt, err := r.Worktree()
	if err != nil {
		return nil, erruser.New("This repository has no working tree.", err)
	}
	root := wt.Filesystem.Root()
	gitDir := filepath.Join(root, ".git")
	if st, ok := r.Storer.(*filesystem.Storage); ok {
		gitDir = st.Filesystem().Root()
	}
	return &Repo{Root: root, GitDir: gitDir, repo: r}, nil
}

// StateDir is where commitmate keeps per-repository state.
func (r *Repo) StateDir() string {
	return filepath.Join(r.GitDir, stateDirName)
}

// CurrentBranch returns the short name of the checked-out branch. A detached
// HEAD returns "HEAD". A repository with no commits returns the branch HEAD
// points at.
func (r *Repo) CurrentBranch() (string, error) {
	head, err := r.repo.Head()
	if err == nil {
		if head.Name().IsBranch() {
			return head.Name().Short(), nil
		}
		return "HEAD", nil
	}
	if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", erruser.New("Could not read the current branch.", err)
	}
	ref, err := r.repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return "", erruser.New("Could not read the current branch.", err)
	}
	if ref.Type() == plumbing.SymbolicReference {
		return ref.Target().Short(), nil
	}
	return "HEAD", nil
}

// HeadHash returns the full hash of HEAD, or "" when the repository has no
// commits.
func (r *Repo) HeadHash() (string, error) {
	head, err := r.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "read HEAD")
	}
	return head.Hash().String(), nil
}

// Status groups working tree paths by where their changes live. A path that
// is staged and also modified afterwards appears in both Staged and Unstaged.
type Status struct {
	Staged    []string `json:"staged" yaml:"staged"`
	Unstaged  []string `json:"unstaged" yaml:"unstaged"`
	Untracked []string `json:"untracked" yaml:"untracked"`
}

// Clean reports whether nothing is staged, modified, or untracked.
func (s Status) Clean() bool {
	return len(s.Staged) == 0 && len(s.Unstaged) == 0 && len(s.Untracked) == 0
}

// Status reads the working tree status. Paths are sorted.
func (r *Repo) Status() (Status, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return Status{}, erruser.New("Could not check working tree status.", err)
	}
	st, err := wt.Status()
	if err != nil {
		return Status{}, erruser.New("Could not check working tree status.", err)
	}
	var out Status
	for path, fs := range st {
		if fs.Staging == gogit.Untracked || fs.Worktree == gogit.Untracked {
			out.Untracked = append(out.Untracked, path)
			continue
		}
		if fs.Staging != gogit.Unmodified {
			out.Staged = append(out.Staged, path)
		}
		if fs.Worktree != gogit.Unmodified {
			out.Unstaged = append(out.Unstaged, path)
		}
	}
	sort.Strings(out.Staged)
	sort.Strings(out.Unstaged)
	sort.Strings(out.Untracked)
	return out, nil
}

// ValidateBranchName reports whether name is usable as a new branch name.
func ValidateBranchName(name string) error {
	if name == "" {
		return erruser.New("Branch name is required.", nil)
	}
	if name[0] == '-' {
		return erruser.New("Branch name must not start with '-'.", nil)
	}
	if err := plumbing.NewBranchReferenceName(name).Validate(); err != nil {
		return erruser.New("Invalid branch name: "+name, err)
	}
	return nil
}
