// Package vcs probes a workspace's version-control state and diffs two
// commits so the change detector can reconcile the index against a VCS
// state change instead of falling back to a full mtime sweep.
package vcs

import (
	"context"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	amerrors "github.com/Aman-CERP/amanmcp/internal/errors"
)

// State is a workspace's current VCS position.
type State struct {
	Branch string
	Commit string
}

// Diff is the set of paths that changed between two commits, classified by
// how they changed. Paths are canonical (relative, forward-slash).
type Diff struct {
	Added    []string
	Modified []string
	Deleted  []string
}

// Prober reports VCS state and diffs commits. The change detector treats
// any error from either method as "VCS unavailable" and falls back
// accordingly — it never panics or retries internally.
type Prober interface {
	State(ctx context.Context) (*State, error)
	Diff(ctx context.Context, from, to string) (Diff, error)
}

// GitProber is a Prober backed by a local git working tree.
type GitProber struct {
	Root string
}

// NewGitProber returns a Prober rooted at root. root need not be the
// repository root — DetectDotGit walks upward to find it.
func NewGitProber(root string) *GitProber {
	return &GitProber{Root: root}
}

func (p *GitProber) open() (*git.Repository, error) {
	repo, err := git.PlainOpenWithOptions(p.Root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, amerrors.VCSError("failed to open git repository", err)
	}
	return repo, nil
}

// State returns the current branch name and commit hash at HEAD. A
// detached HEAD yields an empty branch and a valid commit.
func (p *GitProber) State(ctx context.Context) (*State, error) {
	repo, err := p.open()
	if err != nil {
		return nil, err
	}
	head, err := repo.Head()
	if err != nil {
		return nil, amerrors.VCSError("failed to resolve HEAD", err)
	}
	branch := ""
	if head.Name().IsBranch() {
		branch = head.Name().Short()
	}
	return &State{Branch: branch, Commit: head.Hash().String()}, nil
}

// Diff returns the file-level changes between commit from and commit to.
func (p *GitProber) Diff(ctx context.Context, from, to string) (Diff, error) {
	repo, err := p.open()
	if err != nil {
		return Diff{}, err
	}

	fromCommit, err := repo.CommitObject(plumbing.NewHash(from))
	if err != nil {
		return Diff{}, amerrors.New(amerrors.ErrCodeVCSDiffFailed, "failed to resolve source commit", err)
	}
	toCommit, err := repo.CommitObject(plumbing.NewHash(to))
	if err != nil {
		return Diff{}, amerrors.New(amerrors.ErrCodeVCSDiffFailed, "failed to resolve target commit", err)
	}

	patch, err := fromCommit.Patch(toCommit)
	if err != nil {
		return Diff{}, amerrors.New(amerrors.ErrCodeVCSDiffFailed, "failed to compute commit diff", err)
	}

	var diff Diff
	for _, fp := range patch.FilePatches() {
		fromFile, toFile := fp.Files()
		switch {
		case fromFile == nil && toFile != nil:
			diff.Added = append(diff.Added, filepath.ToSlash(toFile.Path()))
		case fromFile != nil && toFile == nil:
			diff.Deleted = append(diff.Deleted, filepath.ToSlash(fromFile.Path()))
		case fromFile != nil && toFile != nil:
			diff.Modified = append(diff.Modified, filepath.ToSlash(toFile.Path()))
		}
	}
	return diff, nil
}
