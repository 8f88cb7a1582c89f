package git

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrDetachedHead indicates that the repository is
// not on any branch.
var ErrDetachedHead = errors.New("not on any branch")

// CurrentBranch reports the name of the branch checked out.
// It returns [ErrDetachedHead] if HEAD is detached.
func (r *Repository) CurrentBranch(ctx context.Context) (string, error) {
	name, err := r.gitCmd(ctx, "symbolic-ref", "--quiet", "--short", "HEAD").OutputChomp()
	if err != nil {
		return "", ErrDetachedHead
	}
	return name, nil
}

// BranchUpstream reports the remote and merge ref configured
// as the upstream of the given branch.
// remote is "." for branches that track another local branch.
//
// It returns [ErrNotExist] if the branch has no upstream.
func (r *Repository) BranchUpstream(ctx context.Context, branch string) (remote, merge string, err error) {
	merge, err = r.BranchConfig(ctx, branch, "merge")
	if err != nil {
		return "", "", err
	}
	remote, err = r.BranchConfig(ctx, branch, "remote")
	if err != nil {
		return "", "", err
	}
	return remote, merge, nil
}

// SetBranchUpstream configures upstream as the upstream of branch.
func (r *Repository) SetBranchUpstream(ctx context.Context, branch, upstream string) error {
	if err := r.gitCmd(ctx, "branch", "--quiet", "--set-upstream-to="+upstream, branch).Run(); err != nil {
		return fmt.Errorf("set upstream: %w", err)
	}
	return nil
}

// LocalBranches lists the names of all local branches.
func (r *Repository) LocalBranches(ctx context.Context) ([]string, error) {
	var branches []string
	for line, err := range r.gitCmd(ctx,
		"for-each-ref", "--format=%(refname:short)", "refs/heads/",
	).Lines() {
		if err != nil {
			return nil, fmt.Errorf("for-each-ref: %w", err)
		}
		if name := strings.TrimSpace(string(line)); name != "" {
			branches = append(branches, name)
		}
	}
	return branches, nil
}

// CreateBranch creates a new branch pointing at the given commit.
func (r *Repository) CreateBranch(ctx context.Context, name string, start Hash) error {
	if err := r.gitCmd(ctx, "branch", name, string(start)).Run(); err != nil {
		return fmt.Errorf("create branch %v: %w", name, err)
	}
	return nil
}

// Checkout checks out the given branch or commit quietly.
func (r *Repository) Checkout(ctx context.Context, ref string) error {
	if err := r.gitCmd(ctx, "checkout", "-q", ref).Run(); err != nil {
		return fmt.Errorf("checkout %v: %w", ref, err)
	}
	return nil
}

// RemoteURL reports the URL of the given remote.
func (r *Repository) RemoteURL(ctx context.Context, remote string) (string, error) {
	return r.Config(ctx, "remote."+remote+".url")
}
