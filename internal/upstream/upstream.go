// Package upstream resolves the upstream of local branches
// and the merge base with it.
//
// Nothing is cached: every call consults the repository.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.abhg.dev/gitcl/internal/git"
	"go.abhg.dev/gitcl/internal/silog"
)

// LocalRemote is the remote name git uses for branches
// that track another local branch.
const LocalRemote = "."

// GitRepository is the subset of git.Repository used by the resolver.
type GitRepository interface {
	// BranchUpstream reports the remote and merge ref of a branch,
	// or an error matching git.ErrNotExist.
	BranchUpstream(ctx context.Context, branch string) (remote, merge string, err error)
	PeelToCommit(ctx context.Context, ref string) (git.Hash, error)
	MergeBase(ctx context.Context, a, b string) (git.Hash, error)
}

var _ GitRepository = (*git.Repository)(nil)

// NoUpstreamError indicates that a branch does not track anything.
type NoUpstreamError struct {
	Branch string
}

func (e *NoUpstreamError) Error() string {
	return fmt.Sprintf("branch %v has no upstream", e.Branch)
}

// Hint returns remediation text for the user.
func (e *NoUpstreamError) Hint() string {
	return "Unable to determine default branch to diff against.\n" +
		"Verify this branch is set up to track another\n" +
		"(via the --track argument to \"git checkout -b ...\")."
}

// StaleUpstreamError indicates that the upstream of a branch
// no longer resolves to a commit.
type StaleUpstreamError struct {
	Branch   string
	Upstream string
}

func (e *StaleUpstreamError) Error() string {
	return fmt.Sprintf("the current branch (%v) has an upstream (%v) that does not exist anymore", e.Branch, e.Upstream)
}

// Upstream is the upstream of a branch as configured in git.
type Upstream struct {
	// Remote is the remote name, or "." for local branches.
	Remote string

	// Ref is the merge ref on that remote, e.g. "refs/heads/main".
	Ref string
}

// IsLocal reports whether the upstream is another local branch.
func (u Upstream) IsLocal() bool {
	return u.Remote == LocalRemote
}

// BranchName returns the short name of the upstream branch.
func (u Upstream) BranchName() string {
	return strings.TrimPrefix(u.Ref, "refs/heads/")
}

// IsTrunk reports whether the upstream is a default trunk branch.
func (u Upstream) IsTrunk() bool {
	name := u.BranchName()
	return name == "main" || name == "master"
}

// TrackingRef returns the local ref that mirrors the upstream.
// For local upstreams this is the branch itself.
func (u Upstream) TrackingRef() string {
	if u.IsLocal() {
		return u.Ref
	}
	ref := strings.Replace(u.Ref, "refs/heads/", "refs/remotes/"+u.Remote+"/", 1)
	return strings.Replace(ref, "refs/branch-heads/", "refs/remotes/branch-heads/", 1)
}

// Resolver resolves upstream information for branches.
type Resolver struct {
	repo GitRepository
	log  *silog.Logger
}

// NewResolver builds a resolver for the given repository.
func NewResolver(repo GitRepository, log *silog.Logger) *Resolver {
	if log == nil {
		log = silog.Nop()
	}
	return &Resolver{repo: repo, log: log}
}

// Resolve returns the upstream of branch.
// It fails with [NoUpstreamError] if the branch tracks nothing.
func (r *Resolver) Resolve(ctx context.Context, branch string) (Upstream, error) {
	remote, merge, err := r.repo.BranchUpstream(ctx, branch)
	if err != nil {
		if errors.Is(err, git.ErrNotExist) {
			return Upstream{}, &NoUpstreamError{Branch: branch}
		}
		return Upstream{}, fmt.Errorf("upstream of %v: %w", branch, err)
	}
	if remote == "" || merge == "" {
		return Upstream{}, &NoUpstreamError{Branch: branch}
	}
	return Upstream{Remote: remote, Ref: merge}, nil
}

// MergeBase returns the merge base of branch and its upstream up.
// It fails with [StaleUpstreamError] if the upstream no longer resolves.
func (r *Resolver) MergeBase(ctx context.Context, branch string, up Upstream) (git.Hash, error) {
	tracking := up.TrackingRef()
	if _, err := r.repo.PeelToCommit(ctx, tracking); err != nil {
		if errors.Is(err, git.ErrNotExist) {
			return "", &StaleUpstreamError{Branch: branch, Upstream: tracking}
		}
		return "", fmt.Errorf("resolve %v: %w", tracking, err)
	}

	base, err := r.repo.MergeBase(ctx, branch, tracking)
	if err != nil {
		return "", fmt.Errorf("merge base of %v and %v: %w", branch, tracking, err)
	}
	return base, nil
}

// CommonAncestor resolves the upstream of branch
// and returns the merge base with it.
func (r *Resolver) CommonAncestor(ctx context.Context, branch string) (git.Hash, error) {
	up, err := r.Resolve(ctx, branch)
	if err != nil {
		return "", err
	}
	return r.MergeBase(ctx, branch, up)
}

// RemoteBranch follows the chain of local upstreams from branch
// until it reaches a branch that tracks a real remote.
// It returns that remote and the remote-tracking ref for it,
// e.g. "origin" and "refs/remotes/origin/main".
func (r *Resolver) RemoteBranch(ctx context.Context, branch string) (remote, ref string, err error) {
	seen := make(map[string]struct{})
	for {
		if _, ok := seen[branch]; ok {
			return "", "", fmt.Errorf("upstream of %v forms a cycle", branch)
		}
		seen[branch] = struct{}{}

		up, err := r.Resolve(ctx, branch)
		if err != nil {
			return "", "", err
		}

		remote, branch = up.Remote, up.BranchName()
		if !up.IsLocal() || strings.HasPrefix(branch, "refs/remotes") {
			break
		}
	}

	switch {
	case strings.HasPrefix(branch, "refs/remotes"):
		return remote, branch, nil
	case strings.HasPrefix(branch, "refs/branch-heads/"):
		return remote, strings.Replace(branch, "refs/", "refs/remotes/", 1), nil
	default:
		return remote, "refs/remotes/" + remote + "/" + branch, nil
	}
}

var _aliasedRefs = map[string]string{
	"refs/remotes/origin/lkgr": "refs/remotes/origin/main",
	"refs/remotes/origin/lkcr": "refs/remotes/origin/main",
}

// TargetRef computes the ref on the remote that a change should land in.
//
// remoteBranch is the remote-tracking ref of the branch
// (as returned by [Resolver.RemoteBranch]).
// target, if non-empty, overrides it with a user-specified branch:
// bare names like "release" become "refs/heads/release".
func TargetRef(remote, remoteBranch, target string) string {
	if remote == "" || remoteBranch == "" {
		return ""
	}

	if target != "" {
		if !strings.Contains(target, "/") {
			remoteBranch = "refs/remotes/" + remote + "/" + target
		} else {
			remoteBranch = target
			replacements := []struct {
				re   *regexp.Regexp
				repl string
			}{
				{regexp.MustCompile(`^((refs/)?remotes/)?branch-heads/`), "refs/remotes/branch-heads/"},
				{regexp.MustCompile(`^((refs/)?remotes/)?` + regexp.QuoteMeta(remote) + `/`), "refs/remotes/" + remote + "/"},
				{regexp.MustCompile(`^(refs/)?heads/`), "refs/remotes/" + remote + "/"},
			}
			for _, r := range replacements {
				if loc := r.re.FindStringIndex(target); loc != nil {
					remoteBranch = r.repl + target[loc[1]:]
					break
				}
			}
		}
	} else if alias, ok := _aliasedRefs[remoteBranch]; ok {
		remoteBranch = alias
	}

	remotePrefix := "refs/remotes/" + remote + "/"
	switch {
	case strings.HasPrefix(remoteBranch, remotePrefix+"refs/"):
		return strings.TrimPrefix(remoteBranch, remotePrefix)
	case strings.HasPrefix(remoteBranch, remotePrefix):
		return "refs/heads/" + strings.TrimPrefix(remoteBranch, remotePrefix)
	case strings.HasPrefix(remoteBranch, "refs/remotes/branch-heads"):
		return strings.Replace(remoteBranch, "refs/remotes/", "refs/", 1)
	default:
		return remoteBranch
	}
}
