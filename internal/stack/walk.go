package stack

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.abhg.dev/gitcl/internal/changelist"
	"go.abhg.dev/gitcl/internal/git"
	"go.abhg.dev/gitcl/internal/silog"
	"go.abhg.dev/gitcl/internal/ui"
	"go.abhg.dev/gitcl/internal/upstream"
)

// MaxBranches is the largest stack uploaded at once.
const MaxBranches = 20

// ErrTooManyBranches indicates that the walk found
// more than [MaxBranches] branches to upload.
var ErrTooManyBranches = fmt.Errorf("more than %d branches in the stack have not been uploaded", MaxBranches)

// NothingToCommitError indicates that the current branch
// has no commits over its upstream.
type NothingToCommitError struct {
	Branch string
}

func (e *NothingToCommitError) Error() string {
	return fmt.Sprintf("branch %v has nothing to commit", e.Branch)
}

// DivergedError indicates that a branch is not based on
// the last upload of its upstream.
type DivergedError struct {
	Branch   string
	Upstream string
	State    State // AheadDiverged or Unrelated
}

func (e *DivergedError) Error() string {
	if e.State == Unrelated {
		return fmt.Sprintf("branch %v shares no history with the last upload of %v", e.Branch, e.Upstream)
	}
	return fmt.Sprintf("branch %v has diverged from its upstream %v "+
		"and does not contain its upstream's last upload", e.Branch, e.Upstream)
}

// Hint suggests how to resolve the error.
func (e *DivergedError) Hint() string {
	return "Please rebase the stack with `git rebase-update` before uploading."
}

// GitRepository is the subset of git.Repository used by the walker.
type GitRepository interface {
	IsAncestor(ctx context.Context, a, b git.Hash) bool
	CountCommits(ctx context.Context, start, stop git.Hash) (int, error)
}

var _ GitRepository = (*git.Repository)(nil)

// Walker discovers stacks.
type Walker struct {
	repo GitRepository
	view ui.View
	log  *silog.Logger
	open func(branch string) *changelist.Changelist

	handles map[string]*changelist.Changelist
}

// WalkerOptions configures a [Walker].
type WalkerOptions struct {
	View ui.View // required
	Log  *silog.Logger

	// Open builds the handle for a branch.
	Open func(branch string) *changelist.Changelist // required
}

// NewWalker builds a walker.
// Each branch is opened at most once per walker.
func NewWalker(repo GitRepository, opts *WalkerOptions) *Walker {
	log := opts.Log
	if log == nil {
		log = silog.Nop()
	}
	return &Walker{
		repo:    repo,
		view:    opts.View,
		log:     log,
		open:    opts.Open,
		handles: make(map[string]*changelist.Changelist),
	}
}

// Changelist returns the handle for branch.
func (w *Walker) Changelist(branch string) *changelist.Changelist {
	cl, ok := w.handles[branch]
	if !ok {
		cl = w.open(branch)
		w.handles[branch] = cl
	}
	return cl
}

// Result is a discovered stack.
type Result struct {
	// Branches of the stack, child first.
	// The first entry is always the starting branch.
	Branches []*changelist.Changelist

	// MustUploadUpstream is set if an upstream in the stack
	// was never uploaded.
	MustUploadUpstream bool
}

// Walk follows the upstreams of branch and collects
// the branches that must be uploaded with it.
//
// Branches without commits over their upstream are skipped,
// except for branch itself, which fails with [NothingToCommitError].
func (w *Walker) Walk(ctx context.Context, branch string) (*Result, error) {
	var res Result
	cl := w.Changelist(branch)
	seen := make(map[string]struct{})
	for first := true; ; first = false {
		if _, ok := seen[cl.Branch()]; ok {
			return nil, fmt.Errorf("upstream of %v forms a cycle", cl.Branch())
		}
		seen[cl.Branch()] = struct{}{}

		base, err := cl.CommonAncestor(ctx)
		if err != nil {
			return nil, err
		}
		tip, err := cl.Tip(ctx)
		if err != nil {
			return nil, err
		}
		n, err := w.repo.CountCommits(ctx, base, tip)
		if err != nil {
			return nil, fmt.Errorf("count commits of %v: %w", cl.Branch(), err)
		}

		switch {
		case n > 0:
			res.Branches = append(res.Branches, cl)
			if len(res.Branches) > MaxBranches {
				return nil, ErrTooManyBranches
			}
			if !first {
				squash, err := cl.SquashHash(ctx)
				if err != nil {
					return nil, err
				}
				if squash == "" {
					res.MustUploadUpstream = true
				}
			}
		case first:
			return nil, &NothingToCommitError{Branch: cl.Branch()}
		}

		state, next, err := w.step(ctx, cl, base)
		if err != nil {
			return nil, err
		}
		w.log.Debug("Stack walk", "branch", cl.Branch(), "state", state)

		switch {
		case state.Fatal():
			return nil, &DivergedError{Branch: cl.Branch(), Upstream: next.Branch(), State: state}
		case !state.Continues():
			return &res, nil
		}
		cl = next
	}
}

// step gathers the facts for one branch and decides the transition.
// next is the upstream handle, nil if the upstream is not local.
func (w *Walker) step(ctx context.Context, cl *changelist.Changelist, base git.Hash) (_ State, next *changelist.Changelist, _ error) {
	up, err := cl.Upstream(ctx)
	if err != nil {
		return 0, nil, err
	}

	f := Facts{LocalUpstream: up.IsLocal()}
	if !f.LocalUpstream {
		return Transition(f), nil, nil
	}

	next = w.Changelist(up.BranchName())
	if up.IsTrunk() {
		// A local trunk is part of the stack only if it tracks something.
		if _, err := next.Upstream(ctx); err != nil {
			var noUp *upstream.NoUpstreamError
			if !errors.As(err, &noUp) {
				return 0, nil, err
			}
			return Transition(Facts{}), nil, nil
		}
	}

	lastUpload, err := next.LastUploadHash(ctx)
	if err != nil {
		return 0, nil, err
	}
	f.UpstreamUploaded = lastUpload != ""
	if f.UpstreamUploaded {
		f.BaseIsLastUpload = base == lastUpload
		f.LastUploadBeforeBase = !f.BaseIsLastUpload && w.repo.IsAncestor(ctx, lastUpload, base)
		f.BaseBeforeLastUpload = !f.BaseIsLastUpload && !f.LastUploadBeforeBase &&
			w.repo.IsAncestor(ctx, base, lastUpload)
	}
	return Transition(f), next, nil
}

// PlanOptions are the user's choices for [Walker.Plan].
type PlanOptions struct {
	// CherryPickStacked uploads only the current branch
	// on top of its upstream's last upload.
	CherryPickStacked bool

	// Force skips confirmation.
	Force bool
}

// Plan is what to upload.
type Plan struct {
	// Branches to upload, root first.
	Branches []*changelist.Changelist

	// CherryPickOnto is set when only the current branch is uploaded,
	// cherry-picked onto the last upload of this upstream.
	CherryPickOnto *changelist.Changelist
}

// ErrUpstreamNotUploaded indicates that cherry-picking was requested
// but an upstream was never uploaded.
var ErrUpstreamNotUploaded = errors.New("cannot cherry-pick on an upstream that was never uploaded")

// Plan walks the stack of branch and asks the user
// whether to upload all of it or only the current branch.
func (w *Walker) Plan(ctx context.Context, branch string, opts PlanOptions) (*Plan, error) {
	res, err := w.Walk(ctx, branch)
	if err != nil {
		return nil, err
	}

	current := res.Branches[0]
	ordered := slices.Clone(res.Branches)
	slices.Reverse(ordered)
	whole := &Plan{Branches: ordered}
	if len(ordered) == 1 {
		return whole, nil
	}

	names := make([]string, len(ordered))
	for i, cl := range ordered {
		names[i] = cl.Branch()
	}
	stackNames := strings.Join(names, " ")
	upstream := res.Branches[1]
	cherryPick := &Plan{
		Branches:       []*changelist.Changelist{current},
		CherryPickOnto: upstream,
	}

	if res.MustUploadUpstream {
		msg := fmt.Sprintf("At least one parent branch in `%v` has never been uploaded "+
			"and must be uploaded before/with `%v`.", stackNames, current.Branch())
		if opts.CherryPickStacked {
			w.log.Error(msg)
			return nil, ErrUpstreamNotUploaded
		}
		if !opts.Force {
			if err := ui.ConfirmOrAbort(w.view, msg+" Upload them all?", "use --force to upload the whole stack"); err != nil {
				return nil, err
			}
		}
		return whole, nil
	}

	if opts.CherryPickStacked {
		w.log.Infof("Cherry-picking `%v` on %v's last upload", current.Branch(), upstream.Branch())
		return cherryPick, nil
	}
	if opts.Force {
		return whole, nil
	}

	all, err := ui.Confirm(w.view,
		fmt.Sprintf("Update branches %v?", stackNames),
		fmt.Sprintf("Answer no to upload only `%v` cherry-picked on %v's last upload.",
			current.Branch(), upstream.Branch()),
		true)
	if err != nil {
		if errors.Is(err, ui.ErrPrompt) {
			return whole, nil
		}
		return nil, err
	}
	if !all {
		return cherryPick, nil
	}
	return whole, nil
}
