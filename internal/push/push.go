// Package push uploads a stack of branches to Gerrit.
//
// Each branch of the stack is squashed into one commit,
// chained on the squashed commit of the branch before it,
// and the whole chain is sent to refs/for/ with a single git push.
package push

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.abhg.dev/gitcl/internal/changelist"
	"go.abhg.dev/gitcl/internal/git"
	"go.abhg.dev/gitcl/internal/reconcile"
	"go.abhg.dev/gitcl/internal/silog"
	"go.abhg.dev/gitcl/internal/stack"
	"go.abhg.dev/gitcl/internal/ui"
	"go.abhg.dev/gitcl/internal/upstream"
)

// GitRepository is the subset of git.Repository used to push.
type GitRepository interface {
	Push(ctx context.Context, req git.PushRequest) (string, error)
}

var _ GitRepository = (*git.Repository)(nil)

// Planner decides which branches to upload.
type Planner interface {
	Plan(ctx context.Context, branch string, opts stack.PlanOptions) (*stack.Plan, error)
}

var _ Planner = (*stack.Walker)(nil)

// Reconciler incorporates patchsets uploaded from elsewhere.
type Reconciler interface {
	Reconcile(ctx context.Context, cl *changelist.Changelist) (git.Hash, error)
}

var _ Reconciler = (*reconcile.Reconciler)(nil)

// Uploader uploads stacks.
type Uploader struct {
	repo       GitRepository
	planner    Planner
	reconciler Reconciler
	view       ui.View
	log        *silog.Logger
	traceRoot  string
}

// UploaderOptions configures an [Uploader].
type UploaderOptions struct {
	Planner Planner // required
	View    ui.View // required
	Log     *silog.Logger

	// Reconciler, if set, is consulted before uploading a single branch.
	Reconciler Reconciler

	// TraceRoot is the directory that holds git traces of pushes.
	// Pushes are not traced if empty.
	TraceRoot string
}

// NewUploader builds an uploader that pushes with repo.
func NewUploader(repo GitRepository, opts *UploaderOptions) *Uploader {
	log := opts.Log
	if log == nil {
		log = silog.Nop()
	}
	return &Uploader{
		repo:       repo,
		planner:    opts.Planner,
		reconciler: opts.Reconciler,
		view:       opts.View,
		log:        log,
		traceRoot:  opts.TraceRoot,
	}
}

// Request is a request to upload a branch and its stack.
type Request struct {
	Branch  string                    // required
	Options *changelist.UploadOptions // required

	// CustomBase uploads the change against this commit
	// instead of the computed parent.
	CustomBase string
}

// Change is one uploaded change.
type Change struct {
	Branch   string
	Issue    int
	Patchset int
	Commit   git.Hash // squashed commit pushed for the change
}

// Result reports the uploaded changes, root first.
type Result struct {
	Changes  []Change
	TraceDir string
}

type pending struct {
	cl *changelist.Changelist
	up *changelist.NewUpload
}

// Upload uploads req.Branch, and the branches below it in its stack
// that need to be uploaded with it.
//
// Branch state is updated only after the push succeeds.
func (u *Uploader) Upload(ctx context.Context, req *Request) (*Result, error) {
	opts := req.Options
	plan, err := u.planner.Plan(ctx, req.Branch, stack.PlanOptions{
		CherryPickStacked: opts.CherryPickStacked,
		Force:             opts.Force,
	})
	if err != nil {
		return nil, err
	}

	var uploads []pending
	if plan.CherryPickOnto != nil {
		uploads, err = u.prepareCherryPick(ctx, plan, opts)
	} else {
		uploads, err = u.prepareChain(ctx, plan, req)
	}
	if err != nil {
		return nil, err
	}

	last := uploads[len(uploads)-1]
	title, err := last.cl.UploadTitle(ctx, opts, len(uploads) > 1)
	if err != nil {
		return nil, err
	}
	refOpts, err := last.cl.RefSpecOptions(ctx, opts, last.up.Description, title)
	if err != nil {
		return nil, err
	}

	remote, remoteBranch, err := last.cl.RemoteBranch(ctx)
	if err != nil {
		return nil, err
	}
	target := upstream.TargetRef(remote, remoteBranch, opts.TargetBranch)
	if target == "" {
		return nil, fmt.Errorf("no target branch for %v on remote %v", remoteBranch, remote)
	}

	refspec := fmt.Sprintf("%v:refs/for/%v", last.up.CommitToPush, target)
	if len(refOpts) > 0 {
		refspec += "%" + strings.Join(refOpts, ",")
	}

	names := make([]string, len(uploads))
	for i, p := range uploads {
		names[i] = p.cl.Branch()
	}
	u.log.Info("Uploading", "branches", names, "target", target)

	output, traceDir, err := u.pushWithRetry(ctx, remote, refspec, opts.PushOptions)
	if err != nil {
		return nil, err
	}

	numbers := ParseChangeNumbers(output)
	if len(numbers) < len(uploads) {
		return nil, &Error{
			Kind:     ErrorMissingChanges,
			TraceDir: traceDir,
			Err:      fmt.Errorf("expected %d change numbers in push output, got %d", len(uploads), len(numbers)),
		}
	}

	res := Result{TraceDir: traceDir}
	for i, p := range uploads {
		if err := p.cl.PostUploadUpdates(ctx, opts, p.up, numbers[i]); err != nil {
			return nil, fmt.Errorf("update %v: %w", p.cl.Branch(), err)
		}
		res.Changes = append(res.Changes, Change{
			Branch:   p.cl.Branch(),
			Issue:    numbers[i],
			Patchset: p.up.PrevPatchset + 1,
			Commit:   p.up.CommitToPush,
		})
	}
	return &res, nil
}

func (u *Uploader) prepareCherryPick(ctx context.Context, plan *stack.Plan, opts *changelist.UploadOptions) ([]pending, error) {
	onto := plan.CherryPickOnto
	parent, err := onto.SquashHash(ctx)
	if err != nil {
		return nil, err
	}
	if parent == "" {
		return nil, &changelist.UpstreamNotUploadedError{Branch: onto.Branch()}
	}

	cl := plan.Branches[0]
	up, err := cl.PrepareCherryPickSquashedCommit(ctx, opts, parent)
	if err != nil {
		return nil, err
	}
	return []pending{{cl: cl, up: up}}, nil
}

// prepareChain squashes each branch of the plan, root first,
// on top of the squashed commit of the branch before it.
func (u *Uploader) prepareChain(ctx context.Context, plan *stack.Plan, req *Request) ([]pending, error) {
	opts := req.Options
	root := plan.Branches[0]

	var parent git.Hash
	if len(plan.Branches) == 1 && u.reconciler != nil && req.CustomBase == "" {
		p, err := u.reconciler.Reconcile(ctx, root)
		if err != nil {
			return nil, err
		}
		parent = p
	}
	if parent == "" {
		up, err := root.Upstream(ctx)
		if err != nil {
			return nil, err
		}
		parent, err = root.ComputeParent(ctx, changelist.ComputeParentRequest{
			Upstream:   up,
			CustomBase: req.CustomBase,
			Force:      opts.Force,
		})
		if err != nil {
			return nil, err
		}
	}

	origParent, err := root.CommonAncestor(ctx)
	if err != nil {
		return nil, err
	}

	uploads := make([]pending, 0, len(plan.Branches))
	for i, cl := range plan.Branches {
		// Everything up to the next branch's base belongs to this branch.
		var end git.Hash
		if i+1 < len(plan.Branches) {
			end, err = plan.Branches[i+1].CommonAncestor(ctx)
			if err != nil {
				return nil, err
			}
		}

		up, err := cl.PrepareSquashedCommit(ctx, opts, parent, origParent, end)
		if err != nil {
			return nil, fmt.Errorf("prepare %v: %w", cl.Branch(), err)
		}
		uploads = append(uploads, pending{cl: cl, up: up})
		parent, origParent = up.CommitToPush, end
	}
	return uploads, nil
}

// pushWithRetry pushes, offering to skip the banned word check
// if the server rejects the push for one.
func (u *Uploader) pushWithRetry(ctx context.Context, remote, refspec string, options []string) (output, traceDir string, err error) {
	options = slices.Clone(options)
	for {
		output, traceDir, err = u.push(ctx, remote, refspec, options)
		if err == nil || !IsBannedWord(err) || slices.Contains(options, BannedWordsSkip) {
			return output, traceDir, err
		}

		retry, perr := ui.Confirm(u.view,
			"The push was rejected for a blocked keyword. Retry with -o "+BannedWordsSkip+"?",
			"Answer yes only if the keyword is a false positive.", false)
		if perr != nil && !errors.Is(perr, ui.ErrPrompt) {
			return "", "", perr
		}
		if !retry {
			return output, traceDir, err
		}
		options = append(options, BannedWordsSkip)
	}
}

func (u *Uploader) push(ctx context.Context, remote, refspec string, options []string) (output, traceDir string, err error) {
	req := git.PushRequest{
		Remote:   remote,
		Refspecs: []string{refspec},
		Options:  options,
		Progress: u.view,
	}
	if u.traceRoot != "" {
		dir, env, err := traceEnv(u.traceRoot)
		if err != nil {
			u.log.Warn("Pushing without traces", "error", err)
		} else {
			traceDir, req.Env = dir, env
		}
	}

	u.log.Debug("git push", "remote", remote, "refspec", refspec, "options", options)
	output, err = u.repo.Push(ctx, req)
	if err != nil {
		return output, traceDir, classify(output, traceDir, err)
	}
	return output, traceDir, nil
}
