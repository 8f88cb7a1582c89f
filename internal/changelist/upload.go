package changelist

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.abhg.dev/gitcl/internal/description"
	"go.abhg.dev/gitcl/internal/gerrit"
	"go.abhg.dev/gitcl/internal/git"
	"go.abhg.dev/gitcl/internal/presubmit"
	"go.abhg.dev/gitcl/internal/ui"
	"go.abhg.dev/gitcl/internal/upstream"
)

// UploadOptions are the user's choices for an upload.
type UploadOptions struct {
	// Title of the new patchset.
	Title string

	// SkipTitle uses the default patchset title without asking.
	SkipTitle bool

	// Message is the description for a new change.
	Message string

	// CommitDescription replaces the description outright.
	// "+" uses the commit messages of the branch.
	CommitDescription string

	// EditDescription opens the description of an existing change
	// in an editor.
	EditDescription bool

	Reviewers []string
	TBRs      []string
	CCs       []string

	// NoAutoCC skips the default CC list on new changes.
	NoAutoCC bool

	// Bug and Fixed are comma-separated bug lists
	// for new descriptions.
	Bug, Fixed string

	// SendMail marks the change ready for review and notifies reviewers.
	SendMail bool

	Private  bool
	Topic    string
	Hashtags []string

	// CommitQueue votes Commit-Queue+2. CQDryRun votes +1.
	CommitQueue      bool
	CQDryRun         bool
	EnableAutoSubmit bool
	SetBotCommit     bool
	OwnersOverride   bool

	// PreserveTryjobs asks the commit queue to keep running tryjobs.
	PreserveTryjobs bool

	// CherryPickStacked uploads only the current branch,
	// cherry-picked on the last upload of its upstream.
	CherryPickStacked bool

	// TargetBranch overrides the branch the change is for.
	TargetBranch string

	// Force answers yes to all prompts.
	Force bool

	// BypassHooks skips presubmit checks.
	BypassHooks bool

	// PushOptions are passed to git push with -o.
	PushOptions []string
}

// NewUpload is a squashed commit prepared for upload.
type NewUpload struct {
	Reviewers []string
	CCs       []string

	// CommitToPush is the squashed commit to push.
	CommitToPush git.Hash

	// NewLastUploaded is the branch commit the upload corresponds to.
	NewLastUploaded git.Hash

	// Parent is the parent of CommitToPush.
	Parent git.Hash

	Description *description.Description

	// PrevPatchset is the current patchset on the server before upload,
	// or 0 for new changes.
	PrevPatchset int
}

// CherryPickConflictError indicates that the squashed change
// could not be cherry-picked onto its parent.
type CherryPickConflictError struct {
	Branch string
	Parent git.Hash
	Err    error
}

func (e *CherryPickConflictError) Error() string {
	return fmt.Sprintf("could not cleanly cherry-pick %v onto %v: %v", e.Branch, e.Parent.Short(), e.Err)
}

func (e *CherryPickConflictError) Unwrap() error { return e.Err }

// UpstreamNotUploadedError indicates that a local upstream branch
// must be uploaded before its children.
type UpstreamNotUploadedError struct {
	Branch string
}

func (e *UpstreamNotUploadedError) Error() string {
	return fmt.Sprintf("upload upstream branch %v first", e.Branch)
}

// Hint suggests how to resolve the error.
func (e *UpstreamNotUploadedError) Hint() string {
	return "It is likely that this branch has been rebased since its last upload, " +
		"so you just need to upload it again."
}

// NotCheckedOutError indicates that an operation which modifies
// the working tree was requested for a branch that is not checked out.
type NotCheckedOutError struct {
	Branch  string
	Current string // empty if HEAD is detached
	Op      string // e.g. "cherry-picking"
}

func (e *NotCheckedOutError) Error() string {
	current := e.Current
	if current == "" {
		current = "a detached HEAD"
	}
	return fmt.Sprintf("%v %v requires it to be checked out, but the current branch is %v", e.Op, e.Branch, current)
}

// Hint suggests how to resolve the error.
func (e *NotCheckedOutError) Hint() string {
	return fmt.Sprintf("Run 'git checkout %v' and try again.", e.Branch)
}

// EnsureCheckedOut fails with [NotCheckedOutError]
// unless the branch is the current branch.
// op names the operation for the error message.
func (cl *Changelist) EnsureCheckedOut(ctx context.Context, op string) error {
	current, err := cl.svc.Repo.CurrentBranch(ctx)
	if err != nil && !errors.Is(err, git.ErrDetachedHead) {
		return err
	}
	if current != cl.branch {
		return &NotCheckedOutError{Branch: cl.branch, Current: current, Op: op}
	}
	return nil
}

// ComputeParentRequest is a request to [Changelist.ComputeParent].
type ComputeParentRequest struct {
	Upstream upstream.Upstream

	// CustomBase is a commit the user wants to upload against.
	CustomBase string

	Force bool
}

// ComputeParent picks the commit the squashed change is based on.
//
// Changes based on a remote branch or a trunk branch use the merge base.
// Changes based on another local branch use that branch's squashed commit,
// which must match the current tree of that branch.
// Local upstreams that were never uploaded and have no commits of their own
// are skipped in favor of their upstreams.
// If only such branches lie between the branch and a remote or trunk branch,
// the merge base is used.
//
// ComputeParent has no effect on the repository.
func (cl *Changelist) ComputeParent(ctx context.Context, req ComputeParentRequest) (git.Hash, error) {
	if req.CustomBase != "" {
		return cl.customParent(ctx, req.CustomBase, req.Force)
	}

	up := req.Upstream
	seen := map[string]struct{}{cl.branch: {}}
	for up.IsLocal() && !up.IsTrunk() {
		name := up.BranchName()
		squash, err := cl.svc.Store.SquashHash(ctx, name)
		if err != nil {
			return "", err
		}
		if squash != "" {
			return cl.upstreamSquash(ctx, name, up, squash)
		}

		if empty, err := cl.isEmptyBranch(ctx, name); err != nil {
			return "", err
		} else if !empty {
			return "", &UpstreamNotUploadedError{Branch: name}
		}

		if _, ok := seen[name]; ok {
			return "", fmt.Errorf("upstream of %v forms a cycle", name)
		}
		seen[name] = struct{}{}

		cl.log.Debug("Skipping empty upstream", "branch", name)
		up, err = cl.svc.Upstreams.Resolve(ctx, name)
		if err != nil {
			return "", err
		}
	}

	return cl.CommonAncestor(ctx)
}

// upstreamSquash verifies that the squashed commit of upstream branch name
// still matches that branch.
func (cl *Changelist) upstreamSquash(ctx context.Context, name string, up upstream.Upstream, squash git.Hash) (git.Hash, error) {
	upTree, err := cl.svc.Repo.PeelToTree(ctx, up.TrackingRef())
	if err != nil {
		return "", fmt.Errorf("upstream %v: %w", name, err)
	}
	squashTree, err := cl.svc.Repo.PeelToTree(ctx, squash.String())
	if err != nil {
		return "", fmt.Errorf("squashed commit of %v: %w", name, err)
	}
	if upTree != squashTree {
		return "", &UpstreamNotUploadedError{Branch: name}
	}
	return squash, nil
}

// isEmptyBranch reports whether branch has no commits over its upstream.
func (cl *Changelist) isEmptyBranch(ctx context.Context, branch string) (bool, error) {
	base, err := cl.svc.Upstreams.CommonAncestor(ctx, branch)
	if err != nil {
		return false, err
	}
	tip, err := cl.svc.Repo.PeelToCommit(ctx, "refs/heads/"+branch)
	if err != nil {
		return false, fmt.Errorf("branch %v: %w", branch, err)
	}
	return base == tip, nil
}

func (cl *Changelist) customParent(ctx context.Context, base string, force bool) (git.Hash, error) {
	parent, err := cl.svc.Repo.PeelToCommit(ctx, base)
	if err != nil {
		return "", fmt.Errorf("base %v: %w", base, err)
	}

	_, ref, err := cl.RemoteBranch(ctx)
	if err != nil {
		return "", err
	}
	if refHash, err := cl.svc.Repo.PeelToCommit(ctx, ref); err == nil && cl.svc.Repo.IsAncestor(ctx, parent, refHash) {
		return parent, nil
	}

	cl.log.Warnf("Manually specified base of this change (%v) is not an ancestor of the remote branch %v.", base, ref)
	if force {
		return parent, nil
	}
	err = ui.ConfirmOrAbort(cl.svc.View,
		"Do you take responsibility for cleaning up potential mess resulting from proceeding with upload?",
		"use --force to skip this check")
	if err != nil {
		return "", err
	}
	return parent, nil
}

// PrepareSquashedCommit squashes the branch between origParent and end
// into one commit on top of parent.
//
// parent and origParent differ when the upstream was squashed:
// parent is then the upstream's squashed commit,
// and origParent the upstream commit it stands for.
// If end is empty, the branch tip is used.
func (cl *Changelist) PrepareSquashedCommit(ctx context.Context, opts *UploadOptions, parent, origParent, end git.Hash) (*NewUpload, error) {
	if end == "" {
		tip, err := cl.Tip(ctx)
		if err != nil {
			return nil, err
		}
		end = tip
	}

	reviewers, ccs, desc, err := cl.prepareChange(ctx, opts, origParent, end)
	if err != nil {
		return nil, err
	}

	tree, err := cl.svc.Repo.PeelToTree(ctx, end.String())
	if err != nil {
		return nil, err
	}
	commit, err := cl.svc.Repo.CommitTree(ctx, git.CommitTreeRequest{
		Tree:    tree,
		Parents: []git.Hash{parent},
		Message: desc.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("squash %v: %w", cl.branch, err)
	}

	prev, err := cl.MostRecentPatchset(ctx, false)
	if err != nil {
		return nil, err
	}

	return &NewUpload{
		Reviewers:       reviewers,
		CCs:             ccs,
		CommitToPush:    commit,
		NewLastUploaded: end,
		Parent:          parent,
		Description:     desc,
		PrevPatchset:    prev,
	}, nil
}

// PrepareCherryPickSquashedCommit squashes the branch against its merge base
// and cherry-picks the result onto parent.
//
// The branch must be checked out.
// It is checked out again when this returns, even on failure.
func (cl *Changelist) PrepareCherryPickSquashedCommit(ctx context.Context, opts *UploadOptions, parent git.Hash) (_ *NewUpload, err error) {
	if err := cl.EnsureCheckedOut(ctx, "cherry-picking"); err != nil {
		return nil, err
	}

	base, err := cl.CommonAncestor(ctx)
	if err != nil {
		return nil, err
	}
	tip, err := cl.Tip(ctx)
	if err != nil {
		return nil, err
	}

	reviewers, ccs, desc, err := cl.prepareChange(ctx, opts, base, tip)
	if err != nil {
		return nil, err
	}

	tree, err := cl.svc.Repo.PeelToTree(ctx, tip.String())
	if err != nil {
		return nil, err
	}
	squashed, err := cl.svc.Repo.CommitTree(ctx, git.CommitTreeRequest{
		Tree:    tree,
		Parents: []git.Hash{base},
		Message: desc.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("squash %v: %w", cl.branch, err)
	}

	if err := cl.svc.Repo.Checkout(ctx, parent.String()); err != nil {
		return nil, fmt.Errorf("checkout %v: %w", parent.Short(), err)
	}
	defer func() {
		if cerr := cl.svc.Repo.Checkout(ctx, cl.branch); cerr != nil {
			err = errors.Join(err, fmt.Errorf("checkout %v: %w", cl.branch, cerr))
		}
	}()

	if err := cl.svc.Repo.CherryPick(ctx, squashed); err != nil {
		if aerr := cl.svc.Repo.CherryPickAbort(ctx); aerr != nil {
			cl.log.Warn("Could not abort cherry-pick", "error", aerr)
		}
		return nil, &CherryPickConflictError{Branch: cl.branch, Parent: parent, Err: err}
	}

	picked, err := cl.svc.Repo.PeelToCommit(ctx, "HEAD")
	if err != nil {
		return nil, err
	}

	prev, err := cl.MostRecentPatchset(ctx, false)
	if err != nil {
		return nil, err
	}

	return &NewUpload{
		Reviewers:       reviewers,
		CCs:             ccs,
		CommitToPush:    picked,
		NewLastUploaded: tip,
		Parent:          parent,
		Description:     desc,
		PrevPatchset:    prev,
	}, nil
}

// prepareChange builds the description, reviewers and CCs
// for the commits between parent and end.
func (cl *Changelist) prepareChange(
	ctx context.Context,
	opts *UploadOptions,
	parent, end git.Hash,
) (reviewers, ccs []string, desc *description.Description, err error) {
	if err := cl.EnsureCanUploadPatchset(ctx, opts.Force); err != nil {
		return nil, nil, nil, err
	}
	issue, err := cl.Issue(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	files, err := cl.svc.Repo.DiffNames(ctx, parent, end)
	if err != nil {
		return nil, nil, nil, err
	}

	desc, err = cl.descriptionForUpload(ctx, opts, issue, parent, end)
	if err != nil {
		return nil, nil, nil, err
	}

	if cl.svc.Presubmit != nil && !opts.BypassHooks {
		if err := cl.runPresubmit(ctx, opts, parent, end, desc, files); err != nil {
			return nil, nil, nil, err
		}
	}

	if issue != 0 {
		if opts.EditDescription {
			if err := cl.promptDescription(ctx, desc); err != nil {
				return nil, nil, nil, err
			}
		}
		change, err := cl.Detail(ctx, gerrit.OptionCurrentRevision)
		if err != nil {
			return nil, nil, nil, err
		}
		desc.EnsureChangeID(change.ChangeID())
	} else {
		if !opts.Force && opts.Message == "" && opts.CommitDescription == "" {
			if err := cl.promptDescription(ctx, desc); err != nil {
				return nil, nil, nil, err
			}
		}
		if ids := desc.ChangeIDs(); len(ids) != 1 {
			id, err := cl.GenerateChangeID(ctx, desc.String())
			if err != nil {
				return nil, nil, nil, err
			}
			desc.EnsureChangeID(id)
		}
	}

	if opts.PreserveTryjobs {
		desc.SetPreserveTryjobs()
	}

	if cl.svc.Backup != nil {
		if err := cl.svc.Backup.Save(desc.String()); err != nil {
			cl.log.Warn("Could not back up description", "error", err)
		}
	}

	if issue == 0 && !opts.Private && !opts.NoAutoCC {
		ccs = append(ccs, cl.svc.DefaultCCs...)
		ccs = append(ccs, cl.moreCCs...)
	}
	ccs = append(ccs, opts.CCs...)
	ccs = append(ccs, desc.CCs()...)
	ccs = slices.Compact(description.CleanupList(ccs))

	return desc.Reviewers(false), ccs, desc, nil
}

func (cl *Changelist) descriptionForUpload(
	ctx context.Context,
	opts *UploadOptions,
	issue int,
	parent, end git.Hash,
) (*description.Description, error) {
	var text string
	switch {
	case opts.CommitDescription == "+":
		msgs, err := cl.svc.Repo.LogMessages(ctx, parent, end)
		if err != nil {
			return nil, err
		}
		text = msgs

	case opts.CommitDescription != "":
		text = opts.CommitDescription

	case issue != 0:
		d, err := cl.Description(ctx)
		if err != nil {
			return nil, err
		}
		text = d

	case opts.Message != "":
		text = opts.Message

	default:
		msgs, err := cl.svc.Repo.LogMessages(ctx, parent, end)
		if err != nil {
			return nil, err
		}
		text = msgs
		if opts.Title != "" {
			text = opts.Title + "\n\n" + text
		}
	}

	bugs := description.BugOptions{
		Prefix: cl.svc.BugPrefix,
		Bug:    opts.Bug,
		Fixed:  opts.Fixed,
	}
	if issue == 0 && bugs.Bug == "" && bugs.Fixed == "" {
		bugs.Bug, bugs.Fixed = description.BugFromBranch(cl.branch)
	}

	desc := description.NewWithBugs(text, bugs)
	if len(opts.Reviewers) > 0 {
		desc.UpdateReviewers(opts.Reviewers)
	}
	if len(opts.TBRs) > 0 {
		desc.AppendFooter("TBR=" + strings.Join(opts.TBRs, ","))
	}
	return desc, nil
}

func (cl *Changelist) promptDescription(ctx context.Context, desc *description.Description) error {
	if cl.svc.Edit == nil {
		return nil
	}
	return desc.Prompt(ctx, cl.svc.Edit, cl.svc.BugPrefix)
}

func (cl *Changelist) runPresubmit(
	ctx context.Context,
	opts *UploadOptions,
	parent, end git.Hash,
	desc *description.Description,
	files []string,
) error {
	res, err := cl.svc.Presubmit.Run(ctx, presubmit.Request{
		Upstream:    parent,
		EndCommit:   end,
		Description: desc.String(),
		Files:       files,
	})
	if err != nil {
		return fmt.Errorf("run presubmit: %w", err)
	}

	for _, msg := range res.Notifications {
		cl.log.Info(msg)
	}
	for _, msg := range res.Warnings {
		cl.log.Warn(msg)
	}
	if res.Failed() {
		return &presubmit.Error{Messages: res.Errors}
	}
	if len(res.Warnings) > 0 && !opts.Force {
		err := ui.ConfirmOrAbort(cl.svc.View,
			"There were presubmit warnings. Are you sure you wish to continue?",
			"use --force to ignore warnings")
		if err != nil {
			return err
		}
	}

	cl.ExtendCC(res.MoreCC...)
	return nil
}

// GenerateChangeID derives a Change-Id for a new change
// the same way Gerrit's commit-msg hook does:
// by hashing a commit object made of the index tree,
// HEAD, the author and committer identities, and the message.
func (cl *Changelist) GenerateChangeID(ctx context.Context, message string) (string, error) {
	tree, err := cl.svc.Repo.WriteTree(ctx)
	if err != nil {
		return "", fmt.Errorf("write tree: %w", err)
	}

	lines := []string{"tree " + tree.String()}
	if head, err := cl.svc.Repo.PeelToCommit(ctx, "HEAD"); err == nil {
		lines = append(lines, "parent "+head.String())
	}
	for _, ident := range []struct{ label, name string }{
		{"author", "GIT_AUTHOR_IDENT"},
		{"committer", "GIT_COMMITTER_IDENT"},
	} {
		v, err := cl.svc.Repo.Var(ctx, ident.name)
		if err != nil {
			return "", fmt.Errorf("read %v: %w", ident.label, err)
		}
		lines = append(lines, ident.label+" "+v)
	}
	lines = append(lines, "", message)

	h, err := cl.svc.Repo.HashObject(ctx, "commit", strings.Join(lines, "\n"))
	if err != nil {
		return "", fmt.Errorf("hash change: %w", err)
	}
	return "I" + h.String(), nil
}

// PostUploadUpdates records the result of a successful push
// and adds the reviewers of the upload to the change.
//
// issue is the change number Gerrit reported for the push.
func (cl *Changelist) PostUploadUpdates(ctx context.Context, opts *UploadOptions, up *NewUpload, issue int) error {
	current, err := cl.Issue(ctx)
	if err != nil {
		return err
	}
	if current == 0 {
		if err := cl.SetIssue(ctx, issue); err != nil {
			return err
		}
	}
	if err := cl.SetPatchset(ctx, up.PrevPatchset+1); err != nil {
		return err
	}
	if err := cl.svc.Store.SetSquashHash(ctx, cl.branch, up.CommitToPush); err != nil {
		return err
	}
	if err := cl.svc.Store.SetLastUploadHash(ctx, cl.branch, up.NewLastUploaded); err != nil {
		return err
	}

	if len(up.Reviewers) == 0 && len(up.CCs) == 0 {
		return nil
	}
	issue, err = cl.mustIssue(ctx)
	if err != nil {
		return err
	}
	if err := cl.svc.Gerrit.AddReviewers(ctx, fmt.Sprint(issue), up.Reviewers, up.CCs, opts.SendMail); err != nil {
		return fmt.Errorf("add reviewers to %d: %w", issue, err)
	}
	return nil
}
