// Package reconcile brings patchsets uploaded to a change from elsewhere,
// e.g. from the Gerrit web editor or another machine,
// into the local branch before a new upload would override them.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"go.abhg.dev/gitcl/internal/changelist"
	"go.abhg.dev/gitcl/internal/gerrit"
	"go.abhg.dev/gitcl/internal/git"
	"go.abhg.dev/gitcl/internal/silog"
	"go.abhg.dev/gitcl/internal/ui"
)

// GitRepository is the subset of git.Repository used to reconcile changes.
type GitRepository interface {
	PeelToCommit(ctx context.Context, ref string) (git.Hash, error)
	Fetch(ctx context.Context, remote, ref string) (git.Hash, error)
	Diff(ctx context.Context, from, to git.Hash) (string, error)
	ApplyCheck(ctx context.Context, patch string) bool
	ApplyThreeWay(ctx context.Context, patch string) error
	CommitAll(ctx context.Context, message string) error
}

var _ GitRepository = (*git.Repository)(nil)

// ConflictError indicates that external patchsets
// could not be applied cleanly to the branch.
type ConflictError struct {
	Branch   string
	Patchset int // latest external patchset
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("patch did not apply cleanly to %v", e.Branch)
}

// Hint suggests how to resolve the error.
func (e *ConflictError) Hint() string {
	return "Please resolve any conflicts and reupload."
}

// _trivialKinds are patchset kinds that do not change code.
var _trivialKinds = map[string]bool{
	gerrit.KindNoChange:     true,
	gerrit.KindNoCodeChange: true,
}

// Reconciler applies external patchsets to local branches.
type Reconciler struct {
	repo GitRepository
	view ui.View
	log  *silog.Logger
}

// New builds a reconciler.
func New(repo GitRepository, view ui.View, log *silog.Logger) *Reconciler {
	if log == nil {
		log = silog.Nop()
	}
	return &Reconciler{repo: repo, view: view, log: log}
}

// Reconcile applies patchsets uploaded after the last local upload
// of cl on top of the branch, if the user agrees.
//
// It returns the parent the change was last uploaded against
// if the external changes were incorporated or were empty,
// and an empty hash if the upload should proceed without them.
// Patchsets that only rebase the change are ignored.
func (r *Reconciler) Reconcile(ctx context.Context, cl *changelist.Changelist) (git.Hash, error) {
	localPS, err := cl.Patchset(ctx)
	if err != nil || localPS == 0 {
		return "", err
	}

	change, err := cl.Detail(ctx, gerrit.OptionAllRevisions, gerrit.OptionAllCommits)
	if err != nil {
		return "", err
	}
	external, ok := change.Current()
	if !ok {
		return "", fmt.Errorf("change %d: no current revision", change.Number())
	}
	externalPS := external.Number
	if externalPS <= localPS || !significant(change, localPS, externalPS) {
		return "", nil
	}

	// The patch is applied to the working tree and committed to HEAD.
	if err := cl.EnsureCheckedOut(ctx, "reconciling"); err != nil {
		return "", err
	}

	issueURL, err := cl.IssueURL(ctx)
	if err != nil {
		return "", err
	}
	r.printSummary(change, issueURL, localPS, externalPS)

	apply, err := ui.Confirm(r.view, "Get the latest changes and apply on top?", "", false)
	if err != nil || !apply {
		return "", err
	}

	if len(external.Parents) == 0 {
		return "", fmt.Errorf("patchset %d has no parent", externalPS)
	}
	externalBase := git.Hash(external.Parents[0])

	localBase, err := cl.CommonAncestor(ctx)
	if err != nil {
		return "", err
	}
	if localBase != externalBase {
		r.log.Warnf("Local merge base %v is different from Gerrit %v.", localBase.Short(), externalBase.Short())
		return "", r.confirmOverride()
	}

	local, ok := change.RevisionByNumber(localPS)
	if !ok {
		return "", fmt.Errorf("change %d: patchset %d not found", change.Number(), localPS)
	}
	if len(local.Parents) == 0 || git.Hash(local.Parents[0]) != externalBase {
		r.log.Warn("Patch set merge bases are different.")
		return "", r.confirmOverride()
	}

	remote, _, err := cl.RemoteBranch(ctx)
	if err != nil {
		return "", err
	}
	localCommit, err := r.fetchPatchset(ctx, remote, change.Number(), localPS)
	if err != nil {
		return "", err
	}
	externalCommit, err := r.fetchPatchset(ctx, remote, change.Number(), externalPS)
	if err != nil {
		return "", err
	}

	localParent, err := r.repo.PeelToCommit(ctx, localCommit.String()+"~1")
	if err != nil {
		return "", err
	}
	externalParent, err := r.repo.PeelToCommit(ctx, externalCommit.String()+"~1")
	if err != nil {
		return "", err
	}
	if localParent != externalParent {
		r.log.Warn("Patch set merge bases are different.")
		return "", r.confirmOverride()
	}

	patch, err := r.repo.Diff(ctx, localCommit, externalCommit)
	if err != nil {
		return "", fmt.Errorf("diff patchsets %d and %d: %w", localPS, externalPS, err)
	}
	if patch == "" {
		r.log.Info("No code changes. Proceeding with upload.")
		return externalBase, nil
	}

	clean := r.repo.ApplyCheck(ctx, patch)
	if err := r.repo.ApplyThreeWay(ctx, patch); err != nil || !clean {
		if err != nil {
			r.log.Debug("Three-way apply failed", "error", err)
		}
		// Retrying must not offer the same patchsets again.
		if err := cl.SetPatchset(ctx, externalPS); err != nil {
			return "", err
		}
		return "", &ConflictError{Branch: cl.Branch(), Patchset: externalPS}
	}

	msg := fmt.Sprintf("Incorporate external changes from patchset %d", externalPS)
	if externalPS-localPS > 1 {
		msg = fmt.Sprintf("Incorporate external changes from patchsets %d to %d", localPS+1, externalPS)
	}
	if err := r.repo.CommitAll(ctx, msg); err != nil {
		return "", fmt.Errorf("commit external changes: %w", err)
	}
	r.log.Info(msg)
	return externalBase, nil
}

// significant reports whether any patchset after localPS up to externalPS
// changes code.
func significant(change *gerrit.Change, localPS, externalPS int) bool {
	for ps := localPS + 1; ps <= externalPS; ps++ {
		rev, ok := change.RevisionByNumber(ps)
		if !ok || !_trivialKinds[rev.Kind] {
			return true
		}
	}
	return false
}

func (r *Reconciler) printSummary(change *gerrit.Change, issueURL string, localPS, externalPS int) {
	n := externalPS - localPS
	noun := "patchset"
	if n > 1 {
		noun = "patchsets"
	}
	fmt.Fprintf(r.view, "%d external %v published to %v:\n\n", n, noun, issueURL)
	for ps := externalPS; ps > localPS; ps-- {
		rev, _ := change.RevisionByNumber(ps)
		created := "unknown"
		if !rev.Created.IsZero() {
			created = rev.Created.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(r.view, "Patchset %d [%v] %v\n", ps, created, rev.Title)
	}
	fmt.Fprintf(r.view, "\nSee diff at: %v/%d..%d\n", issueURL, localPS, externalPS)
	fmt.Fprintln(r.view, "Uploading without applying patches will override them.")
}

func (r *Reconciler) confirmOverride() error {
	err := ui.ConfirmOrAbort(r.view,
		"Can't apply the latest changes from Gerrit. Continue with upload and override the latest changes?",
		"use --force to override them")
	if errors.Is(err, ui.ErrAborted) {
		return fmt.Errorf("external changes not applied: %w", err)
	}
	return err
}

func (r *Reconciler) fetchPatchset(ctx context.Context, remote string, issue, ps int) (git.Hash, error) {
	ref := fmt.Sprintf("refs/changes/%02d/%d/%d", issue%100, issue, ps)
	h, err := r.repo.Fetch(ctx, remote, ref)
	if err != nil {
		return "", fmt.Errorf("fetch patchset %d: %w", ps, err)
	}
	return h, nil
}
