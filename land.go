package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.abhg.dev/gitcl/internal/changelist"
	"go.abhg.dev/gitcl/internal/gerrit"
	"go.abhg.dev/gitcl/internal/git"
	"go.abhg.dev/gitcl/internal/presubmit"
	"go.abhg.dev/gitcl/internal/silog"
	"go.abhg.dev/gitcl/internal/stack"
	"go.abhg.dev/gitcl/internal/text"
	"go.abhg.dev/gitcl/internal/ui"
)

type landCmd struct {
	Force       bool `short:"f" help:"Submit without asking for confirmation"`
	BypassHooks bool `name:"bypass-hooks" help:"Skip presubmit checks"`

	Branch string `arg:"" optional:"" placeholder:"BRANCH" predictor:"branches" help:"Branch whose change to submit. Defaults to the current branch."`
}

func (*landCmd) Help() string {
	return text.Dedent(`
		Submits the change of the branch on Gerrit.

		The branch must match what was last uploaded:
		upload local commits before landing.
	`)
}

// StaleUploadError indicates that a branch differs
// from the patchset on Gerrit.
type StaleUploadError struct {
	Branch string
	Issue  int
	Reason string
}

func (e *StaleUploadError) Error() string {
	return fmt.Sprintf("branch %v does not match change %d: %v", e.Branch, e.Issue, e.Reason)
}

// Hint suggests uploading the branch.
func (e *StaleUploadError) Hint() string {
	return "Run 'git cl upload " + e.Branch + "' and try again."
}

func (cmd *landCmd) Run(
	ctx context.Context,
	log *silog.Logger,
	view ui.View,
	repo *git.Repository,
	walker *stack.Walker,
	svc *changelist.Services,
	client *gerrit.Client,
) error {
	cl, err := openChangelist(ctx, repo, walker, cmd.Branch)
	if err != nil {
		return err
	}
	issue, err := issueOf(ctx, cl)
	if err != nil {
		return err
	}

	change, err := cl.Detail(ctx,
		gerrit.OptionCurrentRevision,
		gerrit.OptionCurrentCommit,
		gerrit.OptionSubmittable,
	)
	if err != nil {
		return fmt.Errorf("change %d: %w", issue, err)
	}
	switch change.Status() {
	case gerrit.StatusMerged:
		return fmt.Errorf("change %d is already merged", issue)
	case gerrit.StatusAbandoned:
		return fmt.Errorf("change %d is abandoned", issue)
	}

	cur, ok := change.Current()
	if !ok {
		return fmt.Errorf("change %d: no current revision", issue)
	}
	if err := cmd.verifyUploaded(ctx, cl, issue, cur); err != nil {
		return err
	}

	if !cmd.BypassHooks && svc.Presubmit != nil {
		if err := runLandPresubmit(ctx, repo, svc.Presubmit, cl, cur); err != nil {
			return err
		}
	}

	url, err := cl.IssueURL(ctx)
	if err != nil {
		return err
	}
	if !cmd.Force {
		ok, err := ui.Confirm(view, fmt.Sprintf("Submit %v?", url), cur.Message, true)
		if err != nil && !errors.Is(err, ui.ErrPrompt) {
			return err
		}
		if err == nil && !ok {
			return ui.ErrAborted
		}
	}

	if err := client.SubmitChange(ctx, strconv.Itoa(issue)); err != nil {
		return fmt.Errorf("submit change %d: %w", issue, err)
	}
	log.Infof("Submitted %v", url)
	return nil
}

// verifyUploaded checks that the branch is what Gerrit has:
// the local tip was uploaded, and nobody uploaded after it.
func (cmd *landCmd) verifyUploaded(ctx context.Context, cl *changelist.Changelist, issue int, cur gerrit.Revision) error {
	squash, err := cl.SquashHash(ctx)
	if err != nil {
		return err
	}
	if squash == "" {
		return &StaleUploadError{Branch: cl.Branch(), Issue: issue, Reason: "it was never uploaded from here"}
	}
	if squash.String() != cur.Commit {
		return &StaleUploadError{
			Branch: cl.Branch(),
			Issue:  issue,
			Reason: fmt.Sprintf("the latest patchset %d was not uploaded from here", cur.Number),
		}
	}

	tip, err := cl.Tip(ctx)
	if err != nil {
		return err
	}
	last, err := cl.LastUploadHash(ctx)
	if err != nil {
		return err
	}
	if last != "" && last != tip {
		return &StaleUploadError{Branch: cl.Branch(), Issue: issue, Reason: "it has commits that were not uploaded"}
	}
	return nil
}

func runLandPresubmit(
	ctx context.Context,
	repo *git.Repository,
	runner changelist.PresubmitRunner,
	cl *changelist.Changelist,
	cur gerrit.Revision,
) error {
	base, err := cl.CommonAncestor(ctx)
	if err != nil {
		return err
	}
	tip, err := cl.Tip(ctx)
	if err != nil {
		return err
	}
	files, err := repo.DiffNames(ctx, base, tip)
	if err != nil {
		return fmt.Errorf("list changed files: %w", err)
	}

	res, err := runner.Run(ctx, presubmit.Request{
		Upstream:    base,
		EndCommit:   tip,
		Description: cur.Message,
		Committing:  true,
		Files:       files,
	})
	if err != nil {
		return fmt.Errorf("run presubmit: %w", err)
	}
	if res.Failed() {
		return &presubmit.Error{Messages: res.Errors}
	}
	return nil
}
