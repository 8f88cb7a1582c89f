package main

import (
	"context"
	"fmt"
	"strconv"

	"go.abhg.dev/gitcl/internal/changelist"
	"go.abhg.dev/gitcl/internal/gerrit"
	"go.abhg.dev/gitcl/internal/git"
	"go.abhg.dev/gitcl/internal/silog"
	"go.abhg.dev/gitcl/internal/stack"
)

// _commitQueueLabel is the label that drives the commit queue.
const _commitQueueLabel = "Commit-Queue"

// Votes on the commit queue label.
const (
	cqVoteClear  = 0
	cqVoteDryRun = 1
	cqVoteSubmit = 2
)

type tryCmd struct {
	Branch string `arg:"" optional:"" placeholder:"BRANCH" predictor:"branches" help:"Branch whose change to try. Defaults to the current branch."`
}

func (cmd *tryCmd) Run(
	ctx context.Context,
	log *silog.Logger,
	repo *git.Repository,
	walker *stack.Walker,
	client *gerrit.Client,
) error {
	cl, err := openChangelist(ctx, repo, walker, cmd.Branch)
	if err != nil {
		return err
	}
	return voteCommitQueue(ctx, log, client, cl, cqVoteDryRun)
}

type setCommitCmd struct {
	DryRun bool `short:"d" name:"dry-run" xor:"vote" help:"Start a dry run instead of submitting"`
	Clear  bool `short:"c" xor:"vote" help:"Remove the change from the commit queue"`

	Branch string `arg:"" optional:"" placeholder:"BRANCH" predictor:"branches" help:"Branch whose change to send. Defaults to the current branch."`
}

func (cmd *setCommitCmd) vote() int {
	switch {
	case cmd.Clear:
		return cqVoteClear
	case cmd.DryRun:
		return cqVoteDryRun
	default:
		return cqVoteSubmit
	}
}

func (cmd *setCommitCmd) Run(
	ctx context.Context,
	log *silog.Logger,
	repo *git.Repository,
	walker *stack.Walker,
	client *gerrit.Client,
) error {
	cl, err := openChangelist(ctx, repo, walker, cmd.Branch)
	if err != nil {
		return err
	}
	return voteCommitQueue(ctx, log, client, cl, cmd.vote())
}

// ReviewPoster posts reviews on changes.
type ReviewPoster interface {
	SetReview(ctx context.Context, change string, review gerrit.ReviewInput) error
}

var _ ReviewPoster = (*gerrit.Client)(nil)

func voteCommitQueue(ctx context.Context, log *silog.Logger, client ReviewPoster, cl *changelist.Changelist, vote int) error {
	issue, err := issueOf(ctx, cl)
	if err != nil {
		return err
	}

	err = client.SetReview(ctx, strconv.Itoa(issue), gerrit.ReviewInput{
		Labels: map[string]int{_commitQueueLabel: vote},
	})
	if err != nil {
		return fmt.Errorf("vote on change %d: %w", issue, err)
	}

	url, err := cl.IssueURL(ctx)
	if err != nil {
		return err
	}
	log.Infof("%v%+d on %v", _commitQueueLabel, vote, url)
	return nil
}
