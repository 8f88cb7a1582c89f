package main

import (
	"context"

	"go.abhg.dev/gitcl/internal/browser"
	"go.abhg.dev/gitcl/internal/git"
	"go.abhg.dev/gitcl/internal/stack"
)

type webCmd struct {
	Branch string `arg:"" optional:"" placeholder:"BRANCH" predictor:"branches" help:"Branch whose change to open. Defaults to the current branch."`
}

func (cmd *webCmd) Run(
	ctx context.Context,
	repo *git.Repository,
	walker *stack.Walker,
	launcher browser.Launcher,
) error {
	cl, err := openChangelist(ctx, repo, walker, cmd.Branch)
	if err != nil {
		return err
	}
	if _, err := issueOf(ctx, cl); err != nil {
		return err
	}

	url, err := cl.IssueURL(ctx)
	if err != nil {
		return err
	}
	return launcher.OpenURL(url)
}
