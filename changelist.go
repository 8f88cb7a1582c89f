package main

import (
	"context"
	"fmt"

	"go.abhg.dev/gitcl/internal/changelist"
	"go.abhg.dev/gitcl/internal/git"
	"go.abhg.dev/gitcl/internal/handler/upload"
	"go.abhg.dev/gitcl/internal/stack"
)

// openChangelist returns the handle for the named branch,
// or the current branch if name is empty.
func openChangelist(ctx context.Context, repo *git.Repository, walker *stack.Walker, name string) (*changelist.Changelist, error) {
	branch, err := upload.ResolveBranch(ctx, repo, name)
	if err != nil {
		return nil, err
	}
	return walker.Changelist(branch), nil
}

// issueOf returns the change number of cl,
// failing if the branch has none.
func issueOf(ctx context.Context, cl *changelist.Changelist) (int, error) {
	issue, err := cl.Issue(ctx)
	if err != nil {
		return 0, fmt.Errorf("read change of %v: %w", cl.Branch(), err)
	}
	if issue == 0 {
		return 0, errNoChange(cl.Branch())
	}
	return issue, nil
}
