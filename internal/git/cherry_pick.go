package git

import (
	"context"
	"fmt"
)

// CherryPick applies the given commit on top of HEAD.
// On conflict, the repository is left mid cherry-pick
// and the caller should use [Repository.CherryPickAbort].
func (r *Repository) CherryPick(ctx context.Context, commit Hash) error {
	if err := r.gitCmd(ctx, "cherry-pick", string(commit)).Run(); err != nil {
		return fmt.Errorf("cherry-pick %v: %w", commit.Short(), err)
	}
	return nil
}

// CherryPickAbort cancels an in-progress cherry-pick.
func (r *Repository) CherryPickAbort(ctx context.Context) error {
	if err := r.gitCmd(ctx, "cherry-pick", "--abort").Run(); err != nil {
		return fmt.Errorf("cherry-pick --abort: %w", err)
	}
	return nil
}
