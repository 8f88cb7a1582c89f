package git

import (
	"context"
	"fmt"
)

// Fetch fetches the given ref from the remote
// and returns the commit it resolved to.
func (r *Repository) Fetch(ctx context.Context, remote, ref string) (Hash, error) {
	if err := r.gitCmd(ctx, "fetch", remote, ref).Run(); err != nil {
		return "", fmt.Errorf("fetch %v %v: %w", remote, ref, err)
	}
	return r.PeelToCommit(ctx, "FETCH_HEAD")
}
