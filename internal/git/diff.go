package git

import (
	"context"
	"fmt"
	"strings"
)

// Diff returns the patch between two commits.
func (r *Repository) Diff(ctx context.Context, from, to Hash) (string, error) {
	out, err := r.gitCmd(ctx,
		"diff", "--no-ext-diff", string(from)+".."+string(to),
	).Output()
	if err != nil {
		return "", fmt.Errorf("diff: %w", err)
	}
	return string(out), nil
}

// DiffNames lists the paths changed between two commits.
func (r *Repository) DiffNames(ctx context.Context, from, to Hash) ([]string, error) {
	out, err := r.gitCmd(ctx,
		"diff", "--no-ext-diff", "--name-only", string(from), string(to), "--",
	).OutputChomp()
	if err != nil {
		return nil, fmt.Errorf("diff --name-only: %w", err)
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// ApplyCheck reports whether the given patch applies cleanly
// to the working tree.
func (r *Repository) ApplyCheck(ctx context.Context, patch string) bool {
	return r.gitCmd(ctx, "apply", "--check", "-").
		WithStdinString(patch).
		Run() == nil
}

// ApplyThreeWay applies the patch to the working tree,
// falling back to a three-way merge and leaving conflict markers.
func (r *Repository) ApplyThreeWay(ctx context.Context, patch string) error {
	if err := r.gitCmd(ctx, "apply", "-3", "--intent-to-add", "-").
		WithStdinString(patch).
		Run(); err != nil {
		return fmt.Errorf("apply: %w", err)
	}
	return nil
}
