package git

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Hash is a 40-character SHA-1 hash of a Git object.
type Hash string

// ZeroHash is the hash of an empty object.
const ZeroHash Hash = "0000000000000000000000000000000000000000"

// String returns the hash as a string.
func (h Hash) String() string {
	return string(h)
}

// Short returns the short form of the hash.
func (h Hash) Short() string {
	if len(h) < 7 {
		return string(h)
	}
	return string(h[:7])
}

// IsZero reports whether the hash is unset or all zeros.
func (h Hash) IsZero() bool {
	return h == "" || h == ZeroHash
}

// LogValue implements slog.LogValuer.
func (h Hash) LogValue() slog.Value {
	return slog.StringValue(h.Short())
}

// PeelToCommit resolves the given ref to the commit it points to.
// It returns [ErrNotExist] if the ref does not resolve to a commit.
func (r *Repository) PeelToCommit(ctx context.Context, ref string) (Hash, error) {
	return r.revParse(ctx, ref+"^{commit}")
}

// PeelToTree resolves the given ref to the tree of its commit.
func (r *Repository) PeelToTree(ctx context.Context, ref string) (Hash, error) {
	return r.revParse(ctx, ref+"^{tree}")
}

func (r *Repository) revParse(ctx context.Context, ref string) (Hash, error) {
	out, err := r.gitCmd(ctx,
		"rev-parse", "--verify", "--quiet", "--end-of-options", ref,
	).OutputChomp()
	if err != nil {
		return "", fmt.Errorf("rev-parse %v: %w", ref, ErrNotExist)
	}
	return Hash(strings.TrimSpace(out)), nil
}

// MergeBase reports the common ancestor of the two given commits.
func (r *Repository) MergeBase(ctx context.Context, a, b string) (Hash, error) {
	out, err := r.gitCmd(ctx, "merge-base", a, b).OutputChomp()
	if err != nil {
		return "", fmt.Errorf("merge-base %v %v: %w", a, b, err)
	}
	return Hash(out), nil
}

// IsAncestor reports whether a is an ancestor of b.
func (r *Repository) IsAncestor(ctx context.Context, a, b Hash) bool {
	return r.gitCmd(ctx,
		"merge-base", "--is-ancestor", string(a), string(b),
	).Run() == nil
}

// CountCommits reports the number of commits reachable from stop
// but not from start.
func (r *Repository) CountCommits(ctx context.Context, start, stop Hash) (int, error) {
	out, err := r.gitCmd(ctx,
		"rev-list", "--count", string(start)+".."+string(stop),
	).OutputChomp()
	if err != nil {
		return 0, fmt.Errorf("rev-list: %w", err)
	}

	var n int
	if _, err := fmt.Sscan(out, &n); err != nil {
		return 0, fmt.Errorf("parse rev-list output %q: %w", out, err)
	}
	return n, nil
}
