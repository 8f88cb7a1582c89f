package git

import (
	"context"
	"fmt"
	"strings"
)

// CommitTreeRequest is a request to create a new commit object
// from an existing tree.
type CommitTreeRequest struct {
	// Tree is the tree object to commit.
	Tree Hash // required

	// Parents of the new commit.
	Parents []Hash

	// Message is the full commit message.
	Message string // required
}

// CommitTree creates a new commit object without touching any ref.
func (r *Repository) CommitTree(ctx context.Context, req CommitTreeRequest) (Hash, error) {
	args := []string{"commit-tree", string(req.Tree)}
	for _, p := range req.Parents {
		args = append(args, "-p", string(p))
	}
	args = append(args, "-F", "-")

	out, err := r.gitCmd(ctx, args...).
		WithStdinString(req.Message).
		OutputChomp()
	if err != nil {
		return "", fmt.Errorf("commit-tree: %w", err)
	}
	return Hash(out), nil
}

// CommitAll commits all tracked changes in the working tree
// with the given message.
func (r *Repository) CommitAll(ctx context.Context, message string) error {
	if err := r.gitCmd(ctx, "commit", "-am", message).Run(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// AmendMessage replaces the message of the HEAD commit.
func (r *Repository) AmendMessage(ctx context.Context, message string) error {
	if err := r.gitCmd(ctx, "commit", "--amend", "-m", message).Run(); err != nil {
		return fmt.Errorf("commit --amend: %w", err)
	}
	return nil
}

// CommitSubject reports the subject line of the given commit.
func (r *Repository) CommitSubject(ctx context.Context, ref string) (string, error) {
	out, err := r.gitCmd(ctx, "show", "-s", "--format=%s", ref, "--").OutputChomp()
	if err != nil {
		return "", fmt.Errorf("show %v: %w", ref, err)
	}
	return strings.TrimSpace(out), nil
}

// CommitMessage reports the full message of the given commit.
func (r *Repository) CommitMessage(ctx context.Context, ref string) (string, error) {
	out, err := r.gitCmd(ctx, "log", "-1", "--format=%B", ref, "--").OutputChomp()
	if err != nil {
		return "", fmt.Errorf("log %v: %w", ref, err)
	}
	return strings.TrimSpace(out), nil
}

// LogMessages returns the subjects and bodies of commits
// in the range start..stop, newest first,
// formatted for use as a change description.
func (r *Repository) LogMessages(ctx context.Context, start, stop Hash) (string, error) {
	out, err := r.gitCmd(ctx,
		"log", "--pretty=format:%s%n%n%b", string(start)+".."+string(stop), "--",
	).OutputChomp()
	if err != nil {
		return "", fmt.Errorf("log: %w", err)
	}
	return out, nil
}
