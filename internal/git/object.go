package git

import (
	"context"
	"fmt"
)

// WriteTree writes the current index as a tree object.
func (r *Repository) WriteTree(ctx context.Context) (Hash, error) {
	out, err := r.gitCmd(ctx, "write-tree").OutputChomp()
	if err != nil {
		return "", fmt.Errorf("write-tree: %w", err)
	}
	return Hash(out), nil
}

// Var reports the value of a Git logical variable
// such as GIT_AUTHOR_IDENT.
func (r *Repository) Var(ctx context.Context, name string) (string, error) {
	out, err := r.gitCmd(ctx, "var", name).OutputChomp()
	if err != nil {
		return "", fmt.Errorf("var %v: %w", name, err)
	}
	return out, nil
}

// HashObject computes the object ID for the given content
// as an object of type typ, without writing it.
func (r *Repository) HashObject(ctx context.Context, typ, content string) (Hash, error) {
	out, err := r.gitCmd(ctx, "hash-object", "-t", typ, "--stdin").
		WithStdinString(content).
		OutputChomp()
	if err != nil {
		return "", fmt.Errorf("hash-object: %w", err)
	}
	return Hash(out), nil
}
