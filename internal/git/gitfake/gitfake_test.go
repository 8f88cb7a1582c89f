package gitfake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.abhg.dev/gitcl/internal/git"
)

func TestRepo_graph(t *testing.T) {
	ctx := t.Context()
	r := New()
	root := r.Ref("refs/heads/main")
	r.SetRef("refs/remotes/origin/main", root)
	r.Branch("main", "main", "origin/main")

	r.Branch("feature", "main", "main")
	c1 := r.Commit("feature", "one")
	c2 := r.Commit("feature", "two")

	got, err := r.PeelToCommit(ctx, "feature")
	require.NoError(t, err)
	assert.Equal(t, c2, got)

	got, err = r.PeelToCommit(ctx, "feature~1^{commit}")
	require.NoError(t, err)
	assert.Equal(t, c1, got)

	got, err = r.PeelToCommit(ctx, "origin/main")
	require.NoError(t, err)
	assert.Equal(t, root, got)

	_, err = r.PeelToCommit(ctx, "nope")
	assert.ErrorIs(t, err, git.ErrNotExist)

	base, err := r.MergeBase(ctx, "feature", "refs/heads/main")
	require.NoError(t, err)
	assert.Equal(t, root, base)

	assert.True(t, r.IsAncestor(ctx, root, c2))
	assert.False(t, r.IsAncestor(ctx, c2, root))

	n, err := r.CountCommits(ctx, root, c2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	remote, merge, err := r.BranchUpstream(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, "origin", remote)
	assert.Equal(t, "refs/heads/main", merge)

	msgs, err := r.LogMessages(ctx, root, c2)
	require.NoError(t, err)
	assert.Equal(t, "two\n\none", msgs)
}

func TestRepo_cherryPick(t *testing.T) {
	ctx := t.Context()
	r := New()
	root := r.Ref("refs/heads/main")
	r.Branch("feature", "main", "main")
	c1 := r.Commit("feature", "one")

	require.NoError(t, r.Checkout(ctx, root.String()))
	require.NoError(t, r.CherryPick(ctx, c1))
	head, err := r.PeelToCommit(ctx, "HEAD")
	require.NoError(t, err)
	assert.Equal(t, r.Lookup(c1).Tree, r.Lookup(head).Tree)
	assert.Equal(t, []git.Hash{root}, r.Lookup(head).Parents)

	r.Conflicts[c1] = true
	require.Error(t, r.CherryPick(ctx, c1))
	assert.True(t, r.CherryPicking)
	require.NoError(t, r.CherryPickAbort(ctx))
	require.Error(t, r.CherryPickAbort(ctx))
}

func TestRepo_patch(t *testing.T) {
	ctx := t.Context()
	r := New()
	r.Branch("feature", "main", "main")
	a := r.Commit("feature", "a")
	b := r.Commit("feature", "b")

	patch, err := r.Diff(ctx, a, b)
	require.NoError(t, err)
	assert.True(t, r.ApplyCheck(ctx, patch))

	empty, err := r.Diff(ctx, a, a)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, r.Checkout(ctx, "feature"))
	require.NoError(t, r.ApplyThreeWay(ctx, patch))
	require.NoError(t, r.CommitAll(ctx, "apply"))
	head, err := r.PeelToTree(ctx, "HEAD")
	require.NoError(t, err)
	assert.Equal(t, r.Lookup(b).Tree, head)
}

func TestRepo_hashObject(t *testing.T) {
	h, err := New().HashObject(t.Context(), "blob", "")
	require.NoError(t, err)
	assert.Equal(t, git.Hash("e69de29bb2d1d6434b8b29ae775ad8c2e48c5391"), h)
}
