package upstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.abhg.dev/gitcl/internal/git/gitfake"
	"go.abhg.dev/gitcl/internal/silog/silogtest"
)

func newStack(t *testing.T) *gitfake.Repo {
	t.Helper()

	r := gitfake.New()
	r.SetRef("refs/remotes/origin/main", r.Ref("refs/heads/main"))
	r.Branch("main", "main", "origin/main")
	r.Branch("feature1", "main", "main")
	r.Commit("feature1", "feature1")
	r.Branch("feature2", "feature1", "feature1")
	r.Commit("feature2", "feature2")
	return r
}

func TestResolver_Resolve(t *testing.T) {
	ctx := t.Context()
	res := NewResolver(newStack(t), silogtest.New(t))

	up, err := res.Resolve(ctx, "feature2")
	require.NoError(t, err)
	assert.Equal(t, Upstream{Remote: ".", Ref: "refs/heads/feature1"}, up)
	assert.True(t, up.IsLocal())
	assert.False(t, up.IsTrunk())
	assert.Equal(t, "feature1", up.BranchName())
	assert.Equal(t, "refs/heads/feature1", up.TrackingRef())

	up, err = res.Resolve(ctx, "main")
	require.NoError(t, err)
	assert.False(t, up.IsLocal())
	assert.True(t, up.IsTrunk())
	assert.Equal(t, "refs/remotes/origin/main", up.TrackingRef())

	_, err = res.Resolve(ctx, "unknown")
	var noUp *NoUpstreamError
	require.ErrorAs(t, err, &noUp)
	assert.Equal(t, "unknown", noUp.Branch)
	assert.Contains(t, noUp.Hint(), "--track")
}

func TestResolver_MergeBase(t *testing.T) {
	ctx := t.Context()
	repo := newStack(t)
	res := NewResolver(repo, silogtest.New(t))

	base, err := res.CommonAncestor(ctx, "feature2")
	require.NoError(t, err)
	assert.Equal(t, repo.Ref("refs/heads/feature1"), base)

	// Idempotent with unchanged state.
	again, err := res.CommonAncestor(ctx, "feature2")
	require.NoError(t, err)
	assert.Equal(t, base, again)

	t.Run("Stale", func(t *testing.T) {
		_, err := res.MergeBase(ctx, "feature2", Upstream{Remote: ".", Ref: "refs/heads/deleted"})
		var stale *StaleUpstreamError
		require.ErrorAs(t, err, &stale)
		assert.Equal(t, "feature2", stale.Branch)
		assert.Equal(t, "refs/heads/deleted", stale.Upstream)
	})
}

func TestResolver_RemoteBranch(t *testing.T) {
	ctx := t.Context()
	res := NewResolver(newStack(t), silogtest.New(t))

	remote, ref, err := res.RemoteBranch(ctx, "feature2")
	require.NoError(t, err)
	assert.Equal(t, "origin", remote)
	assert.Equal(t, "refs/remotes/origin/main", ref)

	t.Run("Cycle", func(t *testing.T) {
		repo := newStack(t)
		require.NoError(t, repo.SetBranchUpstream(ctx, "feature1", "feature2"))
		_, _, err := NewResolver(repo, nil).RemoteBranch(ctx, "feature2")
		assert.ErrorContains(t, err, "cycle")
	})
}

func TestTargetRef(t *testing.T) {
	tests := []struct {
		name         string
		remote       string
		remoteBranch string
		target       string
		want         string
	}{
		{name: "Default", remote: "origin", remoteBranch: "refs/remotes/origin/main", want: "refs/heads/main"},
		{name: "Alias", remote: "origin", remoteBranch: "refs/remotes/origin/lkgr", want: "refs/heads/main"},
		{name: "NestedRefs", remote: "origin", remoteBranch: "refs/remotes/origin/refs/diff/test", want: "refs/diff/test"},
		{name: "BranchHeads", remote: "origin", remoteBranch: "refs/remotes/branch-heads/123", want: "refs/branch-heads/123"},
		{name: "BareTarget", remote: "origin", remoteBranch: "refs/remotes/origin/main", target: "release", want: "refs/heads/release"},
		{name: "HeadsTarget", remote: "origin", remoteBranch: "refs/remotes/origin/main", target: "refs/heads/release", want: "refs/heads/release"},
		{name: "RemoteTarget", remote: "origin", remoteBranch: "refs/remotes/origin/main", target: "origin/release", want: "refs/heads/release"},
		{name: "BranchHeadsTarget", remote: "origin", remoteBranch: "refs/remotes/origin/main", target: "branch-heads/4044", want: "refs/branch-heads/4044"},
		{name: "UnknownPath", remote: "origin", remoteBranch: "refs/remotes/origin/main", target: "refs/meta/config", want: "refs/meta/config"},
		{name: "NoRemote", remoteBranch: "refs/remotes/origin/main"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TargetRef(tt.remote, tt.remoteBranch, tt.target))
		})
	}
}
