package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/hexops/autogold/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.abhg.dev/gitcl/internal/branchstate"
	"go.abhg.dev/gitcl/internal/changelist"
	"go.abhg.dev/gitcl/internal/git/gitfake"
	"go.abhg.dev/gitcl/internal/ui"
	"go.abhg.dev/gitcl/internal/upstream"
)

func TestWriteStatus(t *testing.T) {
	now := time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)

	t.Run("Empty", func(t *testing.T) {
		var buf bytes.Buffer
		writeStatus(&buf, nil, now)
		assert.Equal(t, "No branches have changes.\n", buf.String())
	})

	t.Run("Rows", func(t *testing.T) {
		var buf bytes.Buffer
		writeStatus(&buf, []statusRow{
			{
				Branch:  "feature",
				URL:     "https://review.example.com/100",
				Status:  changelist.StatusWaiting,
				Updated: now.Add(-3 * time.Hour),
			},
			{
				Branch:  "feature-tests",
				Current: true,
				URL:     "https://review.example.com/101",
				Status:  changelist.StatusError,
			},
		}, now)

		autogold.Expect(`Branches associated with reviews:
    feature       : https://review.example.com/100 (waiting, updated 3 hours ago)
  * feature-tests : https://review.example.com/101 (error)
`).Equal(t, buf.String())
	})
}

// fakeServer reports a fixed server URL and no changes.
type fakeServer struct{ changelist.GerritService }

func (fakeServer) Server() string { return "https://review.example.com" }

func TestPrintField(t *testing.T) {
	ctx := t.Context()
	repo := gitfake.New()
	repo.Branch("feature", "main", "main")
	repo.Commit("feature", "Add feature")
	require.NoError(t, repo.Checkout(ctx, "feature"))

	store := branchstate.New(repo, nil)
	svc := &changelist.Services{
		Repo:      repo,
		Gerrit:    fakeServer{},
		Store:     store,
		Upstreams: upstream.NewResolver(repo, nil),
		View:      &ui.FileView{W: new(bytes.Buffer)},
	}
	cl := changelist.New("feature", svc)

	field := func(name string) string {
		var buf bytes.Buffer
		require.NoError(t, printField(ctx, &buf, cl, name))
		return buf.String()
	}

	assert.Empty(t, field("id"))
	assert.Empty(t, field("url"))

	require.NoError(t, cl.SetIssue(ctx, 42))
	require.NoError(t, cl.SetPatchset(ctx, 3))
	assert.Equal(t, "42\n", field("id"))
	assert.Equal(t, "https://review.example.com/42\n", field("url"))
	assert.Equal(t, "3\n", field("patch"))

	err := printField(context.Background(), new(bytes.Buffer), cl, "bogus")
	assert.ErrorIs(t, err, errUnknownField)
}
