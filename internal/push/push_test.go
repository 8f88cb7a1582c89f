package push

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.abhg.dev/gitcl/internal/branchstate"
	"go.abhg.dev/gitcl/internal/changelist"
	"go.abhg.dev/gitcl/internal/changelist/changelisttest"
	"go.abhg.dev/gitcl/internal/git"
	"go.abhg.dev/gitcl/internal/git/gitfake"
	"go.abhg.dev/gitcl/internal/reconcile"
	"go.abhg.dev/gitcl/internal/silog"
	"go.abhg.dev/gitcl/internal/silog/silogtest"
	"go.abhg.dev/gitcl/internal/stack"
	"go.abhg.dev/gitcl/internal/ui"
	"go.abhg.dev/gitcl/internal/ui/uitest"
	"go.abhg.dev/gitcl/internal/upstream"
	"go.uber.org/mock/gomock"
	"pgregory.net/rapid"
)

const _testServer = "https://chromium-review.googlesource.com"

type fixture struct {
	repo     *gitfake.Repo
	store    *branchstate.Store
	view     *uitest.ScriptView
	uploader *Uploader
}

// newRepo builds "main" tracking "origin/main".
func newRepo() *gitfake.Repo {
	repo := gitfake.New()
	repo.SetRef("refs/remotes/origin/main", repo.Ref("refs/heads/main"))
	repo.Branch("main", "main", "origin/main")
	return repo
}

type uploaderConfig struct {
	reconciler Reconciler
	traceRoot  string
}

func newFixture(t *testing.T, repo *gitfake.Repo, cfg uploaderConfig, answers ...uitest.Answer) *fixture {
	t.Helper()

	mockGerrit := changelisttest.NewMockGerritService(gomock.NewController(t))
	mockGerrit.EXPECT().Server().Return(_testServer).AnyTimes()

	log := silogtest.New(t)
	view := uitest.NewScriptView(t, answers...)
	u, store := newUploader(repo, mockGerrit, view, log, cfg)
	return &fixture{repo: repo, store: store, view: view, uploader: u}
}

func newUploader(
	repo *gitfake.Repo,
	gerrit changelist.GerritService,
	view ui.View,
	log *silog.Logger,
	cfg uploaderConfig,
) (*Uploader, *branchstate.Store) {
	store := branchstate.New(repo, log)
	svc := &changelist.Services{
		Repo:      repo,
		Gerrit:    gerrit,
		Store:     store,
		Upstreams: upstream.NewResolver(repo, log),
		View:      view,
		Log:       log,
	}
	walker := stack.NewWalker(repo, &stack.WalkerOptions{
		View: view,
		Log:  log,
		Open: func(branch string) *changelist.Changelist {
			return changelist.New(branch, svc)
		},
	})

	reconciler := cfg.reconciler
	if reconciler == nil {
		reconciler = reconcile.New(repo, view, log)
	}
	return NewUploader(repo, &UploaderOptions{
		Planner:    walker,
		Reconciler: reconciler,
		View:       view,
		Log:        log,
		TraceRoot:  cfg.traceRoot,
	}), store
}

// respond makes every push succeed and report the given changes.
func respond(numbers ...int) func(git.PushRequest) (string, error) {
	return func(git.PushRequest) (string, error) {
		return changesOutput(numbers...), nil
	}
}

func changesOutput(numbers ...int) string {
	var b strings.Builder
	b.WriteString("remote: \nremote: SUCCESS\nremote: \n")
	for _, n := range numbers {
		fmt.Fprintf(&b, "remote:   %v/c/infra/infra/+/%d Change %d [NEW]\n", _testServer, n, n)
	}
	b.WriteString("remote: \nTo https://chromium.googlesource.com/infra/infra\n")
	return b.String()
}

// markUploaded records tip as the last upload of branch,
// squashed onto main.
func markUploaded(t *testing.T, f *fixture, branch string, tip git.Hash) git.Hash {
	t.Helper()
	ctx := t.Context()

	sq, err := f.repo.CommitTree(ctx, git.CommitTreeRequest{
		Tree:    f.repo.Lookup(tip).Tree,
		Parents: []git.Hash{f.repo.Ref("refs/heads/main")},
		Message: "squashed " + branch,
	})
	require.NoError(t, err)
	require.NoError(t, f.store.SetIssue(ctx, branch, 100, _testServer))
	require.NoError(t, f.store.SetSquashHash(ctx, branch, sq))
	require.NoError(t, f.store.SetLastUploadHash(ctx, branch, tip))
	return sq
}

func loadRecord(t *testing.T, f *fixture, branch string) *branchstate.Record {
	t.Helper()
	rec, err := f.store.Load(t.Context(), branch)
	require.NoError(t, err)
	return rec
}

func TestUpload_singleNewBranch(t *testing.T) {
	ctx := t.Context()
	repo := newRepo()
	base := repo.Ref("refs/heads/main")
	repo.Branch("feature", "main", "main")
	tip := repo.Commit("feature", "Add feature\n\nDetails.")
	repo.PushFunc = respond(101)

	f := newFixture(t, repo, uploaderConfig{})
	res, err := f.uploader.Upload(ctx, &Request{
		Branch:  "feature",
		Options: &changelist.UploadOptions{Force: true},
	})
	require.NoError(t, err)

	rec := loadRecord(t, f, "feature")
	assert.Equal(t, 101, rec.Issue)
	assert.Equal(t, 1, rec.Patchset)
	assert.Equal(t, _testServer, rec.Server)
	assert.Equal(t, tip, rec.LastUploadHash)

	squashed := repo.Lookup(rec.SquashHash)
	require.NotNil(t, squashed)
	assert.Equal(t, []git.Hash{base}, squashed.Parents)
	assert.Equal(t, repo.Lookup(tip).Tree, squashed.Tree)
	assert.Contains(t, squashed.Message, "Add feature\n\nDetails.")
	assert.Contains(t, squashed.Message, "Change-Id: I")

	require.Len(t, repo.Pushes, 1)
	push := repo.Pushes[0]
	assert.Equal(t, "origin", push.Remote)
	assert.Equal(t, []string{rec.SquashHash.String() + ":refs/for/refs/heads/main%m=Initial_upload"}, push.Refspecs)

	assert.Equal(t, []Change{
		{Branch: "feature", Issue: 101, Patchset: 1, Commit: rec.SquashHash},
	}, res.Changes)

	// The branch itself is untouched.
	assert.Equal(t, tip, repo.Ref("refs/heads/feature"))
}

func TestUpload_stackOfNewBranches(t *testing.T) {
	ctx := t.Context()
	repo := newRepo()
	base := repo.Ref("refs/heads/main")
	repo.Branch("parent", "main", "main")
	parentTip := repo.Commit("parent", "Parent change")
	repo.Branch("child", "parent", "parent")
	childTip := repo.Commit("child", "Child change")
	repo.PushFunc = respond(201, 202)

	f := newFixture(t, repo, uploaderConfig{})
	res, err := f.uploader.Upload(ctx, &Request{
		Branch:  "child",
		Options: &changelist.UploadOptions{Force: true},
	})
	require.NoError(t, err)

	parent := loadRecord(t, f, "parent")
	child := loadRecord(t, f, "child")
	assert.Equal(t, 201, parent.Issue)
	assert.Equal(t, 202, child.Issue)
	assert.Equal(t, parentTip, parent.LastUploadHash)
	assert.Equal(t, childTip, child.LastUploadHash)

	// The child is chained on the freshly squashed parent, not on main.
	assert.Equal(t, []git.Hash{base}, repo.Lookup(parent.SquashHash).Parents)
	assert.Equal(t, []git.Hash{parent.SquashHash}, repo.Lookup(child.SquashHash).Parents)
	assert.Contains(t, repo.Lookup(child.SquashHash).Message, "Child change")
	assert.NotContains(t, repo.Lookup(child.SquashHash).Message, "Parent change")

	// One push of the tip of the chain, without a title.
	require.Len(t, repo.Pushes, 1)
	assert.Equal(t, []string{child.SquashHash.String() + ":refs/for/refs/heads/main"}, repo.Pushes[0].Refspecs)

	assert.Equal(t, []string{"parent", "child"}, changeBranches(res.Changes))
}

func TestUpload_emptyMiddleBranch(t *testing.T) {
	ctx := t.Context()
	repo := newRepo()
	base := repo.Ref("refs/heads/main")
	repo.Branch("mid", "main", "main")
	repo.Branch("child", "mid", "mid")
	childTip := repo.Commit("child", "Child change")
	repo.PushFunc = respond(251)

	f := newFixture(t, repo, uploaderConfig{})
	res, err := f.uploader.Upload(ctx, &Request{
		Branch:  "child",
		Options: &changelist.UploadOptions{Force: true},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"child"}, changeBranches(res.Changes))

	child := loadRecord(t, f, "child")
	assert.Equal(t, 251, child.Issue)
	assert.Equal(t, childTip, child.LastUploadHash)
	assert.Equal(t, []git.Hash{base}, repo.Lookup(child.SquashHash).Parents)
	assert.Zero(t, loadRecord(t, f, "mid").Issue)
}

func TestUpload_localTrunkCommits(t *testing.T) {
	ctx := t.Context()
	repo := newRepo()
	pushed := repo.Ref("refs/heads/main")
	repo.Commit("main", "Local trunk change")
	repo.Branch("feature", "main", "main")
	repo.Commit("feature", "Feature change")
	repo.PushFunc = respond(261, 262)

	f := newFixture(t, repo, uploaderConfig{})
	res, err := f.uploader.Upload(ctx, &Request{
		Branch:  "feature",
		Options: &changelist.UploadOptions{Force: true},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"main", "feature"}, changeBranches(res.Changes))

	trunk := loadRecord(t, f, "main")
	feature := loadRecord(t, f, "feature")
	assert.Equal(t, 261, trunk.Issue)
	assert.Equal(t, 262, feature.Issue)

	// The local trunk commit is squashed on its own,
	// and the feature is chained on top of it.
	assert.Equal(t, []git.Hash{pushed}, repo.Lookup(trunk.SquashHash).Parents)
	assert.Equal(t, []git.Hash{trunk.SquashHash}, repo.Lookup(feature.SquashHash).Parents)
	assert.NotContains(t, repo.Lookup(feature.SquashHash).Message, "Local trunk change")
}

func TestUpload_parentCoversChild(t *testing.T) {
	ctx := t.Context()
	repo := newRepo()
	repo.Branch("parent", "main", "main")
	parentTip := repo.Commit("parent", "Parent change")
	repo.Branch("child", "parent", "parent")
	repo.Commit("child", "Child change")
	repo.PushFunc = respond(301)

	f := newFixture(t, repo, uploaderConfig{})
	parentSquash := markUploaded(t, f, "parent", parentTip)
	before := loadRecord(t, f, "parent")

	_, err := f.uploader.Upload(ctx, &Request{
		Branch:  "child",
		Options: &changelist.UploadOptions{Force: true},
	})
	require.NoError(t, err)

	child := loadRecord(t, f, "child")
	assert.Equal(t, 301, child.Issue)
	assert.Equal(t, []git.Hash{parentSquash}, repo.Lookup(child.SquashHash).Parents)
	assert.Equal(t, before, loadRecord(t, f, "parent"))
}

func TestUpload_staleParentUpload(t *testing.T) {
	ctx := t.Context()
	repo := newRepo()
	repo.Branch("parent", "main", "main")
	parentTip := repo.Commit("parent", "Parent change")
	repo.Branch("child", "parent", "parent")
	repo.Commit("child", "Child change")

	f := newFixture(t, repo, uploaderConfig{})
	markUploaded(t, f, "parent", parentTip)

	// The parent's squash no longer matches its tree.
	main := repo.Ref("refs/heads/main")
	sq, err := repo.CommitTree(ctx, git.CommitTreeRequest{
		Tree:    repo.Lookup(main).Tree,
		Parents: []git.Hash{main},
		Message: "stale",
	})
	require.NoError(t, err)
	require.NoError(t, f.store.SetSquashHash(ctx, "parent", sq))

	_, err = f.uploader.Upload(ctx, &Request{
		Branch:  "child",
		Options: &changelist.UploadOptions{Force: true},
	})
	var notUploaded *changelist.UpstreamNotUploadedError
	require.ErrorAs(t, err, &notUploaded)
	assert.Equal(t, "parent", notUploaded.Branch)
	assert.Empty(t, repo.Pushes)
}

type reconcilerFunc func(context.Context, *changelist.Changelist) (git.Hash, error)

func (f reconcilerFunc) Reconcile(ctx context.Context, cl *changelist.Changelist) (git.Hash, error) {
	return f(ctx, cl)
}

func TestUpload_reconciledParent(t *testing.T) {
	ctx := t.Context()
	repo := newRepo()
	repo.Branch("feature", "main", "main")
	repo.Commit("feature", "Add feature")
	repo.PushFunc = respond(401)

	reconciled := repo.Ref("refs/heads/main")
	var called []string
	f := newFixture(t, repo, uploaderConfig{
		reconciler: reconcilerFunc(func(_ context.Context, cl *changelist.Changelist) (git.Hash, error) {
			called = append(called, cl.Branch())
			return reconciled, nil
		}),
	})

	_, err := f.uploader.Upload(ctx, &Request{
		Branch:  "feature",
		Options: &changelist.UploadOptions{Force: true},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"feature"}, called)

	rec := loadRecord(t, f, "feature")
	assert.Equal(t, []git.Hash{reconciled}, repo.Lookup(rec.SquashHash).Parents)
}

func TestUpload_reconcileFailureStopsUpload(t *testing.T) {
	ctx := t.Context()
	repo := newRepo()
	repo.Branch("feature", "main", "main")
	repo.Commit("feature", "Add feature")

	conflict := &reconcile.ConflictError{Branch: "feature", Patchset: 3}
	f := newFixture(t, repo, uploaderConfig{
		reconciler: reconcilerFunc(func(context.Context, *changelist.Changelist) (git.Hash, error) {
			return "", conflict
		}),
	})

	_, err := f.uploader.Upload(ctx, &Request{
		Branch:  "feature",
		Options: &changelist.UploadOptions{Force: true},
	})
	require.ErrorIs(t, err, conflict)
	assert.Empty(t, repo.Pushes)
}

// newCherryPickRepo builds a parent that was uploaded and then changed,
// with a child on top of the change.
func newCherryPickRepo(t *testing.T) (*fixture, git.Hash) {
	t.Helper()
	ctx := t.Context()

	repo := newRepo()
	repo.Branch("parent", "main", "main")
	uploaded := repo.Commit("parent", "Parent change")
	repo.Commit("parent", "Parent follow-up")
	repo.Branch("child", "parent", "parent")
	repo.Commit("child", "Child change")
	require.NoError(t, repo.Checkout(ctx, "child"))

	f := newFixture(t, repo, uploaderConfig{})
	return f, markUploaded(t, f, "parent", uploaded)
}

func TestUpload_cherryPick(t *testing.T) {
	ctx := t.Context()
	f, parentSquash := newCherryPickRepo(t)
	f.repo.PushFunc = respond(501)
	childTip := f.repo.Ref("refs/heads/child")

	res, err := f.uploader.Upload(ctx, &Request{
		Branch:  "child",
		Options: &changelist.UploadOptions{Force: true, CherryPickStacked: true},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"child"}, changeBranches(res.Changes))

	child := loadRecord(t, f, "child")
	picked := f.repo.Lookup(child.SquashHash)
	assert.Equal(t, []git.Hash{parentSquash}, picked.Parents)
	assert.Equal(t, f.repo.Lookup(childTip).Tree, picked.Tree)
	assert.Equal(t, childTip, child.LastUploadHash)
	assert.Equal(t, 501, child.Issue)

	branch, err := f.repo.CurrentBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "child", branch)
}

func TestUpload_cherryPickConflict(t *testing.T) {
	ctx := t.Context()
	f, _ := newCherryPickRepo(t)
	childTip := f.repo.Ref("refs/heads/child")
	f.repo.Conflicts[f.repo.Lookup(childTip).Tree] = true
	refs := maps.Clone(f.repo.Refs())

	_, err := f.uploader.Upload(ctx, &Request{
		Branch:  "child",
		Options: &changelist.UploadOptions{Force: true, CherryPickStacked: true},
	})
	var conflictErr *changelist.CherryPickConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, "child", conflictErr.Branch)

	branch, err := f.repo.CurrentBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "child", branch)
	assert.False(t, f.repo.CherryPicking)
	assert.Equal(t, refs, f.repo.Refs())
	assert.Empty(t, f.repo.Pushes)

	child := loadRecord(t, f, "child")
	assert.Zero(t, child.Issue)
	assert.Empty(t, child.SquashHash)
}

func TestUpload_missingChangeNumbers(t *testing.T) {
	ctx := t.Context()
	repo := newRepo()
	repo.Branch("parent", "main", "main")
	repo.Commit("parent", "Parent change")
	repo.Branch("child", "parent", "parent")
	repo.Commit("child", "Child change")
	repo.PushFunc = respond(601)

	f := newFixture(t, repo, uploaderConfig{})
	_, err := f.uploader.Upload(ctx, &Request{
		Branch:  "child",
		Options: &changelist.UploadOptions{Force: true},
	})
	var pushErr *Error
	require.ErrorAs(t, err, &pushErr)
	assert.Equal(t, ErrorMissingChanges, pushErr.Kind)

	for _, branch := range []string{"parent", "child"} {
		rec := loadRecord(t, f, branch)
		assert.Zero(t, rec.Issue, branch)
		assert.Empty(t, rec.SquashHash, branch)
		assert.Empty(t, rec.LastUploadHash, branch)
	}
}

func TestUpload_pushFailure(t *testing.T) {
	ctx := t.Context()
	repo := newRepo()
	repo.Branch("feature", "main", "main")
	repo.Commit("feature", "Add feature")
	repo.PushFunc = func(git.PushRequest) (string, error) {
		return "remote: ERROR: internal server error\n", errors.New("exit status 1")
	}

	f := newFixture(t, repo, uploaderConfig{})
	_, err := f.uploader.Upload(ctx, &Request{
		Branch:  "feature",
		Options: &changelist.UploadOptions{Force: true},
	})
	var pushErr *Error
	require.ErrorAs(t, err, &pushErr)
	assert.Equal(t, ErrorOther, pushErr.Kind)
	assert.Len(t, repo.Pushes, 1, "pushes are not retried")
	assert.Zero(t, loadRecord(t, f, "feature").Issue)
}

func TestUpload_bannedWordRetry(t *testing.T) {
	bannedWords := func(req git.PushRequest) (string, error) {
		if slices.Contains(req.Options, BannedWordsSkip) {
			return changesOutput(701), nil
		}
		return "remote: ERROR: blocked keyword(s) found in commit message\n", errors.New("exit status 1")
	}

	t.Run("Retry", func(t *testing.T) {
		ctx := t.Context()
		repo := newRepo()
		repo.Branch("feature", "main", "main")
		repo.Commit("feature", "Add feature")
		repo.PushFunc = bannedWords

		f := newFixture(t, repo, uploaderConfig{}, uitest.Answer{Value: true})
		_, err := f.uploader.Upload(ctx, &Request{
			Branch: "feature",
			Options: &changelist.UploadOptions{
				Force:       true,
				PushOptions: []string{"nokeycheck"},
			},
		})
		require.NoError(t, err)

		require.Len(t, repo.Pushes, 2)
		assert.Equal(t, []string{"nokeycheck"}, repo.Pushes[0].Options)
		assert.Equal(t, []string{"nokeycheck", BannedWordsSkip}, repo.Pushes[1].Options)
		assert.Equal(t, 701, loadRecord(t, f, "feature").Issue)
	})

	t.Run("Declined", func(t *testing.T) {
		ctx := t.Context()
		repo := newRepo()
		repo.Branch("feature", "main", "main")
		repo.Commit("feature", "Add feature")
		repo.PushFunc = bannedWords

		f := newFixture(t, repo, uploaderConfig{}, uitest.Answer{Value: false})
		_, err := f.uploader.Upload(ctx, &Request{
			Branch:  "feature",
			Options: &changelist.UploadOptions{Force: true},
		})
		assert.True(t, IsBannedWord(err))
		assert.Len(t, repo.Pushes, 1)
	})

	t.Run("AlreadySkipped", func(t *testing.T) {
		ctx := t.Context()
		repo := newRepo()
		repo.Branch("feature", "main", "main")
		repo.Commit("feature", "Add feature")
		repo.PushFunc = func(git.PushRequest) (string, error) {
			return "remote: banned word found\n", errors.New("exit status 1")
		}

		f := newFixture(t, repo, uploaderConfig{})
		_, err := f.uploader.Upload(ctx, &Request{
			Branch: "feature",
			Options: &changelist.UploadOptions{
				Force:       true,
				PushOptions: []string{BannedWordsSkip},
			},
		})
		assert.True(t, IsBannedWord(err))
		assert.Len(t, repo.Pushes, 1)
	})
}

func TestUpload_traces(t *testing.T) {
	ctx := t.Context()
	repo := newRepo()
	repo.Branch("feature", "main", "main")
	repo.Commit("feature", "Add feature")
	repo.PushFunc = respond(801)

	root := t.TempDir()
	f := newFixture(t, repo, uploaderConfig{traceRoot: root})
	res, err := f.uploader.Upload(ctx, &Request{
		Branch:  "feature",
		Options: &changelist.UploadOptions{Force: true},
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.TraceDir)

	require.Len(t, repo.Pushes, 1)
	env := repo.Pushes[0].Env
	assert.True(t, strings.HasPrefix(env["GIT_TRACE2_EVENT"], res.TraceDir))
	assert.Equal(t, "1", env["GIT_TRACE_CURL_NO_DATA"])
}

func TestUpload_chainIsLinear(t *testing.T) {
	ctx := t.Context()

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, stack.MaxBranches).Draw(t, "n")

		repo := newRepo()
		base := repo.Ref("refs/heads/main")
		prev := "main"
		numbers := make([]int, n)
		for i := range n {
			name := fmt.Sprintf("b%d", i+1)
			repo.Branch(name, prev, prev)
			repo.Commit(name, "Change "+name)
			numbers[i] = 1000 + i
			prev = name
		}
		repo.PushFunc = respond(numbers...)

		mockGerrit := changelisttest.NewMockGerritService(gomock.NewController(t))
		mockGerrit.EXPECT().Server().Return(_testServer).AnyTimes()
		u, store := newUploader(repo, mockGerrit, &ui.FileView{W: io.Discard}, silog.Nop(), uploaderConfig{})

		res, err := u.Upload(ctx, &Request{
			Branch:  prev,
			Options: &changelist.UploadOptions{Force: true},
		})
		if err != nil {
			t.Fatalf("upload: %v", err)
		}
		if len(res.Changes) != n {
			t.Fatalf("uploaded %d changes, want %d", len(res.Changes), n)
		}

		seen := map[git.Hash]bool{base: true}
		parent := base
		for i, c := range res.Changes {
			if want := fmt.Sprintf("b%d", i+1); c.Branch != want {
				t.Fatalf("change %d is for %v, want %v", i, c.Branch, want)
			}
			if c.Issue != numbers[i] {
				t.Fatalf("%v: issue %d, want %d", c.Branch, c.Issue, numbers[i])
			}
			commit := repo.Lookup(c.Commit)
			if len(commit.Parents) != 1 || commit.Parents[0] != parent {
				t.Fatalf("%v: parents %v, want [%v]", c.Branch, commit.Parents, parent)
			}
			if seen[c.Commit] {
				t.Fatalf("%v: commit %v repeats", c.Branch, c.Commit)
			}
			seen[c.Commit] = true

			squash, err := store.SquashHash(ctx, c.Branch)
			if err != nil || squash != c.Commit {
				t.Fatalf("%v: squash hash %v (%v), want %v", c.Branch, squash, err, c.Commit)
			}
			parent = c.Commit
		}
	})
}

func changeBranches(changes []Change) []string {
	names := make([]string, len(changes))
	for i, c := range changes {
		names[i] = c.Branch
	}
	return names
}
