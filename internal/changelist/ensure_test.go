package changelist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.abhg.dev/gitcl/internal/gerrit"
	"go.abhg.dev/gitcl/internal/ui"
	"go.abhg.dev/gitcl/internal/ui/uitest"
	"go.uber.org/mock/gomock"
)

func TestEnsureCanUploadPatchset(t *testing.T) {
	ctx := t.Context()

	expectChange := func(f *fixture, body string) {
		f.gerrit.EXPECT().
			ChangeDetail(gomock.Any(), "42", gerrit.OptionDetailedAccounts).
			Return(mustParseChange(t, body), nil)
	}

	t.Run("NoIssue", func(t *testing.T) {
		f := newFixture(t)
		assert.NoError(t, New("feature", f.svc).EnsureCanUploadPatchset(ctx, false))
	})

	t.Run("Abandoned", func(t *testing.T) {
		f := newFixture(t)
		f.setIssue(t, "feature", 42, 1)
		expectChange(f, `{"status": "ABANDONED"}`)

		err := New("feature", f.svc).EnsureCanUploadPatchset(ctx, true)
		require.ErrorIs(t, err, ErrUploadNotAllowed)
		assert.ErrorContains(t, err, "abandoned")
	})

	t.Run("MergedStartNew", func(t *testing.T) {
		f := newFixture(t, uitest.Answer{Value: true})
		f.setIssue(t, "feature", 42, 1)
		expectChange(f, `{"status": "MERGED"}`)

		cl := New("feature", f.svc)
		require.NoError(t, cl.EnsureCanUploadPatchset(ctx, false))

		issue, err := cl.Issue(ctx)
		require.NoError(t, err)
		assert.Zero(t, issue)
		assert.NotContains(t, f.repo.ConfigValues(), "branch.feature.gerritissue")
	})

	t.Run("MergedDeclined", func(t *testing.T) {
		f := newFixture(t, uitest.Answer{Value: false})
		f.setIssue(t, "feature", 42, 1)
		expectChange(f, `{"status": "MERGED"}`)

		err := New("feature", f.svc).EnsureCanUploadPatchset(ctx, false)
		assert.ErrorIs(t, err, ErrUploadNotAllowed)
	})

	t.Run("OwnerByConfig", func(t *testing.T) {
		f := newFixture(t)
		f.setIssue(t, "feature", 42, 1)
		require.NoError(t, f.repo.SetConfig(ctx, "user.email", "me@example.com"))
		expectChange(f, `{"status": "NEW", "owner": {"email": "me@example.com"}}`)

		assert.NoError(t, New("feature", f.svc).EnsureCanUploadPatchset(ctx, false))
	})

	t.Run("OwnerByLinkedEmail", func(t *testing.T) {
		f := newFixture(t)
		f.setIssue(t, "feature", 42, 1)
		require.NoError(t, f.repo.SetConfig(ctx, "user.email", "me@corp.example.com"))
		expectChange(f, `{"status": "NEW", "owner": {"email": "me@example.com"}}`)
		f.gerrit.EXPECT().AccountEmails(gomock.Any(), "self").Return([]gerrit.AccountEmail{
			{Email: "me@corp.example.com", Preferred: true},
			{Email: "me@example.com"},
		}, nil)

		assert.NoError(t, New("feature", f.svc).EnsureCanUploadPatchset(ctx, false))
	})

	t.Run("NoAccount", func(t *testing.T) {
		f := newFixture(t)
		f.setIssue(t, "feature", 42, 1)
		expectChange(f, `{"status": "NEW", "owner": {"email": "other@example.com"}}`)
		f.gerrit.EXPECT().AccountEmails(gomock.Any(), "self").Return(nil, nil)

		assert.NoError(t, New("feature", f.svc).EnsureCanUploadPatchset(ctx, false))
	})

	t.Run("OtherOwnerForced", func(t *testing.T) {
		f := newFixture(t)
		f.setIssue(t, "feature", 42, 1)
		expectChange(f, `{"status": "NEW", "owner": {"email": "other@example.com"}}`)
		f.gerrit.EXPECT().AccountEmails(gomock.Any(), "self").Return([]gerrit.AccountEmail{
			{Email: "me@example.com"},
		}, nil)

		assert.NoError(t, New("feature", f.svc).EnsureCanUploadPatchset(ctx, true))
	})

	t.Run("OtherOwnerDeclined", func(t *testing.T) {
		f := newFixture(t, uitest.Answer{Title: "Continue with upload?", Value: "n"})
		f.setIssue(t, "feature", 42, 1)
		expectChange(f, `{"status": "NEW", "owner": {"email": "other@example.com"}}`)
		f.gerrit.EXPECT().AccountEmails(gomock.Any(), "self").Return([]gerrit.AccountEmail{
			{Email: "me@example.com"},
		}, nil)

		err := New("feature", f.svc).EnsureCanUploadPatchset(ctx, false)
		assert.ErrorIs(t, err, ui.ErrAborted)
	})
}
