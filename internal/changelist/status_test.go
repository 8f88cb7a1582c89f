package changelist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.abhg.dev/gitcl/internal/gerrit"
	"go.uber.org/mock/gomock"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		give string
		want Status
	}{
		{
			name: "Merged",
			give: `{"status": "MERGED"}`,
			want: StatusClosed,
		},
		{
			name: "Abandoned",
			give: `{"status": "ABANDONED"}`,
			want: StatusClosed,
		},
		{
			name: "CommitQueue",
			give: `{"status": "NEW", "labels": {"Commit-Queue": {"all": [{"value": 0}, {"value": 2}]}}}`,
			want: StatusCommit,
		},
		{
			name: "DryRun",
			give: `{"status": "NEW", "labels": {"Commit-Queue": {"all": [{"value": 1}]}}}`,
			want: StatusDryRun,
		},
		{
			name: "Approved",
			give: `{"status": "NEW", "labels": {"Code-Review": {"approved": {"_account_id": 2}}}}`,
			want: StatusLGTM,
		},
		{
			name: "NoReviewers",
			give: `{"status": "NEW", "owner": {"_account_id": 1}}`,
			want: StatusUnsent,
		},
		{
			name: "OwnerSpokeLast",
			give: `{
				"status": "NEW",
				"owner": {"_account_id": 1},
				"reviewers": {"REVIEWER": [{"_account_id": 2}]},
				"messages": [
					{"author": {"_account_id": 2}, "date": "2024-01-01 10:00:00.000000000", "message": "nit"},
					{"author": {"_account_id": 1}, "date": "2024-01-02 10:00:00.000000000", "message": "done"},
					{"author": {"_account_id": 3}, "tag": "autogenerated:cq:dry-run", "date": "2024-01-03 10:00:00.000000000", "message": "CQ is trying"}
				]
			}`,
			want: StatusWaiting,
		},
		{
			name: "ReviewerSpokeLast",
			give: `{
				"status": "NEW",
				"owner": {"_account_id": 1},
				"reviewers": {"REVIEWER": [{"_account_id": 2}]},
				"messages": [
					{"author": {"_account_id": 1}, "date": "2024-01-01 10:00:00.000000000", "message": "PTAL"},
					{"author": {"_account_id": 2}, "date": "2024-01-02 10:00:00.000000000", "message": "nit"}
				]
			}`,
			want: StatusReply,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusOf(mustParseChange(t, tt.give)))
		})
	}
}

func TestChangelist_Status(t *testing.T) {
	ctx := t.Context()

	t.Run("NoIssue", func(t *testing.T) {
		f := newFixture(t)
		got, err := New("feature", f.svc).Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, StatusNone, got)
	})

	t.Run("Missing", func(t *testing.T) {
		f := newFixture(t)
		f.setIssue(t, "feature", 42, 1)
		f.gerrit.EXPECT().
			ChangeDetail(gomock.Any(), "42", gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, gerrit.ErrChangeNotExist)

		got, err := New("feature", f.svc).Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, StatusError, got)
	})
}
