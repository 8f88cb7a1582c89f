package gerrit_test

import (
	"flag"
	"net/http"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.abhg.dev/gitcl/internal/gerrit"
	"go.abhg.dev/gitcl/internal/httptest"
	"go.abhg.dev/gitcl/internal/silog/silogtest"
	"golang.org/x/oauth2"
)

// Run with -update and GERRIT_TOKEN set to re-record fixtures
// against chromium-review.googlesource.com.
var _update = flag.Bool("update", false, "update test fixtures")

const _replayServer = "https://chromium-review.googlesource.com"

func newReplayClient(t *testing.T, name string) *gerrit.Client {
	rec := httptest.NewTransportRecorder(t, name, httptest.TransportRecorderOptions{
		Update: _update,
		WrapRealTransport: func(t testing.TB, transport http.RoundTripper) http.RoundTripper {
			token := os.Getenv("GERRIT_TOKEN")
			if token == "" {
				t.Skip("GERRIT_TOKEN is not set")
			}
			return &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
				Base:   transport,
			}
		},
	})

	return gerrit.NewClient(_replayServer, &gerrit.Options{
		HTTPClient: rec.GetDefaultClient(),
		RetryMax:   -1,
		Log:        silogtest.New(t),
	})
}

func TestReplay_changeLifecycle(t *testing.T) {
	client := newReplayClient(t, "change_lifecycle")
	ctx := t.Context()

	change, err := client.ChangeDetail(ctx, "5012345",
		gerrit.OptionDetailedLabels, gerrit.OptionCurrentRevision, gerrit.OptionSubmittable)
	require.NoError(t, err)
	assert.Equal(t, 5012345, change.Number())
	assert.Equal(t, "infra/infra", change.Project())
	assert.Equal(t, gerrit.StatusNew, change.Status())
	assert.Equal(t, 1, change.MaxLabelVote("Commit-Queue"))
	assert.True(t, change.HasReviewers())

	cur, ok := change.Current()
	require.True(t, ok)
	assert.Equal(t, 3, cur.Number)

	_, err = client.ChangeDetail(ctx, "1")
	assert.ErrorIs(t, err, gerrit.ErrChangeNotExist)

	score, err := client.CodeReviewTbrScore(ctx, "infra/infra")
	require.NoError(t, err)
	assert.Equal(t, 2, score)
}
