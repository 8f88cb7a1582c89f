package auth

import (
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.abhg.dev/gitcl/internal/secret"
	"go.abhg.dev/gitcl/internal/silog/silogtest"
	"go.abhg.dev/gitcl/internal/xec/xectest"
	"go.abhg.dev/testing/stub"
	"go.uber.org/mock/gomock"
	"golang.org/x/oauth2"
)

const _host = "chromium-review.googlesource.com"

func TestNeedsRefresh(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		give *oauth2.Token
		want bool
	}{
		{name: "Nil", want: true},
		{name: "Empty", give: &oauth2.Token{}, want: true},
		{name: "NoExpiry", give: &oauth2.Token{AccessToken: "t"}},
		{
			name: "Fresh",
			give: &oauth2.Token{AccessToken: "t", Expiry: now.Add(time.Hour)},
		},
		{
			name: "WithinSkew",
			give: &oauth2.Token{AccessToken: "t", Expiry: now.Add(RefreshSkew - time.Second)},
			want: true,
		},
		{
			name: "AtSkew",
			give: &oauth2.Token{AccessToken: "t", Expiry: now.Add(RefreshSkew)},
			want: true,
		},
		{
			name: "Expired",
			give: &oauth2.Token{AccessToken: "t", Expiry: now.Add(-time.Minute)},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsRefresh(tt.give, now))
		})
	}
}

func TestParseHelperOutput(t *testing.T) {
	t.Run("WithExpiry", func(t *testing.T) {
		tok, err := parseHelperOutput([]byte("username=oauth2\npassword=ya29.abc\npassword_expiry_utc=1714564800\n"))
		require.NoError(t, err)
		assert.Equal(t, "ya29.abc", tok.AccessToken)
		assert.Equal(t, "Bearer", tok.TokenType)
		assert.True(t, tok.Expiry.Equal(time.Unix(1714564800, 0)))
	})

	t.Run("NoPassword", func(t *testing.T) {
		tok, err := parseHelperOutput([]byte("username=oauth2\n"))
		require.NoError(t, err)
		assert.Nil(t, tok)
	})

	t.Run("BadExpiry", func(t *testing.T) {
		_, err := parseHelperOutput([]byte("password=x\npassword_expiry_utc=soon\n"))
		assert.ErrorContains(t, err, "bad expiry")
	})
}

func TestHelperSource(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockExecer := xectest.NewMockExecer(gomock.NewController(t))
		mockExecer.EXPECT().
			Output(gomock.Any()).
			DoAndReturn(func(cmd *exec.Cmd) ([]byte, error) {
				assert.Equal(t, []string{"my-helper", "get"}, cmd.Args)
				return []byte("password=secret-token\n"), nil
			})

		src := &HelperSource{ctx: t.Context(), helper: "my-helper", log: silogtest.New(t), exec: mockExecer}
		tok, err := src.Token()
		require.NoError(t, err)
		assert.Equal(t, "secret-token", tok.AccessToken)
	})

	t.Run("NotLoggedIn", func(t *testing.T) {
		mockExecer := xectest.NewMockExecer(gomock.NewController(t))
		mockExecer.EXPECT().
			Output(gomock.Any()).
			Return(nil, errors.New("exit status 1"))

		src := &HelperSource{ctx: t.Context(), helper: "my-helper", log: silogtest.New(t), exec: mockExecer}
		_, err := src.Token()

		var loginErr *LoginRequiredError
		require.ErrorAs(t, err, &loginErr)
		assert.Equal(t, "my-helper login", loginErr.Command)
		assert.ErrorContains(t, err, `run "my-helper login"`)
	})

	t.Run("EmptyReply", func(t *testing.T) {
		mockExecer := xectest.NewMockExecer(gomock.NewController(t))
		mockExecer.EXPECT().Output(gomock.Any()).Return([]byte("\n"), nil)

		src := &HelperSource{ctx: t.Context(), helper: "my-helper", log: silogtest.New(t), exec: mockExecer}
		_, err := src.Token()

		var loginErr *LoginRequiredError
		assert.ErrorAs(t, err, &loginErr)
	})

	t.Run("MissingHelper", func(t *testing.T) {
		mockExecer := xectest.NewMockExecer(gomock.NewController(t))
		mockExecer.EXPECT().
			Output(gomock.Any()).
			Return(nil, &exec.Error{Name: "my-helper", Err: exec.ErrNotFound})

		src := &HelperSource{ctx: t.Context(), helper: "my-helper", log: silogtest.New(t), exec: mockExecer}
		_, err := src.Token()
		require.ErrorIs(t, err, exec.ErrNotFound)

		var loginErr *LoginRequiredError
		assert.False(t, errors.As(err, &loginErr))
	})
}

func TestTokenSource_cache(t *testing.T) {
	now := time.Unix(1714564800, 0)
	defer stub.Value(&_timeNow, func() time.Time { return now })()

	stash := new(secret.Memory)
	mockExecer := xectest.NewMockExecer(gomock.NewController(t))
	mockExecer.EXPECT().
		Output(gomock.Any()).
		Return([]byte("password=first\npassword_expiry_utc=1714568400\n"), nil).
		Times(1)

	tok, err := TokenSource(t.Context(), _host, &Options{
		Stash: stash,
		Log:   silogtest.New(t),
		exec:  mockExecer,
	}).Token()
	require.NoError(t, err)
	assert.Equal(t, "first", tok.AccessToken)

	raw, err := stash.LoadSecret(_host, _stashKey)
	require.NoError(t, err)
	assert.Contains(t, raw, `"access_token":"first"`)

	// A new source in a later invocation uses the cached token
	// without running the helper again.
	tok, err = TokenSource(t.Context(), _host, &Options{
		Stash: stash,
		Log:   silogtest.New(t),
		exec:  mockExecer,
	}).Token()
	require.NoError(t, err)
	assert.Equal(t, "first", tok.AccessToken)
	assert.True(t, tok.Expiry.Equal(time.Unix(1714568400, 0)))
}

func TestTokenSource_refreshesExpiredCache(t *testing.T) {
	now := time.Unix(1714564800, 0)
	defer stub.Value(&_timeNow, func() time.Time { return now })()

	stash := new(secret.Memory)
	require.NoError(t, stash.SaveSecret(_host, _stashKey,
		`{"access_token":"stale","token_type":"Bearer","expiry":"2024-05-01T11:59:50Z"}`))

	mockExecer := xectest.NewMockExecer(gomock.NewController(t))
	mockExecer.EXPECT().
		Output(gomock.Any()).
		Return([]byte("password=fresh\n"), nil)

	tok, err := TokenSource(t.Context(), _host, &Options{
		Stash: stash,
		Log:   silogtest.New(t),
		exec:  mockExecer,
	}).Token()
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok.AccessToken)

	require.NoError(t, Logout(stash, _host))
	_, err = stash.LoadSecret(_host, _stashKey)
	assert.ErrorIs(t, err, secret.ErrNotFound)
}

func TestTokenSource_malformedCache(t *testing.T) {
	stash := new(secret.Memory)
	require.NoError(t, stash.SaveSecret(_host, _stashKey, "{not json"))

	mockExecer := xectest.NewMockExecer(gomock.NewController(t))
	mockExecer.EXPECT().Output(gomock.Any()).Return([]byte("password=fresh\n"), nil)

	tok, err := TokenSource(t.Context(), _host, &Options{
		Stash: stash,
		Log:   silogtest.New(t),
		exec:  mockExecer,
	}).Token()
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok.AccessToken)
}
