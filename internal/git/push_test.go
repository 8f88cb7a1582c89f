package git

import (
	"bytes"
	"errors"
	"os/exec"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.abhg.dev/gitcl/internal/xec/xectest"
	"go.uber.org/mock/gomock"
)

func TestRepository_Push(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     PushRequest
		wantCmd []string
	}{
		{
			name: "SingleRefspec",
			req: PushRequest{
				Remote:   "origin",
				Refspecs: []string{"abc123:refs/for/refs/heads/main"},
			},
			wantCmd: []string{"push", "origin", "abc123:refs/for/refs/heads/main"},
		},
		{
			name: "PushOptions",
			req: PushRequest{
				Remote:   "https://example.com/repo",
				Refspecs: []string{"abc123:refs/for/refs/heads/main%wip"},
				Options:  []string{"nokeycheck", "banned-words~skip"},
			},
			wantCmd: []string{
				"push", "https://example.com/repo",
				"abc123:refs/for/refs/heads/main%wip",
				"-o", "nokeycheck",
				"-o", "banned-words~skip",
			},
		},
		{
			name: "MultipleRefspecs",
			req: PushRequest{
				Remote:   "origin",
				Refspecs: []string{"a:refs/for/x", "b:refs/for/y"},
			},
			wantCmd: []string{"push", "origin", "a:refs/for/x", "b:refs/for/y"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var gotCmd []string
			mockExecer := xectest.NewMockExecer(gomock.NewController(t))
			mockExecer.EXPECT().
				Run(gomock.Any()).
				DoAndReturn(func(cmd *exec.Cmd) error {
					gotCmd = cmd.Args[1:]
					return nil
				})

			repo := &Repository{exec: mockExecer}
			_, err := repo.Push(t.Context(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCmd, gotCmd)
		})
	}
}

func TestRepository_Push_outputAndEnv(t *testing.T) {
	var progress bytes.Buffer
	mockExecer := xectest.NewMockExecer(gomock.NewController(t))
	mockExecer.EXPECT().
		Run(gomock.Any()).
		DoAndReturn(func(cmd *exec.Cmd) error {
			assert.True(t, slices.Contains(cmd.Env, "GIT_TRACE2_EVENT=/tmp/trace"))
			_, _ = cmd.Stderr.Write([]byte("remote: https://review.example.com/c/repo/+/123 Add feature\n"))
			return nil
		})

	repo := &Repository{exec: mockExecer}
	out, err := repo.Push(t.Context(), PushRequest{
		Remote:   "origin",
		Refspecs: []string{"HEAD:refs/for/main"},
		Env:      map[string]string{"GIT_TRACE2_EVENT": "/tmp/trace"},
		Progress: &progress,
	})
	require.NoError(t, err)
	assert.Contains(t, out, "/+/123 Add feature")
	assert.Equal(t, out, progress.String())
}

func TestRepository_Push_error(t *testing.T) {
	mockExecer := xectest.NewMockExecer(gomock.NewController(t))
	mockExecer.EXPECT().
		Run(gomock.Any()).
		DoAndReturn(func(cmd *exec.Cmd) error {
			_, _ = cmd.Stdout.Write([]byte("remote: blocked keyword found\n"))
			return errors.New("exit status 1")
		})

	repo := &Repository{exec: mockExecer}
	_, err := repo.Push(t.Context(), PushRequest{
		Remote:   "origin",
		Refspecs: []string{"HEAD:refs/for/main"},
	})
	require.Error(t, err)

	var pushErr *PushError
	require.ErrorAs(t, err, &pushErr)
	assert.Contains(t, pushErr.Output, "blocked keyword")
}

func TestRepository_Push_validation(t *testing.T) {
	repo := &Repository{}

	_, err := repo.Push(t.Context(), PushRequest{Refspecs: []string{"a:b"}})
	assert.ErrorContains(t, err, "no remote")

	_, err = repo.Push(t.Context(), PushRequest{Remote: "origin"})
	assert.ErrorContains(t, err, "no refspecs")
}

func TestRepository_CommitTree(t *testing.T) {
	mockExecer := xectest.NewMockExecer(gomock.NewController(t))
	mockExecer.EXPECT().
		Output(gomock.Any()).
		DoAndReturn(func(cmd *exec.Cmd) ([]byte, error) {
			assert.Equal(t, []string{"commit-tree", "tree1", "-p", "parent1", "-F", "-"}, cmd.Args[1:])
			assert.NotNil(t, cmd.Stdin)
			return []byte("newcommit\n"), nil
		})

	repo := &Repository{exec: mockExecer}
	got, err := repo.CommitTree(t.Context(), CommitTreeRequest{
		Tree:    "tree1",
		Parents: []Hash{"parent1"},
		Message: "Subject\n\nChange-Id: I123",
	})
	require.NoError(t, err)
	assert.Equal(t, Hash("newcommit"), got)
}
