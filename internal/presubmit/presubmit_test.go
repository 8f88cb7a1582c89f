package presubmit

import (
	"io"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.abhg.dev/gitcl/internal/silog/silogtest"
	"go.abhg.dev/gitcl/internal/xec/xectest"
	"go.uber.org/mock/gomock"
)

func TestRunner_Run(t *testing.T) {
	mockExecer := xectest.NewMockExecer(gomock.NewController(t))
	mockExecer.EXPECT().
		Output(gomock.Any()).
		DoAndReturn(func(cmd *exec.Cmd) ([]byte, error) {
			assert.Equal(t, []string{
				"checks",
				"--upstream=aaaa", "--end-commit=bbbb", "--commit",
				"--", "a.go", "b.go",
			}, cmd.Args)
			assert.Equal(t, "/src", cmd.Dir)

			stdin, err := io.ReadAll(cmd.Stdin)
			assert.NoError(t, err)
			assert.Equal(t, "Fix it", string(stdin))

			return []byte(`{"warnings": ["long lines"], "more_cc": ["owners@example.com"]}` + "\n\n" +
				`{"errors": ["missing license"], "notifications": ["ok"]}` + "\n"), nil
		})

	runner := NewRunner("checks", &RunnerOptions{
		Dir:  "/src",
		Log:  silogtest.New(t),
		exec: mockExecer,
	})
	res, err := runner.Run(t.Context(), Request{
		Upstream:    "aaaa",
		EndCommit:   "bbbb",
		Description: "Fix it",
		Committing:  true,
		Files:       []string{"a.go", "b.go"},
	})
	require.NoError(t, err)

	assert.Equal(t, &Result{
		Errors:        []string{"missing license"},
		Warnings:      []string{"long lines"},
		Notifications: []string{"ok"},
		MoreCC:        []string{"owners@example.com"},
	}, res)
	assert.True(t, res.Failed())
}

func TestRunner_Run_validation(t *testing.T) {
	_, err := NewRunner("checks", nil).Run(t.Context(), Request{})
	assert.Error(t, err)
}

func TestParseResult_malformed(t *testing.T) {
	_, err := parseResult([]byte("{\"errors\": [\n"))
	assert.ErrorContains(t, err, "line 1")
}

func TestError(t *testing.T) {
	err := &Error{Messages: []string{"a", "b"}}
	assert.Equal(t, "presubmit checks failed:\na\nb", err.Error())
}
