package silogtest_test

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.abhg.dev/gitcl/internal/silog/silogtest"
)

func TestNew(t *testing.T) {
	var out testOutput
	logger := silogtest.New(&out)

	logger.Debugf("fetching %v", "refs/changes/42/1")
	logger.Error("Sadness", "error", errors.New("oh no"))

	assert.Equal(t, []string{
		"DBG fetching refs/changes/42/1",
		`ERR Sadness  error=oh no`,
		"",
	}, strings.Split(out.buf.String(), "\n"))
}

type testOutput struct{ buf bytes.Buffer }

func (*testOutput) Helper() {}

func (t *testOutput) Output() io.Writer { return &t.buf }
