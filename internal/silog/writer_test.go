package silog_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.abhg.dev/gitcl/internal/silog"
)

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := silog.New(&buf, nil)
	writer, done := silog.Writer(logger, silog.LevelInfo)

	_, err := fmt.Fprint(writer, "remote: Processing changes\nremote: done")
	require.NoError(t, err)
	assert.Equal(t, "INF remote: Processing changes\n", buf.String())

	done()
	assert.Equal(t, "INF remote: Processing changes\nINF remote: done\n", buf.String())
}

func TestWriter_nil(t *testing.T) {
	writer, done := silog.Writer(nil, silog.LevelInfo)

	_, err := fmt.Fprint(writer, "hello world")
	require.NoError(t, err)
	done()
}
