package silog_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.abhg.dev/gitcl/internal/silog"
)

func TestLogger_levels(t *testing.T) {
	var buf bytes.Buffer
	log := silog.New(&buf, &silog.Options{Level: silog.LevelInfo})

	log.Debug("hidden")
	log.Infof("uploaded %d changes", 2)
	log.Warn("stale upstream", "branch", "feature")
	log.Error("push failed", "error", errors.New("rejected"))

	assert.Equal(t, "INF uploaded 2 changes\n"+
		"WRN stale upstream  branch=feature\n"+
		"ERR push failed  error=rejected\n", buf.String())
}

func TestLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	log := silog.New(&buf, nil)
	prefixed := log.WithPrefix("git")
	assert.Equal(t, silog.LevelInfo, log.Level())

	prefixed.Debug("before")
	log.SetLevel(silog.LevelDebug)
	prefixed.Debug("after")

	assert.Equal(t, silog.LevelDebug, prefixed.Level())
	assert.Equal(t, "DBG git: after\n", buf.String())
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	log := silog.New(&buf, nil).With("change", 42)

	log.Info("submitted")
	assert.Equal(t, "INF submitted  change=42\n", buf.String())
}

func TestLogger_nil(t *testing.T) {
	var log *silog.Logger
	assert.NotPanics(t, func() {
		log.Infof("nothing %v", "here")
		log.SetLevel(silog.LevelDebug)
		assert.Nil(t, log.WithPrefix("x"))
	})
	assert.Greater(t, log.Level(), silog.LevelError)
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() {
		silog.Nop().Error("discarded")
	})
}

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "debug", silog.LevelDebug.String())
	assert.Equal(t, "info", silog.LevelInfo.String())
	assert.Equal(t, "warn", silog.LevelWarn.String())
	assert.Equal(t, "error", silog.LevelError.String())
}
