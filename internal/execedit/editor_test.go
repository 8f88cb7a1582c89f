package execedit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommand(t *testing.T) {
	t.Run("Binary", func(t *testing.T) {
		cmd := Command(t.Context(), "sh", "file.txt")
		assert.Equal(t, "sh", filepath.Base(cmd.Path))
		assert.Equal(t, []string{"file.txt"}, cmd.Args[1:])
	})

	t.Run("WithArguments", func(t *testing.T) {
		cmd := Command(t.Context(), "sh -e", "file.txt")
		assert.Equal(t, []string{"-e", "file.txt"}, cmd.Args[1:])
	})

	t.Run("ShellSnippet", func(t *testing.T) {
		cmd := Command(t.Context(), "EDITOR_VAR=1 not-a-real-editor", "file.txt")
		assert.Equal(t, []string{
			"sh", "-c", `EDITOR_VAR=1 not-a-real-editor "$@"`, "--", "file.txt",
		}, cmd.Args)
	})
}

func TestEditor_Edit(t *testing.T) {
	dir := t.TempDir()

	// The editor replaces the first line and keeps the rest.
	script := filepath.Join(dir, "edit.sh")
	require.NoError(t, os.WriteFile(script,
		[]byte("#!/bin/sh\nsed -i.bak '1s/.*/Edited subject/' \"$1\"\n"), 0o755))

	e := &Editor{Editor: script, Dir: dir}
	got, err := e.Edit(t.Context(), "Original subject\r\n\r\nBody\r\n")
	require.NoError(t, err)
	assert.Equal(t, "Edited subject\n\nBody\n", got)
	assert.NoFileExists(t, filepath.Join(dir, FileName))
}

func TestEditor_Edit_failure(t *testing.T) {
	dir := t.TempDir()
	e := &Editor{Editor: "exit 3", Dir: dir}
	_, err := e.Edit(t.Context(), "text")
	assert.ErrorContains(t, err, `editor "exit 3"`)
}

func TestEditor_Edit_noEditor(t *testing.T) {
	_, err := (&Editor{Dir: t.TempDir()}).Edit(t.Context(), "text")
	assert.ErrorContains(t, err, "no editor configured")
}
