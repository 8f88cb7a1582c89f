// Package execedit runs the user's editor on change descriptions.
package execedit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/buildkite/shellwords"
	"go.abhg.dev/gitcl/internal/description"
)

// FileName is the name of the file edited inside the git directory.
const FileName = "GITCL_EDIT_DESCRIPTION"

// Command builds a command that opens the editor on the given files.
//
// edit is the editor as configured by the user.
// It may be a path, a command with arguments ("code --wait"),
// or a shell snippet.
func Command(ctx context.Context, edit string, args ...string) *exec.Cmd {
	if exe, err := exec.LookPath(edit); err == nil {
		return exec.CommandContext(ctx, exe, args...)
	}

	if words, err := shellwords.SplitPosix(edit); err == nil && len(words) > 0 {
		if exe, err := exec.LookPath(words[0]); err == nil {
			return exec.CommandContext(ctx, exe, append(words[1:], args...)...)
		}
	}

	// sh -c 'EDITOR "$@"' -- args...
	// leaves quoting to the shell.
	shArgs := append([]string{"-c", edit + ` "$@"`, "--"}, args...)
	return exec.CommandContext(ctx, "sh", shArgs...)
}

// Editor edits text in a file with an external editor.
type Editor struct {
	// Editor is the editor command, usually from `git var GIT_EDITOR`.
	Editor string // required

	// Dir holds the edited file, usually the git directory.
	Dir string // required

	Stdin          io.Reader
	Stdout, Stderr io.Writer
}

var _ description.EditFunc = (*Editor)(nil).Edit

// Edit writes text to a file, opens it in the editor,
// and returns the saved contents.
func (e *Editor) Edit(ctx context.Context, text string) (string, error) {
	if e.Editor == "" {
		return "", errors.New("no editor configured")
	}

	path := filepath.Join(e.Dir, FileName)
	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		return "", fmt.Errorf("write %v: %w", FileName, err)
	}
	defer func() { _ = os.Remove(path) }()

	cmd := Command(ctx, e.Editor, path)
	cmd.Stdin = orDefault(e.Stdin, io.Reader(os.Stdin))
	cmd.Stdout = orDefault(e.Stdout, io.Writer(os.Stdout))
	cmd.Stderr = orDefault(e.Stderr, io.Writer(os.Stderr))
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("editor %q: %w", e.Editor, err)
	}

	bs, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %v: %w", FileName, err)
	}
	return strings.ReplaceAll(string(bs), "\r\n", "\n"), nil
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
