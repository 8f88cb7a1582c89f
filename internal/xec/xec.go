package xec

import (
	"errors"
	"os/exec"
)

// ExitError is returned from Wait or Run
// when the command exits with a non-zero exit code.
type ExitError = exec.ExitError

// LookPath searches for an executable named file
// in the directories named by the PATH environment variable.
func LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

// ExitCode reports the exit code of a command that failed with err.
// ok is false if err does not carry an exit status.
func ExitCode(err error) (code int, ok bool) {
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		return 0, false
	}
	return exitErr.ExitCode(), true
}
