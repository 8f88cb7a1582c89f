// Package browsertest records opened URLs for tests.
package browsertest

import (
	"errors"
	"fmt"
	"os"

	"go.abhg.dev/gitcl/internal/browser"
)

// Recorder is a [browser.Launcher] that appends
// every URL it is asked to open to a file, one per line.
// The file survives across processes,
// so test scripts can inspect it after the command exits.
type Recorder struct{ path string }

var _ browser.Launcher = (*Recorder)(nil)

// NewRecorder builds a recorder writing to path.
func NewRecorder(path string) *Recorder {
	return &Recorder{path: path}
}

// OpenURL appends url to the file.
func (r *Recorder) OpenURL(url string) error {
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("record url: %w", err)
	}
	_, err = fmt.Fprintln(f, url)
	return errors.Join(err, f.Close())
}
