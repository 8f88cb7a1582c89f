// Package browser opens change pages in the user's web browser.
package browser

import (
	"fmt"
	"io"

	"github.com/cli/browser"
)

// Launcher opens URLs.
type Launcher interface {
	OpenURL(url string) error
}

// System opens URLs in the default browser of the desktop session.
//
// Its zero value is ready for use.
type System struct {
	openURL func(url string) error // stubbed in tests
}

var _ Launcher = (*System)(nil)

// OpenURL opens url in the default browser.
func (s *System) OpenURL(url string) error {
	open := browser.OpenURL
	if s.openURL != nil {
		open = s.openURL
	}
	return open(url)
}

// Printer writes URLs to W instead of opening them.
type Printer struct {
	W io.Writer // required
}

var _ Launcher = (*Printer)(nil)

// OpenURL prints url on its own line.
func (p *Printer) OpenURL(url string) error {
	_, err := fmt.Fprintln(p.W, url)
	return err
}

// Fallback opens URLs with Launcher,
// printing them to W if the launcher fails
// (for example, over SSH with no display).
type Fallback struct {
	Launcher Launcher  // required
	W        io.Writer // required
}

var _ Launcher = (*Fallback)(nil)

// OpenURL opens url, or prints it if it could not be opened.
func (f *Fallback) OpenURL(url string) error {
	if err := f.Launcher.OpenURL(url); err != nil {
		_, err := fmt.Fprintf(f.W, "Could not open a browser (%v). Visit:\n%v\n", err, url)
		return err
	}
	return nil
}
