package ui

import (
	"errors"
	"io"
)

// ErrPrompt is returned when a prompt is needed
// but the view cannot ask the user anything.
var ErrPrompt = errors.New("not allowed to prompt for input")

// View is where messages for the user go.
// Output is usually stderr so that stdout can be piped.
type View interface {
	io.Writer
}

// InteractiveView is a [View] that can also ask questions.
type InteractiveView interface {
	View

	// Prompt asks the given fields in order
	// and returns once all of them are answered.
	Prompt(...Field) error
}

// Interactive reports whether v can prompt.
func Interactive(v View) bool {
	_, ok := v.(InteractiveView)
	return ok
}

// Run asks fs on v, or fails with [ErrPrompt] if v is not interactive.
func Run(v View, fs ...Field) error {
	iv, ok := v.(InteractiveView)
	if !ok {
		return ErrPrompt
	}
	return iv.Prompt(fs...)
}

// FileView writes messages to W and never prompts.
type FileView struct {
	W io.Writer // required
}

var _ View = (*FileView)(nil)

func (fv *FileView) Write(p []byte) (int, error) {
	return fv.W.Write(p)
}

// TerminalView talks to a user at a terminal.
type TerminalView struct {
	R io.Reader // required
	W io.Writer // required
}

var _ InteractiveView = (*TerminalView)(nil)

func (tv *TerminalView) Write(p []byte) (int, error) {
	return tv.W.Write(p)
}

// Prompt runs the fields as a form on the terminal.
func (tv *TerminalView) Prompt(fields ...Field) error {
	return runForm(tv.R, tv.W, fields)
}
