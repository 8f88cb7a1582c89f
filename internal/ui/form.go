package ui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// errCanceled is reported when the user hits ctrl+c in a prompt.
var errCanceled = errors.New("prompt canceled")

// Writer receives the rendering of a [Field].
type Writer interface {
	io.Writer
	io.StringWriter
}

// Field is one question in a prompt.
type Field interface {
	// Init is called when the field gains focus.
	Init() tea.Cmd

	// Update handles an event while the field has focus.
	// Fields return [acceptField] once they have an answer.
	Update(tea.Msg) tea.Cmd

	Render(Writer)

	// UnmarshalValue sets the answer from a decoded value
	// without going through the terminal.
	// unmarshal behaves like json.Unmarshal into its argument.
	UnmarshalValue(unmarshal func(any) error) error

	// Err is shown below the field.
	// A field must not accept while it has an error.
	Err() error

	Title() string
	Description() string // shown only while focused
}

type acceptFieldMsg struct{}

// acceptField moves the form on to the next field.
func acceptField() tea.Msg { return acceptFieldMsg{} }

// form asks fields one after the other.
// Answered fields stay on screen, dimmed.
type form struct {
	fields  []Field
	done    []string // renderings of answered fields
	current int
	err     error
}

var _ tea.Model = (*form)(nil)

func runForm(r io.Reader, w io.Writer, fields []Field) error {
	f := &form{fields: fields}
	prog := tea.NewProgram(f, tea.WithInput(r), tea.WithOutput(w))
	if _, err := prog.Run(); err != nil {
		return err
	}

	errs := []error{f.err}
	for _, field := range f.fields {
		errs = append(errs, field.Err())
	}
	return errors.Join(errs...)
}

func (f *form) Init() tea.Cmd {
	if len(f.fields) == 0 {
		return tea.Quit
	}
	return f.fields[0].Init()
}

func (f *form) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case acceptFieldMsg:
		var sb strings.Builder
		f.render(&sb, f.fields[f.current], true)
		f.done = append(f.done, sb.String())

		f.current++
		if f.current >= len(f.fields) {
			return f, tea.Quit
		}
		return f, f.fields[f.current].Init()

	case tea.KeyMsg:
		if key.Matches(msg, _cancelKey) {
			f.err = errCanceled
			return f, tea.Quit
		}
	}

	return f, f.fields[f.current].Update(msg)
}

func (f *form) View() string {
	var sb strings.Builder
	for _, done := range f.done {
		sb.WriteString(_doneFieldStyle.Render(done))
		sb.WriteString("\n")
	}
	if f.current < len(f.fields) {
		f.render(&sb, f.fields[f.current], false)
	}
	return sb.String()
}

func (f *form) render(w Writer, field Field, done bool) {
	if title := field.Title(); title != "" {
		style := _titleStyle
		if done {
			style = _doneTitleStyle
		}
		fmt.Fprintf(w, "%s: ", style.Render(title))
	}
	field.Render(w)
	if err := field.Err(); err != nil {
		fmt.Fprintf(w, "\n%s", _errorStyle.Render(err.Error()))
	}
	if desc := field.Description(); desc != "" && !done {
		fmt.Fprintf(w, "\n%s", _descriptionStyle.Render(desc))
	}
}
