package ui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// Input asks for one line of text.
type Input struct {
	title string
	desc  string

	model textinput.Model
	value *string
}

var _ Field = (*Input)(nil)

// NewInput builds an empty text field.
func NewInput() *Input {
	m := textinput.New()
	m.Prompt = "" // the form prints the title
	return &Input{model: m, value: new(string)}
}

// WithValue stores the answer in value.
// A non-empty *value is the starting text.
func (i *Input) WithValue(value *string) *Input {
	i.value = value
	i.model.SetValue(*value)
	return i
}

// WithTitle sets the question.
func (i *Input) WithTitle(title string) *Input {
	i.title = title
	return i
}

// WithDescription sets text shown under the field.
func (i *Input) WithDescription(desc string) *Input {
	i.desc = desc
	return i
}

func (i *Input) Title() string       { return i.title }
func (i *Input) Description() string { return i.desc }

// Err reports why the current text cannot be accepted.
func (i *Input) Err() error { return i.model.Err }

// UnmarshalValue sets the text to a decoded string.
func (i *Input) UnmarshalValue(unmarshal func(any) error) error {
	var answer string
	if err := unmarshal(&answer); err != nil {
		return err
	}
	i.model.SetValue(answer)
	*i.value = answer
	return nil
}

func (i *Input) Init() tea.Cmd {
	i.model.Err = nil
	return i.model.Focus()
}

func (i *Input) Update(msg tea.Msg) tea.Cmd {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && key.Matches(keyMsg, _acceptKey) && i.model.Err == nil {
		i.model.Blur()
		return acceptField
	}

	var cmd tea.Cmd
	i.model, cmd = i.model.Update(msg)
	*i.value = i.model.Value()
	return cmd
}

func (i *Input) Render(w Writer) {
	w.WriteString(i.model.View())
}
