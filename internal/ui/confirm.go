package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// ConfirmField is a yes or no question.
// Enter keeps the current answer.
type ConfirmField struct {
	title string
	desc  string
	value *bool
}

var _ Field = (*ConfirmField)(nil)

// NewConfirm builds a question whose answer defaults to no.
func NewConfirm() *ConfirmField {
	return &ConfirmField{value: new(bool)}
}

// WithValue stores the answer in value.
// The current value of *value is the default answer.
func (c *ConfirmField) WithValue(value *bool) *ConfirmField {
	c.value = value
	return c
}

// Value is the current answer.
func (c *ConfirmField) Value() bool {
	return *c.value
}

// WithTitle sets the question.
func (c *ConfirmField) WithTitle(title string) *ConfirmField {
	c.title = title
	return c
}

// WithDescription sets text shown under the question.
func (c *ConfirmField) WithDescription(desc string) *ConfirmField {
	c.desc = desc
	return c
}

func (c *ConfirmField) Title() string       { return c.title }
func (c *ConfirmField) Description() string { return c.desc }
func (c *ConfirmField) Err() error          { return nil }
func (c *ConfirmField) Init() tea.Cmd       { return nil }

// UnmarshalValue accepts a boolean or one of "y", "yes", "n", "no".
func (c *ConfirmField) UnmarshalValue(unmarshal func(any) error) error {
	var answer string
	if err := unmarshal(&answer); err != nil {
		return unmarshal(c.value)
	}

	switch strings.ToLower(answer) {
	case "y", "yes":
		*c.value = true
	case "n", "no":
		*c.value = false
	default:
		return fmt.Errorf("unexpected answer %q", answer)
	}
	return nil
}

func (c *ConfirmField) Update(msg tea.Msg) tea.Cmd {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}

	switch {
	case key.Matches(keyMsg, _yesKey):
		*c.value = true
	case key.Matches(keyMsg, _noKey):
		*c.value = false
	case key.Matches(keyMsg, _acceptKey):
	default:
		return nil
	}
	return acceptField
}

// Render draws the choices with the default capitalized: [Y/n] or [y/N].
func (c *ConfirmField) Render(w Writer) {
	yes, no := "y", "N"
	if *c.value {
		yes, no = "Y", "n"
	}
	fmt.Fprintf(w, "[%s/%s]", _keyStyle.Render(yes), _keyStyle.Render(no))
}
