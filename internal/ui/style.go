package ui

import (
	"os"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

// Prompts are drawn on stderr so stdout stays pipeable,
// so colors are decided by what stderr supports.
var _renderer = lipgloss.NewRenderer(os.Stderr)

var (
	_green   = lipgloss.AdaptiveColor{Light: "2", Dark: "10"}
	_red     = lipgloss.AdaptiveColor{Light: "1", Dark: "9"}
	_magenta = lipgloss.AdaptiveColor{Light: "5", Dark: "13"}
	_gray    = lipgloss.AdaptiveColor{Light: "8", Dark: "8"}
	_plain   = lipgloss.AdaptiveColor{Light: "0", Dark: "7"}
)

var (
	_titleStyle       = _renderer.NewStyle().Foreground(_green).Bold(true)
	_doneTitleStyle   = _renderer.NewStyle().Foreground(_plain)
	_doneFieldStyle   = _renderer.NewStyle().Faint(true)
	_descriptionStyle = _renderer.NewStyle().Foreground(_gray).Faint(true)
	_errorStyle       = _renderer.NewStyle().Foreground(_red)
	_keyStyle         = _renderer.NewStyle().Foreground(_magenta)
)

var (
	_acceptKey = key.NewBinding(key.WithKeys("enter", "tab"))
	_cancelKey = key.NewBinding(key.WithKeys("ctrl+c"))
	_yesKey    = key.NewBinding(key.WithKeys("y", "Y"))
	_noKey     = key.NewBinding(key.WithKeys("n", "N"))
)
