package ui_test

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.abhg.dev/gitcl/internal/ui"
)

func TestConfirm_accept(t *testing.T) {
	t.Run("default/false", func(t *testing.T) {
		c := ui.NewConfirm()
		c.Update(tea.KeyMsg{Type: tea.KeyEnter})
		assert.False(t, c.Value())
	})

	t.Run("default/true", func(t *testing.T) {
		value := true
		c := ui.NewConfirm().WithValue(&value)
		c.Update(tea.KeyMsg{Type: tea.KeyEnter})

		assert.True(t, c.Value())
		assert.True(t, value)
	})

	t.Run("yes", func(t *testing.T) {
		c := ui.NewConfirm()
		c.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})
		assert.True(t, c.Value())
	})

	t.Run("no", func(t *testing.T) {
		c := ui.NewConfirm()
		c.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
		assert.False(t, c.Value())
	})
}

func TestConfirm_UnmarshalValue(t *testing.T) {
	tests := []struct {
		give string
		want bool
	}{
		{`true`, true},
		{`false`, false},
		{`"y"`, true},
		{`"No"`, false},
	}

	for _, tt := range tests {
		t.Run(tt.give, func(t *testing.T) {
			c := ui.NewConfirm()
			require.NoError(t, c.UnmarshalValue(jsonUnmarshal(tt.give)))
			assert.Equal(t, tt.want, c.Value())
		})
	}

	c := ui.NewConfirm()
	assert.Error(t, c.UnmarshalValue(jsonUnmarshal(`"maybe"`)))
}

func TestConfirm_Render(t *testing.T) {
	var sb strings.Builder
	ui.NewConfirm().Render(&sb)
	assert.Contains(t, sb.String(), "N")

	sb.Reset()
	yes := true
	ui.NewConfirm().WithValue(&yes).Render(&sb)
	assert.Contains(t, sb.String(), "Y")
}

func TestConfirm_ignoresOtherKeys(t *testing.T) {
	c := ui.NewConfirm()
	assert.Nil(t, c.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")}))
	assert.False(t, c.Value())
}
