package browser

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const _changeURL = "https://chromium-review.googlesource.com/c/12345"

func TestSystem_OpenURL(t *testing.T) {
	var got string
	s := &System{
		openURL: func(url string) error {
			got = url
			return nil
		},
	}

	require.NoError(t, s.OpenURL(_changeURL))
	assert.Equal(t, _changeURL, got)
}

func TestPrinter_OpenURL(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&Printer{W: &buf}).OpenURL(_changeURL))
	assert.Equal(t, _changeURL+"\n", buf.String())
}

func TestFallback_OpenURL(t *testing.T) {
	t.Run("Opened", func(t *testing.T) {
		var buf bytes.Buffer
		f := &Fallback{
			Launcher: &System{openURL: func(string) error { return nil }},
			W:        &buf,
		}
		require.NoError(t, f.OpenURL(_changeURL))
		assert.Empty(t, buf.String())
	})

	t.Run("Failed", func(t *testing.T) {
		var buf bytes.Buffer
		f := &Fallback{
			Launcher: &System{openURL: func(string) error { return errors.New("no display") }},
			W:        &buf,
		}
		require.NoError(t, f.OpenURL(_changeURL))
		assert.Equal(t, "Could not open a browser (no display). Visit:\n"+_changeURL+"\n", buf.String())
	})
}
