package text

import (
	"strings"

	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
)

// Wrap wraps each line of s at width columns
// and indents every line by prefix spaces.
//
// Words longer than width are left whole, so URLs survive.
// Existing line breaks are kept, and blank lines are indented too.
func Wrap(s string, width int, prefix uint) string {
	if width > 0 {
		s = wordwrap.String(s, width-int(prefix))
	}
	s = strings.TrimRight(s, "\n")
	if prefix > 0 {
		s = indent.String(s, prefix)
	}
	return s
}
