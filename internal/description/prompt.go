package description

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmpty indicates that the user left the description empty.
var ErrEmpty = errors.New("no change description, aborting")

// EditFunc lets a user edit text, returning the edited result.
type EditFunc func(ctx context.Context, text string) (string, error)

var _promptHeader = []string{
	"# Enter a description of the change.",
	"# This will be displayed on the codereview site.",
	"# The first line will also be used as the subject of the review.",
	"#--------------------This line is 72 characters long--------------------",
}

// Prompt asks the user to edit the description with edit.
//
// A placeholder "Bug:" footer qualified with bugPrefix is offered
// if the description references no bugs.
// Comment lines and an unchanged placeholder are removed from the result.
//
// The description is left unchanged if editing fails.
func (d *Description) Prompt(ctx context.Context, edit EditFunc, bugPrefix string) error {
	orig := d.lines
	d.SetLines(append(append([]string(nil), _promptHeader...), d.lines...))
	if !d.hasLine(_bugLineRe) && !d.hasLine(_fixedLineRe) {
		d.AppendFooter("Bug: " + bugPrefix)
	}

	content, err := edit(ctx, d.String())
	if err != nil {
		d.lines = orig
		return fmt.Errorf("run editor: %w", err)
	}

	placeholder := strings.TrimRight("Bug: "+bugPrefix, " ")
	var kept []string
	for line := range strings.SplitSeq(content, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if strings.HasPrefix(line, "#") || line == "Bug:" || line == placeholder {
			continue
		}
		kept = append(kept, line)
	}

	kept = trimBlankEnds(kept)
	if len(kept) == 0 {
		d.lines = orig
		return ErrEmpty
	}
	d.SetLines(kept)
	return nil
}
