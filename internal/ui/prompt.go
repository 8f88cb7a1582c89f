package ui

import (
	"errors"
	"fmt"
)

// ErrAborted indicates that the user declined to continue.
var ErrAborted = errors.New("aborted by user")

// Confirm asks a yes or no question.
// def is the answer if the user just presses enter.
//
// Non-interactive views report [ErrPrompt].
func Confirm(v View, title, desc string, def bool) (bool, error) {
	answer := def
	field := NewConfirm().
		WithTitle(title).
		WithDescription(desc).
		WithValue(&answer)
	if err := Run(v, field); err != nil {
		return false, err
	}
	return answer, nil
}

// ConfirmOrAbort asks a yes or no question defaulting to no,
// and fails with [ErrAborted] unless the user answers yes.
//
// hint is included in the error for non-interactive views,
// e.g. "use --force to skip this check".
func ConfirmOrAbort(v View, title, hint string) error {
	ok, err := Confirm(v, title, "", false)
	if err != nil {
		if errors.Is(err, ErrPrompt) && hint != "" {
			return fmt.Errorf("%v: %w (%v)", title, err, hint)
		}
		return err
	}
	if !ok {
		return ErrAborted
	}
	return nil
}

// Ask prompts for a single line of text.
// def is used as the starting value.
func Ask(v View, title, desc, def string) (string, error) {
	answer := def
	field := NewInput().
		WithTitle(title).
		WithDescription(desc).
		WithValue(&answer)
	if err := Run(v, field); err != nil {
		return "", err
	}
	return answer, nil
}
