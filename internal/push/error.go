package push

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies push failures.
type ErrorKind int

const (
	// ErrorOther is any failure without a known cause.
	ErrorOther ErrorKind = iota

	// ErrorBannedWord: the server rejected a commit message
	// for a blocked keyword.
	ErrorBannedWord

	// ErrorPrivateKey: the server detected a private key
	// in the pushed content.
	ErrorPrivateKey

	// ErrorMissingChanges: the push succeeded but Gerrit reported
	// fewer changes than were uploaded.
	ErrorMissingChanges
)

// BannedWordsSkip is the push option that skips the banned word check.
const BannedWordsSkip = "banned-words~skip"

// Error is a failed upload push.
type Error struct {
	Kind ErrorKind

	// TraceDir holds the git traces of the push, if any.
	TraceDir string

	Err error
}

func (e *Error) Error() string {
	if e.Kind == ErrorMissingChanges {
		return fmt.Sprintf("push to Gerrit: %v", e.Err)
	}
	return fmt.Sprintf("failed to create a change: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Hint describes how to resolve the failure.
func (e *Error) Hint() string {
	var b strings.Builder
	switch e.Kind {
	case ErrorBannedWord:
		b.WriteString("Very likely due to a blocked keyword. " +
			"Please examine the output above for the reason of the failure.\n")
		b.WriteString("If this is a false positive, bypass the check with:\n")
		b.WriteString("  git cl upload -o " + BannedWordsSkip + "\n")
	case ErrorPrivateKey:
		b.WriteString("Very likely due to a private key being detected. " +
			"Please examine the output above for the reason of the failure.\n")
		b.WriteString("If this is a false positive, bypass private key detection with:\n")
		b.WriteString("  git cl upload -o nokeycheck\n")
	case ErrorMissingChanges:
		b.WriteString("The changes may have been created. " +
			"Run `git cl issue <number>` on each branch to associate them.\n")
	default:
		b.WriteString("Please examine the output above for the reason of the failure.\n")
	}
	if e.TraceDir != "" {
		fmt.Fprintf(&b, "Traces of the push were saved to %v.\n", e.TraceDir)
	}
	return b.String()
}

// classify turns a failed push into an [Error].
func classify(output, traceDir string, err error) *Error {
	kind := ErrorOther
	switch {
	case strings.Contains(output, "blocked keyword"), strings.Contains(output, "banned word"):
		kind = ErrorBannedWord
	case strings.Contains(output, "git push -o nokeycheck"):
		kind = ErrorPrivateKey
	}
	return &Error{Kind: kind, TraceDir: traceDir, Err: err}
}

// IsBannedWord reports whether err is a push rejected for a banned word.
func IsBannedWord(err error) bool {
	var pushErr *Error
	return errors.As(err, &pushErr) && pushErr.Kind == ErrorBannedWord
}
