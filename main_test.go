package main

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.abhg.dev/gitcl/internal/silog"
)

type hintError struct{ hint string }

func (e *hintError) Error() string { return "failed" }
func (e *hintError) Hint() string  { return e.hint }

func TestPrintHints(t *testing.T) {
	var buf bytes.Buffer
	logger := silog.New(&buf, &silog.Options{Level: silog.LevelInfo})

	retry := &hintError{hint: "Run 'git cl upload' and try again."}
	err := fmt.Errorf("land feature: %w", errors.Join(
		retry,
		fmt.Errorf("again: %w", retry),
		&hintError{hint: "first line\nsecond line"},
		errors.New("no hint"),
	))
	printHints(logger, err)

	out := buf.String()
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("try again")), "duplicate hints are printed once:\n%s", out)
	assert.Contains(t, out, "first line")
	assert.Contains(t, out, "second line")
}

func TestPrintHints_none(t *testing.T) {
	var buf bytes.Buffer
	logger := silog.New(&buf, &silog.Options{Level: silog.LevelInfo})

	printHints(logger, fmt.Errorf("wrap: %w", errors.New("plain")))
	printHints(logger, &hintError{hint: "  "})
	assert.Empty(t, buf.String())
}

func TestAllErrors(t *testing.T) {
	a, b, c := errors.New("a"), errors.New("b"), errors.New("c")
	joined := errors.Join(a, fmt.Errorf("wrap b: %w", b))
	top := fmt.Errorf("top: %w", joined)

	var got []error
	for err := range allErrors(top) {
		got = append(got, err)
	}
	assert.Len(t, got, 5)
	assert.Same(t, top, got[0])
	assert.Contains(t, got, a)
	assert.Contains(t, got, b)
	assert.NotContains(t, got, c)

	t.Run("StopEarly", func(t *testing.T) {
		var n int
		for range allErrors(top) {
			n++
			break
		}
		assert.Equal(t, 1, n)
	})
}

func TestNormalizeServer(t *testing.T) {
	tests := []struct{ give, want string }{
		{"review.example.com", "https://review.example.com"},
		{"https://review.example.com/", "https://review.example.com"},
		{"http://localhost:8080", "http://localhost:8080"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeServer(tt.give), "normalizeServer(%q)", tt.give)
	}
}
