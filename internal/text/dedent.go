// Package text formats help and description text.
package text

import "strings"

// Dedent strips the indentation of the first non-blank line
// from every line of s, so that help text can be written
// as an indented raw string:
//
//	text.Dedent(`
//		Uploads the current branch.
//		  Indented relative to the rest.
//	`)
//
// Leading and trailing blank lines are dropped.
// Lines that lack the indentation are kept unchanged.
func Dedent(s string) string {
	lines := strings.Split(s, "\n")
	for len(lines) > 0 && isBlank(lines[0]) {
		lines = lines[1:]
	}
	for len(lines) > 0 && isBlank(lines[len(lines)-1]) {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return ""
	}

	first := lines[0]
	indent := first[:len(first)-len(strings.TrimLeft(first, " \t"))]
	for i, line := range lines {
		lines[i] = strings.TrimPrefix(line, indent)
	}
	return strings.Join(lines, "\n")
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
