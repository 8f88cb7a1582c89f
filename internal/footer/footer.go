// Package footer manipulates Gerrit-style footers in commit messages.
//
// Footers are "Key: value" lines in the last paragraph of a message.
// The footer block is always the trailing paragraph,
// separated from the rest of the message by a single blank line.
// A message made of one paragraph has no footers:
// that paragraph is its subject.
package footer

import (
	"regexp"
	"slices"
	"strings"
)

// ChangeIDKey is the footer key used by Gerrit to track changes.
const ChangeIDKey = "Change-Id"

var _footerRe = regexp.MustCompile(`^\s*([\w-]+): *(.*)$`)

// Parse parses a single footer line.
// The key is normalized to Title-Case.
func Parse(line string) (key, value string, ok bool) {
	m := _footerRe.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	return NormalizeKey(m[1]), strings.TrimSpace(m[2]), true
}

// NormalizeKey canonicalizes a footer key:
// "change-id" becomes "Change-Id".
func NormalizeKey(key string) string {
	parts := strings.Split(key, "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + strings.ToLower(p[1:])
	}
	return strings.Join(parts, "-")
}

// Split splits a message into its body and footer lines.
// If footers are present, body ends with the blank separator line.
// The two slices do not share storage.
func Split(msg string) (body, footers []string) {
	lines := splitLines(msg)

	start := len(lines)
	for start > 0 && strings.TrimSpace(lines[start-1]) != "" {
		start--
	}
	if start == 0 || start == len(lines) {
		// Single paragraph or empty message.
		return lines, nil
	}

	for _, line := range lines[start:] {
		if _, _, ok := Parse(line); !ok {
			return lines, nil
		}
	}

	return slices.Clip(lines[:start]), slices.Clone(lines[start:])
}

// Values returns the values of all footers with the given key,
// in order of appearance.
func Values(msg, key string) []string {
	key = NormalizeKey(key)
	_, footers := Split(msg)

	var values []string
	for _, line := range footers {
		if k, v, ok := Parse(line); ok && k == key {
			values = append(values, v)
		}
	}
	return values
}

// Add appends a "key: value" footer to the message,
// creating the footer block if needed.
func Add(msg, key, value string) string {
	body, footers := Split(msg)
	footers = append(footers, NormalizeKey(key)+": "+value)
	return Join(body, footers)
}

// Remove deletes all footers with the given key.
// The footer block is dropped entirely if it becomes empty.
func Remove(msg, key string) string {
	key = NormalizeKey(key)
	body, footers := Split(msg)
	if len(footers) == 0 {
		return strings.Join(body, "\n")
	}

	var kept []string
	for _, line := range footers {
		if k, _, _ := Parse(line); k != key {
			kept = append(kept, line)
		}
	}
	return Join(body, kept)
}

// Join reassembles a message from its body and footers,
// with exactly one blank line between them.
func Join(body, footers []string) string {
	body = trimTrailingBlank(body)
	lines := slices.Clone(body)
	if len(footers) > 0 {
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, footers...)
	}
	return strings.Join(lines, "\n")
}

// ChangeIDs returns the values of all Change-Id footers in msg.
func ChangeIDs(msg string) []string {
	return Values(msg, ChangeIDKey)
}

// AddChangeID appends a Change-Id footer to the message.
func AddChangeID(msg, changeID string) string {
	return Add(msg, ChangeIDKey, changeID)
}

func splitLines(msg string) []string {
	msg = strings.TrimRight(msg, "\n")
	if msg == "" {
		return nil
	}
	return strings.Split(msg, "\n")
}

func trimTrailingBlank(lines []string) []string {
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
