package push

import (
	"regexp"
	"strconv"
	"strings"
)

// Gerrit prints one line per created or updated change:
//
//	remote:   https://chromium-review.googlesource.com/c/infra/+/123 Subject
//
// The subject may be missing.
var _changeURLRe = regexp.MustCompile(`^remote:\s+https?://[\w\-\.\+\/#]*/(\d+)(?:\s|$)`)

// ParseChangeNumbers extracts change numbers from the output of a push
// to refs/for/, in the order Gerrit reported them.
func ParseChangeNumbers(output string) []int {
	var numbers []int
	for line := range strings.Lines(output) {
		m := _changeURLRe.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		numbers = append(numbers, n)
	}
	return numbers
}
