package xec

import (
	"bytes"
	"strings"

	"go.abhg.dev/container/ring"
)

// Number of trailing lines of output kept for error messages.
const _maxCapturedLines = 200

// tailBuffer is an io.Writer that retains only the last N lines written to it.
type tailBuffer struct {
	max   int
	n     int // lines in q
	q     ring.Q[string]
	carry []byte // incomplete trailing line
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	total := len(p)
	for len(p) > 0 {
		idx := bytes.IndexByte(p, '\n')
		if idx < 0 {
			b.carry = append(b.carry, p...)
			break
		}

		line := string(append(b.carry, p[:idx]...))
		b.carry = b.carry[:0]
		p = p[idx+1:]

		b.q.Push(line)
		b.n++
		for b.n > b.max {
			b.q.Pop()
			b.n--
		}
	}
	return total, nil
}

// String returns the retained output.
// The queue is drained and refilled so the buffer stays usable.
func (b *tailBuffer) String() string {
	var (
		sb    strings.Builder
		lines []string
	)
	for !b.q.Empty() {
		lines = append(lines, b.q.Pop())
	}
	for _, line := range lines {
		b.q.Push(line)
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	sb.Write(b.carry)
	return sb.String()
}
