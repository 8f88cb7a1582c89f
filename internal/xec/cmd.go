// Package xec runs external programs: git, the editor,
// credential helpers, and presubmit checks.
//
// Stderr of a [Cmd] goes to the logger, prefixed with the program name,
// when the logger is at debug level.
// Otherwise the last lines of stderr are kept
// and attached to the error if the program fails.
package xec

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"os/exec"
	"strings"

	"go.abhg.dev/gitcl/internal/silog"
)

// Cmd is a program to run.
type Cmd struct {
	cmd    *exec.Cmd
	execer Execer
	stderr *stderrSink
}

// Command prepares name to run with args.
// The program is killed if ctx is canceled.
// log may be nil.
func Command(ctx context.Context, log *silog.Logger, name string, args ...string) *Cmd {
	if log == nil {
		log = silog.Nop()
	}

	sink := newStderrSink(log, name)
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = sink
	cmd.Env = os.Environ()
	return &Cmd{cmd: cmd, execer: DefaultExecer, stderr: sink}
}

// WithExecer runs the program through e instead of [DefaultExecer].
func (c *Cmd) WithExecer(e Execer) *Cmd {
	if e != nil {
		c.execer = e
	}
	return c
}

// WithLogPrefix replaces the program name in logged stderr lines.
func (c *Cmd) WithLogPrefix(prefix string) *Cmd {
	c.stderr.prefix = prefix
	return c
}

// WithDir runs the program in dir.
func (c *Cmd) WithDir(dir string) *Cmd {
	c.cmd.Dir = dir
	return c
}

// WithStdout sends stdout to w.
func (c *Cmd) WithStdout(w io.Writer) *Cmd {
	c.cmd.Stdout = w
	return c
}

// WithStderr sends stderr to w.
// It is then neither logged nor attached to errors.
func (c *Cmd) WithStderr(w io.Writer) *Cmd {
	c.cmd.Stderr = w
	c.stderr = nil
	return c
}

// WithStdinString feeds s to the program.
func (c *Cmd) WithStdinString(s string) *Cmd {
	c.cmd.Stdin = strings.NewReader(s)
	return c
}

// Setenv sets an environment variable for the program,
// replacing an inherited one of the same name.
func (c *Cmd) Setenv(key, value string) *Cmd {
	prefix := key + "="
	env := c.cmd.Env[:0]
	for _, kv := range c.cmd.Env {
		if !strings.HasPrefix(kv, prefix) {
			env = append(env, kv)
		}
	}
	c.cmd.Env = append(env, prefix+value)
	return c
}

// Run runs the program and waits for it to exit.
func (c *Cmd) Run() error {
	return c.finish(c.execer.Run(c.cmd))
}

// Output runs the program and returns its stdout.
func (c *Cmd) Output() ([]byte, error) {
	out, err := c.execer.Output(c.cmd)
	return out, c.finish(err)
}

// OutputChomp is [Cmd.Output] without the trailing newline.
func (c *Cmd) OutputChomp() (string, error) {
	out, err := c.Output()
	return string(bytes.TrimSuffix(out, []byte{'\n'})), err
}

// Lines runs the program and yields its stdout line by line.
// See [Cmd.Scan].
func (c *Cmd) Lines() iter.Seq2[[]byte, error] {
	return c.Scan(bufio.ScanLines)
}

// Scan runs the program and yields tokens of its stdout.
// The yielded slice is only valid until the next iteration.
//
// Stopping early kills the program.
// A failed exit is yielded as the last error.
func (c *Cmd) Scan(split bufio.SplitFunc) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		stdout, err := c.cmd.StdoutPipe()
		if err != nil {
			yield(nil, fmt.Errorf("pipe stdout: %w", err))
			return
		}
		if err := c.execer.Start(c.cmd); err != nil {
			yield(nil, fmt.Errorf("start: %w", c.finish(err)))
			return
		}

		scanner := bufio.NewScanner(stdout)
		scanner.Split(split)
		for scanner.Scan() {
			if !yield(scanner.Bytes(), nil) {
				_ = c.execer.Kill(c.cmd)
				_ = c.execer.Wait(c.cmd)
				return
			}
		}
		if err := scanner.Err(); err != nil {
			_ = c.execer.Kill(c.cmd)
			_ = c.execer.Wait(c.cmd)
			yield(nil, fmt.Errorf("scan: %w", err))
			return
		}

		if err := c.finish(c.execer.Wait(c.cmd)); err != nil {
			yield(nil, fmt.Errorf("wait: %w", err))
		}
	}
}

// finish flushes logged stderr and attaches captured stderr to err.
func (c *Cmd) finish(err error) error {
	if c.stderr == nil {
		return err
	}
	return c.stderr.finish(err)
}

// stderrSink receives the stderr of a program.
// At debug level it logs complete lines as they arrive.
// Otherwise it keeps a tail for the error message.
type stderrSink struct {
	log    *silog.Logger
	prefix string

	logw  io.Writer
	flush func()
	tail  *tailBuffer
}

func newStderrSink(log *silog.Logger, prefix string) *stderrSink {
	s := &stderrSink{log: log, prefix: prefix}
	if log.Level() <= silog.LevelDebug {
		s.logw, s.flush = silog.Writer(s, silog.LevelDebug)
	} else {
		s.tail = newTailBuffer(_maxCapturedLines)
	}
	return s
}

var _ silog.LeveledLogger = (*stderrSink)(nil)

// Log implements [silog.LeveledLogger] for the debug writer.
func (s *stderrSink) Log(lvl silog.Level, msg string, kvs ...any) {
	if s.prefix != "" {
		msg = s.prefix + ": " + msg
	}
	s.log.Log(lvl, msg, kvs...)
}

func (s *stderrSink) Write(p []byte) (int, error) {
	if s.tail != nil {
		return s.tail.Write(p)
	}
	return s.logw.Write(p)
}

func (s *stderrSink) finish(err error) error {
	if s.flush != nil {
		s.flush()
	}
	if err == nil || s.tail == nil {
		return err
	}
	if out := strings.TrimSpace(s.tail.String()); out != "" {
		return errors.Join(err, fmt.Errorf("stderr:\n%s", out))
	}
	return err
}
