// Package presubmit runs the configured presubmit checks for a change.
//
// The checks are an external executable.
// It receives the change description on stdin and these arguments:
//
//	--upstream=<commit> --end-commit=<commit> [--commit] -- <files>...
//
// It replies on stdout with one JSON object per line:
//
//	{"errors": [...], "warnings": [...], "notifications": [...], "more_cc": [...]}
//
// Replies are merged. A nonzero exit status is a failure of the runner,
// not of the checks.
package presubmit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"go.abhg.dev/gitcl/internal/git"
	"go.abhg.dev/gitcl/internal/silog"
	"go.abhg.dev/gitcl/internal/xec"
)

// Request describes the change to check.
type Request struct {
	Upstream  git.Hash // required
	EndCommit git.Hash // required

	Description string

	// Committing is set when the change is about to land
	// rather than be uploaded.
	Committing bool

	// Files affected by the change.
	Files []string
}

// Result is the merged reply of the checks.
type Result struct {
	Errors        []string
	Warnings      []string
	Notifications []string

	// MoreCC lists addresses the checks want copied on the change.
	MoreCC []string
}

// Runner runs a presubmit executable.
type Runner struct {
	command string
	dir     string
	log     *silog.Logger
	exec    xec.Execer
}

// RunnerOptions configures a [Runner].
type RunnerOptions struct {
	// Dir is the working directory for the checks.
	Dir string

	Log *silog.Logger

	exec xec.Execer
}

// NewRunner builds a runner for the given executable.
func NewRunner(command string, opts *RunnerOptions) *Runner {
	if opts == nil {
		opts = &RunnerOptions{}
	}
	log := opts.Log
	if log == nil {
		log = silog.Nop()
	}
	exec := opts.exec
	if exec == nil {
		exec = xec.DefaultExecer
	}
	return &Runner{command: command, dir: opts.Dir, log: log, exec: exec}
}

// Run runs the checks and returns their merged reply.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Upstream == "" || req.EndCommit == "" {
		return nil, errors.New("presubmit: upstream and end commit are required")
	}

	args := []string{
		"--upstream=" + req.Upstream.String(),
		"--end-commit=" + req.EndCommit.String(),
	}
	if req.Committing {
		args = append(args, "--commit")
	}
	args = append(args, "--")
	args = append(args, req.Files...)

	out, err := xec.Command(ctx, r.log, r.command, args...).
		WithExecer(r.exec).
		WithLogPrefix("presubmit").
		WithDir(r.dir).
		WithStdinString(req.Description).
		Output()
	if err != nil {
		return nil, fmt.Errorf("presubmit: %w", err)
	}
	return parseResult(out)
}

func parseResult(out []byte) (*Result, error) {
	var res Result
	for i, line := range bytes.Split(out, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if !gjson.ValidBytes(line) {
			return nil, fmt.Errorf("presubmit: line %d: malformed reply %q", i+1, line)
		}

		reply := gjson.ParseBytes(line)
		res.Errors = appendStrings(res.Errors, reply.Get("errors"))
		res.Warnings = appendStrings(res.Warnings, reply.Get("warnings"))
		res.Notifications = appendStrings(res.Notifications, reply.Get("notifications"))
		res.MoreCC = appendStrings(res.MoreCC, reply.Get("more_cc"))
	}
	return &res, nil
}

func appendStrings(dst []string, v gjson.Result) []string {
	for _, item := range v.Array() {
		if s := strings.TrimSpace(item.String()); s != "" {
			dst = append(dst, s)
		}
	}
	return dst
}

// Failed reports whether any check reported an error.
func (r *Result) Failed() bool {
	return len(r.Errors) > 0
}

// Error is returned when presubmit checks report errors.
type Error struct {
	Messages []string
}

func (e *Error) Error() string {
	return "presubmit checks failed:\n" + strings.Join(e.Messages, "\n")
}
