package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
)

// PushRequest specifies a push to a remote.
type PushRequest struct {
	// Remote is the name or URL of the remote to push to.
	Remote string // required

	// Refspecs to push, all in one invocation.
	Refspecs []string // required

	// Options are passed to the server with -o.
	Options []string

	// Env holds extra environment variables,
	// e.g. trace destinations.
	Env map[string]string

	// Progress, if set, receives the combined output
	// of the push as it happens.
	Progress io.Writer
}

// PushError is returned when a push fails.
// It carries the combined output of the push.
type PushError struct {
	Output string
	Err    error
}

func (e *PushError) Error() string {
	return fmt.Sprintf("push: %v", e.Err)
}

func (e *PushError) Unwrap() error {
	return e.Err
}

// Push pushes refspecs to a remote and returns
// the combined stdout and stderr of the push.
// Gerrit reports new changes on stderr with a "remote:" prefix.
func (r *Repository) Push(ctx context.Context, req PushRequest) (string, error) {
	if req.Remote == "" {
		return "", errors.New("push: no remote specified")
	}
	if len(req.Refspecs) == 0 {
		return "", errors.New("push: no refspecs specified")
	}

	args := []string{"push", req.Remote}
	args = append(args, req.Refspecs...)
	for _, opt := range req.Options {
		args = append(args, "-o", opt)
	}

	var out bytes.Buffer
	var w io.Writer = &out
	if req.Progress != nil {
		w = io.MultiWriter(&out, req.Progress)
	}

	cmd := r.gitCmd(ctx, args...).WithStdout(w).WithStderr(w)
	for k, v := range req.Env {
		cmd.Setenv(k, v)
	}
	if err := cmd.Run(); err != nil {
		return out.String(), &PushError{Output: out.String(), Err: err}
	}
	return out.String(), nil
}
