package push

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"
)

// MaxTraces is the number of trace directories kept.
const MaxTraces = 10

const _traceTimeLayout = "20060102T150405.000000"

var _timeNow = time.Now

// traceEnv creates a fresh trace directory under root
// and returns it with the environment that makes git write into it.
// Older trace directories beyond [MaxTraces] are removed.
func traceEnv(root string) (dir string, env map[string]string, err error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", nil, fmt.Errorf("create trace root: %w", err)
	}
	if err := pruneTraces(root, MaxTraces-1); err != nil {
		return "", nil, err
	}

	dir = filepath.Join(root, _timeNow().UTC().Format(_traceTimeLayout))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("create trace directory: %w", err)
	}

	return dir, map[string]string{
		"GIT_TRACE2_EVENT":       filepath.Join(dir, "trace2-event"),
		"GIT_TRACE_CURL":         filepath.Join(dir, "trace-curl"),
		"GIT_TRACE_CURL_NO_DATA": "1",
		"GIT_TRACE_PACKET":       filepath.Join(dir, "trace-packet"),
		"GIT_REDACT_COOKIES":     "o,SSO,GSSO_Uberproxy",
	}, nil
}

// pruneTraces removes the oldest trace directories of root
// so that at most keep remain.
// Names sort by creation time.
func pruneTraces(root string, keep int) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("read trace root: %w", err)
	}

	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	slices.Sort(dirs)
	for len(dirs) > keep {
		if err := os.RemoveAll(filepath.Join(root, dirs[0])); err != nil {
			return fmt.Errorf("remove old trace: %w", err)
		}
		dirs = dirs[1:]
	}
	return nil
}
