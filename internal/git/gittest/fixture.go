package gittest

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"
)

// NewRepository runs script in a fresh directory and returns it.
// The script is a testscript file that builds a repository
// with the commands of this package ([CmdGit], [CmdAs], [CmdAt])
// and the files in its archive section.
//
// The directory is removed when the test finishes.
func NewRepository(t testing.TB, script string) string {
	t.Helper()

	scriptDir := t.TempDir()
	scriptFile := filepath.Join(scriptDir, "fixture.txt")
	if err := os.WriteFile(scriptFile, []byte(script), 0o644); err != nil {
		t.Fatalf("write fixture script: %v", err)
	}

	env := DefaultEnv()
	env["EDITOR"] = "false"

	var (
		st      scriptT
		workDir string
	)
	done := make(chan struct{})
	// FailNow calls runtime.Goexit, so keep it off the test goroutine.
	go func() {
		defer close(done)
		testscript.RunT(&st, testscript.Params{
			Files:       []string{scriptFile},
			WorkdirRoot: t.TempDir(),
			TestWork:    true,
			Setup: func(e *testscript.Env) error {
				for k, v := range env {
					e.Setenv(k, v)
				}
				workDir = e.WorkDir
				return nil
			},
			Cmds: map[string]func(*testscript.TestScript, bool, []string){
				"git": CmdGit,
				"as":  CmdAs,
				"at":  CmdAt,
			},
		})
	}()
	<-done

	if st.failed {
		t.Fatalf("fixture script failed:\n%s", st.log.String())
	}
	if workDir == "" {
		t.Fatalf("fixture script did not run")
	}
	return workDir
}

// scriptT runs a script synchronously, outside the test tree,
// collecting its log.
type scriptT struct {
	failed bool
	log    strings.Builder
}

var _ testscript.T = (*scriptT)(nil)

func (*scriptT) Parallel()                              {}
func (s *scriptT) Run(_ string, run func(testscript.T)) { run(s) }
func (*scriptT) Verbose() bool                          { return false }

func (s *scriptT) Log(args ...any) {
	fmt.Fprintln(&s.log, args...)
}

func (s *scriptT) FailNow() {
	s.failed = true
	runtime.Goexit()
}

func (s *scriptT) Fatal(args ...any) {
	s.Log(args...)
	s.FailNow()
}

func (s *scriptT) Skip(args ...any) {
	s.Log(args...)
	s.failed = true
	runtime.Goexit()
}
