package gittest

import (
	"net/mail"
	"time"

	"github.com/rogpeppe/go-internal/testscript"
)

// CmdGit runs git.
//
//	[!] git [args ...]
func CmdGit(ts *testscript.TestScript, neg bool, args []string) {
	err := ts.Exec("git", args...)
	switch {
	case neg && err == nil:
		ts.Fatalf("git %v: unexpected success", args)
	case !neg:
		ts.Check(err)
	}
}

// CmdAs sets the author and committer of later commits.
//
//	as 'Name <email>'
func CmdAs(ts *testscript.TestScript, neg bool, args []string) {
	if neg || len(args) != 1 {
		ts.Fatalf("usage: as 'Name <email>'")
	}

	addr, err := mail.ParseAddress(args[0])
	if err != nil {
		ts.Fatalf("as: %v", err)
	}
	for _, role := range []string{"AUTHOR", "COMMITTER"} {
		ts.Setenv("GIT_"+role+"_NAME", addr.Name)
		ts.Setenv("GIT_"+role+"_EMAIL", addr.Address)
	}
}

// CmdAt sets the author and commit date of later commits.
//
//	at <RFC 3339 time>
func CmdAt(ts *testscript.TestScript, neg bool, args []string) {
	if neg || len(args) != 1 {
		ts.Fatalf("usage: at <RFC 3339 time>")
	}

	t, err := time.Parse(time.RFC3339, args[0])
	if err != nil {
		ts.Fatalf("at: %v", err)
	}
	date := t.Format(time.RFC3339)
	ts.Setenv("GIT_AUTHOR_DATE", date)
	ts.Setenv("GIT_COMMITTER_DATE", date)
}
