// Package mockedit is a scripted stand-in for the user's editor
// in command line tests.
//
// It is invoked with the file to edit as its only argument
// and is controlled through the environment:
//
//   - MOCKEDIT_RECORD, if set, receives a copy of the file
//     as the command presented it.
//   - MOCKEDIT_GIVE names the file whose contents replace the edited file.
//     An edit is unexpected and fails if it is unset.
package mockedit

import (
	"fmt"
	"os"
)

// Main runs the editor and exits the process.
func Main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "mockedit:", err)
		os.Exit(1)
	}
	os.Exit(0)
}

func run(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: mockedit file")
	}
	path := args[0]

	got, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if record := os.Getenv("MOCKEDIT_RECORD"); record != "" {
		if err := os.WriteFile(record, got, 0o644); err != nil {
			return err
		}
	}

	give := os.Getenv("MOCKEDIT_GIVE")
	if give == "" {
		return fmt.Errorf("unexpected edit of:\n%s", got)
	}
	want, err := os.ReadFile(give)
	if err != nil {
		return err
	}
	return os.WriteFile(path, want, 0o644)
}
