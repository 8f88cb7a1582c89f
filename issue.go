package main

import (
	"context"
	"fmt"
	"io"

	"github.com/alecthomas/kong"
	"go.abhg.dev/gitcl/internal/changelist"
	"go.abhg.dev/gitcl/internal/git"
	"go.abhg.dev/gitcl/internal/stack"
	"go.abhg.dev/gitcl/internal/text"
)

type issueCmd struct {
	Branch string `short:"b" placeholder:"NAME" predictor:"branches" help:"Branch to operate on. Defaults to the current branch."`

	Issue string `arg:"" optional:"" placeholder:"CHANGE" help:"Change number or URL to associate with the branch. 0 clears it."`
}

func (*issueCmd) Help() string {
	return text.Dedent(`
		Without arguments, prints the change of the branch.
		With a change number, associates the branch with that change
		so that the next upload adds a patchset to it.
		Use 0 to clear all review state of the branch.
	`)
}

func (cmd *issueCmd) Validate(*kong.Context) error {
	if cmd.Issue == "" || cmd.Issue == "0" {
		return nil
	}
	_, err := parseIssueArg(cmd.Issue)
	return err
}

func (cmd *issueCmd) Run(
	ctx context.Context,
	app *kong.Kong,
	repo *git.Repository,
	walker *stack.Walker,
) error {
	cl, err := openChangelist(ctx, repo, walker, cmd.Branch)
	if err != nil {
		return err
	}

	switch cmd.Issue {
	case "":
		// print only
	case "0":
		if err := cl.SetIssue(ctx, 0); err != nil {
			return err
		}
	default:
		arg, err := parseIssueArg(cmd.Issue)
		if err != nil {
			return err
		}
		if err := cl.SetIssue(ctx, arg.Issue); err != nil {
			return err
		}
		if arg.Patchset != 0 {
			if err := cl.SetPatchset(ctx, arg.Patchset); err != nil {
				return err
			}
		}
	}

	return printIssue(ctx, app.Stdout, cl)
}

func printIssue(ctx context.Context, w io.Writer, cl *changelist.Changelist) error {
	issue, err := cl.Issue(ctx)
	if err != nil {
		return err
	}
	if issue == 0 {
		_, err := fmt.Fprintln(w, "Issue number: None (None)")
		return err
	}

	url, err := cl.IssueURL(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "Issue number: %d (%v)\n", issue, url)
	return err
}
