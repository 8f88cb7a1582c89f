package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"
	"go.abhg.dev/gitcl/internal/changelist"
	"go.abhg.dev/gitcl/internal/git"
	"go.abhg.dev/gitcl/internal/stack"
	"go.abhg.dev/gitcl/internal/text"
)

var _timeNow = time.Now

type statusCmd struct {
	Field string `enum:",id,url,patch,status" default:"" placeholder:"NAME" help:"Print only this field of the current branch: id, url, patch, or status"`
}

func (*statusCmd) Help() string {
	return text.Dedent(`
		Lists local branches that have changes on Gerrit
		with the review state of each change:

			unsent   no reviewers yet
			waiting  waiting for reviewers
			reply    reviewers are waiting for the owner
			lgtm     approved
			dry-run  in a commit queue dry run
			commit   in the commit queue
			closed   merged or abandoned
			error    missing or inaccessible
	`)
}

func (cmd *statusCmd) Run(
	ctx context.Context,
	app *kong.Kong,
	repo *git.Repository,
	walker *stack.Walker,
) error {
	if cmd.Field != "" {
		cl, err := openChangelist(ctx, repo, walker, "")
		if err != nil {
			return err
		}
		return printField(ctx, app.Stdout, cl, cmd.Field)
	}

	branches, err := repo.LocalBranches(ctx)
	if err != nil {
		return fmt.Errorf("list branches: %w", err)
	}
	current, _ := repo.CurrentBranch(ctx) // empty if detached

	var rows []statusRow
	for _, branch := range branches {
		cl := walker.Changelist(branch)
		issue, err := cl.Issue(ctx)
		if err != nil {
			return fmt.Errorf("read change of %v: %w", branch, err)
		}
		if issue == 0 {
			continue
		}

		row, err := newStatusRow(ctx, cl)
		if err != nil {
			return err
		}
		row.Current = branch == current
		rows = append(rows, row)
	}

	writeStatus(app.Stdout, rows, _timeNow())
	return nil
}

// statusRow is one branch in the output of the status command.
type statusRow struct {
	Branch  string
	Current bool
	URL     string
	Status  changelist.Status
	Updated time.Time // zero if unknown
}

func newStatusRow(ctx context.Context, cl *changelist.Changelist) (statusRow, error) {
	row := statusRow{Branch: cl.Branch()}

	var err error
	row.URL, err = cl.IssueURL(ctx)
	if err != nil {
		return row, err
	}
	row.Status, err = cl.Status(ctx)
	if err != nil {
		return row, fmt.Errorf("status of %v: %w", cl.Branch(), err)
	}
	if row.Status != changelist.StatusError {
		// Status fetched the change already.
		if change, err := cl.Detail(ctx); err == nil {
			row.Updated = change.Updated()
		}
	}
	return row, nil
}

func writeStatus(w io.Writer, rows []statusRow, now time.Time) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No branches have changes.")
		return
	}

	var width int
	for _, r := range rows {
		width = max(width, len(r.Branch))
	}

	fmt.Fprintln(w, "Branches associated with reviews:")
	for _, r := range rows {
		marker := " "
		if r.Current {
			marker = "*"
		}

		var detail strings.Builder
		detail.WriteString(string(r.Status))
		if !r.Updated.IsZero() {
			detail.WriteString(", updated ")
			detail.WriteString(humanize.RelTime(r.Updated, now, "ago", "from now"))
		}
		fmt.Fprintf(w, "  %v %-*v : %v (%v)\n", marker, width, r.Branch, r.URL, detail.String())
	}
}

var errUnknownField = errors.New("unknown field")

func printField(ctx context.Context, w io.Writer, cl *changelist.Changelist, field string) error {
	var value string
	switch field {
	case "id":
		issue, err := cl.Issue(ctx)
		if err != nil {
			return err
		}
		if issue != 0 {
			value = fmt.Sprint(issue)
		}
	case "url":
		url, err := cl.IssueURL(ctx)
		if err != nil {
			return err
		}
		value = url
	case "patch":
		ps, err := cl.Patchset(ctx)
		if err != nil {
			return err
		}
		if ps != 0 {
			value = fmt.Sprint(ps)
		}
	case "status":
		status, err := cl.Status(ctx)
		if err != nil {
			return err
		}
		value = string(status)
	default:
		return fmt.Errorf("%w %q", errUnknownField, field)
	}

	if value != "" {
		fmt.Fprintln(w, value)
	}
	return nil
}
