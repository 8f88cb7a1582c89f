package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
	"go.abhg.dev/gitcl/internal/changelist"
	"go.abhg.dev/gitcl/internal/description"
	"go.abhg.dev/gitcl/internal/gerrit"
	"go.abhg.dev/gitcl/internal/git"
	"go.abhg.dev/gitcl/internal/silog"
	"go.abhg.dev/gitcl/internal/stack"
	"go.abhg.dev/gitcl/internal/text"
)

// Width of descriptions printed with --pretty.
const _prettyWidth = 80

var _descriptionHeaderStyle = lipgloss.NewStyle().Bold(true)

type descriptionCmd struct {
	Pretty         bool   `short:"p" xor:"mode" help:"Print the description wrapped and indented"`
	NewDescription string `short:"n" name:"new-description" xor:"mode" placeholder:"TEXT" help:"Replace the description. Use '-' to read it from stdin or '+' to edit the current one."`

	Branch string `arg:"" optional:"" placeholder:"BRANCH" predictor:"branches" help:"Branch whose change to use. Defaults to the current branch."`
}

func (*descriptionCmd) Help() string {
	return text.Dedent(`
		Prints the description of the change on Gerrit.

		With --new-description, the description is replaced
		by uploading a new patchset with the same code.
		The Change-Id footer is kept.
	`)
}

func (cmd *descriptionCmd) Run(
	ctx context.Context,
	app *kong.Kong,
	log *silog.Logger,
	repo *git.Repository,
	walker *stack.Walker,
	svc *changelist.Services,
	client *gerrit.Client,
) error {
	cl, err := openChangelist(ctx, repo, walker, cmd.Branch)
	if err != nil {
		return err
	}
	issue, err := issueOf(ctx, cl)
	if err != nil {
		return err
	}

	current, err := cl.Description(ctx)
	if err != nil {
		return err
	}

	if cmd.NewDescription == "" {
		printDescription(app.Stdout, current, cmd.Pretty)
		return nil
	}

	newText, err := cmd.readNewDescription(ctx, os.Stdin, svc, current)
	if err != nil {
		return err
	}

	change, err := cl.Detail(ctx, gerrit.OptionCurrentRevision)
	if err != nil {
		return err
	}
	desc := description.New(newText)
	if desc.String() == "" {
		return fmt.Errorf("change %d: description must not be empty", issue)
	}
	desc.EnsureChangeID(change.ChangeID())

	if strings.TrimSpace(desc.String()) == strings.TrimSpace(current) {
		log.Info("Description unchanged")
		return nil
	}

	if err := client.SetCommitMessage(ctx, strconv.Itoa(issue), desc.String()+"\n"); err != nil {
		return fmt.Errorf("update description of change %d: %w", issue, err)
	}
	log.Infof("Updated the description of change %d", issue)
	return nil
}

func (cmd *descriptionCmd) readNewDescription(ctx context.Context, stdin io.Reader, svc *changelist.Services, current string) (string, error) {
	switch cmd.NewDescription {
	case "-":
		bs, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read description: %w", err)
		}
		return string(bs), nil

	case "+":
		if svc.Edit == nil {
			return "", fmt.Errorf("no editor configured")
		}
		desc := description.New(current)
		if err := desc.Prompt(ctx, svc.Edit, svc.BugPrefix); err != nil {
			return "", err
		}
		return desc.String(), nil

	default:
		return cmd.NewDescription, nil
	}
}

func printDescription(w io.Writer, desc string, pretty bool) {
	if !pretty {
		fmt.Fprintln(w, strings.TrimRight(desc, "\n"))
		return
	}

	fmt.Fprintln(w, _descriptionHeaderStyle.Render("Description:"))
	fmt.Fprintln(w, text.Wrap(desc, _prettyWidth, 2))
}
