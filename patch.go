package main

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/alecthomas/kong"
	"go.abhg.dev/gitcl/internal/branchstate"
	"go.abhg.dev/gitcl/internal/gerrit"
	"go.abhg.dev/gitcl/internal/git"
	"go.abhg.dev/gitcl/internal/silog"
	"go.abhg.dev/gitcl/internal/stack"
	"go.abhg.dev/gitcl/internal/text"
)

type patchCmd struct {
	Branch string `short:"b" placeholder:"NAME" help:"Name of the new branch. Defaults to change-<number>."`
	Remote string `default:"origin" placeholder:"NAME" help:"Remote the change was uploaded for"`

	Issue string `arg:"" placeholder:"CHANGE" help:"Change number or URL, optionally followed by /<patchset>"`
}

func (*patchCmd) Help() string {
	return text.Dedent(`
		Fetches a patchset of a change and checks it out into a new branch
		that tracks the change.
		The latest patchset is used unless one is given:

			git cl patch 1234/5
			git cl patch https://review.example.com/c/project/+/1234/5
	`)
}

// issueArg is a change number with an optional patchset.
type issueArg struct {
	Issue    int
	Patchset int // 0 for the latest
}

// Matches "N", "N/P", and change URLs that end with either.
var _issueArgRe = regexp.MustCompile(`^(?:https?://[^/]+/(?:c/.+/\+/|#/c/)?)?(\d+)(?:/(\d+))?/?$`)

func parseIssueArg(s string) (issueArg, error) {
	m := _issueArgRe.FindStringSubmatch(s)
	if m == nil {
		return issueArg{}, fmt.Errorf("invalid change %q: expected a number or a change URL", s)
	}

	var arg issueArg
	arg.Issue, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		arg.Patchset, _ = strconv.Atoi(m[2])
	}
	if arg.Issue == 0 {
		return issueArg{}, fmt.Errorf("invalid change %q: change numbers start at 1", s)
	}
	return arg, nil
}

func (cmd *patchCmd) Validate(*kong.Context) error {
	_, err := parseIssueArg(cmd.Issue)
	return err
}

func (cmd *patchCmd) Run(
	ctx context.Context,
	log *silog.Logger,
	repo *git.Repository,
	walker *stack.Walker,
	store *branchstate.Store,
	client *gerrit.Client,
) error {
	arg, err := parseIssueArg(cmd.Issue)
	if err != nil {
		return err
	}

	change, err := client.ChangeDetail(ctx, strconv.Itoa(arg.Issue),
		gerrit.OptionAllRevisions)
	if err != nil {
		return fmt.Errorf("change %d: %w", arg.Issue, err)
	}

	rev, ok := change.Current()
	if arg.Patchset != 0 {
		rev, ok = change.RevisionByNumber(arg.Patchset)
	}
	if !ok {
		return fmt.Errorf("change %d has no patchset %d", arg.Issue, arg.Patchset)
	}

	remoteURL, err := repo.RemoteURL(ctx, cmd.Remote)
	if err != nil {
		return fmt.Errorf("remote %v: %w", cmd.Remote, err)
	}
	if project, err := gerrit.ProjectFromRemoteURL(remoteURL); err == nil && project != change.Project() {
		return fmt.Errorf("change %d is for %v but remote %v is %v", arg.Issue, change.Project(), cmd.Remote, project)
	}

	name := cmd.Branch
	if name == "" {
		name = fmt.Sprintf("change-%d", arg.Issue)
	}

	fetched, err := repo.Fetch(ctx, cmd.Remote, rev.Ref)
	if err != nil {
		return err
	}
	if err := repo.CreateBranch(ctx, name, fetched); err != nil {
		return err
	}
	upstreamRef := cmd.Remote + "/" + change.Branch()
	if err := repo.SetBranchUpstream(ctx, name, upstreamRef); err != nil {
		log.Warn("Could not set upstream: set it with 'git branch --set-upstream-to'",
			"branch", name, "upstream", upstreamRef, "error", err)
	}

	cl := walker.Changelist(name)
	if err := cl.SetIssue(ctx, arg.Issue); err != nil {
		return err
	}
	if err := cl.SetPatchset(ctx, rev.Number); err != nil {
		return err
	}
	// The fetched commit is what Gerrit has,
	// so the next upload is a new patchset on top of it.
	if err := store.SetSquashHash(ctx, name, fetched); err != nil {
		return err
	}
	if err := store.SetLastUploadHash(ctx, name, fetched); err != nil {
		return err
	}

	if err := repo.Checkout(ctx, name); err != nil {
		return err
	}
	log.Infof("Checked out patchset %d of change %d on %v", rev.Number, arg.Issue, name)
	return nil
}
