// Package upload implements the upload command:
// it resolves the branch to upload, runs the upload,
// and reports the result to the user.
package upload

//go:generate mockgen -destination mocks_test.go -package upload . Uploader

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"
	"go.abhg.dev/gitcl/internal/backup"
	"go.abhg.dev/gitcl/internal/changelist"
	"go.abhg.dev/gitcl/internal/description"
	"go.abhg.dev/gitcl/internal/git"
	"go.abhg.dev/gitcl/internal/push"
	"go.abhg.dev/gitcl/internal/silog"
	"go.abhg.dev/gitcl/internal/ui"
)

// GitRepository is the subset of git.Repository used by the handler.
type GitRepository interface {
	CurrentBranch(ctx context.Context) (string, error)
	LocalBranches(ctx context.Context) ([]string, error)
}

var _ GitRepository = (*git.Repository)(nil)

// Uploader uploads a branch and its stack.
type Uploader interface {
	Upload(ctx context.Context, req *push.Request) (*push.Result, error)
}

var _ Uploader = (*push.Uploader)(nil)

// Handler implements the upload command.
type Handler struct {
	Log        *silog.Logger // required
	View       ui.View       // required
	Repository GitRepository // required
	Uploader   Uploader      // required

	// Server is the Gerrit server the changes are on.
	Server string // required

	// Backup holds the description of a failed upload.
	Backup *backup.File
}

// Options are the command line options of the upload command.
type Options struct {
	Title     string `short:"t" placeholder:"TITLE" help:"Title of the new patchset"`
	SkipTitle bool   `short:"T" help:"Use the default patchset title without asking"`
	Message   string `short:"m" placeholder:"MSG" help:"Description of a new change"`

	CommitDescription string `name:"commit-description" placeholder:"TEXT" help:"Replace the description. Use '+' for the branch's commit messages."`
	Edit              bool   `short:"e" help:"Edit the description of an existing change"`

	Reviewers []string `short:"r" placeholder:"EMAIL" help:"Reviewers to add"`
	TBRs      []string `name:"tbrs" placeholder:"EMAIL" help:"Reviewers to add with TBR"`
	CCs       []string `name:"cc" placeholder:"EMAIL" help:"Addresses to copy"`
	NoAutoCC  bool     `name:"no-autocc" help:"Skip the default CC list for new changes"`
	Bug       string   `short:"b" placeholder:"BUG" help:"Bugs for the Bug: footer of new changes"`
	Fixed     string   `short:"x" placeholder:"BUG" help:"Bugs for the Fixed: footer of new changes"`

	SendMail bool     `short:"s" name:"send-mail" help:"Mark the change ready for review and notify reviewers"`
	Private  bool     `help:"Upload the change as private"`
	Topic    string   `placeholder:"TOPIC" help:"Topic of the change"`
	Hashtags []string `name:"hashtag" placeholder:"TAG" help:"Hashtags to add to the change"`

	UseCommitQueue   bool `short:"c" name:"use-commit-queue" xor:"cq" help:"Submit the change through the commit queue"`
	CQDryRun         bool `short:"d" name:"cq-dry-run" xor:"cq" help:"Start a commit queue dry run"`
	EnableAutoSubmit bool `name:"enable-auto-submit" help:"Vote Auto-Submit+1"`
	SetBotCommit     bool `name:"set-bot-commit" hidden:""`
	OwnersOverride   bool `name:"owners-override" help:"Vote Owners-Override+1"`
	PreserveTryjobs  bool `name:"preserve-tryjobs" help:"Keep tryjobs running when the change is updated"`

	CherryPickStacked bool   `name:"cherry-pick-stacked" config:"cherryPickStacked" help:"Upload only this branch, cherry-picked on its upstream's last upload"`
	TargetBranch      string `name:"target-branch" placeholder:"BRANCH" help:"Branch the change is for"`

	Force       bool     `short:"f" help:"Skip confirmation prompts"`
	BypassHooks bool     `name:"bypass-hooks" help:"Skip presubmit checks"`
	PushOptions []string `short:"o" name:"push-option" config:"pushOption" placeholder:"OPTION" help:"Options for git push"`
}

// UploadOptions converts the command line options.
func (o *Options) UploadOptions() *changelist.UploadOptions {
	return &changelist.UploadOptions{
		Title:             o.Title,
		SkipTitle:         o.SkipTitle,
		Message:           o.Message,
		CommitDescription: o.CommitDescription,
		EditDescription:   o.Edit,
		Reviewers:         description.CleanupList(o.Reviewers),
		TBRs:              description.CleanupList(o.TBRs),
		CCs:               description.CleanupList(o.CCs),
		NoAutoCC:          o.NoAutoCC,
		Bug:               o.Bug,
		Fixed:             o.Fixed,
		SendMail:          o.SendMail,
		Private:           o.Private,
		Topic:             o.Topic,
		Hashtags:          o.Hashtags,
		CommitQueue:       o.UseCommitQueue,
		CQDryRun:          o.CQDryRun,
		EnableAutoSubmit:  o.EnableAutoSubmit,
		SetBotCommit:      o.SetBotCommit,
		OwnersOverride:    o.OwnersOverride,
		PreserveTryjobs:   o.PreserveTryjobs,
		CherryPickStacked: o.CherryPickStacked,
		TargetBranch:      o.TargetBranch,
		Force:             o.Force,
		BypassHooks:       o.BypassHooks,
		PushOptions:       o.PushOptions,
	}
}

// Request is a request to upload a branch.
type Request struct {
	// Branch to upload. Defaults to the current branch.
	Branch string

	Options *Options // required

	// CustomBase uploads against this commit instead of the upstream.
	CustomBase string
}

// Upload uploads the requested branch and prints the changes.
func (h *Handler) Upload(ctx context.Context, req *Request) (*push.Result, error) {
	branch, err := ResolveBranch(ctx, h.Repository, req.Branch)
	if err != nil {
		return nil, err
	}

	res, err := h.Uploader.Upload(ctx, &push.Request{
		Branch:     branch,
		Options:    req.Options.UploadOptions(),
		CustomBase: req.CustomBase,
	})
	if err != nil {
		h.reportFailure()
		return nil, err
	}

	for _, c := range res.Changes {
		fmt.Fprintf(h.View, "%v: %v/%d (patchset %d)\n", c.Branch, h.Server, c.Issue, c.Patchset)
	}
	if h.Backup != nil {
		if err := h.Backup.Remove(); err != nil {
			h.Log.Warn("Could not remove description backup", "error", err)
		}
	}
	return res, nil
}

// reportFailure tells the user where the description went.
// Hints attached to err are printed by the caller.
func (h *Handler) reportFailure() {
	if h.Backup == nil {
		return
	}
	if _, err := h.Backup.Load(); err == nil {
		h.Log.Errorf("The change description was saved to %v.", h.Backup.Path())
	}
}

// BranchNotFoundError indicates that a named branch does not exist.
type BranchNotFoundError struct {
	Name string

	// Suggestions are similarly named branches, best first.
	Suggestions []string
}

func (e *BranchNotFoundError) Error() string {
	return fmt.Sprintf("branch %q does not exist", e.Name)
}

// Hint lists similar branch names.
func (e *BranchNotFoundError) Hint() string {
	if len(e.Suggestions) == 0 {
		return ""
	}
	return "Did you mean: " + strings.Join(e.Suggestions, ", ") + "?"
}

const _maxSuggestions = 3

// ErrDetached indicates that no branch was named
// and HEAD is not on a branch.
var ErrDetached = errors.New("not on a branch: check out a branch or name one")

// ResolveBranch returns name if it is a local branch,
// or the current branch if name is empty.
func ResolveBranch(ctx context.Context, repo GitRepository, name string) (string, error) {
	if name == "" {
		current, err := repo.CurrentBranch(ctx)
		if err != nil {
			return "", ErrDetached
		}
		return current, nil
	}

	branches, err := repo.LocalBranches(ctx)
	if err != nil {
		return "", fmt.Errorf("list branches: %w", err)
	}
	for _, b := range branches {
		if b == name {
			return name, nil
		}
	}

	notFound := &BranchNotFoundError{Name: name}
	for _, m := range fuzzy.Find(name, branches) {
		if len(notFound.Suggestions) == _maxSuggestions {
			break
		}
		notFound.Suggestions = append(notFound.Suggestions, m.Str)
	}
	return "", notFound
}
