// Package changelist binds a local branch to a change on Gerrit.
//
// A [Changelist] lazily reads the issue and patchset recorded for its branch,
// caches change details for the life of the process,
// and prepares the squashed commits uploaded for the branch.
package changelist

//go:generate mockgen -destination=changelisttest/mock_gerrit.go -package=changelisttest -write_package_comment=false . GerritService

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.abhg.dev/gitcl/internal/backup"
	"go.abhg.dev/gitcl/internal/branchstate"
	"go.abhg.dev/gitcl/internal/description"
	"go.abhg.dev/gitcl/internal/footer"
	"go.abhg.dev/gitcl/internal/gerrit"
	"go.abhg.dev/gitcl/internal/git"
	"go.abhg.dev/gitcl/internal/presubmit"
	"go.abhg.dev/gitcl/internal/silog"
	"go.abhg.dev/gitcl/internal/ui"
	"go.abhg.dev/gitcl/internal/upstream"
)

// GitRepository is the subset of git.Repository used by changelists.
type GitRepository interface {
	upstream.GitRepository
	branchstate.ConfigStore

	PeelToTree(ctx context.Context, ref string) (git.Hash, error)
	IsAncestor(ctx context.Context, a, b git.Hash) bool
	CurrentBranch(ctx context.Context) (string, error)
	Checkout(ctx context.Context, ref string) error
	RemoteURL(ctx context.Context, remote string) (string, error)
	Config(ctx context.Context, key string) (string, error)

	CommitTree(ctx context.Context, req git.CommitTreeRequest) (git.Hash, error)
	CherryPick(ctx context.Context, commit git.Hash) error
	CherryPickAbort(ctx context.Context) error
	AmendMessage(ctx context.Context, message string) error
	CommitSubject(ctx context.Context, ref string) (string, error)
	CommitMessage(ctx context.Context, ref string) (string, error)
	LogMessages(ctx context.Context, start, stop git.Hash) (string, error)
	DiffNames(ctx context.Context, from, to git.Hash) ([]string, error)

	WriteTree(ctx context.Context) (git.Hash, error)
	Var(ctx context.Context, name string) (string, error)
	HashObject(ctx context.Context, typ, content string) (git.Hash, error)
}

var _ GitRepository = (*git.Repository)(nil)

// GerritService is the subset of the Gerrit client used by changelists.
type GerritService interface {
	Server() string
	ChangeDetail(ctx context.Context, change string, options ...string) (*gerrit.Change, error)
	AccountEmails(ctx context.Context, account string) ([]gerrit.AccountEmail, error)
	CodeReviewTbrScore(ctx context.Context, project string) (int, error)
	AddReviewers(ctx context.Context, change string, reviewers, ccs []string, notify bool) error
}

var _ GerritService = (*gerrit.Client)(nil)

// PresubmitRunner runs presubmit checks for a change.
type PresubmitRunner interface {
	Run(ctx context.Context, req presubmit.Request) (*presubmit.Result, error)
}

var _ PresubmitRunner = (*presubmit.Runner)(nil)

// Services are the collaborators shared by all changelists
// of one invocation.
type Services struct {
	Repo      GitRepository      // required
	Gerrit    GerritService      // required
	Store     *branchstate.Store // required
	Upstreams *upstream.Resolver // required
	View      ui.View            // required
	Log       *silog.Logger

	// Presubmit runs checks before upload.
	// Checks are skipped if unset.
	Presubmit PresubmitRunner

	// Edit opens descriptions in an editor.
	// Descriptions are not edited if unset.
	Edit description.EditFunc

	// Backup receives a copy of every description prepared for upload.
	Backup *backup.File

	// DefaultCCs are copied on new changes.
	DefaultCCs []string

	// BugPrefix qualifies bare bug numbers.
	BugPrefix string
}

// Changelist is the handle for one local branch and its change.
//
// It is not safe for concurrent use.
type Changelist struct {
	branch string
	svc    *Services
	log    *silog.Logger

	issue    Resolved[int]
	patchset Resolved[int]
	details  detailCache

	// Addresses to copy in addition to those in the description.
	moreCCs []string
}

// New builds a handle for branch.
// Nothing is read until it is needed.
func New(branch string, svc *Services) *Changelist {
	log := svc.Log
	if log == nil {
		log = silog.Nop()
	}
	return &Changelist{
		branch: branch,
		svc:    svc,
		log:    log,
	}
}

// Branch is the local branch name.
func (cl *Changelist) Branch() string {
	return cl.branch
}

// Issue returns the change number of the branch, or 0 if it has none.
func (cl *Changelist) Issue(ctx context.Context) (int, error) {
	return cl.issue.Get(func() (int, error) {
		return cl.svc.Store.Issue(ctx, cl.branch)
	})
}

// Patchset returns the last patchset recorded for the branch, or 0.
func (cl *Changelist) Patchset(ctx context.Context) (int, error) {
	return cl.patchset.Get(func() (int, error) {
		return cl.svc.Store.Patchset(ctx, cl.branch)
	})
}

// SetIssue associates the branch with a change.
//
// An issue of 0 clears all review state of the branch.
// If the branch is checked out and its tip carries a Change-Id,
// the footer is removed from it so that the next upload starts a new change.
func (cl *Changelist) SetIssue(ctx context.Context, issue int) error {
	cl.details.reset()
	if issue != 0 {
		if err := cl.svc.Store.SetIssue(ctx, cl.branch, issue, cl.svc.Gerrit.Server()); err != nil {
			return err
		}
		cl.issue.Set(issue)
		cl.patchset.Reset()
		return nil
	}

	if err := cl.svc.Store.Clear(ctx, cl.branch); err != nil {
		return err
	}
	cl.issue.Set(0)
	cl.patchset.Set(0)

	if current, err := cl.svc.Repo.CurrentBranch(ctx); err != nil || current != cl.branch {
		return nil
	}

	msg, err := cl.svc.Repo.CommitMessage(ctx, "HEAD")
	if err != nil || len(footer.ChangeIDs(msg)) == 0 {
		return nil
	}
	cl.log.Warn("The change patched into this branch has a Change-Id. Removing it.")
	if err := cl.svc.Repo.AmendMessage(ctx, footer.Remove(msg, footer.ChangeIDKey)); err != nil {
		return fmt.Errorf("remove Change-Id: %w", err)
	}
	return nil
}

// SetPatchset records the patchset of the branch.
// A patchset of 0 clears it.
func (cl *Changelist) SetPatchset(ctx context.Context, patchset int) error {
	if err := cl.svc.Store.SetPatchset(ctx, cl.branch, patchset); err != nil {
		return err
	}
	cl.patchset.Set(patchset)
	return nil
}

// ErrNoIssue indicates that the branch has no change.
var ErrNoIssue = errors.New("no issue on this branch")

func (cl *Changelist) mustIssue(ctx context.Context) (int, error) {
	issue, err := cl.Issue(ctx)
	if err != nil {
		return 0, err
	}
	if issue == 0 {
		return 0, fmt.Errorf("branch %v: %w", cl.branch, ErrNoIssue)
	}
	return issue, nil
}

// Detail fetches the change with at least the given detail options.
//
// Responses are cached for the life of the handle.
// A request is served from the cache if an earlier request
// asked for all of the same options.
func (cl *Changelist) Detail(ctx context.Context, options ...string) (*gerrit.Change, error) {
	issue, err := cl.mustIssue(ctx)
	if err != nil {
		return nil, err
	}

	options = normalizeOptions(options)
	if change, ok := cl.details.get(options); ok {
		return change, nil
	}

	change, err := cl.svc.Gerrit.ChangeDetail(ctx, strconv.Itoa(issue), options...)
	if err != nil {
		return nil, fmt.Errorf("change %d: %w", issue, err)
	}
	cl.details.put(options, change)
	return change, nil
}

// MostRecentPatchset reports the current patchset on the server,
// or 0 if the branch has no change.
//
// If update is set, the patchset is recorded for the branch.
func (cl *Changelist) MostRecentPatchset(ctx context.Context, update bool) (int, error) {
	issue, err := cl.Issue(ctx)
	if err != nil || issue == 0 {
		return 0, err
	}

	change, err := cl.Detail(ctx, gerrit.OptionCurrentRevision)
	if err != nil {
		return 0, err
	}
	cur, ok := change.Current()
	if !ok {
		return 0, fmt.Errorf("change %d: no current revision", issue)
	}
	if update {
		if err := cl.SetPatchset(ctx, cur.Number); err != nil {
			return 0, err
		}
	}
	return cur.Number, nil
}

// IssueURL returns the URL of the change, or "" if there is none.
func (cl *Changelist) IssueURL(ctx context.Context) (string, error) {
	issue, err := cl.Issue(ctx)
	if err != nil || issue == 0 {
		return "", err
	}
	return cl.svc.Gerrit.Server() + "/" + strconv.Itoa(issue), nil
}

// Description returns the commit message of the current patchset.
func (cl *Changelist) Description(ctx context.Context) (string, error) {
	change, err := cl.Detail(ctx, gerrit.OptionCurrentRevision, gerrit.OptionCurrentCommit)
	if err != nil {
		return "", err
	}
	cur, ok := change.Current()
	if !ok {
		return "", fmt.Errorf("change %d: no current revision", change.Number())
	}
	return cur.Message, nil
}

// Upstream returns the configured upstream of the branch.
func (cl *Changelist) Upstream(ctx context.Context) (upstream.Upstream, error) {
	return cl.svc.Upstreams.Resolve(ctx, cl.branch)
}

// CommonAncestor returns the merge base of the branch with its upstream.
func (cl *Changelist) CommonAncestor(ctx context.Context) (git.Hash, error) {
	return cl.svc.Upstreams.CommonAncestor(ctx, cl.branch)
}

// RemoteBranch reports the remote the branch ultimately tracks
// and the remote-tracking ref for it.
func (cl *Changelist) RemoteBranch(ctx context.Context) (remote, ref string, err error) {
	return cl.svc.Upstreams.RemoteBranch(ctx, cl.branch)
}

// Project returns the Gerrit project of the branch's remote.
func (cl *Changelist) Project(ctx context.Context) (string, error) {
	remote, _, err := cl.RemoteBranch(ctx)
	if err != nil {
		return "", err
	}
	remoteURL, err := cl.svc.Repo.RemoteURL(ctx, remote)
	if err != nil {
		return "", fmt.Errorf("remote %v: %w", remote, err)
	}
	return gerrit.ProjectFromRemoteURL(remoteURL)
}

// SquashHash returns the squashed commit last pushed for the branch.
func (cl *Changelist) SquashHash(ctx context.Context) (git.Hash, error) {
	return cl.svc.Store.SquashHash(ctx, cl.branch)
}

// LastUploadHash returns the branch tip last pushed.
func (cl *Changelist) LastUploadHash(ctx context.Context) (git.Hash, error) {
	return cl.svc.Store.LastUploadHash(ctx, cl.branch)
}

// Tip returns the commit at the tip of the branch.
func (cl *Changelist) Tip(ctx context.Context) (git.Hash, error) {
	return cl.svc.Repo.PeelToCommit(ctx, "refs/heads/"+cl.branch)
}

// ExtendCC adds addresses to copy on the change.
func (cl *Changelist) ExtendCC(ccs ...string) {
	cl.moreCCs = append(cl.moreCCs, ccs...)
}
