package main

import (
	"context"
	"path/filepath"

	"github.com/alecthomas/kong"
	"go.abhg.dev/gitcl/internal/changelist"
	"go.abhg.dev/gitcl/internal/git"
	"go.abhg.dev/gitcl/internal/handler/upload"
	"go.abhg.dev/gitcl/internal/push"
	"go.abhg.dev/gitcl/internal/reconcile"
	"go.abhg.dev/gitcl/internal/silog"
	"go.abhg.dev/gitcl/internal/stack"
	"go.abhg.dev/gitcl/internal/text"
	"go.abhg.dev/gitcl/internal/ui"
)

type uploadCmd struct {
	upload.Options

	Base string `placeholder:"COMMIT" help:"Upload the change against this commit instead of the upstream"`

	Branch string `arg:"" optional:"" placeholder:"BRANCH" predictor:"branches" help:"Branch to upload. Defaults to the current branch."`
}

func (*uploadCmd) Help() string {
	return text.Dedent(`
		Squashes the branch into a single commit and pushes it to Gerrit,
		creating a change or adding a patchset to the existing one.

		If the branch is stacked on other local branches,
		those are uploaded with it unless --cherry-pick-stacked is set.
		Changes uploaded from elsewhere are merged into the branch first.
	`)
}

// UploadHandler uploads branches.
type UploadHandler interface {
	Upload(ctx context.Context, req *upload.Request) (*push.Result, error)
}

var _ UploadHandler = (*upload.Handler)(nil)

func (*uploadCmd) AfterApply(kctx *kong.Context) error {
	return kctx.BindToProvider(func(
		log *silog.Logger,
		view ui.View,
		repo *git.Repository,
		walker *stack.Walker,
		svc *changelist.Services,
	) (UploadHandler, error) {
		uploader := push.NewUploader(repo, &push.UploaderOptions{
			Planner:    walker,
			View:       view,
			Log:        log,
			Reconciler: reconcile.New(repo, view, log),
			TraceRoot:  filepath.Join(repo.GitDir(), _traceDirName),
		})
		return &upload.Handler{
			Log:        log,
			View:       view,
			Repository: repo,
			Uploader:   uploader,
			Server:     svc.Gerrit.Server(),
			Backup:     svc.Backup,
		}, nil
	})
}

func (cmd *uploadCmd) Run(ctx context.Context, handler UploadHandler) error {
	_, err := handler.Upload(ctx, &upload.Request{
		Branch:     cmd.Branch,
		Options:    &cmd.Options,
		CustomBase: cmd.Base,
	})
	return err
}
