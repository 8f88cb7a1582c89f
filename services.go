package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/alecthomas/kong"
	"go.abhg.dev/gitcl/internal/auth"
	"go.abhg.dev/gitcl/internal/backup"
	"go.abhg.dev/gitcl/internal/branchstate"
	"go.abhg.dev/gitcl/internal/browser"
	"go.abhg.dev/gitcl/internal/changelist"
	"go.abhg.dev/gitcl/internal/description"
	"go.abhg.dev/gitcl/internal/execedit"
	"go.abhg.dev/gitcl/internal/gerrit"
	"go.abhg.dev/gitcl/internal/git"
	"go.abhg.dev/gitcl/internal/presubmit"
	"go.abhg.dev/gitcl/internal/secret"
	"go.abhg.dev/gitcl/internal/settings"
	"go.abhg.dev/gitcl/internal/silog"
	"go.abhg.dev/gitcl/internal/stack"
	"go.abhg.dev/gitcl/internal/ui"
	"go.abhg.dev/gitcl/internal/upstream"
)

var (
	// _secretStash holds cached credentials.
	// If nil, the system keyring is used,
	// falling back to a file in the user's config directory.
	_secretStash secret.Stash

	// _browserLauncher opens URLs for the web command.
	_browserLauncher browser.Launcher = new(browser.System)
)

// Name of the directory under the git dir holding push traces.
const _traceDirName = "gitcl-traces"

// services builds the collaborators of a command on first use.
// Commands only pay for what they ask for:
// printing the version never opens the repository.
type services struct {
	ctx      context.Context
	log      *silog.Logger
	view     ui.View
	settings *lazySettings

	repo       func() (*git.Repository, error)
	store      func() (*branchstate.Store, error)
	upstreams  func() (*upstream.Resolver, error)
	gerrit     func() (*gerrit.Client, error)
	changes    func() (*changelist.Services, error)
	walker     func() (*stack.Walker, error)
	secretOnce func() secret.Stash
}

func bindServices(ctx context.Context, kctx *kong.Context, log *silog.Logger, view ui.View, cfg *lazySettings) error {
	s := &services{ctx: ctx, log: log, view: view, settings: cfg}
	s.repo = sync.OnceValues(s.openRepo)
	s.store = sync.OnceValues(s.newStore)
	s.upstreams = sync.OnceValues(s.newUpstreams)
	s.gerrit = sync.OnceValues(s.newGerrit)
	s.changes = sync.OnceValues(s.newChangelistServices)
	s.walker = sync.OnceValues(s.newWalker)
	s.secretOnce = sync.OnceValue(s.newSecretStash)

	kctx.BindTo(&browser.Fallback{
		Launcher: _browserLauncher,
		W:        os.Stderr,
	}, (*browser.Launcher)(nil))

	return errors.Join(
		kctx.BindToProvider(s.repo),
		kctx.BindToProvider(cfg.Get),
		kctx.BindToProvider(s.store),
		kctx.BindToProvider(s.gerrit),
		kctx.BindToProvider(s.changes),
		kctx.BindToProvider(s.walker),
		kctx.BindToProvider(func() (secret.Stash, error) {
			return s.secretOnce(), nil
		}),
	)
}

func (s *services) openRepo() (*git.Repository, error) {
	repo, err := git.Open(s.ctx, "", git.OpenOptions{Log: s.log})
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	return repo, nil
}

func (s *services) newStore() (*branchstate.Store, error) {
	repo, err := s.repo()
	if err != nil {
		return nil, err
	}
	return branchstate.New(repo, s.log), nil
}

func (s *services) newUpstreams() (*upstream.Resolver, error) {
	repo, err := s.repo()
	if err != nil {
		return nil, err
	}
	return upstream.NewResolver(repo, s.log), nil
}

func (s *services) newSecretStash() secret.Stash {
	if _secretStash != nil {
		return _secretStash
	}

	var secondary secret.Stash = new(secret.Memory)
	if dir, err := os.UserConfigDir(); err == nil {
		secondary = &secret.File{
			Path: filepath.Join(dir, "git-cl", "secrets.yaml"),
			Log:  s.log,
		}
	} else {
		s.log.Debug("No config directory: credentials will not outlive this command", "error", err)
	}
	return &secret.Fallback{
		Primary:   new(secret.Keyring),
		Secondary: secondary,
	}
}

func (s *services) newGerrit() (*gerrit.Client, error) {
	cfg, err := s.settings.Get()
	if err != nil {
		return nil, err
	}
	server, err := s.resolveServer(cfg)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(server)
	if err != nil {
		return nil, fmt.Errorf("parse server URL: %w", err)
	}
	helper, _ := cfg.Value("credentialHelper")

	return gerrit.NewClient(server, &gerrit.Options{
		Token: auth.TokenSource(s.ctx, u.Host, &auth.Options{
			Helper: helper,
			Stash:  s.secretOnce(),
			Log:    s.log,
		}),
		Log: s.log,
	}), nil
}

// errUnknownServer is returned when no Gerrit server can be determined.
var errUnknownServer = errors.New("cannot determine the Gerrit server: set gitcl.server or configure an 'origin' remote")

// resolveServer picks the Gerrit server, in order of preference,
// from gitcl.server, the server recorded for the current branch,
// or the remote the current branch tracks.
func (s *services) resolveServer(cfg *settings.Config) (string, error) {
	if server, ok := cfg.Value("server"); ok && server != "" {
		return normalizeServer(server), nil
	}

	repo, err := s.repo()
	if err != nil {
		return "", err
	}

	remote := "origin"
	if branch, err := repo.CurrentBranch(s.ctx); err == nil {
		store, err := s.store()
		if err != nil {
			return "", err
		}
		if server, err := store.Server(s.ctx, branch); err == nil && server != "" {
			return normalizeServer(server), nil
		}

		upstreams, err := s.upstreams()
		if err != nil {
			return "", err
		}
		if r, _, err := upstreams.RemoteBranch(s.ctx, branch); err == nil {
			remote = r
		}
	}

	remoteURL, err := repo.RemoteURL(s.ctx, remote)
	if err != nil {
		s.log.Debug("Could not read remote URL", "remote", remote, "error", err)
		return "", errUnknownServer
	}
	return gerrit.ServerFromRemoteURL(remoteURL)
}

// normalizeServer turns a host or URL into a server URL.
func normalizeServer(server string) string {
	if !strings.Contains(server, "://") {
		server = "https://" + server
	}
	return strings.TrimSuffix(server, "/")
}

func (s *services) newChangelistServices() (*changelist.Services, error) {
	repo, err := s.repo()
	if err != nil {
		return nil, err
	}
	cfg, err := s.settings.Get()
	if err != nil {
		return nil, err
	}
	client, err := s.gerrit()
	if err != nil {
		return nil, err
	}
	store, err := s.store()
	if err != nil {
		return nil, err
	}
	upstreams, err := s.upstreams()
	if err != nil {
		return nil, err
	}

	editor := &execedit.Editor{
		Editor: gitEditor(s.ctx, repo),
		Dir:    repo.GitDir(),
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}

	svc := &changelist.Services{
		Repo:      repo,
		Gerrit:    client,
		Store:     store,
		Upstreams: upstreams,
		View:      s.view,
		Log:       s.log,
		Edit:      editor.Edit,
		Backup:    backup.New(repo.GitDir()),
	}
	if cmd, ok := cfg.Value("presubmit"); ok && cmd != "" {
		svc.Presubmit = presubmit.NewRunner(cmd, &presubmit.RunnerOptions{
			Dir: repo.Root(),
			Log: s.log,
		})
	}
	if ccs, ok := cfg.Value("ccList"); ok {
		svc.DefaultCCs = description.CleanupList(strings.Fields(ccs))
	}
	if prefix, ok := cfg.Value("bugPrefix"); ok {
		svc.BugPrefix = prefix
	}
	return svc, nil
}

func (s *services) newWalker() (*stack.Walker, error) {
	repo, err := s.repo()
	if err != nil {
		return nil, err
	}
	svc, err := s.changes()
	if err != nil {
		return nil, err
	}
	return stack.NewWalker(repo, &stack.WalkerOptions{
		View: s.view,
		Log:  s.log,
		Open: func(branch string) *changelist.Changelist {
			return changelist.New(branch, svc)
		},
	}), nil
}

// gitEditor returns the editor to use
// to prompt the user to fill information.
func gitEditor(ctx context.Context, repo *git.Repository) string {
	gitEditor, err := repo.Var(ctx, "GIT_EDITOR")
	if err != nil {
		// 'git var GIT_EDITOR' will basically never fail,
		// but if it does, fall back to EDITOR or vi.
		return cmp.Or(os.Getenv("EDITOR"), "vi")
	}
	return gitEditor
}
