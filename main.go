// git-cl uploads stacks of local branches to Gerrit for review.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/alecthomas/kong"
	"github.com/mattn/go-isatty"
	"go.abhg.dev/gitcl/internal/git"
	"go.abhg.dev/gitcl/internal/settings"
	"go.abhg.dev/gitcl/internal/silog"
	"go.abhg.dev/gitcl/internal/ui"
	"go.abhg.dev/komplete"
)

var _version = "dev"

// _buildView constructs the view used to talk to the user.
// Tests replace it to script prompts.
var _buildView = func(stdin io.Reader, stderr io.Writer, interactive bool) ui.View {
	if interactive {
		return &ui.TerminalView{R: stdin, W: stderr}
	}
	return &ui.FileView{W: stderr}
}

func main() {
	logger := silog.New(os.Stderr, &silog.Options{
		Level: silog.LevelInfo,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt)
	go func() {
		select {
		case <-sigc:
			logger.Info("Cleaning up. Press Ctrl-C again to exit immediately.")
			cancel()
			signal.Stop(sigc)
		case <-ctx.Done():
		}
	}()

	os.Exit(run(ctx, logger, os.Args[1:]))
}

func run(ctx context.Context, logger *silog.Logger, args []string) (exitCode int) {
	isTerminal := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())

	cfg := &lazySettings{ctx: ctx, log: logger}
	// Shorthands are only recognized as the first argument,
	// so -C cannot have changed the directory yet.
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		c, err := cfg.Get()
		if err != nil {
			logger.Errorf("git-cl: %v", err)
			return 1
		}
		if long, ok := c.ExpandShorthand(args[0]); ok {
			logger.Debugf("expanding shorthand %q to %q", args[0], long)
			args = slices.Replace(args, 0, 1, long...)
		}
	}

	var cmd mainCmd
	parser, err := kong.New(&cmd,
		kong.Name("git-cl"),
		kong.Description("git-cl uploads stacks of branches to Gerrit for review."),
		kong.Bind(logger, cfg),
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.Vars{
			// Default to non-interactive mode if we're not in a terminal.
			"nonInteractive": strconv.FormatBool(!isTerminal),
		},
		kong.Resolvers(cfg),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)
	if err != nil {
		panic(err)
	}

	komplete.Run(parser,
		komplete.WithPredictor("branches", komplete.PredictFunc(predictBranches)),
		komplete.WithTransformCompleted(func(completed []string) []string {
			if len(completed) == 0 {
				return completed
			}
			if c, err := cfg.Get(); err == nil {
				if long, ok := c.ExpandShorthand(completed[0]); ok {
					return slices.Replace(completed, 0, 1, long...)
				}
			}
			return completed
		}),
	)

	kctx, err := parser.Parse(args)
	if err != nil {
		logger.Errorf("git-cl: %v", err)
		return 1
	}

	if err := kctx.Run(); err != nil {
		logger.Errorf("git-cl: %v", err)
		printHints(logger, err)
		return 1
	}
	return 0
}

// printHints logs the remediation text of every error in the chain.
func printHints(logger *silog.Logger, err error) {
	var seen []string
	for e := range allErrors(err) {
		h, ok := e.(interface{ Hint() string })
		if !ok {
			continue
		}
		hint := strings.TrimSpace(h.Hint())
		if hint == "" || slices.Contains(seen, hint) {
			continue
		}
		seen = append(seen, hint)
		for line := range strings.SplitSeq(hint, "\n") {
			logger.Error(line)
		}
	}
}

// allErrors yields err and everything it wraps, depth first.
func allErrors(err error) func(yield func(error) bool) {
	return func(yield func(error) bool) {
		var walk func(error) bool
		walk = func(err error) bool {
			if err == nil {
				return true
			}
			if !yield(err) {
				return false
			}
			switch e := err.(type) {
			case interface{ Unwrap() []error }:
				for _, inner := range e.Unwrap() {
					if !walk(inner) {
						return false
					}
				}
			default:
				return walk(errors.Unwrap(err))
			}
			return true
		}
		walk(err)
	}
}

type mainCmd struct {
	// Flags with side effects whose values are never accessed directly.
	Verbose bool               `short:"v" help:"Enable verbose output" env:"GIT_CL_VERBOSE"`
	Dir     kong.ChangeDirFlag `short:"C" placeholder:"DIR" help:"Change to DIR before doing anything"`
	Version versionFlag        `help:"Print version information and quit"`

	NonInteractive bool `name:"non-interactive" short:"I" default:"${nonInteractive}" env:"GIT_CL_NONINTERACTIVE" help:"Disable interactive prompts"`

	Upload      uploadCmd      `cmd:"" aliases:"up" group:"Review" help:"Upload the current branch and its stack to Gerrit"`
	Land        landCmd        `cmd:"" group:"Review" help:"Submit the change of a branch"`
	Patch       patchCmd       `cmd:"" group:"Review" help:"Check out a change into a new branch"`
	Try         tryCmd         `cmd:"" group:"Review" help:"Start a commit queue dry run"`
	SetCommit   setCommitCmd   `cmd:"" name:"set-commit" group:"Review" help:"Send a change to the commit queue"`
	Status      statusCmd      `cmd:"" aliases:"st" group:"Branch" help:"Show the review status of branches"`
	Issue       issueCmd       `cmd:"" group:"Branch" help:"Show or set the change of a branch"`
	Description descriptionCmd `cmd:"" aliases:"desc" group:"Branch" help:"Show or replace the description of a change"`
	Web         webCmd         `cmd:"" group:"Branch" help:"Open the change of a branch in a browser"`
	Logout      logoutCmd      `cmd:"" group:"Other" help:"Forget the cached credentials for the Gerrit server"`
	Completion  completionCmd  `cmd:"" group:"Other" help:"Generate shell completion script"`
	VersionCmd  versionCmd     `cmd:"" name:"version" group:"Other" help:"Print version information"`
}

func (cmd *mainCmd) AfterApply(ctx context.Context, kctx *kong.Context, logger *silog.Logger, cfg *lazySettings) error {
	if cmd.Verbose {
		logger.SetLevel(silog.LevelDebug)
	}

	view := _buildView(os.Stdin, os.Stderr, !cmd.NonInteractive)
	kctx.BindTo(view, (*ui.View)(nil))
	return bindServices(ctx, kctx, logger, view, cfg)
}

// lazySettings loads the settings on first use:
// after -C has changed the working directory.
type lazySettings struct {
	ctx context.Context
	log *silog.Logger

	once sync.Once
	cfg  *settings.Config
	err  error
}

// Get returns the settings of the repository in the working directory.
// Outside a repository, only settings without one apply.
func (l *lazySettings) Get() (*settings.Config, error) {
	l.once.Do(func() {
		ctx := l.ctx
		repo, err := git.Open(ctx, "", git.OpenOptions{Log: l.log})
		if err != nil {
			l.log.Debug("Not in a repository: ignoring repository settings", "error", err)
			l.cfg, l.err = settings.Load(ctx, noConfig{}, &settings.Options{Log: l.log})
			return
		}
		l.cfg, l.err = settings.Load(ctx, repo, &settings.Options{
			Root: repo.Root(),
			Log:  l.log,
		})
	})
	return l.cfg, l.err
}

var _ kong.Resolver = (*lazySettings)(nil)

func (l *lazySettings) Validate(app *kong.Application) error {
	cfg, err := l.Get()
	if err != nil {
		return err
	}
	return cfg.Validate(app)
}

func (l *lazySettings) Resolve(kctx *kong.Context, parent *kong.Path, flag *kong.Flag) (any, error) {
	cfg, err := l.Get()
	if err != nil {
		return nil, err
	}
	return cfg.Resolve(kctx, parent, flag)
}

// noConfig is an empty git configuration.
type noConfig struct{}

func (noConfig) ConfigRegexp(context.Context, string) ([]git.ConfigEntry, error) {
	return nil, nil
}

func errNoChange(branch string) error {
	return fmt.Errorf("branch %v has no change: upload it first or run 'git cl issue'", branch)
}
