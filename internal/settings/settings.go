// Package settings resolves command defaults from git config
// and from the repository's codereview.settings file.
//
// Flags of the CLI grammar tagged with `config:"key"`
// read their default from the git config key "gitcl.<key>":
//
//	type uploadCmd struct {
//		CherryPickStacked bool `config:"cherryPickStacked"`
//	}
//
//	[gitcl]
//	cherryPickStacked = true
//
// The codereview.settings file at the root of the repository
// is YAML and supplies repository-wide values for a few keys.
// git config takes precedence over the file,
// and flags passed on the command line take precedence over both.
//
// Keys under "gitcl.shorthand.*" define command shorthands.
package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/buildkite/shellwords"
	"go.abhg.dev/gitcl/internal/git"
	"go.abhg.dev/gitcl/internal/silog"
	"gopkg.in/yaml.v3"
)

// FileName is the name of the repository settings file.
const FileName = "codereview.settings"

const (
	_configTag       = "config"
	_section         = "gitcl"
	_sectionPrefix   = _section + "."
	_shorthandPrefix = _sectionPrefix + "shorthand."
)

// GitConfigLister lists git configuration.
type GitConfigLister interface {
	ConfigRegexp(ctx context.Context, pattern string) ([]git.ConfigEntry, error)
}

var _ GitConfigLister = (*git.Repository)(nil)

// Config holds resolved settings.
// It is a [kong.Resolver].
type Config struct {
	// items maps canonical keys (with the "gitcl." prefix)
	// to their values, in order.
	items map[string][]string

	shorthands map[string][]string
}

var _ kong.Resolver = (*Config)(nil)

// Options configures [Load].
type Options struct {
	// Root is the root of the working tree.
	// codereview.settings is not read if empty.
	Root string

	Log *silog.Logger
}

// Load reads settings from git config and codereview.settings.
func Load(ctx context.Context, cfg GitConfigLister, opts *Options) (*Config, error) {
	if opts == nil {
		opts = &Options{}
	}
	log := opts.Log
	if log == nil {
		log = silog.Nop()
	}

	items := make(map[string][]string)
	if opts.Root != "" {
		fileItems, err := loadFile(filepath.Join(opts.Root, FileName))
		if err != nil {
			return nil, err
		}
		items = fileItems
	}

	entries, err := cfg.ConfigRegexp(ctx, `^`+_section+`\.`)
	if err != nil {
		return nil, fmt.Errorf("list configuration: %w", err)
	}

	shorthands := make(map[string][]string)
	fromGit := make(map[string][]string)
	for _, entry := range entries {
		if short, ok := strings.CutPrefix(entry.Key, _shorthandPrefix); ok {
			longform, err := shellwords.SplitPosix(entry.Value)
			if err != nil {
				log.Warn("Skipping shorthand with invalid value",
					"shorthand", short,
					"value", entry.Value,
					"error", err,
				)
				continue
			}
			shorthands[short] = longform
			continue
		}
		fromGit[entry.Key] = append(fromGit[entry.Key], entry.Value)
	}

	// Keys set in git config replace the file's values entirely.
	for key, values := range fromGit {
		items[key] = values
	}

	return &Config{items: items, shorthands: shorthands}, nil
}

// Value reports the last value of gitcl.<key>.
func (c *Config) Value(key string) (string, bool) {
	values := c.items[canonicalKey(key)]
	if len(values) == 0 {
		return "", false
	}
	return values[len(values)-1], true
}

// ExpandShorthand returns the arguments a shorthand expands to.
func (c *Config) ExpandShorthand(name string) ([]string, bool) {
	args, ok := c.shorthands[name]
	return args, ok
}

// Shorthands lists the defined shorthands, sorted.
func (c *Config) Shorthands() []string {
	names := make([]string, 0, len(c.shorthands))
	for name := range c.shorthands {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Validate accepts unknown keys.
func (*Config) Validate(*kong.Application) error { return nil }

// Resolve fills in a flag from its configured value.
func (c *Config) Resolve(_ *kong.Context, _ *kong.Path, flag *kong.Flag) (any, error) {
	k := flag.Tag.Get(_configTag)
	if k == "" {
		return nil, nil
	}

	key := canonicalKey(k)
	values := c.items[key]
	switch {
	case len(values) == 0:
		return nil, nil
	case len(values) == 1:
		return values[0], nil
	case flag.IsSlice():
		if flag.Tag.Sep == -1 {
			return nil, fmt.Errorf("key %q has multiple values but no separator is defined", key)
		}
		return kong.JoinEscaped(values, flag.Tag.Sep), nil
	default:
		// Last value wins for single-valued flags.
		return values[len(values)-1], nil
	}
}

func canonicalKey(k string) string {
	return git.CanonicalConfigKey(_sectionPrefix + k)
}

// file is the codereview.settings format.
type file struct {
	GerritHost    string   `yaml:"gerrit-host"`
	DefaultBranch string   `yaml:"default-branch"`
	BugPrefix     string   `yaml:"bug-prefix"`
	CCList        string   `yaml:"cc-list"`
	PushOptions   wordList `yaml:"push-options"`
}

// wordList is either a YAML sequence or a single shell-quoted string.
type wordList []string

func (l *wordList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		words, err := shellwords.SplitPosix(node.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*l = words
		return nil
	}

	var items []string
	if err := node.Decode(&items); err != nil {
		return err
	}
	*l = items
	return nil
}

func loadFile(path string) (map[string][]string, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string][]string), nil
		}
		return nil, fmt.Errorf("read %v: %w", FileName, err)
	}

	var f file
	if err := yaml.Unmarshal(bs, &f); err != nil {
		return nil, fmt.Errorf("parse %v: %w", FileName, err)
	}

	items := make(map[string][]string)
	set := func(key string, values ...string) {
		if len(values) > 0 && values[0] != "" {
			items[canonicalKey(key)] = values
		}
	}
	set("server", f.GerritHost)
	set("defaultBranch", f.DefaultBranch)
	set("bugPrefix", f.BugPrefix)
	set("ccList", f.CCList)
	set("pushOption", f.PushOptions...)
	return items, nil
}
