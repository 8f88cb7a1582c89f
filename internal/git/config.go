package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"go.abhg.dev/gitcl/internal/xec"
)

// Config reports the value of the given configuration key.
// It returns [ErrNotExist] if the key is not set.
func (r *Repository) Config(ctx context.Context, key string) (string, error) {
	out, err := r.gitCmd(ctx, "config", "--get", key).OutputChomp()
	if err != nil {
		if code, ok := xec.ExitCode(err); ok && code == 1 {
			return "", fmt.Errorf("config %v: %w", key, ErrNotExist)
		}
		return "", fmt.Errorf("config %v: %w", key, err)
	}
	return out, nil
}

// SetConfig sets the given configuration key in the local repository.
func (r *Repository) SetConfig(ctx context.Context, key, value string) error {
	if err := r.gitCmd(ctx, "config", key, value).Run(); err != nil {
		return fmt.Errorf("config %v: %w", key, err)
	}
	return nil
}

// UnsetConfig removes the given configuration key.
// It is not an error if the key does not exist.
func (r *Repository) UnsetConfig(ctx context.Context, key string) error {
	err := r.gitCmd(ctx, "config", "--unset", key).Run()
	if err != nil {
		// git config exits with 5 when the key is absent.
		if code, ok := xec.ExitCode(err); ok && code == 5 {
			return nil
		}
		return fmt.Errorf("unset %v: %w", key, err)
	}
	return nil
}

// ConfigEntry is one value of a configuration key.
// Multi-valued keys produce one entry per value.
type ConfigEntry struct {
	Key   string // canonical, see [CanonicalConfigKey]
	Value string
}

// ConfigRegexp lists the configuration entries
// whose keys match the given regular expression,
// in the order git reports them.
func (r *Repository) ConfigRegexp(ctx context.Context, pattern string) ([]ConfigEntry, error) {
	out, err := r.gitCmd(ctx, "config", "--null", "--get-regexp", pattern).Output()
	if err != nil {
		if code, ok := xec.ExitCode(err); ok && code == 1 {
			return nil, nil // no matches
		}
		return nil, fmt.Errorf("config --get-regexp %v: %w", pattern, err)
	}

	var entries []ConfigEntry
	for rec := range bytes.SplitSeq(out, []byte{0}) {
		if len(rec) == 0 {
			continue
		}
		key, value, _ := bytes.Cut(rec, []byte{'\n'})
		entries = append(entries, ConfigEntry{
			Key:   CanonicalConfigKey(string(key)),
			Value: string(value),
		})
	}
	return entries, nil
}

// CanonicalConfigKey lowercases the section and name of a key.
// The subsection, if any, is case sensitive and kept as is.
func CanonicalConfigKey(key string) string {
	first := strings.IndexByte(key, '.')
	last := strings.LastIndexByte(key, '.')
	if first < 0 {
		return strings.ToLower(key)
	}
	return strings.ToLower(key[:first]) + key[first:last] + strings.ToLower(key[last:])
}

// BranchConfig reports the value of branch.<branch>.<key>.
func (r *Repository) BranchConfig(ctx context.Context, branch, key string) (string, error) {
	return r.Config(ctx, branchKey(branch, key))
}

// SetBranchConfig sets branch.<branch>.<key>.
func (r *Repository) SetBranchConfig(ctx context.Context, branch, key, value string) error {
	return r.SetConfig(ctx, branchKey(branch, key), value)
}

// UnsetBranchConfig removes branch.<branch>.<key>.
func (r *Repository) UnsetBranchConfig(ctx context.Context, branch, key string) error {
	return r.UnsetConfig(ctx, branchKey(branch, key))
}

func branchKey(branch, key string) string {
	return "branch." + branch + "." + key
}

// IsNotExist reports whether err indicates a missing object or value.
func IsNotExist(err error) bool {
	return errors.Is(err, ErrNotExist)
}
