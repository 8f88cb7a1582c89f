// Package branchstate persists per-branch review state in git config.
//
// Each local branch may carry the following keys under branch.<name>:
//
//	gerritissue       change number on the review server
//	gerritpatchset    last known patchset of that change
//	gerritserver      review server URL
//	gerritsquashhash  squashed commit pushed last time
//	last-upload-hash  local branch tip pushed last time
//
// Every write is a single git config invocation.
// A sequence of writes is not transactional.
package branchstate

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.abhg.dev/gitcl/internal/git"
	"go.abhg.dev/gitcl/internal/silog"
)

// Config keys stored for each branch.
const (
	IssueKey          = "gerritissue"
	PatchsetKey       = "gerritpatchset"
	ServerKey         = "gerritserver"
	SquashHashKey     = "gerritsquashhash"
	LastUploadHashKey = "last-upload-hash"
)

// Keys lists all keys managed by the store.
var Keys = []string{IssueKey, PatchsetKey, ServerKey, SquashHashKey, LastUploadHashKey}

// ConfigStore reads and writes per-branch configuration.
// It is a subset of the functionality provided by git.Repository.
type ConfigStore interface {
	// BranchConfig returns the value of branch.<branch>.<key>,
	// or an error matching git.ErrNotExist if it is unset.
	BranchConfig(ctx context.Context, branch, key string) (string, error)
	SetBranchConfig(ctx context.Context, branch, key, value string) error

	// UnsetBranchConfig removes the key.
	// Unsetting a missing key is not an error.
	UnsetBranchConfig(ctx context.Context, branch, key string) error
}

var _ ConfigStore = (*git.Repository)(nil)

// Record is the persisted state of a branch.
// Zero values indicate absent keys.
type Record struct {
	Branch         string
	Issue          int
	Patchset       int
	Server         string
	LastUploadHash git.Hash
	SquashHash     git.Hash
}

// Store provides access to branch records.
type Store struct {
	cfg ConfigStore
	log *silog.Logger
}

// New builds a store backed by the given configuration.
func New(cfg ConfigStore, log *silog.Logger) *Store {
	if log == nil {
		log = silog.Nop()
	}
	return &Store{cfg: cfg, log: log}
}

// Load reads the full record of a branch.
// Branches that were never uploaded yield a record with only Branch set.
func (s *Store) Load(ctx context.Context, branch string) (*Record, error) {
	rec := Record{Branch: branch}

	var err error
	if rec.Issue, err = s.Issue(ctx, branch); err != nil {
		return nil, err
	}
	if rec.Patchset, err = s.Patchset(ctx, branch); err != nil {
		return nil, err
	}
	if rec.Server, err = s.get(ctx, branch, ServerKey); err != nil {
		return nil, err
	}
	if rec.LastUploadHash, err = s.LastUploadHash(ctx, branch); err != nil {
		return nil, err
	}
	if rec.SquashHash, err = s.SquashHash(ctx, branch); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Issue returns the change number of the branch, or 0.
func (s *Store) Issue(ctx context.Context, branch string) (int, error) {
	return s.getInt(ctx, branch, IssueKey)
}

// SetIssue associates the branch with a change on server.
//
// Setting an issue of 0 clears every key of the branch record.
func (s *Store) SetIssue(ctx context.Context, branch string, issue int, server string) error {
	if issue == 0 {
		return s.Clear(ctx, branch)
	}

	if err := s.set(ctx, branch, IssueKey, strconv.Itoa(issue)); err != nil {
		return err
	}
	if server != "" {
		if err := s.set(ctx, branch, ServerKey, server); err != nil {
			return err
		}
	}
	return nil
}

// Clear removes all review state of the branch.
func (s *Store) Clear(ctx context.Context, branch string) error {
	var errs []error
	for _, key := range Keys {
		if err := s.cfg.UnsetBranchConfig(ctx, branch, key); err != nil {
			errs = append(errs, fmt.Errorf("unset %v: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// Patchset returns the last known patchset of the branch, or 0.
func (s *Store) Patchset(ctx context.Context, branch string) (int, error) {
	return s.getInt(ctx, branch, PatchsetKey)
}

// SetPatchset records the patchset of the branch.
// A patchset of 0 unsets it.
func (s *Store) SetPatchset(ctx context.Context, branch string, patchset int) error {
	if patchset == 0 {
		return s.cfg.UnsetBranchConfig(ctx, branch, PatchsetKey)
	}
	return s.set(ctx, branch, PatchsetKey, strconv.Itoa(patchset))
}

// Server returns the review server URL of the branch, if any.
func (s *Store) Server(ctx context.Context, branch string) (string, error) {
	return s.get(ctx, branch, ServerKey)
}

// SquashHash returns the squashed commit last pushed for the branch.
func (s *Store) SquashHash(ctx context.Context, branch string) (git.Hash, error) {
	v, err := s.get(ctx, branch, SquashHashKey)
	return git.Hash(v), err
}

// SetSquashHash records the squashed commit pushed for the branch.
func (s *Store) SetSquashHash(ctx context.Context, branch string, h git.Hash) error {
	return s.set(ctx, branch, SquashHashKey, h.String())
}

// LastUploadHash returns the local tip last pushed for the branch.
func (s *Store) LastUploadHash(ctx context.Context, branch string) (git.Hash, error) {
	v, err := s.get(ctx, branch, LastUploadHashKey)
	return git.Hash(v), err
}

// SetLastUploadHash records the local tip pushed for the branch.
func (s *Store) SetLastUploadHash(ctx context.Context, branch string, h git.Hash) error {
	return s.set(ctx, branch, LastUploadHashKey, h.String())
}

func (s *Store) get(ctx context.Context, branch, key string) (string, error) {
	v, err := s.cfg.BranchConfig(ctx, branch, key)
	if err != nil {
		if errors.Is(err, git.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read %v of %v: %w", key, branch, err)
	}
	return v, nil
}

func (s *Store) getInt(ctx context.Context, branch, key string) (int, error) {
	v, err := s.get(ctx, branch, key)
	if err != nil || v == "" {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("branch %v: bad %v %q: %w", branch, key, v, err)
	}
	return n, nil
}

func (s *Store) set(ctx context.Context, branch, key, value string) error {
	s.log.Debug("Updating branch state", "branch", branch, "key", key, "value", value)
	if err := s.cfg.SetBranchConfig(ctx, branch, key, value); err != nil {
		return fmt.Errorf("set %v of %v: %w", key, branch, err)
	}
	return nil
}
