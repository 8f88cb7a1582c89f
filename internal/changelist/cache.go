package changelist

import (
	"slices"

	"go.abhg.dev/gitcl/internal/gerrit"
)

// detailCache holds change details fetched with different option sets.
// A request is served from an entry fetched with a superset of its options.
type detailCache struct {
	entries []detailEntry
}

type detailEntry struct {
	options []string // sorted
	change  *gerrit.Change
}

// normalizeOptions sorts and deduplicates options.
// Revisions are always fetched with their commit
// so that descriptions can be served from the same entry.
func normalizeOptions(options []string) []string {
	opts := slices.Clone(options)
	if slices.Contains(opts, gerrit.OptionCurrentRevision) ||
		slices.Contains(opts, gerrit.OptionAllRevisions) {
		opts = append(opts, gerrit.OptionCurrentCommit)
	}
	slices.Sort(opts)
	return slices.Compact(opts)
}

func (c *detailCache) get(options []string) (*gerrit.Change, bool) {
	for _, e := range c.entries {
		if isSubset(options, e.options) {
			return e.change, true
		}
	}
	return nil, false
}

func (c *detailCache) put(options []string, change *gerrit.Change) {
	c.entries = append(c.entries, detailEntry{options: options, change: change})
}

func (c *detailCache) reset() {
	c.entries = nil
}

func isSubset(sub, super []string) bool {
	for _, o := range sub {
		if _, found := slices.BinarySearch(super, o); !found {
			return false
		}
	}
	return true
}
