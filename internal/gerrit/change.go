package gerrit

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Change statuses.
const (
	StatusNew       = "NEW"
	StatusMerged    = "MERGED"
	StatusAbandoned = "ABANDONED"
)

// Patchset kinds that do not change the code of a change.
const (
	KindNoChange     = "NO_CHANGE"
	KindNoCodeChange = "NO_CODE_CHANGE"
)

// Change is a ChangeInfo entity returned by the server.
//
// Only the fields requested with detail options are populated;
// accessors return zero values for absent fields.
type Change struct {
	raw gjson.Result
}

// ParseChange parses a JSON ChangeInfo.
func ParseChange(data []byte) (*Change, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid change JSON")
	}
	raw := gjson.ParseBytes(data)
	if !raw.IsObject() {
		return nil, fmt.Errorf("change JSON is not an object")
	}
	return &Change{raw: raw}, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Change) UnmarshalJSON(data []byte) error {
	parsed, err := ParseChange(data)
	if err != nil {
		return err
	}
	*c = *parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (c *Change) MarshalJSON() ([]byte, error) {
	if c.raw.Raw == "" {
		return []byte("null"), nil
	}
	return []byte(c.raw.Raw), nil
}

var (
	_ json.Marshaler   = (*Change)(nil)
	_ json.Unmarshaler = (*Change)(nil)
)

// Get returns the value at a gjson path, for fields without an accessor.
func (c *Change) Get(path string) gjson.Result {
	return c.raw.Get(path)
}

// Number is the change number.
func (c *Change) Number() int { return int(c.raw.Get("_number").Int()) }

// ChangeID is the Change-Id of the change.
func (c *Change) ChangeID() string { return c.raw.Get("change_id").String() }

// Project is the project the change belongs to.
func (c *Change) Project() string { return c.raw.Get("project").String() }

// Branch is the destination branch of the change.
func (c *Change) Branch() string { return c.raw.Get("branch").String() }

// Subject is the subject of the current revision.
func (c *Change) Subject() string { return c.raw.Get("subject").String() }

// Status is one of NEW, MERGED or ABANDONED.
func (c *Change) Status() string { return c.raw.Get("status").String() }

// Updated reports when the change was last updated.
func (c *Change) Updated() time.Time { return parseTimestamp(c.raw.Get("updated").String()) }

// OwnerEmail is the email address of the change owner.
func (c *Change) OwnerEmail() string { return c.raw.Get("owner.email").String() }

// OwnerAccountID is the account ID of the change owner.
func (c *Change) OwnerAccountID() int { return int(c.raw.Get("owner._account_id").Int()) }

// CurrentRevision is the commit of the current patchset.
func (c *Change) CurrentRevision() string { return c.raw.Get("current_revision").String() }

// Revision is a single patchset of a change.
type Revision struct {
	Commit  string
	Number  int
	Kind    string
	Ref     string
	Message string   // commit message, if CURRENT_COMMIT or ALL_COMMITS was requested
	Title   string   // patchset description set at upload time
	Parents []string // parent commits, if commit info was requested
	Created time.Time
}

func parseRevision(sha string, r gjson.Result) Revision {
	rev := Revision{
		Commit:  sha,
		Number:  int(r.Get("_number").Int()),
		Kind:    r.Get("kind").String(),
		Ref:     r.Get("ref").String(),
		Message: r.Get("commit.message").String(),
		Title:   r.Get("description").String(),
		Created: parseTimestamp(r.Get("created").String()),
	}
	for _, p := range r.Get("commit.parents.#.commit").Array() {
		rev.Parents = append(rev.Parents, p.String())
	}
	return rev
}

// Revisions returns the known revisions, ordered by patchset number.
func (c *Change) Revisions() []Revision {
	var revs []Revision
	c.raw.Get("revisions").ForEach(func(key, value gjson.Result) bool {
		revs = append(revs, parseRevision(key.String(), value))
		return true
	})
	slices.SortFunc(revs, func(a, b Revision) int { return a.Number - b.Number })
	return revs
}

// Revision returns the revision for a commit.
func (c *Change) Revision(commit string) (Revision, bool) {
	r := c.raw.Get("revisions." + gjson.Escape(commit))
	if !r.Exists() {
		return Revision{}, false
	}
	return parseRevision(commit, r), true
}

// Current returns the current revision.
func (c *Change) Current() (Revision, bool) {
	cur := c.CurrentRevision()
	if cur == "" {
		return Revision{}, false
	}
	return c.Revision(cur)
}

// RevisionByNumber returns the revision with the given patchset number.
func (c *Change) RevisionByNumber(n int) (Revision, bool) {
	for _, r := range c.Revisions() {
		if r.Number == n {
			return r, true
		}
	}
	return Revision{}, false
}

// MaxLabelVote reports the highest vote cast on a label.
// Requires DETAILED_LABELS.
func (c *Change) MaxLabelVote(label string) int {
	best := 0
	for _, v := range c.raw.Get("labels." + gjson.Escape(label) + ".all.#.value").Array() {
		best = max(best, int(v.Int()))
	}
	return best
}

// LabelApproved reports whether a label has an approving vote.
func (c *Change) LabelApproved(label string) bool {
	return c.raw.Get("labels." + gjson.Escape(label) + ".approved").Exists()
}

// HasLabel reports whether a label is configured for the change.
func (c *Change) HasLabel(label string) bool {
	return c.raw.Get("labels." + gjson.Escape(label)).Exists()
}

// HasReviewers reports whether anyone is a reviewer of the change.
func (c *Change) HasReviewers() bool {
	return len(c.raw.Get("reviewers.REVIEWER").Array()) > 0
}

// Message is a message posted on a change.
type Message struct {
	AuthorID int
	Tag      string
	Date     time.Time
	Message  string
}

// Messages returns the messages of the change, oldest first.
func (c *Change) Messages() []Message {
	var msgs []Message
	for _, m := range c.raw.Get("messages").Array() {
		msgs = append(msgs, Message{
			AuthorID: int(m.Get("author._account_id").Int()),
			Tag:      m.Get("tag").String(),
			Date:     parseTimestamp(m.Get("date").String()),
			Message:  m.Get("message").String(),
		})
	}
	slices.SortStableFunc(msgs, func(a, b Message) int { return a.Date.Compare(b.Date) })
	return msgs
}

// IsAutogenerated reports whether the message was posted by the commit queue.
func (m Message) IsAutogenerated() bool {
	return strings.HasPrefix(m.Tag, "autogenerated:cq") ||
		strings.HasPrefix(m.Tag, "autogenerated:cv")
}

// Gerrit timestamps are UTC with nanoseconds: "2024-01-02 15:04:05.000000000".
const _timestampLayout = "2006-01-02 15:04:05.999999999"

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(_timestampLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
