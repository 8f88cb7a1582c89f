// Package description models change descriptions:
// commit message text with legacy "KEY=value" tag lines
// and a trailing block of Gerrit footers.
package description

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.abhg.dev/gitcl/internal/footer"
)

var (
	_reviewerLineRe = regexp.MustCompile(`^[ \t]*(TBR|R)[ \t]*=[ \t]*(.*?)[ \t]*$`)
	_ccLineRe       = regexp.MustCompile(`^[ \t]*(CC)[ \t]*=[ \t]*(.*?)[ \t]*$`)
	_bugLineRe      = regexp.MustCompile(`^[ \t]*(?:(BUG)[ \t]*=|Bug:)[ \t]*(.*?)[ \t]*$`)
	_fixedLineRe    = regexp.MustCompile(`^[ \t]*Fixed[ \t]*:[ \t]*(.*?)[ \t]*$`)

	// Matches "KEY=value" tag lines.
	_tagLineRe = regexp.MustCompile(`^[ \t]*([A-Z][A-Z_0-9]*)[ \t]*=[ \t]*(.*?)[ \t]*$`)

	_hashTagPrefixRe  = regexp.MustCompile(`(?i)^(\s*(revert|reland)( "|:)?\s*)*`)
	_bracketHashTagRe = regexp.MustCompile(`^\s*\[([^\[\]]+)\]`)
	_colonHashTagRe   = regexp.MustCompile(`^([a-zA-Z0-9_\- ]+):($|[^:])`)
	_badHashTagRe     = regexp.MustCompile(`[^a-zA-Z0-9]+`)

	_branchBugRe = regexp.MustCompile(`^(bug|fix(?:e[sd])?)[_-]?(\d+)([-_]|$)`)
)

// PreserveTryjobsKey is the footer that asks the commit queue
// not to cancel running tryjobs when a new patchset is uploaded.
const PreserveTryjobsKey = "Cq-Do-Not-Cancel-Tryjobs"

// Description is a mutable change description.
//
// Leading and trailing blank lines are never retained.
// Gerrit footers always form the last paragraph of the description.
type Description struct {
	lines []string
}

// New builds a description from the given text.
func New(text string) *Description {
	var d Description
	d.Set(strings.TrimSpace(text))
	return &d
}

// BugOptions specifies bugs to reference from a new description.
type BugOptions struct {
	// Prefix is attached to bare numeric bugs.
	// A trailing ":" is added if missing.
	Prefix string

	// Bug is a comma-separated list of bugs for a "Bug:" footer.
	Bug string

	// Fixed is a comma-separated list of bugs for a "Fixed:" footer.
	Fixed string
}

// NewWithBugs builds a description from text,
// adding Bug and Fixed footers unless the text already has them.
func NewWithBugs(text string, opts BugOptions) *Description {
	d := New(text)
	if opts.Bug != "" && !d.hasLine(_bugLineRe) {
		values := BugLineValues(opts.Prefix, opts.Bug)
		d.AppendFooter("Bug: " + strings.Join(values, ", "))
	}
	if opts.Fixed != "" && !d.hasLine(_fixedLineRe) {
		values := BugLineValues(opts.Prefix, opts.Fixed)
		d.AppendFooter("Fixed: " + strings.Join(values, ", "))
	}
	return d
}

// String returns the description text.
func (d *Description) String() string {
	return strings.Join(d.lines, "\n")
}

// Lines returns a copy of the lines of the description.
func (d *Description) Lines() []string {
	return slices.Clone(d.lines)
}

// Subject returns the first line of the description.
func (d *Description) Subject() string {
	if len(d.lines) == 0 {
		return ""
	}
	return d.lines[0]
}

// Set replaces the description text.
func (d *Description) Set(text string) {
	d.lines = trimBlankEnds(splitLines(text))
}

// SetLines replaces the description with the given lines.
// Trailing whitespace is removed from each line.
func (d *Description) SetLines(lines []string) {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = strings.TrimRight(line, " \t\r\n")
	}
	d.lines = trimBlankEnds(out)
}

// ChangeIDs returns the Change-Id footers of the description.
func (d *Description) ChangeIDs() []string {
	return footer.ChangeIDs(d.String())
}

// EnsureChangeID makes changeID the only Change-Id footer.
// It reports whether different Change-Id footers were removed.
//
// EnsureChangeID is idempotent.
func (d *Description) EnsureChangeID(changeID string) (replaced bool) {
	msg := d.String()
	ids := footer.ChangeIDs(msg)
	if slices.Equal(ids, []string{changeID}) {
		return false
	}

	if len(ids) > 0 {
		msg = footer.Remove(msg, footer.ChangeIDKey)
		replaced = true
	}
	d.Set(footer.AddChangeID(msg, changeID))
	return replaced
}

// UpdateReviewers merges the given reviewers with those in R= and TBR= lines
// and rewrites them as a single R= line.
// The new line takes the place of the first existing reviewer line,
// or is appended if there was none.
func (d *Description) UpdateReviewers(reviewers []string) {
	if len(reviewers) == 0 {
		return
	}

	merged := make(map[string]struct{})
	for _, r := range reviewers {
		merged[r] = struct{}{}
	}

	firstIdx := -1
	kept := make([]string, 0, len(d.lines))
	for _, line := range d.lines {
		m := _reviewerLineRe.FindStringSubmatch(line)
		if m == nil {
			kept = append(kept, line)
			continue
		}
		if firstIdx < 0 {
			firstIdx = len(kept)
		}
		for _, r := range CleanupList([]string{m[2]}) {
			merged[r] = struct{}{}
		}
	}
	d.SetLines(kept)

	names := make([]string, 0, len(merged))
	for r := range merged {
		names = append(names, r)
	}
	slices.Sort(names)
	line := "R=" + strings.Join(names, ", ")

	if firstIdx >= 0 && firstIdx < len(d.lines) {
		d.lines = slices.Insert(d.lines, firstIdx, line)
	} else {
		d.AppendFooter(line)
	}
}

// SetPreserveTryjobs adds a "Cq-Do-Not-Cancel-Tryjobs: true" footer
// if the description does not already have one.
func (d *Description) SetPreserveTryjobs() {
	for _, v := range footer.Values(d.String(), PreserveTryjobsKey) {
		if strings.EqualFold(v, "true") {
			return
		}
	}
	d.AppendFooter(PreserveTryjobsKey + ": true")
}

// AppendFooter adds a line to the end of the description.
//
// Gerrit footers ("Key: value") are added to the footer block.
// Other lines, including "KEY=value" tags, are placed before the footer block.
// Consecutive tag lines are kept together;
// anything else is separated from the preceding text by a blank line.
func (d *Description) AppendFooter(line string) {
	if key, value, ok := footer.Parse(line); ok {
		d.Set(footer.Add(d.String(), key, value))
		return
	}

	if len(d.lines) == 0 {
		d.lines = []string{line}
		return
	}

	top, footers := footer.Split(d.String())
	top = trimBlankEnds(top)

	var prev string
	if len(top) > 0 {
		prev = top[len(top)-1]
	}
	if !_tagLineRe.MatchString(prev) || !_tagLineRe.MatchString(line) {
		top = append(top, "")
	}
	top = append(top, line)

	if len(footers) > 0 {
		top = append(top, "")
		top = append(top, footers...)
	}
	d.lines = trimBlankEnds(top)
}

// Reviewers returns the reviewers listed in R= and TBR= lines.
// If tbrOnly is set, only TBR= lines are considered.
func (d *Description) Reviewers(tbrOnly bool) []string {
	var found []string
	for _, line := range d.lines {
		m := _reviewerLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if tbrOnly && !strings.EqualFold(m[1], "TBR") {
			continue
		}
		found = append(found, strings.TrimSpace(m[2]))
	}
	return CleanupList(found)
}

// CCs returns the addresses listed in CC= lines.
func (d *Description) CCs() []string {
	var found []string
	for _, line := range d.lines {
		if m := _ccLineRe.FindStringSubmatch(line); m != nil {
			found = append(found, strings.TrimSpace(m[2]))
		}
	}
	return CleanupList(found)
}

// HashTags extracts Gerrit hashtags from the subject line.
//
// Leading "[tag]" groups are used if present;
// otherwise a "Tag: " prefix is used.
// "Revert" and "Reland" prefixes are ignored.
func (d *Description) HashTags() []string {
	subject := _hashTagPrefixRe.ReplaceAllString(d.Subject(), "")

	var tags []string
	rest := subject
	for {
		m := _bracketHashTagRe.FindStringSubmatch(rest)
		if m == nil {
			break
		}
		tags = append(tags, SanitizeHashTag(m[1]))
		rest = rest[len(m[0]):]
	}

	if len(tags) == 0 {
		if m := _colonHashTagRe.FindStringSubmatch(subject); m != nil {
			tags = append(tags, SanitizeHashTag(m[1]))
		}
	}
	return tags
}

// SanitizeHashTag turns tag into a value usable as a push option:
// runs of non-alphanumeric characters become "-" and the result is lowercased.
func SanitizeHashTag(tag string) string {
	tag = _badHashTagRe.ReplaceAllString(tag, "-")
	return strings.ToLower(strings.Trim(tag, "-"))
}

// BugLineValues splits a comma-separated list of bugs into footer values.
// Numeric bugs are combined into one value qualified with prefix,
// e.g. "v8:1,2". Other bugs are returned as-is, sorted.
func BugLineValues(prefix, bugs string) []string {
	var (
		numeric []string
		others  []string
	)
	for bug := range strings.SplitSeq(bugs, ",") {
		bug = strings.TrimSpace(bug)
		if bug == "" {
			continue
		}
		if n, err := strconv.Atoi(bug); err == nil {
			numeric = append(numeric, strconv.Itoa(n))
		} else {
			others = append(others, bug)
		}
	}

	var values []string
	if len(numeric) > 0 {
		joined := strings.Join(numeric, ",")
		if prefix != "" {
			if !strings.HasSuffix(prefix, ":") {
				prefix += ":"
			}
			joined = prefix + joined
		}
		values = append(values, joined)
	}
	slices.Sort(others)
	return append(values, others...)
}

// BugFromBranch extracts a bug number from branch names like
// "bug-123", "fix_42" or "fixes-7-typo".
// Branches starting with "bug" yield a bug; the "fix" forms yield fixed.
func BugFromBranch(branch string) (bug, fixed string) {
	m := _branchBugRe.FindStringSubmatch(branch)
	if m == nil {
		return "", ""
	}
	if m[1] == "bug" {
		return m[2], ""
	}
	return "", m[2]
}

// CleanupList splits comma-separated items,
// drops empty entries, and sorts the result.
func CleanupList(items []string) []string {
	var out []string
	for _, item := range items {
		for part := range strings.SplitSeq(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	slices.Sort(out)
	return out
}

func (d *Description) hasLine(re *regexp.Regexp) bool {
	return slices.ContainsFunc(d.lines, re.MatchString)
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func trimBlankEnds(lines []string) []string {
	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
