package changelist

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.abhg.dev/gitcl/internal/description"
	"go.abhg.dev/gitcl/internal/ui"
)

// InitialUploadTitle is the patchset title of new changes.
const InitialUploadTitle = "Initial upload"

// UploadTitle picks the title of the patchset being uploaded.
//
// multi is set when several branches are uploaded together;
// only an explicit title is used in that case.
// The user is asked for a title unless one can be inferred.
func (cl *Changelist) UploadTitle(ctx context.Context, opts *UploadOptions, multi bool) (string, error) {
	if multi || opts.Title != "" {
		return opts.Title, nil
	}

	issue, err := cl.Issue(ctx)
	if err != nil {
		return "", err
	}
	if issue == 0 {
		return InitialUploadTitle, nil
	}
	if opts.Message != "" {
		return strings.TrimSpace(opts.Message), nil
	}

	def, err := cl.svc.Repo.CommitSubject(ctx, "refs/heads/"+cl.branch)
	if err != nil {
		return "", err
	}
	if opts.Force || opts.SkipTitle {
		return def, nil
	}

	title, err := ui.Ask(cl.svc.View,
		fmt.Sprintf("Title for patchset ('y' for default) [%v]", def), "", "")
	if err != nil {
		if errors.Is(err, ui.ErrPrompt) {
			return def, nil
		}
		return "", err
	}
	if title = strings.TrimSpace(title); title == "" || strings.EqualFold(title, "y") {
		return def, nil
	}
	return title, nil
}

// RefSpecOptions builds the "%" options for the refs/for/ push
// of a prepared upload.
//
// The result never contains whitespace.
func (cl *Changelist) RefSpecOptions(ctx context.Context, opts *UploadOptions, desc *description.Description, title string) ([]string, error) {
	issue, err := cl.Issue(ctx)
	if err != nil {
		return nil, err
	}

	var refOpts []string
	if opts.SendMail {
		refOpts = append(refOpts, "ready", "notify=ALL")
	}
	if title != "" {
		refOpts = append(refOpts, "m="+PercentEncodeForGitRef(title))
	}
	if opts.Private {
		refOpts = append(refOpts, "private")
	}
	if opts.Topic != "" {
		refOpts = append(refOpts, "topic="+opts.Topic)
	}
	if opts.EnableAutoSubmit {
		refOpts = append(refOpts, "l=Auto-Submit+1")
	}
	if opts.OwnersOverride {
		refOpts = append(refOpts, "l=Owners-Override+1")
	}
	if opts.SetBotCommit {
		refOpts = append(refOpts, "l=Bot-Commit+1")
	}
	switch {
	case opts.CommitQueue:
		refOpts = append(refOpts, "l=Commit-Queue+2")
	case opts.CQDryRun:
		refOpts = append(refOpts, "l=Commit-Queue+1")
	}

	if len(desc.Reviewers(true)) > 0 {
		project, err := cl.Project(ctx)
		if err != nil {
			return nil, err
		}
		score, err := cl.svc.Gerrit.CodeReviewTbrScore(ctx, project)
		if err != nil {
			return nil, fmt.Errorf("code review score for %v: %w", project, err)
		}
		refOpts = append(refOpts, fmt.Sprintf("l=Code-Review+%d", score))
	}

	var tags []string
	for _, tag := range opts.Hashtags {
		if tag = description.SanitizeHashTag(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	if issue == 0 {
		tags = append(tags, desc.HashTags()...)
	}
	slices.Sort(tags)
	for _, tag := range slices.Compact(tags) {
		refOpts = append(refOpts, "hashtag="+tag)
	}

	for _, o := range refOpts {
		if strings.ContainsAny(o, " \t\n") {
			return nil, fmt.Errorf("refspec option %q contains whitespace", o)
		}
	}
	return refOpts, nil
}

// PercentEncodeForGitRef encodes s for use in a refspec option.
//
// Letters and digits are kept, spaces become "_",
// and all other bytes are percent-encoded.
func PercentEncodeForGitRef(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == ' ':
			b.WriteByte('_')
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}
