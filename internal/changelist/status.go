package changelist

import (
	"context"
	"errors"

	"go.abhg.dev/gitcl/internal/gerrit"
)

// Status summarizes the review state of a change.
type Status string

// Statuses reported by [Changelist.Status].
const (
	// StatusNone is reported for branches without a change.
	StatusNone Status = ""

	StatusError   Status = "error"   // change is missing or inaccessible
	StatusUnsent  Status = "unsent"  // no reviewers yet
	StatusWaiting Status = "waiting" // waiting for reviewers
	StatusReply   Status = "reply"   // reviewers are waiting for the owner
	StatusLGTM    Status = "lgtm"    // Code-Review approved
	StatusDryRun  Status = "dry-run" // dry run in the commit queue
	StatusCommit  Status = "commit"  // in the commit queue
	StatusClosed  Status = "closed"  // merged or abandoned
)

// Status applies a rough heuristic to summarize the change,
// assuming a common review workflow.
func (cl *Changelist) Status(ctx context.Context) (Status, error) {
	issue, err := cl.Issue(ctx)
	if err != nil || issue == 0 {
		return StatusNone, err
	}

	change, err := cl.Detail(ctx,
		gerrit.OptionDetailedLabels,
		gerrit.OptionCurrentRevision,
		gerrit.OptionSubmittable,
	)
	if err != nil {
		if errors.Is(err, gerrit.ErrChangeNotExist) {
			return StatusError, nil
		}
		return StatusNone, err
	}
	return statusOf(change), nil
}

func statusOf(change *gerrit.Change) Status {
	switch change.Status() {
	case gerrit.StatusAbandoned, gerrit.StatusMerged:
		return StatusClosed
	}

	switch change.MaxLabelVote("Commit-Queue") {
	case 2:
		return StatusCommit
	case 1:
		return StatusDryRun
	}

	if change.LabelApproved("Code-Review") {
		return StatusLGTM
	}

	if !change.HasReviewers() {
		return StatusUnsent
	}

	owner := change.OwnerAccountID()
	msgs := change.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.IsAutogenerated() {
			continue
		}
		if m.AuthorID == owner {
			return StatusWaiting
		}
		return StatusReply
	}

	// Reviewers without any messages.
	return StatusUnsent
}
