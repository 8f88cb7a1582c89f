package changelist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.abhg.dev/gitcl/internal/gerrit"
	"go.abhg.dev/gitcl/internal/git"
	"go.abhg.dev/gitcl/internal/ui"
)

// ErrUploadNotAllowed indicates that the change no longer accepts patchsets.
var ErrUploadNotAllowed = errors.New("new uploads are not allowed")

// EnsureCanUploadPatchset verifies that a new patchset can be uploaded
// to the change of the branch.
//
// Abandoned changes reject uploads.
// For merged changes, the user may choose to start a new change,
// which clears the issue of the branch.
// Uploading to a change owned by someone else requires confirmation
// unless force is set.
func (cl *Changelist) EnsureCanUploadPatchset(ctx context.Context, force bool) error {
	issue, err := cl.Issue(ctx)
	if err != nil || issue == 0 {
		return err
	}
	issueURL, err := cl.IssueURL(ctx)
	if err != nil {
		return err
	}

	change, err := cl.Detail(ctx, gerrit.OptionDetailedAccounts)
	if err != nil {
		return err
	}

	switch change.Status() {
	case gerrit.StatusAbandoned:
		return fmt.Errorf("change %v has been abandoned: %w", issueURL, ErrUploadNotAllowed)

	case gerrit.StatusMerged:
		startNew, err := ui.Confirm(cl.svc.View,
			fmt.Sprintf("Change %v has been submitted, new uploads are not allowed. "+
				"Would you like to start a new change?", issueURL),
			"", true)
		if err != nil {
			return err
		}
		if !startNew {
			return ErrUploadNotAllowed
		}
		return cl.SetIssue(ctx, 0)
	}

	owner := change.OwnerEmail()
	if email, err := cl.svc.Repo.Config(ctx, "user.email"); err == nil && email == owner {
		// Gerrit rejects the upload if user.email is lying.
		return nil
	} else if err != nil && !errors.Is(err, git.ErrNotExist) {
		return fmt.Errorf("read user.email: %w", err)
	}

	// Accounts may have several linked addresses.
	emails, err := cl.svc.Gerrit.AccountEmails(ctx, "self")
	if err != nil {
		return fmt.Errorf("list account emails: %w", err)
	}
	if len(emails) == 0 {
		cl.log.Warn("Gerrit does not have a record for your account.")
		cl.log.Warnf("Please browse to %v and log in.", cl.svc.Gerrit.Server())
		return nil
	}
	for _, e := range emails {
		if e.Email == owner {
			return nil
		}
	}
	if force {
		return nil
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "Change %d is owned by %v, but Gerrit knows you as:\n", issue, owner)
	for _, e := range emails {
		tag := ""
		if e.Preferred {
			tag = " (preferred)"
		}
		fmt.Fprintf(&msg, "  * %v%v\n", e.Email, tag)
	}
	msg.WriteString("Uploading may fail due to lack of permissions.")
	cl.log.Warn(msg.String())

	return ui.ConfirmOrAbort(cl.svc.View, "Continue with upload?", "use --force to skip this check")
}
