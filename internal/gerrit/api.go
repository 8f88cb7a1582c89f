package gerrit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Options for change detail and query requests.
const (
	OptionCurrentRevision  = "CURRENT_REVISION"
	OptionCurrentCommit    = "CURRENT_COMMIT"
	OptionAllRevisions     = "ALL_REVISIONS"
	OptionAllCommits       = "ALL_COMMITS"
	OptionLabels           = "LABELS"
	OptionDetailedLabels   = "DETAILED_LABELS"
	OptionDetailedAccounts = "DETAILED_ACCOUNTS"
	OptionSubmittable      = "SUBMITTABLE"
	OptionMessages         = "MESSAGES"
)

func changePath(change string, rest ...string) string {
	parts := append([]string{"/changes", url.PathEscape(change)}, rest...)
	return strings.Join(parts, "/")
}

func notFoundAsChangeNotExist(err error) error {
	var gerr *Error
	if errors.As(err, &gerr) && gerr.HTTPStatus == http.StatusNotFound {
		return fmt.Errorf("%w: %w", ErrChangeNotExist, err)
	}
	return err
}

// ChangeDetail fetches a change with the given detail options.
// A missing change is reported as [ErrChangeNotExist].
func (c *Client) ChangeDetail(ctx context.Context, change string, options ...string) (*Change, error) {
	query := make(url.Values)
	for _, o := range options {
		query.Add("o", o)
	}

	var body []byte
	if err := c.get(ctx, changePath(change, "detail"), query, &body); err != nil {
		return nil, notFoundAsChangeNotExist(err)
	}
	return ParseChange(body)
}

// QueryRequest is a request to search for changes.
type QueryRequest struct {
	// Query holds search predicates, e.g. "status:open", "owner:self".
	// They are combined with AND.
	Query []string // required

	// Limit caps the number of results. Zero means the server default.
	Limit int

	// Start skips that many results.
	Start int

	// Options are detail options for each change.
	Options []string
}

// QueryChanges searches for changes.
func (c *Client) QueryChanges(ctx context.Context, req QueryRequest) ([]*Change, error) {
	if len(req.Query) == 0 {
		return nil, errors.New("query: no predicates")
	}

	query := url.Values{"q": {strings.Join(req.Query, " ")}}
	if req.Limit > 0 {
		query.Set("n", strconv.Itoa(req.Limit))
	}
	if req.Start > 0 {
		query.Set("S", strconv.Itoa(req.Start))
	}
	for _, o := range req.Options {
		query.Add("o", o)
	}

	var changes []*Change
	if err := c.get(ctx, "/changes/", query, &changes); err != nil {
		return nil, err
	}
	return changes, nil
}

type reviewerInput struct {
	Reviewer string `json:"reviewer"`
	State    string `json:"state,omitempty"`
}

// ReviewInput is posted to a revision to review it.
type ReviewInput struct {
	Message string         `json:"message,omitempty"`
	Labels  map[string]int `json:"labels,omitempty"`
	Ready   bool           `json:"ready,omitempty"`
	Notify  string         `json:"notify,omitempty"`

	Reviewers []reviewerInput `json:"reviewers,omitempty"`
}

// SetReview posts a review on the current revision of a change.
func (c *Client) SetReview(ctx context.Context, change string, review ReviewInput) error {
	path := changePath(change, "revisions", "current", "review")
	if err := c.send(ctx, http.MethodPost, path, review, nil); err != nil {
		return notFoundAsChangeNotExist(err)
	}
	return nil
}

// AddReviewers adds reviewers and CCs to a change.
// If notify is false, nobody is emailed about it.
func (c *Client) AddReviewers(ctx context.Context, change string, reviewers, ccs []string, notify bool) error {
	if len(reviewers) == 0 && len(ccs) == 0 {
		return nil
	}

	review := ReviewInput{Notify: "NONE"}
	if notify {
		review.Notify = "ALL"
	}
	for _, r := range reviewers {
		review.Reviewers = append(review.Reviewers, reviewerInput{Reviewer: r})
	}
	for _, cc := range ccs {
		review.Reviewers = append(review.Reviewers, reviewerInput{Reviewer: cc, State: "CC"})
	}
	return c.SetReview(ctx, change, review)
}

// CreateChangeRequest is a request to create a new empty change.
type CreateChangeRequest struct {
	Project string `json:"project"`
	Branch  string `json:"branch"`
	Subject string `json:"subject"`
	Status  string `json:"status,omitempty"`
}

// CreateChange creates a new change on the server.
func (c *Client) CreateChange(ctx context.Context, req CreateChangeRequest) (*Change, error) {
	var body []byte
	if err := c.send(ctx, http.MethodPost, "/changes/", req, &body); err != nil {
		return nil, err
	}
	return ParseChange(body)
}

// AbandonChange abandons a change with an optional message.
func (c *Client) AbandonChange(ctx context.Context, change, message string) error {
	body := map[string]string{}
	if message != "" {
		body["message"] = message
	}
	if err := c.send(ctx, http.MethodPost, changePath(change, "abandon"), body, nil); err != nil {
		return notFoundAsChangeNotExist(err)
	}
	return nil
}

// SubmitChange submits a change for merging.
func (c *Client) SubmitChange(ctx context.Context, change string) error {
	if err := c.send(ctx, http.MethodPost, changePath(change, "submit"), struct{}{}, nil); err != nil {
		return notFoundAsChangeNotExist(err)
	}
	return nil
}

// SetCommitMessage replaces the commit message of a change
// with a new patchset. Nobody is notified.
func (c *Client) SetCommitMessage(ctx context.Context, change, message string) error {
	body := map[string]string{"message": message, "notify": "NONE"}
	if err := c.send(ctx, http.MethodPut, changePath(change, "message"), body, nil); err != nil {
		return notFoundAsChangeNotExist(err)
	}
	return nil
}

// CherryPickRequest is a request to cherry-pick a revision
// onto another branch.
type CherryPickRequest struct {
	Revision    string `json:"-"` // defaults to "current"
	Destination string `json:"destination"`
	Message     string `json:"message,omitempty"`
}

// CherryPickChange cherry-picks a revision of a change
// and returns the resulting change.
func (c *Client) CherryPickChange(ctx context.Context, change string, req CherryPickRequest) (*Change, error) {
	rev := req.Revision
	if rev == "" {
		rev = "current"
	}

	var body []byte
	path := changePath(change, "revisions", url.PathEscape(rev), "cherrypick")
	if err := c.send(ctx, http.MethodPost, path, req, &body); err != nil {
		return nil, notFoundAsChangeNotExist(err)
	}
	return ParseChange(body)
}

// AccountEmail is an email address registered for an account.
type AccountEmail struct {
	Email     string `json:"email"`
	Preferred bool   `json:"preferred"`
}

// AccountEmails lists the email addresses of an account.
// Use "self" for the authenticated user.
func (c *Client) AccountEmails(ctx context.Context, account string) ([]AccountEmail, error) {
	var emails []AccountEmail
	if err := c.get(ctx, "/accounts/"+url.PathEscape(account)+"/emails", nil, &emails); err != nil {
		return nil, err
	}
	return emails, nil
}

// CodeReviewTbrScore reports the highest Code-Review vote allowed
// in the project. It is 1 if the project does not say.
func (c *Client) CodeReviewTbrScore(ctx context.Context, project string) (int, error) {
	var body []byte
	if err := c.get(ctx, "/projects/"+url.PathEscape(project), nil, &body); err != nil {
		return 0, err
	}

	if !gjson.ValidBytes(body) {
		return 0, errors.New("malformed project JSON")
	}
	values := gjson.GetBytes(body, "labels.Code-Review.values")
	if !values.Exists() {
		return 1, nil
	}

	best, found := 0, false
	for k := range values.Map() {
		n, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			continue
		}
		if !found || n > best {
			best, found = n, true
		}
	}
	if !found {
		return 1, nil
	}
	return best, nil
}
