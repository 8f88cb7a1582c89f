// Package gerrit is a small client for the Gerrit REST API.
//
// Read-only requests are retried with exponential backoff
// on transient failures. Requests with side effects are sent once.
package gerrit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.abhg.dev/gitcl/internal/silog"
	"golang.org/x/oauth2"
)

// ErrChangeNotExist indicates that a change does not exist,
// or that the user does not have access to it.
var ErrChangeNotExist = errors.New("change does not exist or you do not have access")

// Error is a non-success response from the server.
type Error struct {
	HTTPStatus int
	Message    string
}

func (e *Error) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.HTTPStatus)
	}
	return fmt.Sprintf("gerrit: %d %v", e.HTTPStatus, msg)
}

// Options configures a [Client].
type Options struct {
	// HTTPClient is the underlying HTTP client.
	// Defaults to a new client using http.DefaultTransport.
	HTTPClient *http.Client

	// Token authenticates requests.
	// If unset, requests are anonymous.
	Token oauth2.TokenSource

	// RetryMax is the maximum number of retries for read-only requests.
	// Defaults to 3. Set to a negative value to disable retries.
	RetryMax int

	// RetryWaitMin and RetryWaitMax bound the backoff between retries.
	RetryWaitMin, RetryWaitMax time.Duration

	Log *silog.Logger
}

// Client talks to a single Gerrit server.
type Client struct {
	server string // e.g. "https://chromium-review.googlesource.com"
	authed bool
	http   *http.Client
	retry  *retryablehttp.Client
	log    *silog.Logger
}

// NewClient builds a client for the server at the given URL.
func NewClient(server string, opts *Options) *Client {
	if opts == nil {
		opts = &Options{}
	}

	log := opts.Log
	if log == nil {
		log = silog.Nop()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: http.DefaultTransport}
	}
	if opts.Token != nil {
		base := httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		httpClient = &http.Client{
			Transport: &oauth2.Transport{Source: opts.Token, Base: base},
			Timeout:   httpClient.Timeout,
		}
	}

	retry := retryablehttp.NewClient()
	retry.HTTPClient = httpClient
	retry.Logger = log.WithPrefix("gerrit")
	retry.RetryMax = 3
	if opts.RetryMax != 0 {
		retry.RetryMax = max(opts.RetryMax, 0)
	}
	if opts.RetryWaitMin > 0 {
		retry.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		retry.RetryWaitMax = opts.RetryWaitMax
	}
	// Return the last response so that its status can be reported.
	retry.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		server: strings.TrimSuffix(server, "/"),
		authed: opts.Token != nil,
		http:   httpClient,
		retry:  retry,
		log:    log,
	}
}

// Server returns the server URL.
func (c *Client) Server() string {
	return c.server
}

func (c *Client) url(path string, query url.Values) string {
	if c.authed {
		path = "/a" + path
	}
	u := c.server + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// get issues a retried GET request and decodes the JSON response into dst.
func (c *Client) get(ctx context.Context, path string, query url.Values, dst any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.url(path, query), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.log.Debug("Gerrit request", "method", http.MethodGet, "path", path)
	res, err := c.retry.Do(req)
	if err != nil {
		return fmt.Errorf("GET %v: %w", path, err)
	}
	return decodeResponse(res, dst)
}

// send issues a single request with a JSON body.
func (c *Client) send(ctx context.Context, method, path string, body, dst any) error {
	var r io.Reader = http.NoBody
	if body != nil {
		bs, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(bs)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path, nil), r)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.log.Debug("Gerrit request", "method", method, "path", path)
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%v %v: %w", method, path, err)
	}
	return decodeResponse(res, dst)
}

// Gerrit prefixes JSON responses with this line to prevent XSSI.
const _magicPrefix = ")]}'"

func decodeResponse(res *http.Response, dst any) error {
	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &Error{HTTPStatus: res.StatusCode, Message: string(body)}
	}

	if dst == nil {
		return nil
	}

	body = stripMagicPrefix(body)
	switch d := dst.(type) {
	case *[]byte:
		*d = body
		return nil
	default:
		if err := json.Unmarshal(body, dst); err != nil {
			return fmt.Errorf("malformed JSON response: %w", err)
		}
		return nil
	}
}

func stripMagicPrefix(body []byte) []byte {
	if rest, ok := bytes.CutPrefix(body, []byte(_magicPrefix)); ok {
		if i := bytes.IndexByte(rest, '\n'); i >= 0 {
			return rest[i+1:]
		}
		return nil
	}
	return body
}

// ServerFromRemoteURL derives the review server for a git remote URL.
// By convention the review host adds "-review" to the first label
// of the git host: chromium.googlesource.com is reviewed on
// chromium-review.googlesource.com.
func ServerFromRemoteURL(remoteURL string) (string, error) {
	u, err := url.Parse(remoteURL)
	if err != nil {
		return "", fmt.Errorf("parse remote URL: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("remote URL %q has no host", remoteURL)
	}

	parts := strings.Split(u.Hostname(), ".")
	if !strings.HasSuffix(parts[0], "-review") {
		parts[0] += "-review"
	}
	if u.Scheme == "sso" && len(parts) == 1 {
		parts[0] += ".googlesource.com"
	}
	return "https://" + strings.Join(parts, "."), nil
}

// ProjectFromRemoteURL returns the Gerrit project for a git remote URL.
func ProjectFromRemoteURL(remoteURL string) (string, error) {
	u, err := url.Parse(remoteURL)
	if err != nil {
		return "", fmt.Errorf("parse remote URL: %w", err)
	}
	project := strings.Trim(u.Path, "/")
	project = strings.TrimSuffix(project, ".git")
	// "a/" forces authentication on googlesource.com
	// and is not part of the project name.
	project = strings.TrimPrefix(project, "a/")
	if project == "" {
		return "", fmt.Errorf("remote URL %q has no project", remoteURL)
	}
	return project, nil
}
