// Package auth provides OAuth2 tokens for Gerrit hosts.
//
// Tokens come from a git credential helper
// (git-credential-luci by default), invoked as:
//
//	<helper> get
//
// The helper prints key=value lines on stdout.
// The token is the "password" value, and it expires at
// "password_expiry_utc" (Unix seconds) if that is present.
//
// Tokens are cached in a [secret.Stash] and refreshed
// shortly before they expire.
package auth

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.abhg.dev/gitcl/internal/secret"
	"go.abhg.dev/gitcl/internal/silog"
	"go.abhg.dev/gitcl/internal/xec"
	"golang.org/x/oauth2"
)

// DefaultHelper is the credential helper used if none is configured.
const DefaultHelper = "git-credential-luci"

// RefreshSkew is how long before its expiry a token is refreshed.
const RefreshSkew = 30 * time.Second

const _stashKey = "oauth2-token"

var _timeNow = time.Now

// LoginRequiredError indicates that the user must log in
// before a token can be issued.
type LoginRequiredError struct {
	// Command the user should run to log in.
	Command string

	Err error
}

func (e *LoginRequiredError) Error() string {
	return fmt.Sprintf("not logged in: run %q", e.Command)
}

func (e *LoginRequiredError) Unwrap() error { return e.Err }

// NeedsRefresh reports whether tok is missing, empty,
// or expires within [RefreshSkew] of now.
// Tokens without an expiry never need refreshing.
func NeedsRefresh(tok *oauth2.Token, now time.Time) bool {
	if tok == nil || tok.AccessToken == "" {
		return true
	}
	if tok.Expiry.IsZero() {
		return false
	}
	return !now.Add(RefreshSkew).Before(tok.Expiry)
}

// Options configures the token source built by [TokenSource].
type Options struct {
	// Helper is the credential helper executable.
	// Defaults to [DefaultHelper].
	Helper string

	// Stash caches tokens across invocations.
	// Tokens are not cached if nil.
	Stash secret.Stash

	Log *silog.Logger

	exec xec.Execer
}

// TokenSource returns a token source for the given Gerrit host.
//
// Tokens are reused until they need refreshing.
func TokenSource(ctx context.Context, host string, opts *Options) oauth2.TokenSource {
	if opts == nil {
		opts = &Options{}
	}
	log := opts.Log
	if log == nil {
		log = silog.Nop()
	}
	helper := opts.Helper
	if helper == "" {
		helper = DefaultHelper
	}

	var src oauth2.TokenSource = &HelperSource{
		ctx:    ctx,
		helper: helper,
		log:    log,
		exec:   opts.exec,
	}
	if opts.Stash != nil {
		src = &cachedSource{
			base:  src,
			stash: opts.Stash,
			host:  host,
			log:   log,
		}
	}
	return oauth2.ReuseTokenSourceWithExpiry(nil, src, RefreshSkew)
}

// HelperSource issues tokens by running a credential helper.
type HelperSource struct {
	ctx    context.Context
	helper string
	log    *silog.Logger
	exec   xec.Execer
}

var _ oauth2.TokenSource = (*HelperSource)(nil)

// Token runs the helper and parses its reply.
func (h *HelperSource) Token() (*oauth2.Token, error) {
	login := &LoginRequiredError{Command: h.helper + " login"}

	out, err := xec.Command(h.ctx, h.log, h.helper, "get").
		WithExecer(h.exec).
		WithLogPrefix("auth").
		Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("credential helper %v: %w", h.helper, err)
		}
		login.Err = err
		return nil, login
	}

	tok, err := parseHelperOutput(out)
	if err != nil {
		return nil, fmt.Errorf("credential helper %v: %w", h.helper, err)
	}
	if tok == nil {
		return nil, login
	}
	return tok, nil
}

// parseHelperOutput parses key=value lines.
// It returns nil if the reply has no password.
func parseHelperOutput(out []byte) (*oauth2.Token, error) {
	tok := oauth2.Token{TokenType: "Bearer"}
	scan := bufio.NewScanner(bytes.NewReader(out))
	for scan.Scan() {
		key, value, ok := strings.Cut(scan.Text(), "=")
		if !ok {
			continue
		}
		switch key {
		case "password":
			tok.AccessToken = value
		case "password_expiry_utc":
			sec, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("bad expiry %q: %w", value, err)
			}
			tok.Expiry = time.Unix(sec, 0)
		}
	}
	if err := scan.Err(); err != nil {
		return nil, err
	}

	if tok.AccessToken == "" {
		return nil, nil
	}
	return &tok, nil
}

// cachedSource keeps tokens from base in a stash, keyed by host.
type cachedSource struct {
	base  oauth2.TokenSource
	stash secret.Stash
	host  string
	log   *silog.Logger
}

func (c *cachedSource) Token() (*oauth2.Token, error) {
	if tok := c.load(); !NeedsRefresh(tok, _timeNow()) {
		return tok, nil
	}

	tok, err := c.base.Token()
	if err != nil {
		return nil, err
	}

	bs, err := json.Marshal(tok)
	if err == nil {
		err = c.stash.SaveSecret(c.host, _stashKey, string(bs))
	}
	if err != nil {
		c.log.Warn("Could not cache token", "host", c.host, "error", err)
	}
	return tok, nil
}

func (c *cachedSource) load() *oauth2.Token {
	raw, err := c.stash.LoadSecret(c.host, _stashKey)
	if err != nil {
		if !errors.Is(err, secret.ErrNotFound) {
			c.log.Debug("Ignoring cached token", "host", c.host, "error", err)
		}
		return nil
	}
	if !gjson.Valid(raw) {
		c.log.Debug("Ignoring malformed cached token", "host", c.host)
		return nil
	}

	v := gjson.Parse(raw)
	tok := &oauth2.Token{
		AccessToken: v.Get("access_token").String(),
		TokenType:   v.Get("token_type").String(),
	}
	if exp := v.Get("expiry"); exp.Exists() {
		tok.Expiry = exp.Time()
	}
	return tok
}

// Logout forgets the cached token for host.
func Logout(stash secret.Stash, host string) error {
	return stash.DeleteSecret(host, _stashKey)
}
