// Package httptest records and replays HTTP interactions in tests.
package httptest

import (
	"bytes"
	"io"
	"maps"
	"net/http"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/dnaeon/go-vcr.v4/pkg/cassette"
	"gopkg.in/dnaeon/go-vcr.v4/pkg/recorder"
)

// Headers retained in recorded fixtures.
// Everything else, including credentials and cookies, is dropped.
var _keptHeaders = []string{
	"content-type",
	"content-length",
	"user-agent",
	"x-gerrit-updated-ref",
}

// TransportRecorderOptions configures [NewTransportRecorder].
type TransportRecorderOptions struct {
	// Update records new fixtures against the real server
	// instead of replaying existing ones.
	//
	// If unset, fixtures are replayed.
	Update *bool

	// WrapRealTransport wraps the real HTTP transport in update mode,
	// e.g. to add credentials.
	WrapRealTransport func(t testing.TB, transport http.RoundTripper) http.RoundTripper

	// Matcher decides whether a request matches a recorded one.
	// Defaults to [BodyMatcher].
	Matcher func(*http.Request, cassette.Request) bool
}

// NewTransportRecorder builds a recorder backed by testdata/fixtures/<name>.yaml.
// The recorder is stopped when the test finishes.
func NewTransportRecorder(
	t testing.TB,
	name string,
	opts TransportRecorderOptions,
) *recorder.Recorder {
	t.Helper()

	mode := recorder.ModeReplayOnly
	realTransport := http.DefaultTransport
	if opts.Update != nil && *opts.Update {
		mode = recorder.ModeRecordOnly
		if opts.WrapRealTransport != nil {
			realTransport = opts.WrapRealTransport(t, realTransport)
		}
	}

	matcher := opts.Matcher
	if matcher == nil {
		matcher = BodyMatcher(t)
	}

	rec, err := recorder.New(filepath.Join("testdata", "fixtures", name),
		recorder.WithMode(mode),
		recorder.WithRealTransport(realTransport),
		recorder.WithSkipRequestLatency(true),
		recorder.WithHook(scrubHeaders, recorder.AfterCaptureHook),
		recorder.WithMatcher(matcher),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, rec.Stop())
	})

	return rec
}

func scrubHeaders(i *cassette.Interaction) error {
	all := make(http.Header)
	maps.Copy(all, i.Request.Headers)
	maps.Copy(all, i.Response.Headers)

	for k := range all {
		if !slices.Contains(_keptHeaders, strings.ToLower(k)) {
			delete(i.Request.Headers, k)
			delete(i.Response.Headers, k)
		}
	}
	return nil
}

// MethodURLMatcher matches requests by method and full URL.
func MethodURLMatcher(r *http.Request, i cassette.Request) bool {
	return r.Method == i.Method && r.URL.String() == i.URL
}

// BodyMatcher matches requests by method, URL and body.
// The request body is restored after it is read.
func BodyMatcher(t testing.TB) func(*http.Request, cassette.Request) bool {
	return func(r *http.Request, i cassette.Request) bool {
		if r.Body == nil || r.Body == http.NoBody {
			return MethodURLMatcher(r, i)
		}

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.NoError(t, r.Body.Close())
		r.Body = io.NopCloser(bytes.NewReader(body))

		return MethodURLMatcher(r, i) && string(body) == i.Body
	}
}
