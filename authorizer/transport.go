// Package authorizer attaches the session's access token to outgoing API
// calls and performs one transparent refresh-and-retry on rejection.
package authorizer

import (
	"context"
	"io"
	"net/http"
	"slices"

	"github.com/jrsteele09/go-auth-session/metrics"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const drainLimit = 4 << 10

// Session is what the transport needs from the session coordinator
type Session interface {
	AccessToken() (string, bool)
	// RefreshIfStale returns a token newer than staleToken, refreshing through
	// the single in-flight refresh when needed
	RefreshIfStale(ctx context.Context, staleToken string) (string, error)
}

// Transport is an http.RoundTripper for API calls made on behalf of the
// session
type Transport struct {
	base           http.RoundTripper
	session        Session
	reauthStatuses []int
	metrics        *metrics.Collectors
	log            zerolog.Logger
}

var _ http.RoundTripper = (*Transport)(nil)

type Option func(*Transport)

func WithBase(base http.RoundTripper) Option {
	return func(t *Transport) {
		t.base = base
	}
}

// WithReauthStatuses sets which responses mean the access token was
// rejected. Defaults to 401.
func WithReauthStatuses(statuses ...int) Option {
	return func(t *Transport) {
		if len(statuses) > 0 {
			t.reauthStatuses = statuses
		}
	}
}

func WithMetrics(m *metrics.Collectors) Option {
	return func(t *Transport) {
		t.metrics = m
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(t *Transport) {
		t.log = log
	}
}

func New(session Session, options ...Option) (*Transport, error) {
	if session == nil {
		return nil, errors.New("[authorizer.New] session is required")
	}
	t := &Transport{
		base:           http.DefaultTransport,
		session:        session,
		reauthStatuses: []int{http.StatusUnauthorized},
		log:            zerolog.Nop(),
	}
	for _, opt := range options {
		opt(t)
	}
	return t, nil
}

// RoundTrip sends req with the current access token. If the API rejects the
// token, the session is refreshed once and the request retried once. Calls
// made without a token, and calls whose body cannot be replayed, are not
// retried.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	accessToken, hasToken := t.session.AccessToken()

	first := req.Clone(req.Context())
	if hasToken {
		(&oauth2.Token{AccessToken: accessToken}).SetAuthHeader(first)
	}
	resp, err := t.base.RoundTrip(first)
	if err != nil {
		return nil, err
	}
	if !hasToken || !slices.Contains(t.reauthStatuses, resp.StatusCode) || !replayable(req) {
		return resp, nil
	}
	drain(resp)

	t.log.Debug().Str("path", req.URL.Path).Int("status", resp.StatusCode).Msg("access token rejected, refreshing")
	newToken, err := t.session.RefreshIfStale(req.Context(), accessToken)
	if err != nil {
		return nil, errors.Wrapf(err, "[authorizer] refresh for %s %s", req.Method, req.URL.Path)
	}

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, errors.Wrap(err, "[authorizer] rewind request body")
		}
		retry.Body = body
	}
	(&oauth2.Token{AccessToken: newToken}).SetAuthHeader(retry)
	t.metrics.Retry()
	return t.base.RoundTrip(retry)
}

func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))
	_ = resp.Body.Close()
}
