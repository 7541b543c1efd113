// Package gateway is the only code that talks to the remote authentication
// endpoints. Each call is a single round trip; retrying is the caller's job.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/internal/utils"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"
)

const (
	RouteLogin   = "/auth"
	RouteRefresh = "/auth/refresh"
	RouteLogout  = "/auth/logout"

	// RequestIDHeader correlates client and server logs
	RequestIDHeader = "X-Request-ID"

	maxBodyBytes = 1 << 20
)

type Gateway struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	log     zerolog.Logger
	// statuses that mean the long-lived credential was rejected on refresh
	refreshRejected []int
}

type Option func(*Gateway)

// WithHTTPClient sets the client used for auth calls. A cookie jar is added
// when the client has none, since refresh depends on it.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		g.client = client
	}
}

// WithCookieJar replaces the in-memory jar, e.g. with a FileJar
func WithCookieJar(jar http.CookieJar) Option {
	return func(g *Gateway) {
		c := *g.client
		c.Jar = jar
		g.client = &c
	}
}

// WithRefreshRejectedStatuses lists the refresh responses that mean the
// long-lived credential is gone, e.g. 401 and 403. Default 401.
func WithRefreshRejectedStatuses(statuses ...int) Option {
	return func(g *Gateway) {
		if len(statuses) > 0 {
			g.refreshRejected = statuses
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		g.timeout = d
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(g *Gateway) {
		g.log = log
	}
}

func New(baseURL string, options ...Option) (*Gateway, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.Wrap(autherrors.ErrInvalidConfig, "[gateway.New] base URL is required")
	}

	g := &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		log:     zerolog.Nop(),

		refreshRejected: []int{http.StatusUnauthorized},
	}
	for _, opt := range options {
		opt(g)
	}

	if g.client.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, errors.Wrap(err, "[gateway.New] cookiejar")
		}
		c := *g.client
		c.Jar = jar
		g.client = &c
	}
	if g.timeout > 0 && g.client.Timeout == 0 {
		c := *g.client
		c.Timeout = g.timeout
		g.client = &c
	}
	return g, nil
}

// Login exchanges credentials for an access token. The server also sets the
// long-lived credential on the cookie jar.
func (g *Gateway) Login(ctx context.Context, username, password string) (*TokenResponse, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, &autherrors.GatewayError{Op: "login", Kind: autherrors.ErrMalformedRequest, Message: "missing username or password"}
	}
	var resp TokenResponse
	if err := g.call(ctx, "login", http.MethodPost, RouteLogin, Credentials{Username: username, Password: password}, &resp); err != nil {
		return nil, err
	}
	return tokenOrError("login", &resp)
}

// Refresh obtains a new access token using the ambient long-lived credential
func (g *Gateway) Refresh(ctx context.Context) (*TokenResponse, error) {
	var resp TokenResponse
	if err := g.call(ctx, "refresh", http.MethodGet, RouteRefresh, nil, &resp); err != nil {
		return nil, err
	}
	return tokenOrError("refresh", &resp)
}

// Logout asks the server to invalidate the long-lived credential
func (g *Gateway) Logout(ctx context.Context) error {
	return g.call(ctx, "logout", http.MethodPost, RouteLogout, nil, nil)
}

func tokenOrError(op string, resp *TokenResponse) (*TokenResponse, error) {
	if strings.TrimSpace(utils.Value(resp.AccessToken)) == "" {
		return nil, &autherrors.GatewayError{Op: op, Kind: autherrors.ErrServerError, Message: "response carried no access token"}
	}
	return resp, nil
}

func (g *Gateway) call(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Wrapf(err, "[gateway %s] marshal body", op)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return errors.Wrapf(err, "[gateway %s] build request", op)
	}
	requestID := uuid.New().String()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		g.log.Debug().Str("op", op).Str("request_id", requestID).Err(err).Msg("auth call got no response")
		return &autherrors.GatewayError{Op: op, Kind: autherrors.ErrUnreachable, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &autherrors.GatewayError{Op: op, Kind: autherrors.ErrUnreachable, Status: resp.StatusCode, Err: err}
	}

	g.log.Debug().
		Str("op", op).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("auth call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &autherrors.GatewayError{
			Op:      op,
			Kind:    g.classify(op, resp.StatusCode),
			Status:  resp.StatusCode,
			Message: serverMessage(data),
		}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &autherrors.GatewayError{Op: op, Kind: autherrors.ErrServerError, Status: resp.StatusCode, Err: err}
	}
	return nil
}

// Classify maps a non-2xx status onto the error taxonomy
func Classify(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return autherrors.ErrInvalidCredentials
	case status == http.StatusBadRequest:
		return autherrors.ErrMalformedRequest
	default:
		return autherrors.ErrServerError
	}
}

func (g *Gateway) classify(op string, status int) error {
	if op == "refresh" && slices.Contains(g.refreshRejected, status) {
		return autherrors.ErrInvalidCredentials
	}
	return Classify(status)
}

func serverMessage(data []byte) string {
	var msg MessageResponse
	if err := json.Unmarshal(data, &msg); err != nil {
		return ""
	}
	return msg.Message
}
