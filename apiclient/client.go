// Package apiclient calls the dashboard API through the session's request
// authorizer and caches GET responses until logout.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 4 << 20

// StatusError is a non-2xx API response
type StatusError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
}

type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger

	mu    sync.RWMutex
	cache map[string][]byte
	// gen is bumped by every reset; a response fetched across a reset is
	// not cached
	gen uint64
}

type Option func(*Client)

func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// New builds a client whose requests go through transport, normally an
// *authorizer.Transport
func New(baseURL string, transport http.RoundTripper, options ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("[apiclient.New] base URL is required")
	}
	if transport == nil {
		return nil, errors.New("[apiclient.New] transport is required")
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Transport: transport},
		log:     zerolog.Nop(),
		cache:   make(map[string][]byte),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Get decodes the JSON body at path into out. Successful responses are
// cached per path until ResetCache or a mutation through Do.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	c.mu.RLock()
	data, ok := c.cache[path]
	gen := c.gen
	c.mu.RUnlock()
	if ok {
		return decode(data, out)
	}

	data, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	c.mu.Lock()
	if c.gen == gen {
		c.cache[path] = data
	} else {
		c.log.Debug().Str("path", path).Msg("cache reset during request, response not cached")
	}
	c.mu.Unlock()
	return decode(data, out)
}

// Do sends a mutation. Any cached data is dropped on success.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return errors.Wrap(err, "[apiclient.Do] marshal body")
		}
	}
	data, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	c.ResetCache()
	return decode(data, out)
}

// ResetCache drops every cached response
func (c *Client) ResetCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.cache) > 0 {
		c.log.Debug().Int("entries", len(c.cache)).Msg("api cache reset")
	}
	c.cache = make(map[string][]byte)
	c.gen++
}

// Cached reports whether path has a cached response
func (c *Client) Cached(path string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.cache[path]
	return ok
}

func (c *Client) send(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		// a bytes.Reader body gets GetBody, so the authorizer can retry it
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, errors.Wrapf(err, "[apiclient] build %s %s", method, path)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Wrapf(err, "[apiclient] read %s %s", method, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var msg struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(data, &msg)
		return nil, &StatusError{Method: method, Path: path, Status: resp.StatusCode, Message: msg.Message}
	}
	return data, nil
}

func decode(data []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}
