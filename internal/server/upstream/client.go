// Package upstream forwards has-joined queries to an external session
// authority for players this server did not authenticate.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrDisabled is returned by a client built without a target URL.
var ErrDisabled = errors.New("upstream session authority disabled")

const maxResponseBytes = 64 << 10

// Response is the upstream answer, relayed to the caller as-is.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// Client forwards hasJoined queries to an upstream session server.
type Client struct {
	target string
	http   *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default client with its 5 second timeout.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New returns a client for the hasJoined endpoint at target. An empty
// target yields a client whose HasJoined always fails with ErrDisabled.
func New(target string, opts ...Option) *Client {
	c := &Client{
		target: target,
		http:   &http.Client{Timeout: 5 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Enabled() bool {
	return c.target != ""
}

// HasJoined issues GET target?query and returns the upstream response. Only
// the first value of each query parameter is forwarded.
func (c *Client) HasJoined(ctx context.Context, query url.Values) (*Response, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}

	u, err := url.Parse(c.target)
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}
	q := u.Query()
	for k, v := range query {
		if len(v) > 0 {
			q.Set(k, v[0])
		}
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read upstream response: %w", err)
	}

	return &Response{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
