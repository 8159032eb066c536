/*
Package api implements the request capability: every request/response operation the client
performs against the chat server's REST API.

This file defines the Client struct, which owns the authenticated http.Client and maps the
server's response envelope and status codes onto the application's error taxonomy.
*/
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chatline/internal/pkg/auth/jwt"
	"chatline/internal/pkg/errs"
	"chatline/internal/pkg/logx"
	"chatline/internal/pkg/req"
	"chatline/internal/pkg/resp"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 15 * time.Second

// Client performs API requests with the current bearer credential.
type Client struct {
	baseURL string
	http    *http.Client

	// mu protects tokens and onUnauthorized.
	mu             sync.RWMutex
	tokens         jwt.TokenSource
	onUnauthorized func()

	logger zerolog.Logger
}

// New creates a Client for the server at baseURL. base is the underlying transport
// (http.DefaultTransport when nil).
func New(baseURL string, timeout time.Duration, base http.RoundTripper) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logx.Component("api"),
	}
	c.http = &http.Client{
		Timeout: timeout,
		Transport: &jwt.BearerTransport{
			Source: c,
			Base:   logx.RequestLogger(base),
		},
	}
	return c
}

// SetTokenSource sets where the bearer credential comes from.
func (c *Client) SetTokenSource(src jwt.TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = src
}

// OnUnauthorized registers fn to run whenever an authenticated request is rejected with 401.
func (c *Client) OnUnauthorized(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

// Token implements jwt.TokenSource.
func (c *Client) Token() string {
	c.mu.RLock()
	src := c.tokens
	c.mu.RUnlock()

	if src == nil {
		return ""
	}
	return src.Token()
}

// call describes one API request.
type call struct {
	method string
	path   string
	body   any

	// dst receives the envelope data.
	dst any

	// fallback is the error code for non-2xx responses without a specific mapping.
	fallback int

	// anonymous calls do not invalidate the session on 401.
	anonymous bool
}

// do performs c and returns the envelope message.
func (c *Client) do(ctx context.Context, cl call) (string, error) {
	r, err := req.NewJSON(ctx, cl.method, c.baseURL+cl.path, cl.body)
	if err != nil {
		return "", errs.Wrap(errs.ErrUnknown, err)
	}

	res, err := c.http.Do(r)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", errs.Wrap(errs.ErrTransport, err)
	}

	msg, err := resp.Decode(res, cl.dst)
	if err == nil {
		return msg, nil
	}

	se, ok := resp.AsStatus(err)
	if !ok {
		c.logger.Warn().Err(err).Str("path", cl.path).Msg("Undecodable response")
		return "", errs.Wrap(errs.ErrUnknown, err)
	}

	switch {
	case se.Status == http.StatusUnauthorized && !cl.anonymous:
		c.logger.Info().Str("path", cl.path).Msg("Credential rejected, invalidating session")
		c.unauthorized()
		return "", errs.Wrap(errs.ErrUnauthorized, se)

	case se.Status == http.StatusForbidden:
		return "", errs.Wrap(errs.ErrPermissionDenied, se, se.Message)

	case errs.TakesDetails(cl.fallback):
		return "", errs.Wrap(cl.fallback, se, se.Message)

	default:
		return "", errs.Wrap(cl.fallback, se)
	}
}

func (c *Client) unauthorized() {
	c.mu.RLock()
	fn := c.onUnauthorized
	c.mu.RUnlock()

	if fn != nil {
		fn()
	}
}
