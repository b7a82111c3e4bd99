// Package httpjson is a small bearer-token JSON client with retries.
package httpjson

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	defaultTimeout         = 10 * time.Second
	defaultMaxRetries      = 3
	defaultInitialInterval = 200 * time.Millisecond
	maxErrorBody           = 64 << 10
)

// ErrEmptyResponse is returned when a 2xx response that should carry JSON
// has no body.
var ErrEmptyResponse = errors.New("httpjson: empty response body")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Temporary reports whether the request may succeed when retried.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Options configures a Client.
type Options struct {
	// BaseURL is prepended to request paths. Leave empty to pass full URLs.
	BaseURL string
	// Token is sent as "Authorization: Bearer <token>" when set.
	Token string
	// Timeout bounds each attempt. Defaults to 10s.
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt.
	// Defaults to 3; set NoRetry to disable retries.
	MaxRetries      uint64
	NoRetry         bool
	InitialInterval time.Duration
	// HTTPClient overrides the underlying client. Timeout is ignored when set.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client sends JSON requests. It is safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	http       *http.Client
	maxRetries uint64
	initial    time.Duration
	log        *zap.Logger
}

// New returns a Client with defaults filled in for zero Options fields.
func New(opts Options) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		token:      opts.Token,
		http:       opts.HTTPClient,
		maxRetries: opts.MaxRetries,
		initial:    opts.InitialInterval,
		log:        opts.Logger,
	}
	if c.http == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if c.maxRetries == 0 {
		c.maxRetries = defaultMaxRetries
	}
	if opts.NoRetry {
		c.maxRetries = 0
	}
	if c.initial <= 0 {
		c.initial = defaultInitialInterval
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

// Get decodes the JSON response of GET path into T.
func Get[T any](ctx context.Context, c *Client, path string) (T, error) {
	var out T
	err := c.Do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// Post sends body as JSON and decodes the response into T.
func Post[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	var out T
	err := c.Do(ctx, http.MethodPost, path, body, &out)
	return out, err
}

// GetFunc returns a function fetching path, usable as a fetchcache.Fetcher.
func GetFunc[T any](c *Client, path string) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		return Get[T](ctx, c, path)
	}
}

// Do runs one request, retrying network errors, 429 and 5xx responses with
// exponential backoff. out may be nil to discard the response body.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
	}
	target := c.url(path)

	op := func() error {
		return c.attempt(ctx, method, target, payload, out)
	}
	notify := func(err error, wait time.Duration) {
		c.log.Debug("retrying request",
			zap.String("method", method),
			zap.String("url", target),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initial
	policy := backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return fmt.Errorf("%s %s: %w", method, target, err)
	}
	return nil
}

func (c *Client) attempt(ctx context.Context, method, target string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		serr := &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
		if serr.Temporary() {
			return serr
		}
		return backoff.Permanent(serr)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return backoff.Permanent(ErrEmptyResponse)
		}
		return backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) url(path string) string {
	if c.baseURL == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}
