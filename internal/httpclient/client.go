// Package httpclient provides the JSON HTTP client used to talk to upstream registries.
package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	// DefaultTimeout bounds a single request
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize is the largest body the client will read (100MB)
	MaxResponseSize = 100 * 1024 * 1024

	// UserAgent is sent with every request
	UserAgent = "thv-registry-mirror/1.0"
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=client.go Client

// Client performs JSON requests against upstream registries
type Client interface {
	// Get fetches url and returns the body of a 2xx response
	Get(ctx context.Context, url string) ([]byte, error)
	// Do sends a request and returns the response; non 2xx answers return an *HTTPError
	// alongside the response
	Do(ctx context.Context, method, url string, body []byte) (*Response, error)
}

// DefaultClient implements Client with retries on transient failures
type DefaultClient struct {
	client     *http.Client
	maxRetries uint
	baseDelay  time.Duration
}

// Option configures a DefaultClient
type Option func(*DefaultClient)

// WithMaxRetries sets how many times a transient failure is retried
func WithMaxRetries(n int) Option {
	return func(c *DefaultClient) {
		if n >= 0 {
			c.maxRetries = uint(n)
		}
	}
}

// WithBaseDelay sets the first retry delay
func WithBaseDelay(d time.Duration) Option {
	return func(c *DefaultClient) {
		if d > 0 {
			c.baseDelay = d
		}
	}
}

// NewDefaultClient creates a client with the given per request timeout
func NewDefaultClient(timeout time.Duration, opts ...Option) *DefaultClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &DefaultClient{
		client:    &http.Client{Timeout: timeout},
		baseDelay: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get implements Client
func (c *DefaultClient) Get(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := c.Do(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Do implements Client
func (c *DefaultClient) Do(ctx context.Context, method, rawURL string, body []byte) (*Response, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.baseDelay
	b.MaxInterval = 10 * c.baseDelay

	var last *Response
	resp, err := backoff.Retry(ctx, func() (*Response, error) {
		resp, err := c.do(ctx, method, rawURL, body)
		last = resp
		if err != nil && !retryable(err) {
			return resp, backoff.Permanent(err)
		}
		return resp, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(c.maxRetries+1))
	if err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Unwrap()
		}
		// keep the last response so callers can report its status
		return last, err
	}
	return resp, nil
}

func (c *DefaultClient) do(ctx context.Context, method, rawURL string, body []byte) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.ContentLength > MaxResponseSize {
		return nil, fmt.Errorf("response size %d exceeds maximum allowed size of %.2f MB",
			resp.ContentLength, float64(MaxResponseSize)/(1024*1024))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(data) > MaxResponseSize {
		return nil, fmt.Errorf("response body exceeds maximum allowed size of %.2f MB",
			float64(MaxResponseSize)/(1024*1024))
	}

	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return out, NewHTTPError(resp.StatusCode, rawURL, http.StatusText(resp.StatusCode))
	}
	return out, nil
}

// retryable reports whether a failed attempt should be retried: server errors, rate
// limits and transport failures are, everything else is final
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= http.StatusInternalServerError || httpErr.StatusCode == http.StatusTooManyRequests
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
