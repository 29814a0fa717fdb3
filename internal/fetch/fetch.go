// Package fetch downloads package tarballs from upstream registries into temporary files,
// retrying transient failures and tripping a per-host circuit breaker on repeated ones.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rs/dnscache"
)

var (
	// ErrNotFound is returned when upstream answers 404
	ErrNotFound = errors.New("tarball not found")
	// ErrRateLimited is returned when upstream answers 429
	ErrRateLimited = errors.New("rate limited by upstream")
	// ErrUpstreamDown is returned on 5xx answers or when the circuit is open
	ErrUpstreamDown = errors.New("upstream registry unavailable")
)

// File is a downloaded tarball. The caller removes Path once done.
type File struct {
	Path        string
	Size        int64
	StatusCode  int
	ContentType string
}

// Remove deletes the downloaded file
func (f *File) Remove() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Downloader fetches a URL into a temporary file under dir
type Downloader interface {
	Download(ctx context.Context, url, dir string) (*File, error)
}

// Fetcher downloads tarballs with retries on rate limits and server errors
type Fetcher struct {
	client     *http.Client
	userAgent  string
	maxRetries int
	baseDelay  time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxRetries sets the number of retries after the first attempt
func WithMaxRetries(n int) Option {
	return func(f *Fetcher) {
		if n >= 0 {
			f.maxRetries = n
		}
	}
}

// WithBaseDelay sets the base delay of the exponential backoff
func WithBaseDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.baseDelay = d
		}
	}
}

// NewFetcher creates a Fetcher. Without WithHTTPClient it dials through a DNS cache
// that is refreshed until Close is called.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		userAgent:  "thv-registry-mirror",
		maxRetries: 3,
		baseDelay:  500 * time.Millisecond,
		stop:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = f.cachingClient()
	}
	return f
}

func (f *Fetcher) cachingClient() *http.Client {
	resolver := &dnscache.Resolver{}
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-f.stop:
				return
			case <-ticker.C:
				resolver.Refresh(true)
			}
		}
	}()

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Client{
		// tarballs can be large
		Timeout: 5 * time.Minute,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				host, port, err := net.SplitHostPort(addr)
				if err != nil {
					return nil, err
				}
				ips, err := resolver.LookupHost(ctx, host)
				if err != nil {
					return nil, err
				}
				for _, ip := range ips {
					conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
					if err == nil {
						return conn, nil
					}
				}
				return nil, fmt.Errorf("failed to dial any resolved IP of %s", host)
			},
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// Close stops the DNS cache refresher
func (f *Fetcher) Close() {
	f.stopOnce.Do(func() { close(f.stop) })
}

// Download streams url into a new temporary file under dir
func (f *Fetcher) Download(ctx context.Context, url, dir string) (*File, error) {
	var lastErr error
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			delay := f.baseDelay << (attempt - 1)
			//nolint:gosec // G404: jitter does not need a secure source
			delay += time.Duration(float64(delay) * rand.Float64() * 0.1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		file, err := f.download(ctx, url, dir)
		if err == nil {
			return file, nil
		}
		lastErr = err
		if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamDown) {
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func (f *Fetcher) download(ctx context.Context, url, dir string) (*File, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", url, ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, ErrUpstreamDown)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating download directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "tarball-*.tgz")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	size, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	return &File{
		Path:        tmp.Name(),
		Size:        size,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
