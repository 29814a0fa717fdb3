package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"
)

// CircuitBreakerDownloader wraps a Downloader with one circuit breaker per upstream host
type CircuitBreakerDownloader struct {
	next      Downloader
	threshold int64
	breakers  map[string]*circuit.Breaker
	mu        sync.RWMutex
}

// NewCircuitBreakerDownloader trips a host's breaker after threshold consecutive failures
func NewCircuitBreakerDownloader(next Downloader, threshold int64) *CircuitBreakerDownloader {
	if threshold <= 0 {
		threshold = 5
	}
	return &CircuitBreakerDownloader{
		next:      next,
		threshold: threshold,
		breakers:  make(map[string]*circuit.Breaker),
	}
}

func (c *CircuitBreakerDownloader) breaker(host string) *circuit.Breaker {
	c.mu.RLock()
	b, ok := c.breakers[host]
	c.mu.RUnlock()
	if ok {
		return b
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.breakers[host]; ok {
		return b
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	b = circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(c.threshold),
	})
	c.breakers[host] = b
	return b
}

// Download implements Downloader. A missing tarball does not count as a failure.
func (c *CircuitBreakerDownloader) Download(ctx context.Context, rawURL, dir string) (*File, error) {
	host := hostOf(rawURL)
	b := c.breaker(host)
	if !b.Ready() {
		return nil, fmt.Errorf("circuit breaker open for %s: %w", host, ErrUpstreamDown)
	}

	var file *File
	var notFound error
	err := b.Call(func() error {
		var err error
		file, err = c.next.Download(ctx, rawURL, dir)
		if errors.Is(err, ErrNotFound) {
			notFound = err
			return nil
		}
		return err
	}, 0)
	if notFound != nil {
		return nil, notFound
	}
	if err != nil {
		return nil, err
	}
	return file, nil
}

// States reports "open" or "closed" per host
func (c *CircuitBreakerDownloader) States() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	states := make(map[string]string, len(c.breakers))
	for host, b := range c.breakers {
		if b.Tripped() {
			states[host] = "open"
		} else {
			states[host] = "closed"
		}
	}
	return states
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		if len(rawURL) > 50 {
			return rawURL[:50]
		}
		return rawURL
	}
	return parsed.Host
}
