package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/rs/dnscache"
)

var errRateLimited = errors.New("rate limited by source")

// Client is the HTTP client the importer backends share. It retries
// transient failures with exponential backoff and caches DNS lookups.
type Client struct {
	httpClient *http.Client
	userAgent  string
	maxRetries int
	baseDelay  time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithTimeout bounds every request round-trip.
func WithTimeout(d time.Duration) ClientOption {
	return func(cl *Client) {
		cl.httpClient.Timeout = d
	}
}

// WithMaxRetries sets the maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(cl *Client) {
		cl.maxRetries = n
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(cl *Client) {
		cl.userAgent = ua
	}
}

// NewClient creates a Client with a DNS-caching transport, a 30s timeout,
// and 3 retries.
func NewClient(opts ...ClientOption) *Client {
	resolver := &dnscache.Resolver{}
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			resolver.Refresh(true)
		}
	}()

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
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
					return nil, fmt.Errorf("failed to dial any resolved IP")
				},
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		userAgent:  "addonbay-importer/1.0",
		maxRetries: 3,
		baseDelay:  500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetJSON fetches url and decodes the response body into target. A 404
// maps to ErrFormatInvalid; rate limits and 5xx responses are retried and
// map to ErrSourceUnreachable once retries are exhausted.
func (c *Client) GetJSON(ctx context.Context, url string, target any) error {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff with 10% jitter.
			delay := c.baseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
			delay += time.Duration(float64(delay) * (rand.Float64() * 0.1))

			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrSourceUnreachable, ctx.Err())
			case <-time.After(delay):
			}
		}

		err := c.doGetJSON(ctx, url, target)
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, ErrFormatInvalid) {
			return err
		}
		if errors.Is(err, errRateLimited) || errors.Is(err, ErrSourceUnreachable) {
			continue
		}
		return err
	}

	if errors.Is(lastErr, errRateLimited) {
		return fmt.Errorf("%w: %v", ErrSourceUnreachable, lastErr)
	}
	return lastErr
}

func (c *Client) doGetJSON(ctx context.Context, url string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnreachable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("decode response: %w", ErrFormatInvalid)
		}
		return nil

	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("not found at %s: %w", url, ErrFormatInvalid)

	case resp.StatusCode == http.StatusTooManyRequests:
		return errRateLimited

	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrSourceUnreachable, resp.StatusCode)

	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %d: %s: %w", resp.StatusCode, string(body), ErrFormatInvalid)
	}
}
