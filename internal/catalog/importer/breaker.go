package importer

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"
)

// BreakerClient wraps a Client with per-host circuit breakers so a flaky
// source host stops consuming import requests after repeated failures.
type BreakerClient struct {
	client   *Client
	breakers map[string]*circuit.Breaker
	mu       sync.RWMutex
}

// NewBreakerClient creates a circuit breaker wrapper for a client.
func NewBreakerClient(c *Client) *BreakerClient {
	return &BreakerClient{
		client:   c,
		breakers: make(map[string]*circuit.Breaker),
	}
}

// GetJSON calls the underlying client when the host's circuit is closed.
func (bc *BreakerClient) GetJSON(ctx context.Context, rawURL string, target any) error {
	host := extractHost(rawURL)
	breaker := bc.getBreaker(host)

	if !breaker.Ready() {
		return fmt.Errorf("circuit breaker open for host %s: %w", host, ErrSourceUnreachable)
	}

	return breaker.Call(func() error {
		return bc.client.GetJSON(ctx, rawURL, target)
	}, 0)
}

// BreakerStates reports the open/closed state per host, for health checks.
func (bc *BreakerClient) BreakerStates() map[string]string {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	states := make(map[string]string)
	for host, breaker := range bc.breakers {
		if breaker.Tripped() {
			states[host] = "open"
		} else {
			states[host] = "closed"
		}
	}
	return states
}

func (bc *BreakerClient) getBreaker(host string) *circuit.Breaker {
	bc.mu.RLock()
	breaker, exists := bc.breakers[host]
	bc.mu.RUnlock()

	if exists {
		return breaker
	}

	bc.mu.Lock()
	defer bc.mu.Unlock()

	if breaker, exists := bc.breakers[host]; exists {
		return breaker
	}

	// Trips after 5 consecutive failures, resets on exponential backoff.
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	breaker = circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(5),
	})
	bc.breakers[host] = breaker
	return breaker
}

func extractHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		if len(rawURL) > 50 {
			return rawURL[:50]
		}
		return rawURL
	}
	return parsed.Host
}
