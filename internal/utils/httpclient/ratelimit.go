package httpclient

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"
)

// RateLimited wraps a client so requests go out no faster than a fixed rate and
// all carry the same User-Agent.
type RateLimited struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// NewRateLimited allows perSecond requests per second through client.
func NewRateLimited(client *http.Client, perSecond float64, userAgent string) *RateLimited {
	return &RateLimited{
		client:    client,
		limiter:   rate.NewLimiter(rate.Limit(perSecond), 1), // Allow burst of 1
		userAgent: userAgent,
	}
}

// Get waits for the limiter and then issues a GET request for url.
func (c *RateLimited) Get(ctx context.Context, url string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	return resp, nil
}
