package http

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// Client is a wrapper for a resty client with optional outbound throttling
type Client struct {
	HTTPClient *resty.Client
	Limiter    *rate.Limiter
}

// ClientOptions holds options for creating a new Client
type ClientOptions struct {
	BaseURL        string
	Timeout        time.Duration
	RequestsPerSec int
}

// NewClient creates a new HTTP client. A zero RequestsPerSec disables throttling.
// Requests are never retried.
func NewClient(opts ClientOptions) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	limit := rate.Inf
	burst := 0
	if opts.RequestsPerSec > 0 {
		limit = rate.Every(time.Second / time.Duration(opts.RequestsPerSec))
		burst = opts.RequestsPerSec
	}

	return &Client{
		HTTPClient: resty.New().
			SetBaseURL(opts.BaseURL).
			SetTimeout(opts.Timeout).
			SetRetryCount(0),
		Limiter: rate.NewLimiter(limit, burst),
	}
}

// Do sends method to url with headers once the limiter allows it. url may be
// absolute or relative to the base URL; its query string is sent verbatim.
// A non-2xx status is not an error: callers inspect the response body.
func (c *Client) Do(ctx context.Context, method, url string, headers map[string]string) (*resty.Response, error) {
	// Wait for rate limiter
	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, err
	}

	return c.HTTPClient.R().
		SetContext(ctx).
		SetHeaders(headers).
		Execute(method, url)
}
