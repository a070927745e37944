package binance

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/spothook/internal/metrics"
	phttp "github.com/Alias1177/spothook/internal/platform/http"
)

const (
	AccountPath = "/api/v3/account"
	OrderPath   = "/api/v3/order"
	PingPath    = "/api/v3/ping"

	apiKeyHeader = "X-MBX-APIKEY"
)

// ErrTransport marks failures to reach the exchange (DNS, TLS, connection, timeout).
var ErrTransport = errors.New("exchange transport fault")

// Sender issues signed requests to the exchange.
type Sender interface {
	Send(ctx context.Context, method, path string, params *Params) (*Response, error)
}

// Options configure a Client.
type Options struct {
	BaseURL        string
	APIKey         string
	APISecret      string
	Timeout        time.Duration
	RequestsPerSec int
}

// Client is the signed REST gateway to the Binance spot API.
type Client struct {
	http   *phttp.Client
	signer *Signer
	apiKey string
	now    func() time.Time
	logger zerolog.Logger
}

// NewClient creates a gateway bound to one set of credentials.
func NewClient(opts Options) *Client {
	return &Client{
		http: phttp.NewClient(phttp.ClientOptions{
			BaseURL:        opts.BaseURL,
			Timeout:        opts.Timeout,
			RequestsPerSec: opts.RequestsPerSec,
		}),
		signer: NewSigner(opts.APISecret),
		apiKey: opts.APIKey,
		now:    time.Now,
		logger: log.With().Str("component", "binance_client").Logger(),
	}
}

// Send stamps params with the current time in milliseconds, signs them and
// issues method against path. The API key travels in a header only.
// A nil params is treated as empty.
func (c *Client) Send(ctx context.Context, method, path string, params *Params) (*Response, error) {
	if params == nil {
		params = &Params{}
	}
	params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))

	url := path + "?" + c.signer.Sign(params)
	return c.do(ctx, method, path, url, map[string]string{apiKeyHeader: c.apiKey})
}

// Ping checks connectivity with the unsigned ping endpoint.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, PingPath, PingPath, nil)
	if err != nil {
		return err
	}
	if resp.InvalidJSON || resp.StatusCode != http.StatusOK {
		return errors.Errorf("ping returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, url string, headers map[string]string) (*Response, error) {
	start := time.Now()
	raw, err := c.http.Do(ctx, method, url, headers)
	took := time.Since(start)
	if err != nil {
		metrics.ObserveExchange(method, path, "transport_error", took)
		c.logger.Error().Err(err).Str("method", method).Str("path", path).Msg("Exchange request failed")
		return nil, errors.Wrapf(ErrTransport, "%s %s: %v", method, path, err)
	}

	resp := newResponse(raw.StatusCode(), raw.Body())
	result := "ok"
	switch {
	case resp.InvalidJSON:
		result = "invalid_json"
		c.logger.Warn().Str("path", path).Int("status", resp.StatusCode).Str("body", resp.Text).Msg("Exchange returned non-JSON body")
	case resp.APIError() != nil:
		result = "api_error"
		c.logger.Warn().Str("path", path).Int("status", resp.StatusCode).RawJSON("body", resp.Raw).Msg("Exchange returned error")
	}
	metrics.ObserveExchange(method, path, result, took)

	c.logger.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Dur("took", took).Msg("Exchange request done")
	return resp, nil
}
