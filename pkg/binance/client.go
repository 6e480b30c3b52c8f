package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// ErrMissingCredentials is returned when the API key or secret is empty.
// It is a precondition failure and is never retried.
var ErrMissingCredentials = errors.New("binance: api key and secret are required")

const DefaultTimeout = 10 * time.Second

// Credentials is the key pair used to sign requests.
type Credentials struct {
	APIKey    string
	APISecret string
}

// Client talks to the Binance REST API. Signed calls carry a timestamp,
// an HMAC-SHA256 signature and the API key header.
type Client struct {
	baseURL      string
	apiKey       string
	signer       *Signer
	clock        *Clock
	recvWindow   time.Duration
	tickerPolicy RetryPolicy
	httpClient   *http.Client
	logger       *zap.Logger
}

type Option func(*Client)

// WithRecvWindow adds recvWindow to every signed request.
func WithRecvWindow(d time.Duration) Option {
	return func(c *Client) { c.recvWindow = d }
}

// WithClock replaces the timestamp source.
func WithClock(clock *Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithTickerPolicy sets the retry policy used for price lookups.
func WithTickerPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.tickerPolicy = p }
}

func NewClient(baseURL string, creds Credentials, timeout time.Duration, logger *zap.Logger, opts ...Option) (*Client, error) {
	if creds.APIKey == "" || creds.APISecret == "" {
		return nil, ErrMissingCredentials
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		baseURL:      baseURL,
		apiKey:       creds.APIKey,
		signer:       NewSigner(creds.APISecret),
		clock:        NewClock(),
		tickerPolicy: SinglePolicy,
		httpClient:   &http.Client{Timeout: timeout},
		logger:       logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SignQuery appends recvWindow (if configured), a fresh timestamp and the
// signature to params and returns the encoded query string.
func (c *Client) SignQuery(params Params) string {
	p := params.clone()
	if c.recvWindow > 0 {
		p = p.Add("recvWindow", strconv.FormatInt(c.recvWindow.Milliseconds(), 10))
	}
	p = p.Add("timestamp", strconv.FormatInt(c.clock.Next(), 10))

	payload := p.Encode()
	return payload + "&signature=" + c.signer.Sign(payload)
}

// SignedGet performs an authenticated GET, retrying per policy. Each attempt
// is re-signed with a new timestamp.
func (c *Client) SignedGet(ctx context.Context, path string, params Params, policy RetryPolicy) (*Response, error) {
	return c.get(ctx, path, params, policy, true)
}

// PublicGet performs an unauthenticated GET, retrying per policy.
func (c *Client) PublicGet(ctx context.Context, path string, params Params, policy RetryPolicy) (*Response, error) {
	return c.get(ctx, path, params, policy, false)
}

func (c *Client) get(ctx context.Context, path string, params Params, policy RetryPolicy, signed bool) (*Response, error) {
	var resp *Response
	attempts, err := policy.Do(ctx, func(ctx context.Context) (int, error) {
		query := params.Encode()
		if signed {
			query = c.SignQuery(params)
		}

		r, err := c.do(ctx, path, query, signed)
		if err != nil {
			c.logger.Debug("request failed", zap.String("path", path), zap.Error(err))
			return 0, err
		}
		resp = r

		if r.StatusCode != http.StatusOK {
			statusErr := &StatusError{StatusCode: r.StatusCode, Body: r.Body}
			var apiErr APIError
			if json.Unmarshal(r.Body, &apiErr) == nil && apiErr.Code != 0 {
				statusErr.API = &apiErr
			}
			c.logger.Debug("unexpected status", zap.String("path", path), zap.Int("status", r.StatusCode))
			return r.StatusCode, statusErr
		}
		return r.StatusCode, nil
	})
	if err != nil {
		return resp, fmt.Errorf("GET %s failed after %d attempt(s): %w", path, attempts, err)
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, path, query string, signed bool) (*Response, error) {
	endpoint := c.baseURL + path
	if query != "" {
		endpoint += "?" + query
	}

	// Construct the GET request with context for timeout/cancel support
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if signed {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}

	// Execute the HTTP request
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

func decode(resp *Response, v any) error {
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
