// Package auth implements the licence-endpoint client that authorizes an
// application key and secret for restricted protocols.
//
// The [Client] satisfies the engine's Authorizer interface. Calls to the
// licence endpoint run through a circuit breaker so that a dead endpoint
// fails fast instead of stalling every authorization attempt.
package auth

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

	"github.com/MrWong99/chirplink/internal/observe"
	"github.com/MrWong99/chirplink/internal/resilience"
)

// defaultTimeout bounds a single licence-endpoint round trip.
const defaultTimeout = 10 * time.Second

// maxResponseBytes caps how much of the response body is read.
const maxResponseBytes = 1 << 16

// ---- options ----

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithTimeout sets the per-request HTTP timeout. Defaults to 10 s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client. Useful for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithMetrics wires authorization attempt counters and latency histograms.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// ---- Client ----

// Client authorizes key/secret pairs against a licence endpoint. It is safe
// for concurrent use.
type Client struct {
	endpoint   string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	metrics    *observe.Metrics
}

// New creates a licence client for the given endpoint URL (e.g.
// "https://licence.example.com/v1/authorize"). endpoint must be non-empty.
func New(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("auth: endpoint must not be empty")
	}
	c := &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name: "licence-endpoint",
		}),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// authorizeRequest is the JSON body sent to the licence endpoint.
type authorizeRequest struct {
	Key    string `json:"key"`
	Secret string `json:"secret"`
}

// authorizeResponse is the JSON body returned on a 200 response.
type authorizeResponse struct {
	Authorized bool   `json:"authorized"`
	Reason     string `json:"reason,omitempty"`
}

// Authorize checks the key/secret pair against the licence endpoint. It
// returns (true, nil) when the credentials are accepted, (false, nil) when
// the endpoint rejects them, and (false, err) when the endpoint could not be
// reached or answered with an unexpected status.
func (c *Client) Authorize(ctx context.Context, key, secret string) (bool, error) {
	start := time.Now()
	var ok bool

	err := c.breaker.Execute(func() error {
		var execErr error
		ok, execErr = c.authorize(ctx, key, secret)
		return execErr
	})

	if c.metrics != nil {
		status := "ok"
		switch {
		case err != nil:
			status = "error"
		case !ok:
			status = "denied"
		}
		c.metrics.RecordAuthRequest(ctx, status, time.Since(start).Seconds())
	}

	if err != nil {
		return false, err
	}
	return ok, nil
}

// authorize performs one licence-endpoint round trip.
func (c *Client) authorize(ctx context.Context, key, secret string) (bool, error) {
	body, err := json.Marshal(authorizeRequest{Key: key, Secret: secret})
	if err != nil {
		return false, fmt.Errorf("auth: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("auth: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("auth: request licence endpoint: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var ar authorizeResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&ar); err != nil {
			return false, fmt.Errorf("auth: decode response: %w", err)
		}
		return ar.Authorized, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		// Rejected credentials are a definitive answer, not a transport
		// failure, so they must not trip the breaker.
		return false, nil
	default:
		return false, fmt.Errorf("auth: licence endpoint returned status %d", resp.StatusCode)
	}
}
