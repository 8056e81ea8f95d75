// Package scanners adapts the remote scanner and enrichment services to the
// audit collaborator interfaces. Every endpoint sits behind its own circuit
// breaker.
package scanners

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/raysh454/sitelens/internal/logging"
	"github.com/raysh454/sitelens/internal/webclient"
	"github.com/sony/gobreaker"
)

// Endpoint paths relative to a service base URL.
const (
	EndpointBaseline = "/v1/baseline"
	EndpointAxe      = "/v1/axe"
	EndpointPa11y    = "/v1/pa11y"
	EndpointKeyboard = "/v1/keyboard"
	EndpointAxeScore = "/v1/score/axe"
	EndpointMerge    = "/v1/merge"
	EndpointInsights = "/v1/insights"
	EndpointFixes    = "/v1/fixes"
)

var (
	ErrUnexpectedStatus = errors.New("scanners: unexpected status")
	ErrInvalidBaseURL   = errors.New("scanners: invalid base url")
)

// maxErrorSnippet bounds how much of an error body is quoted in errors.
const maxErrorSnippet = 256

// Config configures one remote service.
type Config struct {
	BaseURL string        `yaml:"base_url"`
	Breaker BreakerConfig `yaml:"breaker"`
}

// Client speaks JSON over POST to one remote service.
type Client struct {
	base     string
	wc       webclient.WebClient
	logger   logging.Logger
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewClient builds a Client for the given endpoints. Calls to endpoints not
// listed are rejected.
func NewClient(cfg Config, wc webclient.WebClient, logger logging.Logger, endpoints ...string) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, cfg.BaseURL)
	}
	if wc == nil {
		return nil, errors.New("scanners: nil webclient")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.With(logging.Field{Key: "component", Value: "scanners"}, logging.Field{Key: "service", Value: u.Host})

	bc := cfg.Breaker.withDefaults()
	c := &Client{
		base:     strings.TrimRight(u.String(), "/"),
		wc:       wc,
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker, len(endpoints)),
	}
	for _, ep := range endpoints {
		c.breakers[ep] = newBreaker(ep, bc, logger)
	}
	return c, nil
}

// BreakerStates returns endpoint to breaker state ("closed", "open",
// "half-open").
func (c *Client) BreakerStates() map[string]string {
	out := make(map[string]string, len(c.breakers))
	for ep, cb := range c.breakers {
		out[ep] = cb.State().String()
	}
	return out
}

// postJSON sends in to endpoint and decodes the 2xx response body into out.
func (c *Client) postJSON(ctx context.Context, endpoint string, in, out any) error {
	cb, ok := c.breakers[endpoint]
	if !ok {
		return fmt.Errorf("scanners: endpoint %s not enabled", endpoint)
	}
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("scanners: encode %s request: %w", endpoint, err)
	}

	res, err := cb.Execute(func() (interface{}, error) {
		resp, err := c.wc.Do(ctx, &webclient.Request{
			Method: http.MethodPost,
			URL:    c.base + endpoint,
			Headers: http.Header{
				"Content-Type": {"application/json"},
				"Accept":       {"application/json"},
			},
			Body: body,
		})
		if err != nil {
			return nil, err
		}
		if !resp.OK() {
			return nil, fmt.Errorf("%w %d: %s", ErrUnexpectedStatus, resp.StatusCode, snippet(resp.Body))
		}
		return resp.Body, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.logger.Debug("call rejected by circuit breaker", logging.Field{Key: "endpoint", Value: endpoint})
		}
		return fmt.Errorf("scanners: %s: %w", endpoint, err)
	}

	if out == nil {
		return nil
	}
	data, _ := res.([]byte)
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("scanners: decode %s response: %w", endpoint, err)
	}
	return nil
}

func snippet(b []byte) string {
	b = bytes.TrimSpace(b)
	if len(b) > maxErrorSnippet {
		b = b[:maxErrorSnippet]
	}
	return string(b)
}
