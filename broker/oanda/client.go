// Package oanda implements broker.Broker against the OANDA v20 REST API.
package oanda

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rustyeddy/trendbot/market"
)

const (
	// PracticeURL is the URL for OANDA's practice/demo environment
	PracticeURL = "https://api-fxpractice.oanda.com"
	// LiveURL is the URL for OANDA's live trading environment
	LiveURL = "https://api-fxtrade.oanda.com"
)

// BaseURL maps an environment name to its REST endpoint.
func BaseURL(env string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "practice", "demo", "":
		return PracticeURL, nil
	case "live":
		return LiveURL, nil
	default:
		return "", fmt.Errorf("unknown OANDA env %q (want practice|live)", env)
	}
}

// Client represents an OANDA API client bound to one account.
type Client struct {
	baseURL    string
	token      string
	accountID  string
	httpClient *http.Client

	minStopPoints float64

	mu         sync.Mutex
	specs      map[string]market.SymbolSpec
	clockSkew  time.Duration
	clockKnown bool
}

type Option func(*Client)

// WithBaseURL overrides the environment URL, mostly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithMinStopPoints sets the minimum SL/TP distance reported in symbol
// specs. OANDA publishes no such limit for fixed stops.
func WithMinStopPoints(p float64) Option {
	return func(c *Client) { c.minStopPoints = p }
}

// NewClient creates a new OANDA API client
func NewClient(token, accountID string, practice bool, opts ...Option) *Client {
	baseURL := LiveURL
	if practice {
		baseURL = PracticeURL
	}

	c := &Client{
		baseURL:   baseURL,
		token:     token,
		accountID: accountID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		specs: make(map[string]market.SymbolSpec),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// APIError is a non-2xx response from the v20 API.
type APIError struct {
	Status  int
	Code    string `json:"errorCode"`
	Message string `json:"errorMessage"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("oanda http %d: %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("oanda http %d: %s", e.Status, e.Message)
}

func (c *Client) accountPath(format string, args ...any) string {
	return "/v3/accounts/" + url.PathEscape(c.accountID) + fmt.Sprintf(format, args...)
}

// do performs one request, decoding a JSON response into out when out is
// non-nil. Non-2xx responses are returned as *APIError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c.token == "" {
		return fmt.Errorf("oanda: missing token")
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept-Datetime-Format", "RFC3339")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	c.observeDate(resp.Header.Get("Date"))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(b, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(b))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// observeDate keeps the offset between the server's Date header and the
// local clock.
func (c *Client) observeDate(h string) {
	if h == "" {
		return
	}
	t, err := http.ParseTime(h)
	if err != nil {
		return
	}
	c.mu.Lock()
	c.clockSkew = t.Sub(time.Now())
	c.clockKnown = true
	c.mu.Unlock()
}

// Now returns the server clock in UTC, derived from the last response's
// Date header. One account request is made when no response has been
// seen yet.
func (c *Client) Now(ctx context.Context) (time.Time, error) {
	c.mu.Lock()
	known, skew := c.clockKnown, c.clockSkew
	c.mu.Unlock()

	if !known {
		if _, err := c.GetAccount(ctx); err != nil {
			return time.Time{}, err
		}
		c.mu.Lock()
		skew = c.clockSkew
		c.mu.Unlock()
	}
	return time.Now().Add(skew).UTC(), nil
}

// parseFloat parses an OANDA decimal string. Empty strings are zero.
func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func formatPrice(p float64, digits int) string {
	return strconv.FormatFloat(p, 'f', digits, 64)
}

func isAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}
