// ABOUTME: HTTP client for the backend's vault, MCP and model preference endpoints
// ABOUTME: Reads the {"status","message"} envelope with gjson and reports failures as *Error

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"

	"github.com/2389/cortex-console/internal/metrics"
)

const defaultTimeout = 30 * time.Second

// maxBodyBytes caps how much of a response is read.
const maxBodyBytes = 4 << 20

var (
	// ErrTokenExpired is returned before any request when the configured
	// bearer token is a JWT whose exp claim has passed.
	ErrTokenExpired = errors.New("api token expired")
	// ErrInvalidRequest wraps validation failures; nothing is sent.
	ErrInvalidRequest = errors.New("invalid request")
)

// Error is a non-2xx response, or a 2xx response whose envelope reports a
// failure status.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sends token as a bearer credential on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// WithMetrics counts requests by operation and outcome.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// Client talks to one backend base URL. Failures are returned to the caller
// and never retried.
type Client struct {
	baseURL  string
	http     *http.Client
	token    string
	validate *validator.Validate
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		http:     &http.Client{Timeout: defaultTimeout},
		validate: validator.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "api")
	return c
}

// check validates a request struct before it is sent.
func (c *Client) check(v any) error {
	if err := c.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// checkVar validates a single value against a validator tag.
func (c *Client) checkVar(name string, v any, tag string) error {
	if err := c.validate.Var(v, tag); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidRequest, name, err)
	}
	return nil
}

// do sends one request and returns the envelope's message, or the whole body
// when the response carries no envelope.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body any) (result gjson.Result, err error) {
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		c.metrics.APIRequest(op, outcome)
	}()

	if c.token != "" {
		if exp, expired := tokenExpired(c.token, c.now()); expired {
			return gjson.Result{}, fmt.Errorf("%w at %s", ErrTokenExpired, exp.Format(time.RFC3339))
		}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return gjson.Result{}, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("reading response: %w", err)
	}

	c.logger.Debug("api call", "op", op, "method", method, "path", path, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return gjson.Result{}, &Error{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}

	if !gjson.ValidBytes(data) {
		return gjson.Result{}, fmt.Errorf("decoding response: invalid json")
	}
	parsed := gjson.ParseBytes(data)

	// Some handlers report failure in the envelope with a 200 transport status.
	if status := parsed.Get("status"); status.Type == gjson.Number && status.Int() >= 400 {
		return gjson.Result{}, &Error{StatusCode: int(status.Int()), Message: errorMessage(data)}
	}
	if msg := parsed.Get("message"); msg.Exists() && parsed.Get("status").Exists() {
		return msg, nil
	}
	return parsed, nil
}

// errorMessage pulls a human-readable message out of an error body.
func errorMessage(data []byte) string {
	if gjson.ValidBytes(data) {
		for _, path := range []string{"message", "detail", "error"} {
			if r := gjson.GetBytes(data, path); r.Exists() {
				if r.Type == gjson.String {
					return r.String()
				}
				return r.Raw
			}
		}
	}
	return strings.TrimSpace(string(data))
}
