// Package rest talks to the hosted tool platform over its HTTP API.
//
// The platform has shipped several execute endpoints over time. Each one is
// a call strategy; a 404 or a rejected request body means the endpoint does
// not exist in the deployed API version and the next strategy is tried.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/coursesync/internal/adapters/driven/platform/ratelimit"
	"github.com/custodia-labs/coursesync/internal/core/domain"
	"github.com/custodia-labs/coursesync/internal/logger"
)

// DefaultBaseURL is the hosted platform API.
const DefaultBaseURL = "https://backend.composio.dev"

// maxBodyBytes caps how much of a response is read.
const maxBodyBytes = 32 << 20

// Config holds the settings needed to construct a Client.
type Config struct {
	// BaseURL is the root URL of the platform API.
	BaseURL string
	// APIKey authenticates every request.
	APIKey string
	// HTTPClient is an optional custom HTTP client. If nil, a client with a
	// 60-second timeout is used.
	HTTPClient *http.Client
	// Limiter paces requests. If nil, the platform default is used.
	Limiter *ratelimit.Limiter
}

// Client is an HTTP client for the platform API.
// All methods are safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *ratelimit.Limiter
}

// NewClient creates a Client from the given configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("platform: %w: API key is required", domain.ErrAuthRequired)
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = ratelimit.New(ratelimit.ServicePlatform)
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		client:  httpClient,
		limiter: limiter,
	}, nil
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HTTPError is a non-2xx platform response.
type HTTPError struct {
	StatusCode int
	Message    string
	Body       string
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("platform returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("platform returned %d", e.StatusCode)
}

// post sends body as JSON and decodes the response into a Value.
func (c *Client) post(ctx context.Context, path string, body any) (domain.Value, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return domain.Null(), fmt.Errorf("platform: marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return domain.Null(), fmt.Errorf("platform: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(ctx, req)
}

func (c *Client) get(ctx context.Context, path string) (domain.Value, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return domain.Null(), fmt.Errorf("platform: create request: %w", err)
	}
	return c.do(ctx, req)
}

func (c *Client) do(ctx context.Context, req *http.Request) (domain.Value, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.Null(), err
	}

	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	logger.Debug("platform %s %s", req.Method, req.URL.Path)
	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Null(), fmt.Errorf("platform: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.Null(), fmt.Errorf("platform: read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		herr := &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body),
			Body:       string(body),
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			herr.RetryAfter = ratelimit.RetryAfter(resp.Header, time.Now())
			c.limiter.Backoff(herr.RetryAfter)
		}
		return domain.Null(), herr
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return domain.Null(), nil
	}
	v, err := domain.ParseJSON(body)
	if err != nil {
		return domain.Null(), fmt.Errorf("platform: decode response: %w", err)
	}
	return v, nil
}

// errorMessage pulls a readable message out of an error body.
func errorMessage(body []byte) string {
	v, err := domain.ParseJSON(body)
	if err != nil || v.Kind() != domain.KindMap {
		s := strings.TrimSpace(string(body))
		if len(s) > 300 {
			s = s[:300] + "..."
		}
		return s
	}

	for _, key := range []string{"message", "error", "detail"} {
		field, ok := v.Get(key)
		if !ok {
			continue
		}
		switch field.Kind() {
		case domain.KindString:
			if s := field.Text(); s != "" {
				return s
			}
		case domain.KindMap:
			if m, ok := field.Get("message"); ok && m.Text() != "" {
				return m.Text()
			}
		}
	}
	return ""
}
