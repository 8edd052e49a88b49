package simulate

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

	"github.com/google/uuid"
)

// ErrStatus is returned for non-2xx responses.
var ErrStatus = errors.New("unexpected status")

// HTTPClient is a small JSON client for the ranking API.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// NewHTTPClient creates a client for baseURL with the given timeout.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// StatusError carries the status of a failed call.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %d: %s", ErrStatus, e.Code, strings.TrimSpace(e.Body))
}

func (e *StatusError) Unwrap() error { return ErrStatus }

// getJSON performs a GET and decodes the JSON response into out.
func (c *HTTPClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

// postJSON performs a POST with a JSON body and an idempotency key.
func (c *HTTPClient) postJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", uuid.NewString())
	return c.do(req, out)
}

func (c *HTTPClient) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", req.URL.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return nil
}

// Health checks /healthz.
func (c *HTTPClient) Health(ctx context.Context) error {
	return c.getJSON(ctx, "/healthz", nil)
}

// Init seeds the server, optionally resetting it first.
func (c *HTTPClient) Init(ctx context.Context, reset bool) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	path := "/api/init"
	if reset {
		path += "?reset=true"
	}
	err := c.getJSON(ctx, path, &out)
	return out.Message, err
}

// Matchup draws a pair.
func (c *HTTPClient) Matchup(ctx context.Context) (Matchup, error) {
	var m Matchup
	err := c.getJSON(ctx, "/api/matchup", &m)
	return m, err
}

// Vote submits one vote with a fresh idempotency key.
func (c *HTTPClient) Vote(ctx context.Context, v VoteRequest) (VoteResponse, error) {
	var out VoteResponse
	err := c.postJSON(ctx, "/api/vote", v, &out)
	return out, err
}

// Rankings returns the full ranking.
func (c *HTTPClient) Rankings(ctx context.Context) ([]RankedEntity, error) {
	var out []RankedEntity
	err := c.getJSON(ctx, "/api/rankings?limit=all", &out)
	return out, err
}

// Stats returns the aggregate statistics.
func (c *HTTPClient) Stats(ctx context.Context) (ServerStats, error) {
	var out ServerStats
	err := c.getJSON(ctx, "/api/stats", &out)
	return out, err
}
