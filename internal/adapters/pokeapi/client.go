// Package pokeapi is a small client for the public PokeAPI catalogue used to
// seed the roster. Requests are rate limited and pass through a circuit
// breaker so a failing upstream degrades seeding quickly.
package pokeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/okian/pokerank/internal/domain/model"
	"github.com/okian/pokerank/pkg/logger"
	"github.com/okian/pokerank/pkg/metrics"
)

// DefaultBaseURL is the public PokeAPI v2 root.
const DefaultBaseURL = "https://pokeapi.co/api/v2"

var (
	// ErrUnexpectedStatus is returned for any non-200 answer other than 404.
	ErrUnexpectedStatus = errors.New("unexpected upstream status")
	// ErrUnavailable is returned while the breaker is open.
	ErrUnavailable = errors.New("upstream unavailable")
)

// NamedResource is PokeAPI's {name, url} reference.
type NamedResource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type listResponse struct {
	Count   int             `json:"count"`
	Results []NamedResource `json:"results"`
}

// TypeSlot is one entry of a Pokémon's types array.
type TypeSlot struct {
	Slot int           `json:"slot"`
	Type NamedResource `json:"type"`
}

// Pokemon is the subset of /pokemon/{n} the seeder reads.
type Pokemon struct {
	ID    int        `json:"id"`
	Name  string     `json:"name"`
	Types []TypeSlot `json:"types"`
}

// TypeNames returns the type names in slot order.
func (p Pokemon) TypeNames() []string {
	slots := append([]TypeSlot(nil), p.Types...)
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].Slot < slots[j].Slot })
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.Type.Name
	}
	return out
}

// Client fetches catalogue data.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  logger.Logger

	maxFailures uint32
	openTimeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another PokeAPI root.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRateLimit caps outbound requests per second. rps <= 0 disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithBreaker sets how many consecutive failures open the breaker and how
// long it stays open.
func WithBreaker(maxFailures uint32, openTimeout time.Duration) Option {
	return func(c *Client) {
		if maxFailures > 0 {
			c.maxFailures = maxFailures
		}
		if openTimeout > 0 {
			c.openTimeout = openTimeout
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New builds a Client with a 5s timeout, 10 rps and a breaker that opens
// after 5 consecutive failures for 30s.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		http:        &http.Client{Timeout: 5 * time.Second},
		limiter:     rate.NewLimiter(10, 1),
		logger:      logger.Get().Named("pokeapi"),
		maxFailures: 5,
		openTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "pokeapi",
		MaxRequests: 1,
		Timeout:     c.openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= c.maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, model.ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.UpdateBreakerState(int(to))
			c.logger.Warn(context.Background(), "circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
		},
	})
	metrics.UpdateBreakerState(int(gobreaker.StateClosed))
	return c
}

// List returns the first limit catalogue entries in national dex order.
func (c *Client) List(ctx context.Context, limit int) ([]NamedResource, error) {
	var out listResponse
	if err := c.getJSON(ctx, "list", fmt.Sprintf("/pokemon?limit=%d&offset=0", limit), &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// Pokemon fetches one entry by national dex number.
func (c *Client) Pokemon(ctx context.Context, n int) (Pokemon, error) {
	var out Pokemon
	if err := c.getJSON(ctx, "pokemon", fmt.Sprintf("/pokemon/%d", n), &out); err != nil {
		return Pokemon{}, err
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		metrics.RecordUpstreamFailure(endpoint, "rate_limit")
		return fmt.Errorf("%s: wait for rate limiter: %w", endpoint, err)
	}

	start := time.Now()
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.do(ctx, path, out)
	})
	metrics.RecordUpstreamRequest(endpoint, float64(time.Since(start).Milliseconds()))

	switch {
	case err == nil:
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordUpstreamFailure(endpoint, "breaker_open")
		return fmt.Errorf("%s: %w", endpoint, ErrUnavailable)
	case errors.Is(err, model.ErrNotFound):
		metrics.RecordUpstreamFailure(endpoint, "not_found")
		return err
	case errors.Is(err, context.DeadlineExceeded):
		metrics.RecordUpstreamFailure(endpoint, "timeout")
		return err
	default:
		metrics.RecordUpstreamFailure(endpoint, "error")
		return err
	}
}

func (c *Client) do(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "pokerank-seeder")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug(ctx, "failed to close response body", logger.Error(cerr))
		}
	}()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return fmt.Errorf("%w: GET %s", model.ErrNotFound, path)
	default:
		return fmt.Errorf("%w: GET %s: %d", ErrUnexpectedStatus, path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
