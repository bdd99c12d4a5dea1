package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "http://localhost:5000"
	defaultTimeout = 5 * time.Second

	// Consecutive graph failures before fetches short-circuit, and how long
	// they stay short-circuited before a trial request.
	breakerTrips   = 3
	breakerTimeout = 30 * time.Second
)

// Node is a graph node as the memory backend sends it.
type Node struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	Label         string `json:"label"`
	Name          string `json:"name"`
	Summary       string `json:"summary,omitempty"`
	Timestamp     string `json:"timestamp,omitempty"`
	Notifications int    `json:"notifications,omitempty"`
}

// Edge is a typed graph edge as the memory backend sends it.
type Edge struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Relation string `json:"relation"`
}

// Payload is the fetch-graph response body.
type Payload struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Empty reports whether the payload carries no nodes at all.
func (p Payload) Empty() bool { return len(p.Nodes) == 0 }

// Source is anything that can produce a graph payload. FetchGraph never
// fails: an unreachable backend yields an empty payload.
type Source interface {
	FetchGraph(ctx context.Context) Payload
}

// Client talks to the memory backend over HTTP.
type Client struct {
	http    *http.Client
	baseURL string
	log     *zap.Logger
	breaker *gobreaker.CircuitBreaker
}

// NewClient creates a backend client. NEURALMAP_PROVIDER_URL overrides
// baseURL; an empty baseURL falls back to http://localhost:5000.
func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if env := os.Getenv("NEURALMAP_PROVIDER_URL"); env != "" {
		baseURL = env
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
		log:     log,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "provider-graph",
		Timeout: breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTrips
		},
		IsSuccessful: func(err error) bool {
			// A caller giving up says nothing about the backend.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	})
	return c
}

// BaseURL returns the backend root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// FetchGraph retrieves the full node/edge graph. On any failure it logs a
// warning and returns an empty payload.
func (c *Client) FetchGraph(ctx context.Context) Payload {
	p, err := c.TryFetchGraph(ctx)
	if err != nil {
		c.log.Warn("backend unavailable, using empty graph",
			zap.String("url", c.baseURL+"/api/graph"),
			zap.Error(err),
		)
		return Payload{}
	}
	c.log.Debug("fetched graph",
		zap.Int("nodes", len(p.Nodes)),
		zap.Int("edges", len(p.Edges)),
	)
	return p
}

// TryFetchGraph is FetchGraph with the error exposed, for callers that want
// to count failures. After repeated failures it returns
// gobreaker.ErrOpenState without contacting the backend.
func (c *Client) TryFetchGraph(ctx context.Context) (Payload, error) {
	res, err := c.breaker.Execute(func() (interface{}, error) {
		data, err := c.get(ctx, "/api/graph")
		if err != nil {
			return nil, err
		}
		var p Payload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode graph: %w", err)
		}
		return p, nil
	})
	if err != nil {
		return Payload{}, err
	}
	return res.(Payload), nil
}

// BreakerState reports the graph fetch circuit breaker's state.
func (c *Client) BreakerState() gobreaker.State { return c.breaker.State() }

// Healthy checks if the backend is reachable.
func (c *Client) Healthy(ctx context.Context) bool {
	_, err := c.get(ctx, "/api/health")
	return err == nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request %s: %w", path, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return data, fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, data)
	}
	return data, nil
}
