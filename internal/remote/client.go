// Package remote drives a running neuralmap server over its HTTP API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/memoraos/neuralmap/internal/engine"
)

const (
	defaultServerURL = "http://127.0.0.1:37780"
	httpTimeout      = 5 * time.Second
)

// Client talks to the neuralmap server.
type Client struct {
	http      *http.Client
	serverURL string
}

// NewClient creates a client for serverURL. NEURALMAP_URL overrides an
// empty serverURL; the fallback is http://127.0.0.1:37780.
func NewClient(serverURL string) *Client {
	if serverURL == "" {
		serverURL = os.Getenv("NEURALMAP_URL")
	}
	if serverURL == "" {
		serverURL = defaultServerURL
	}
	return &Client{
		http:      &http.Client{Timeout: httpTimeout},
		serverURL: serverURL,
	}
}

// URL returns the server root the client talks to.
func (c *Client) URL() string { return c.serverURL }

// Post sends a POST request with JSON body. Returns response body.
func (c *Client) Post(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// Get sends a GET request. Returns response body.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", path, err)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response %s: %w", req.URL.Path, err)
	}
	if resp.StatusCode >= 400 {
		return data, fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, bytes.TrimSpace(data))
	}
	return data, nil
}

// Healthy checks if the server is reachable.
func (c *Client) Healthy(ctx context.Context) bool {
	_, err := c.Get(ctx, "/api/health")
	return err == nil
}

// Send dispatches one event and returns the resulting frame.
func (c *Client) Send(ctx context.Context, ev engine.Event) (engine.Frame, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return engine.Frame{}, fmt.Errorf("encode event: %w", err)
	}
	data, err := c.Post(ctx, "/api/events", body)
	if err != nil {
		return engine.Frame{}, err
	}
	return decodeFrame(data)
}

// Frame fetches the current frame.
func (c *Client) Frame(ctx context.Context) (engine.Frame, error) {
	data, err := c.Get(ctx, "/api/frame")
	if err != nil {
		return engine.Frame{}, err
	}
	return decodeFrame(data)
}

// Refresh asks the server to refetch the graph and returns the outcome.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	data, err := c.Post(ctx, "/api/refresh", nil)
	if err != nil {
		return "", err
	}
	var resp struct {
		Outcome string `json:"outcome"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("decode refresh: %w", err)
	}
	return resp.Outcome, nil
}

func decodeFrame(data []byte) (engine.Frame, error) {
	var f engine.Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return engine.Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	return f, nil
}
