package agv

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Client talks to the device's HTTP control service. Every call hits the
// remote endpoint; nothing is cached and nothing is retried here.
type Client struct {
	mu         sync.RWMutex
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client. A zero timeout leaves requests unbounded.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseURL returns the client's base URL.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// Reconfigure updates the client's base URL and timeout for hot-reload.
func (c *Client) Reconfigure(baseURL string, timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = baseURL
	c.httpClient = &http.Client{Timeout: timeout}
}

func (c *Client) target(path string) (string, *http.Client) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL + path, c.httpClient
}

// do sends a request and returns the status code and body. Only network and
// body-read failures are errors here; status handling is up to the caller.
func (c *Client) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, &TransportError{Op: method + " " + path, Err: fmt.Errorf("marshal: %w", err)}
		}
		bodyReader = bytes.NewReader(data)
	}
	url, hc := c.target(path)
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return 0, nil, &TransportError{Op: method + " " + path, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := hc.Do(req)
	if err != nil {
		return 0, nil, &TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, &TransportError{Op: method + " " + path, Err: fmt.Errorf("read body: %w", err)}
	}
	return resp.StatusCode, data, nil
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	status, data, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return &TransportError{Op: "GET " + path, Err: fmt.Errorf("HTTP %d: %s", status, truncate(data))}
	}
	if err := json.Unmarshal(data, result); err != nil {
		return &TransportError{Op: "GET " + path, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

// post sends body and decodes an acknowledgment. A non-2xx reply whose body
// still decodes is returned with its status so the caller can read the
// device's own error text.
func (c *Client) post(ctx context.Context, path string, body any, result any) (int, error) {
	status, data, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return 0, err
	}
	if err := json.Unmarshal(data, result); err != nil {
		if status < 200 || status > 299 {
			return status, &RejectedError{Reason: ReasonRemote, Detail: fmt.Sprintf("HTTP %d: %s", status, truncate(data))}
		}
		return status, &TransportError{Op: "POST " + path, Err: fmt.Errorf("decode: %w", err)}
	}
	return status, nil
}

func truncate(data []byte) string {
	const max = 200
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}
