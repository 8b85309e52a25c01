// Package httpapi consumes the tool catalog of another toolbench daemon.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fentz26/toolbench/internal/models"
	"github.com/fentz26/toolbench/internal/provider"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// Client wraps HTTP calls to a toolbench daemon.
type Client struct {
	name       string
	baseURL    string
	httpClient *http.Client
}

var _ provider.Provider = (*Client)(nil)

// NewClient creates a new API client with timeout.
func NewClient(name, baseURL string) *Client {
	return &Client{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
	}
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return c.name
}

// ListTools fetches the daemon's raw tool list.
func (c *Client) ListTools(ctx context.Context) ([]models.RawTool, error) {
	body, err := c.do(ctx, http.MethodGet, "/tools/raw", nil)
	if err != nil {
		return nil, err
	}

	var tools []models.RawTool
	if err := json.Unmarshal(body, &tools); err != nil {
		return nil, fmt.Errorf("decode tools: %w", err)
	}
	return tools, nil
}

// Invoke runs a tool on the daemon. A failed remote result becomes an error
// carrying the remote message.
func (c *Client) Invoke(ctx context.Context, identifier string, params map[string]any) (any, error) {
	body, err := c.do(ctx, http.MethodPost, "/tools/"+url.PathEscape(identifier)+"/invoke", map[string]any{
		"parameters": params,
	})
	if err != nil {
		return nil, err
	}

	var result models.InvokeResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	if !result.Success {
		return nil, fmt.Errorf("%s", result.Error)
	}
	return result.Data, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// CheckHealth checks if the daemon is healthy.
func (c *Client) CheckHealth(ctx context.Context) (bool, error) {
	body, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return false, err
	}

	var health struct {
		OK bool `json:"ok"`
	}
	if err := json.Unmarshal(body, &health); err != nil {
		return false, err
	}
	return health.OK, nil
}

func (c *Client) do(ctx context.Context, method, path string, data any) ([]byte, error) {
	var reader io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound && method == http.MethodPost {
		return nil, fmt.Errorf("%w: %s", provider.ErrToolNotFound, strings.TrimSpace(string(body)))
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
