// Package remote provides clients for the chat resource backend.
//
// The backend exposes a POST-only RPC surface: every call posts a JSON body
// of the form {"userId": ..., <fields>} with a bearer token, and responds
// with the resource representation.
package remote

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

	"github.com/deskfront/messaging-core/pkg/logger"
)

// ErrNotFound indicates the requested resource does not exist.
var ErrNotFound = errors.New("resource not found")

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status int
	Path   string
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend %s returned %d: %s", e.Path, e.Status, e.Body)
}

// Config holds backend connection configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// Token returns the credential presented on every request. The token
	// lifecycle is owned by the caller.
	Token func() string
}

// Client is the low-level HTTP client for the backend RPC surface.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      func() string
	logger     *logger.Logger
}

// NewClient creates a backend client.
func NewClient(cfg Config, log *logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		token:      cfg.Token,
		logger:     log,
	}
}

// post sends {"userId": requesterID, ...fields} to path and decodes the
// response into out when out is non-nil. A 404 maps to ErrNotFound.
func (c *Client) post(ctx context.Context, path, requesterID string, fields map[string]any, out any) error {
	body := map[string]any{"userId": requesterID}
	for k, v := range fields {
		body[k] = v
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("backend %s: %w", path, ErrNotFound)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Path: path, Body: string(raw)}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("backend %s: failed to decode response: %w", path, err)
	}

	return nil
}
