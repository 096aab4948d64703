package tokenexchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client calls a remote exchange endpoint. It implements the orchestrator's
// Exchanger contract for deployments where the exchange runs elsewhere.
type Client struct {
	endpoint string
	client   *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.client = c }
}

func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Exchange posts the one-time auth token and returns the magic-link URL.
func (c *Client) Exchange(ctx context.Context, authToken, redirectTo string) (string, error) {
	body, err := json.Marshal(ExchangeRequest{
		AuthToken:     authToken,
		RedirectToURL: redirectTo,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode exchange request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build exchange request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("exchange request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return "", fmt.Errorf("exchange returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return "", fmt.Errorf("exchange returned %d", resp.StatusCode)
	}

	var out ExchangeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode exchange response: %w", err)
	}
	if out.RedirectToURL == "" {
		return "", fmt.Errorf("exchange response missing redirect url")
	}
	return out.RedirectToURL, nil
}
