package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// HTTPClient talks to a hosted identity provider over its JSON REST API.
// Every method maps to one provider endpoint; the provider owns all durable
// auth state.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// HTTPClientOption configures an HTTPClient.
type HTTPClientOption func(*HTTPClient)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(c *http.Client) HTTPClientOption {
	return func(h *HTTPClient) { h.client = c }
}

func NewHTTPClient(baseURL, apiKey string, opts ...HTTPClientOption) *HTTPClient {
	h := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HTTPClient) Session(ctx context.Context, accessToken string) (*Session, error) {
	var out Session
	err := h.do(ctx, http.MethodGet, "/session", accessToken, nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (h *HTTPClient) ListFactors(ctx context.Context, userID uuid.UUID) ([]SecondFactor, error) {
	var out struct {
		Factors []SecondFactor `json:"factors"`
	}
	path := fmt.Sprintf("/users/%s/factors", userID)
	if err := h.do(ctx, http.MethodGet, path, "", nil, &out); err != nil {
		return nil, err
	}
	return out.Factors, nil
}

func (h *HTTPClient) CreateChallenge(ctx context.Context, factorID uuid.UUID) (*Challenge, error) {
	var out Challenge
	path := fmt.Sprintf("/factors/%s/challenge", factorID)
	if err := h.do(ctx, http.MethodPost, path, "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (h *HTTPClient) VerifyChallenge(ctx context.Context, params VerifyChallengeParams) (*TokenPair, error) {
	var out TokenPair
	path := fmt.Sprintf("/factors/%s/verify", params.FactorID)
	body := map[string]string{
		"challenge_id": params.ChallengeID.String(),
		"code":         params.Code,
	}
	if err := h.do(ctx, http.MethodPost, path, "", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (h *HTTPClient) RefreshSession(ctx context.Context, refreshToken string) (*TokenPair, error) {
	var out TokenPair
	body := map[string]string{"refresh_token": refreshToken}
	if err := h.do(ctx, http.MethodPost, "/token/refresh", "", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (h *HTTPClient) InstallSession(ctx context.Context, accessToken, refreshToken string) (*Session, error) {
	var out Session
	body := map[string]string{"refresh_token": refreshToken}
	if err := h.do(ctx, http.MethodPost, "/session/install", accessToken, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (h *HTTPClient) SignOut(ctx context.Context, accessToken string, scope SignOutScope) error {
	body := map[string]string{"scope": string(scope)}
	return h.do(ctx, http.MethodPost, "/logout", accessToken, body, nil)
}

// IssueMagicLink asks the provider's admin API to mint a magic link for a
// user. Requires the API key.
func (h *HTTPClient) IssueMagicLink(ctx context.Context, userID uuid.UUID, redirectTo string) (string, error) {
	var out struct {
		ActionLink string `json:"action_link"`
	}
	body := map[string]string{
		"user_id":     userID.String(),
		"redirect_to": redirectTo,
	}
	if err := h.do(ctx, http.MethodPost, "/magic-links", "", body, &out); err != nil {
		return "", err
	}
	if out.ActionLink == "" {
		return "", fmt.Errorf("provider returned no action link")
	}
	return out.ActionLink, nil
}

func (h *HTTPClient) do(ctx context.Context, method, path, bearer string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.apiKey != "" {
		req.Header.Set("X-Api-Key", h.apiKey)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrNoSession
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrTooManyAttempts
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return ErrInvalidCode
	case resp.StatusCode == http.StatusNotFound:
		return ErrFactorNotFound
	case resp.StatusCode >= 400:
		var apiErr struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("provider returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("provider returned %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode provider response: %w", err)
	}
	return nil
}

var (
	_ Client = (*HTTPClient)(nil)
	_ Client = (*LocalProvider)(nil)
)
