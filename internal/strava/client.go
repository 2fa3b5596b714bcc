// Package strava talks to the Strava REST and OAuth endpoints and manages
// stored credentials.
package strava

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Production Strava endpoints. Tests point the client at httptest servers.
const (
	DefaultAPIBaseURL = "https://www.strava.com/api/v3"
	DefaultTokenURL   = "https://www.strava.com/oauth/token"
)

// Config carries the OAuth application credentials and optional overrides.
type Config struct {
	ClientID     string
	ClientSecret string
	APIBaseURL   string
	TokenURL     string
	HTTPClient   *http.Client
}

// Client is a thin Strava API client. It performs no retries; a failed call
// is fatal for the event that triggered it.
type Client struct {
	clientID     string
	clientSecret string
	apiBaseURL   string
	tokenURL     string
	httpClient   *http.Client
}

// NewClient constructs a Client, applying production defaults for anything
// unset in cfg.
func NewClient(cfg Config) *Client {
	c := &Client{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		apiBaseURL:   cfg.APIBaseURL,
		tokenURL:     cfg.TokenURL,
		httpClient:   cfg.HTTPClient,
	}
	if c.apiBaseURL == "" {
		c.apiBaseURL = DefaultAPIBaseURL
	}
	if c.tokenURL == "" {
		c.tokenURL = DefaultTokenURL
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	return c
}

// FetchActivity retrieves full activity detail with bearer authorization.
func (c *Client) FetchActivity(ctx context.Context, accessToken string, activityID int64) (*Activity, error) {
	url := fmt.Sprintf("%s/activities/%d", c.apiBaseURL, activityID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch activity %d: %w", activityID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch activity %d: strava returned status %d", activityID, resp.StatusCode)
	}

	var activity Activity
	if err := json.NewDecoder(resp.Body).Decode(&activity); err != nil {
		return nil, fmt.Errorf("decode activity %d: %w", activityID, err)
	}
	return &activity, nil
}

// RefreshToken exchanges a refresh token for a new token triple. The old
// refresh token is single-use.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	return c.tokenRequest(ctx, map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
	})
}

// ExchangeCode trades an authorization code for the initial token triple plus
// the athlete identity.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	return c.tokenRequest(ctx, map[string]string{
		"grant_type": "authorization_code",
		"code":       code,
	})
}

func (c *Client) tokenRequest(ctx context.Context, params map[string]string) (*TokenResponse, error) {
	payload := map[string]string{
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
	}
	for k, v := range params {
		payload[k] = v
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token request: strava returned status %d", resp.StatusCode)
	}

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	return &token, nil
}
