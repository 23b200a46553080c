package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RemoteConfig configures a RemoteVerifier.
type RemoteConfig struct {
	// BaseURL of the hosted auth service, e.g. https://xyz.supabase.co
	BaseURL string

	// APIKey is sent as the apikey header.
	APIKey string

	// CookieName is an optional cookie carrying the access token.
	CookieName string

	// Timeout bounds each lookup. Default: 3s
	Timeout time.Duration

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// RemoteVerifier asks the hosted auth service who owns an access token.
type RemoteVerifier struct {
	endpoint   string
	apiKey     string
	cookieName string
	client     *http.Client
}

// NewRemoteVerifier creates a verifier calling GET {BaseURL}/auth/v1/user.
func NewRemoteVerifier(cfg RemoteConfig) (*RemoteVerifier, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("auth base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &RemoteVerifier{
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + "/auth/v1/user",
		apiKey:     cfg.APIKey,
		cookieName: cfg.CookieName,
		client:     client,
	}, nil
}

// Subject returns the user ID the auth service associates with the
// request's access token. 401 and 403 mean no session. Transport failures
// and other statuses are errors.
func (v *RemoteVerifier) Subject(ctx context.Context, r *http.Request) (string, error) {
	raw := accessToken(r, v.cookieName)
	if raw == "" {
		return "", nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+raw)
	req.Header.Set("Accept", "application/json")
	if v.apiKey != "" {
		req.Header.Set("apikey", v.apiKey)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth service request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", nil
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("auth service returned status %d", resp.StatusCode)
	}

	var user struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&user); err != nil {
		return "", fmt.Errorf("failed to decode auth response: %w", err)
	}
	return user.ID, nil
}
