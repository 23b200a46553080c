package ledger

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
)

// RPCLedger implements Ledger against a hosted PostgREST endpoint (the
// Supabase REST API) where the try_consume_quota and release_quota
// procedures from the embedded migrations are installed.
//
// Atomicity is provided by the procedures on the remote database. This
// client only forwards calls.
type RPCLedger struct {
	baseURL    string
	apiKey     string
	serviceKey string
	client     *http.Client
}

// RPCConfig configures the RPC ledger.
type RPCConfig struct {
	// BaseURL is the project URL, e.g. "https://abc.supabase.co".
	BaseURL string

	// APIKey is sent in the apikey header.
	APIKey string

	// ServiceKey is sent as the bearer token. Defaults to APIKey.
	ServiceKey string

	// Timeout bounds each remote call. Default: 5 seconds
	Timeout time.Duration

	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// RPCError is returned when the remote endpoint answers with a non-2xx status.
type RPCError struct {
	// Procedure is the remote procedure or table that was called.
	Procedure string

	// StatusCode is the HTTP status returned.
	StatusCode int

	// Message is the response body, truncated.
	Message string
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc %s failed (status %d): %s", e.Procedure, e.StatusCode, e.Message)
}

// NewRPCLedger creates a remote ledger client.
func NewRPCLedger(cfg RPCConfig) (*RPCLedger, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("rpc base url cannot be empty")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid rpc base url: %w", err)
	}
	if cfg.ServiceKey == "" {
		cfg.ServiceKey = cfg.APIKey
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		}
	}

	return &RPCLedger{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		serviceKey: cfg.ServiceKey,
		client:     client,
	}, nil
}

type consumeParams struct {
	ActorID string `json:"p_actor_id"`
	DateKey string `json:"p_date_key"`
	Limit   int    `json:"p_limit,omitempty"`
}

type consumeRow struct {
	Allowed  bool `json:"allowed"`
	NewCount *int `json:"new_count"`
}

type countRow struct {
	Count int `json:"count"`
}

// TryConsume calls the try_consume_quota procedure.
func (r *RPCLedger) TryConsume(ctx context.Context, actorID, dateKey string, limit int) (Consumption, error) {
	if err := validateConsume(actorID, dateKey, limit); err != nil {
		return Consumption{}, err
	}

	var rows []consumeRow
	err := r.call(ctx, "try_consume_quota", http.MethodPost, "/rest/v1/rpc/try_consume_quota", nil,
		consumeParams{ActorID: actorID, DateKey: dateKey, Limit: limit}, nil, &rows)
	if err != nil {
		return Consumption{}, err
	}
	if len(rows) == 0 {
		return Consumption{}, fmt.Errorf("rpc try_consume_quota returned no rows")
	}

	row := rows[0]
	if !row.Allowed || row.NewCount == nil {
		return Consumption{Allowed: false}, nil
	}
	return Consumption{Allowed: true, Count: *row.NewCount}, nil
}

// Release calls the release_quota procedure.
func (r *RPCLedger) Release(ctx context.Context, actorID, dateKey string) error {
	if err := validateKey(actorID, dateKey); err != nil {
		return err
	}

	return r.call(ctx, "release_quota", http.MethodPost, "/rest/v1/rpc/release_quota", nil,
		consumeParams{ActorID: actorID, DateKey: dateKey}, nil, nil)
}

// Usage reads the quota_usage row for (actorID, dateKey).
func (r *RPCLedger) Usage(ctx context.Context, actorID, dateKey string) (int, error) {
	if err := validateKey(actorID, dateKey); err != nil {
		return 0, err
	}

	query := url.Values{}
	query.Set("select", "count")
	query.Set("actor_id", "eq."+actorID)
	query.Set("date_key", "eq."+dateKey)

	var rows []countRow
	if err := r.call(ctx, "quota_usage", http.MethodGet, "/rest/v1/quota_usage", query, nil, nil, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Count, nil
}

// Prune deletes rows for date keys before beforeDateKey.
func (r *RPCLedger) Prune(ctx context.Context, beforeDateKey string) (int, error) {
	query := url.Values{}
	query.Set("select", "actor_id")
	query.Set("date_key", "lt."+beforeDateKey)

	var rows []json.RawMessage
	headers := map[string]string{"Prefer": "return=representation"}
	if err := r.call(ctx, "quota_usage", http.MethodDelete, "/rest/v1/quota_usage", query, nil, headers, &rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Ping issues a minimal read against the ledger table.
func (r *RPCLedger) Ping(ctx context.Context) error {
	query := url.Values{}
	query.Set("select", "actor_id")
	query.Set("limit", "1")
	return r.call(ctx, "quota_usage", http.MethodGet, "/rest/v1/quota_usage", query, nil, nil, nil)
}

// Close releases idle connections.
func (r *RPCLedger) Close() error {
	r.client.CloseIdleConnections()
	return nil
}

// call performs one remote request and decodes a JSON response into out.
func (r *RPCLedger) call(ctx context.Context, procedure, method, path string, query url.Values, body any, headers map[string]string, out any) error {
	endpoint := r.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s params: %w", procedure, err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.apiKey != "" {
		req.Header.Set("apikey", r.apiKey)
	}
	if r.serviceKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.serviceKey)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("rpc %s: %w", procedure, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("rpc %s: failed to read response: %w", procedure, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(data)
		if len(msg) > 256 {
			msg = msg[:256]
		}
		return &RPCError{Procedure: procedure, StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("rpc %s: failed to decode response: %w", procedure, err)
	}
	return nil
}
