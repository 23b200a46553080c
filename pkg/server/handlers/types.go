package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"materna360/quotagate/pkg/suggest"
)

// SuggestionResponse is the body of POST /api/ai/suggestion.
type SuggestionResponse struct {
	Blocked    bool                `json:"blocked"`
	Message    string              `json:"message,omitempty"`
	Suggestion *suggest.Suggestion `json:"suggestion"`
	Fallback   bool                `json:"fallback,omitempty"`
}

// QuotaResponse is the body of GET /api/ai/quota.
type QuotaResponse struct {
	Limit     int       `json:"limit"`
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	DateKey   string    `json:"date_key"`
	ResetsAt  time.Time `json:"resets_at"`

	// Degraded is set when the ledger could not be read and the numbers
	// assume nothing has been used.
	Degraded bool `json:"degraded,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
