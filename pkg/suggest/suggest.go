package suggest

import (
	"context"
	"fmt"
	"strings"
)

// Suggestion is a short piece of generated guidance.
type Suggestion struct {
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Tags  []string `json:"tags,omitempty"`
}

// Request describes what the caller wants a suggestion about.
// Every field is optional.
type Request struct {
	// Mood is how the parent says they feel today.
	Mood string `json:"mood,omitempty"`

	// Theme narrows the suggestion (selfcare, child, routine, food).
	Theme string `json:"theme,omitempty"`

	// Prompt is free text from the parent.
	Prompt string `json:"prompt,omitempty"`

	// ChildAgeMonths tailors child-related suggestions.
	ChildAgeMonths int `json:"child_age_months,omitempty"`

	// Locale of the response. Default: pt-BR
	Locale string `json:"locale,omitempty"`
}

// Normalize trims fields and bounds free text.
func (r Request) Normalize() Request {
	r.Mood = strings.TrimSpace(r.Mood)
	r.Theme = strings.ToLower(strings.TrimSpace(r.Theme))
	r.Prompt = strings.TrimSpace(r.Prompt)
	if len([]rune(r.Prompt)) > MaxPromptRunes {
		r.Prompt = string([]rune(r.Prompt)[:MaxPromptRunes])
	}
	if r.ChildAgeMonths < 0 || r.ChildAgeMonths > 18*12 {
		r.ChildAgeMonths = 0
	}
	if r.Locale == "" {
		r.Locale = "pt-BR"
	}
	return r
}

// MaxPromptRunes bounds the free text forwarded to a model.
const MaxPromptRunes = 500

// Generator produces suggestions.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Suggestion, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (*Suggestion, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (*Suggestion, error) {
	return f(ctx, req)
}

// ProviderError is returned when a model endpoint answers with an error.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s returned status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Retryable reports whether the request may succeed if repeated.
func (e *ProviderError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// EmptyResponseError is returned when a model answers without content.
type EmptyResponseError struct {
	Provider string
}

func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("provider %s returned no content", e.Provider)
}
