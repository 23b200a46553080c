package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OpenAIConfig configures an OpenAIGenerator.
type OpenAIConfig struct {
	// BaseURL of the OpenAI-compatible API. Default: https://api.openai.com/v1
	BaseURL string

	// APIKey is sent as a bearer token.
	APIKey string

	// Model name. Default: gpt-4o-mini
	Model string

	// Temperature for sampling. Default: 0.7
	Temperature float64

	// MaxTokens bounds the completion. Default: 400
	MaxTokens int

	// MaxRetries for transient failures. Default: 2
	MaxRetries int

	// RetryBackoff is the first retry delay, doubled per attempt. Default: 500ms
	RetryBackoff time.Duration

	// SystemPrompt overrides the built-in instructions.
	SystemPrompt string

	// HTTPClient overrides the pooled default client.
	HTTPClient *http.Client
}

const defaultSystemPrompt = `Você é uma assistente acolhedora do aplicativo Materna360.
Responda em português do Brasil com uma sugestão curta, prática e gentil para mães e cuidadores.
Responda somente com JSON no formato {"title": "...", "body": "...", "tags": ["..."]}.`

// OpenAIGenerator generates suggestions with an OpenAI-compatible chat
// completions endpoint.
type OpenAIGenerator struct {
	config   OpenAIConfig
	endpoint string
	client   *http.Client
	tracer   trace.Tracer
	logger   *slog.Logger
}

// NewOpenAIGenerator creates a generator with connection pooling.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 400
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		}
	}

	return &OpenAIGenerator{
		config:   cfg,
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		client:   client,
		tracer:   otel.Tracer("materna360/quotagate/suggest"),
		logger:   slog.Default().With("component", "suggest.openai", "model", cfg.Model),
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	MaxTokens      int           `json:"max_tokens"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate asks the model for a suggestion.
// The caller's context deadline bounds all attempts.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (*Suggestion, error) {
	ctx, span := g.tracer.Start(ctx, "suggest.generate",
		trace.WithAttributes(
			attribute.String("llm.model", g.config.Model),
			attribute.String("suggest.theme", req.Theme),
		),
	)
	defer span.End()

	s, err := g.generate(ctx, req.Normalize())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return s, nil
}

func (g *OpenAIGenerator) generate(ctx context.Context, req Request) (*Suggestion, error) {
	body, err := json.Marshal(chatRequest{
		Model: g.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: g.config.SystemPrompt},
			{Role: "user", Content: userPrompt(req)},
		},
		Temperature: g.config.Temperature,
		MaxTokens:   g.config.MaxTokens,
		ResponseFormat: &struct {
			Type string `json:"type"`
		}{Type: "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	raw, err := g.doRequest(ctx, body)
	if err != nil {
		return nil, err
	}

	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode completion: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, &EmptyResponseError{Provider: "openai"}
	}

	return parseSuggestion(resp.Choices[0].Message.Content), nil
}

// doRequest posts body and retries network errors, 429 and 5xx with
// exponential backoff.
func (g *OpenAIGenerator) doRequest(ctx context.Context, body []byte) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= g.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * g.config.RetryBackoff
			g.logger.DebugContext(ctx, "retrying completion request",
				"attempt", attempt,
				"backoff", backoff,
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+g.config.APIKey)

		resp, err := g.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			g.logger.WarnContext(ctx, "completion request failed", "attempt", attempt+1, "error", err)
			continue
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return data, nil
		}

		perr := &ProviderError{Provider: "openai", StatusCode: resp.StatusCode, Message: string(data)}
		if !perr.Retryable() {
			return nil, perr
		}
		lastErr = perr
		g.logger.WarnContext(ctx, "completion request returned error status",
			"status", resp.StatusCode,
			"attempt", attempt+1,
		)
	}

	return nil, lastErr
}

func userPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("Gere uma sugestão para hoje.")
	if req.Theme != "" {
		fmt.Fprintf(&b, "\nTema: %s.", req.Theme)
	}
	if req.Mood != "" {
		fmt.Fprintf(&b, "\nComo a mãe está se sentindo: %s.", req.Mood)
	}
	if req.ChildAgeMonths > 0 {
		fmt.Fprintf(&b, "\nIdade da criança: %d meses.", req.ChildAgeMonths)
	}
	if req.Prompt != "" {
		fmt.Fprintf(&b, "\nPedido: %s", req.Prompt)
	}
	if req.Locale != "" && req.Locale != "pt-BR" {
		fmt.Fprintf(&b, "\nResponda no idioma %s.", req.Locale)
	}
	return b.String()
}

// parseSuggestion reads the model output as JSON and falls back to treating
// it as plain text.
func parseSuggestion(content string) *Suggestion {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var s Suggestion
	if err := json.Unmarshal([]byte(content), &s); err == nil && s.Body != "" {
		return &s
	}

	title, body, found := strings.Cut(content, "\n")
	if !found || strings.TrimSpace(body) == "" {
		return &Suggestion{Title: "Sugestão do dia", Body: content}
	}
	return &Suggestion{
		Title: strings.TrimSpace(strings.TrimLeft(title, "# ")),
		Body:  strings.TrimSpace(body),
	}
}
