package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestFallback_Pick(t *testing.T) {
	f := NewFallback(nil)
	if f.Len() == 0 {
		t.Fatal("built-in fallback set is empty")
	}

	a := f.Pick("anon:1", "2025-03-10")
	b := f.Pick("anon:1", "2025-03-10")
	if a.Title != b.Title || a.Body != b.Body {
		t.Errorf("Pick() not stable: %q vs %q", a.Title, b.Title)
	}

	// Mutating a result must not alter the set.
	if len(a.Tags) > 0 {
		a.Tags[0] = "changed"
		if f.Pick("anon:1", "2025-03-10").Tags[0] == "changed" {
			t.Error("Pick() shares tag slice with fallback set")
		}
	}

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		s := f.Pick("user:"+string(rune('a'+i%26))+string(rune('a'+i/26)), "2025-03-10")
		seen[s.Title] = true
	}
	if len(seen) < 2 {
		t.Errorf("Pick() used %d distinct entries, want spread", len(seen))
	}
}

func TestFallback_Custom(t *testing.T) {
	f := NewFallback([]Suggestion{{Title: "only", Body: "one"}})
	if got := f.Pick("x", "y"); got.Title != "only" {
		t.Errorf("Pick() = %q, want only", got.Title)
	}
}

func TestRequest_Normalize(t *testing.T) {
	long := strings.Repeat("á", MaxPromptRunes+20)
	got := Request{Theme: "  SelfCare ", Prompt: long, ChildAgeMonths: -3}.Normalize()

	if got.Theme != "selfcare" {
		t.Errorf("Theme = %q, want selfcare", got.Theme)
	}
	if n := len([]rune(got.Prompt)); n != MaxPromptRunes {
		t.Errorf("prompt runes = %d, want %d", n, MaxPromptRunes)
	}
	if got.ChildAgeMonths != 0 {
		t.Errorf("ChildAgeMonths = %d, want 0", got.ChildAgeMonths)
	}
	if got.Locale != "pt-BR" {
		t.Errorf("Locale = %q, want pt-BR", got.Locale)
	}
}

func TestStaticGenerator(t *testing.T) {
	g := NewStaticGenerator()
	req := Request{Theme: "child", Mood: "Cansada"}

	a, err := g.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	b, _ := g.Generate(context.Background(), req)
	if a.Body != b.Body {
		t.Error("Generate() is not deterministic")
	}
	if !strings.Contains(a.Body, "cansada") {
		t.Errorf("Body = %q, want mood mentioned", a.Body)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.Generate(ctx, req); err == nil {
		t.Error("Generate() with cancelled context error = nil")
	}
}

func completion(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{
			map[string]any{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
	return string(b)
}

func TestOpenAIGenerator_Generate(t *testing.T) {
	var gotAuth, gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model
		_, _ = w.Write([]byte(completion(`{"title":"Respire","body":"Pare um minuto.","tags":["calma"]}`)))
	}))
	defer srv.Close()

	g, err := NewOpenAIGenerator(OpenAIConfig{BaseURL: srv.URL + "/v1", APIKey: "sk-test", Model: "test-model"})
	if err != nil {
		t.Fatalf("NewOpenAIGenerator() error = %v", err)
	}

	s, err := g.Generate(context.Background(), Request{Theme: "selfcare"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if s.Title != "Respire" || s.Body != "Pare um minuto." {
		t.Errorf("Generate() = %+v", s)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q, want Bearer sk-test", gotAuth)
	}
	if gotModel != "test-model" {
		t.Errorf("model = %q, want test-model", gotModel)
	}
}

func TestOpenAIGenerator_Retries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(completion("Um título\nUm corpo em texto simples.")))
	}))
	defer srv.Close()

	g, _ := NewOpenAIGenerator(OpenAIConfig{
		BaseURL:      srv.URL,
		APIKey:       "k",
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	})

	s, err := g.Generate(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if s.Title != "Um título" || s.Body != "Um corpo em texto simples." {
		t.Errorf("Generate() = %+v", s)
	}
}

func TestOpenAIGenerator_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCalls int32
		check     func(t *testing.T, err error)
	}{
		{
			name:      "bad request not retried",
			status:    http.StatusBadRequest,
			body:      `{"error":"bad"}`,
			wantCalls: 1,
			check: func(t *testing.T, err error) {
				var perr *ProviderError
				if !errors.As(err, &perr) || perr.StatusCode != http.StatusBadRequest {
					t.Errorf("error = %v, want *ProviderError 400", err)
				}
			},
		},
		{
			name:      "server error exhausts retries",
			status:    http.StatusInternalServerError,
			wantCalls: 2,
			check: func(t *testing.T, err error) {
				var perr *ProviderError
				if !errors.As(err, &perr) || !perr.Retryable() {
					t.Errorf("error = %v, want retryable *ProviderError", err)
				}
			},
		},
		{
			name:      "empty choices",
			status:    http.StatusOK,
			body:      `{"choices":[]}`,
			wantCalls: 1,
			check: func(t *testing.T, err error) {
				var eerr *EmptyResponseError
				if !errors.As(err, &eerr) {
					t.Errorf("error = %v, want *EmptyResponseError", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			g, _ := NewOpenAIGenerator(OpenAIConfig{
				BaseURL:      srv.URL,
				APIKey:       "k",
				MaxRetries:   1,
				RetryBackoff: time.Millisecond,
			})

			_, err := g.Generate(context.Background(), Request{})
			if err == nil {
				t.Fatal("Generate() error = nil, want error")
			}
			tt.check(t, err)
			if calls.Load() != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls.Load(), tt.wantCalls)
			}
		})
	}
}

func TestOpenAIGenerator_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	g, _ := NewOpenAIGenerator(OpenAIConfig{BaseURL: srv.URL, APIKey: "k"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := g.Generate(ctx, Request{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Generate() error = %v, want deadline exceeded", err)
	}
}

func TestNewOpenAIGenerator_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIGenerator(OpenAIConfig{}); err == nil {
		t.Error("NewOpenAIGenerator() error = nil, want error")
	}
}

func TestParseSuggestion(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantTitle string
		wantBody  string
	}{
		{"json", `{"title":"A","body":"B"}`, "A", "B"},
		{"fenced json", "```json\n{\"title\":\"A\",\"body\":\"B\"}\n```", "A", "B"},
		{"markdown heading", "# Título\nTexto", "Título", "Texto"},
		{"single line", "Só uma frase.", "Sugestão do dia", "Só uma frase."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := parseSuggestion(tt.content)
			if s.Title != tt.wantTitle || s.Body != tt.wantBody {
				t.Errorf("parseSuggestion() = %+v, want %q/%q", s, tt.wantTitle, tt.wantBody)
			}
		})
	}
}
