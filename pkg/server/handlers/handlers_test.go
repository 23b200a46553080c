package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"materna360/quotagate/pkg/identity"
	"materna360/quotagate/pkg/quota"
	"materna360/quotagate/pkg/quota/ledger"
	"materna360/quotagate/pkg/suggest"
)

const (
	testToken   = "2f1e0c5a-8a9b-4c3d-9e8f-0a1b2c3d4e5f"
	testDecline = "Limite diário atingido."
)

var testActor = identity.Anonymous(testToken).ActorID()

// brokenLedger fails every call.
type brokenLedger struct {
	ledger.Ledger
}

func (brokenLedger) TryConsume(context.Context, string, string, int) (ledger.Consumption, error) {
	return ledger.Consumption{}, errors.New("connection refused")
}

func (brokenLedger) Usage(context.Context, string, string) (int, error) {
	return 0, errors.New("connection refused")
}

// slowLedger delays TryConsume, honoring cancellation.
type slowLedger struct {
	ledger.Ledger
	delay time.Duration
}

func (l slowLedger) TryConsume(ctx context.Context, actorID, dateKey string, limit int) (ledger.Consumption, error) {
	select {
	case <-time.After(l.delay):
		return l.Ledger.TryConsume(ctx, actorID, dateKey, limit)
	case <-ctx.Done():
		return ledger.Consumption{}, ctx.Err()
	}
}

type fixture struct {
	ledger  ledger.Ledger
	gate    *quota.Gate
	handler *SuggestionHandler
	calls   atomic.Int32
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, l ledger.Ledger, gen suggest.GeneratorFunc) *fixture {
	t.Helper()

	cal, err := quota.NewCalendar(quota.DefaultTimezone)
	if err != nil {
		t.Fatalf("NewCalendar() error = %v", err)
	}
	gate, err := quota.NewGate(quota.Config{
		Ledger:     l,
		Calendar:   cal,
		DailyLimit: 5,
		Backend:    "memory",
		Logger:     discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewGate() error = %v", err)
	}

	f := &fixture{ledger: l, gate: gate}
	h, err := NewSuggestionHandler(SuggestionConfig{
		Resolver: identity.NewResolver(nil, identity.CookieConfig{}, discardLogger()),
		Gate:     gate,
		Generator: suggest.GeneratorFunc(func(ctx context.Context, req suggest.Request) (*suggest.Suggestion, error) {
			f.calls.Add(1)
			return gen(ctx, req)
		}),
		Provider:          "test",
		GenerationTimeout: 50 * time.Millisecond,
		LedgerTimeout:     time.Second,
		DeclineMessage:    testDecline,
		Logger:            discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewSuggestionHandler() error = %v", err)
	}
	f.handler = h
	return f
}

func (f *fixture) used(t *testing.T) int {
	t.Helper()
	n, err := f.ledger.Usage(context.Background(), testActor, f.gate.Calendar().Today())
	if err != nil {
		t.Fatalf("Usage() error = %v", err)
	}
	return n
}

func (f *fixture) post(t *testing.T, body string) (*httptest.ResponseRecorder, SuggestionResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/ai/suggestion", strings.NewReader(body))
	req.AddCookie(&http.Cookie{Name: identity.DefaultCookieName, Value: testToken})
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	var resp SuggestionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON %q: %v", w.Body.String(), err)
	}
	return w, resp
}

func generated(context.Context, suggest.Request) (*suggest.Suggestion, error) {
	return &suggest.Suggestion{Title: "Respire", Body: "Três respirações profundas."}, nil
}

func TestSuggestion_Fulfilled(t *testing.T) {
	f := newFixture(t, ledger.NewMemoryLedger(), generated)

	w, resp := f.post(t, `{"mood":"cansada"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if resp.Blocked || resp.Fallback {
		t.Errorf("resp = %+v, want fulfilled", resp)
	}
	if resp.Suggestion == nil || resp.Suggestion.Title != "Respire" {
		t.Errorf("suggestion = %+v", resp.Suggestion)
	}
	if got := f.used(t); got != 1 {
		t.Errorf("used = %d, want 1", got)
	}
}

func TestSuggestion_Declined(t *testing.T) {
	l := ledger.NewMemoryLedger()
	f := newFixture(t, l, generated)

	for i := 0; i < 5; i++ {
		if _, err := l.TryConsume(context.Background(), testActor, f.gate.Calendar().Today(), 5); err != nil {
			t.Fatalf("TryConsume() error = %v", err)
		}
	}

	w, resp := f.post(t, "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !resp.Blocked || resp.Message != testDecline || resp.Suggestion != nil {
		t.Errorf("resp = %+v, want blocked with decline message", resp)
	}
	if !strings.Contains(w.Body.String(), `"suggestion":null`) {
		t.Errorf("body %s lacks explicit null suggestion", w.Body.String())
	}
	if f.calls.Load() != 0 {
		t.Error("generator ran for a declined request")
	}
	if got := f.used(t); got != 5 {
		t.Errorf("used = %d, want 5", got)
	}
}

func TestSuggestion_CompensatingRelease(t *testing.T) {
	tests := []struct {
		name string
		gen  suggest.GeneratorFunc
	}{
		{"generator error", func(context.Context, suggest.Request) (*suggest.Suggestion, error) {
			return nil, &suggest.ProviderError{Provider: "test", StatusCode: 503, Message: "unavailable"}
		}},
		{"generator timeout", func(ctx context.Context, _ suggest.Request) (*suggest.Suggestion, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}},
		{"generator panic", func(context.Context, suggest.Request) (*suggest.Suggestion, error) {
			panic("model client bug")
		}},
		{"empty suggestion", func(context.Context, suggest.Request) (*suggest.Suggestion, error) {
			return nil, nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, ledger.NewMemoryLedger(), tt.gen)

			w, resp := f.post(t, "")

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			if resp.Blocked || !resp.Fallback || resp.Suggestion == nil {
				t.Errorf("resp = %+v, want fallback content", resp)
			}
			if got := f.used(t); got != 0 {
				t.Errorf("used = %d, want 0 after release", got)
			}
		})
	}
}

func TestSuggestion_FallbackWithinWriteTimeout(t *testing.T) {
	f := newFixture(t, slowLedger{Ledger: ledger.NewMemoryLedger(), delay: 300 * time.Millisecond},
		func(ctx context.Context, _ suggest.Request) (*suggest.Suggestion, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})
	// On its own the generation timeout fits the write timeout, but not
	// after a slow quota check.
	f.handler.generationTimeout = 800 * time.Millisecond
	f.handler.requestTimeout = time.Second

	srv := httptest.NewUnstartedServer(f.handler)
	srv.Config.WriteTimeout = time.Second
	srv.Start()
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.AddCookie(&http.Cookie{Name: identity.DefaultCookieName, Value: testToken})

	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("transport error instead of fallback: %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}
	var resp SuggestionResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Blocked || !resp.Fallback || resp.Suggestion == nil {
		t.Errorf("resp = %+v, want fallback content", resp)
	}
	if got := f.used(t); got != 0 {
		t.Errorf("used = %d, want 0 after release", got)
	}
}

func TestSuggestion_BudgetSpentOnCheck(t *testing.T) {
	f := newFixture(t, slowLedger{Ledger: ledger.NewMemoryLedger(), delay: time.Second}, generated)
	f.handler.requestTimeout = 200 * time.Millisecond

	start := time.Now()
	w, resp := f.post(t, "")

	if elapsed := time.Since(start); elapsed >= 500*time.Millisecond {
		t.Errorf("handler took %v, want it bounded by the request timeout", elapsed)
	}
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if resp.Blocked || !resp.Fallback || resp.Suggestion == nil {
		t.Errorf("resp = %+v, want fallback content", resp)
	}
	if f.calls.Load() != 0 {
		t.Errorf("generator calls = %d, want 0 with no budget left", f.calls.Load())
	}
	if got := f.used(t); got != 0 {
		t.Errorf("used = %d, want 0", got)
	}
}

func TestSuggestion_GeneratorIgnoringContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	f := newFixture(t, ledger.NewMemoryLedger(), func(context.Context, suggest.Request) (*suggest.Suggestion, error) {
		<-release
		return nil, errors.New("too late")
	})

	w, resp := f.post(t, "")

	if w.Code != http.StatusOK || !resp.Fallback {
		t.Fatalf("got %d %+v, want fallback", w.Code, resp)
	}
	if got := f.used(t); got != 0 {
		t.Errorf("used = %d, want 0 after release", got)
	}
}

func TestSuggestion_FallbackIsStable(t *testing.T) {
	failing := func(context.Context, suggest.Request) (*suggest.Suggestion, error) {
		return nil, errors.New("boom")
	}
	f := newFixture(t, ledger.NewMemoryLedger(), failing)

	_, first := f.post(t, "")
	_, second := f.post(t, "")

	if first.Suggestion.Title != second.Suggestion.Title {
		t.Errorf("fallback changed within a day: %q vs %q", first.Suggestion.Title, second.Suggestion.Title)
	}
}

func TestSuggestion_FailOpen(t *testing.T) {
	f := newFixture(t, brokenLedger{Ledger: ledger.NewMemoryLedger()}, generated)

	w, resp := f.post(t, "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if f.calls.Load() != 1 {
		t.Errorf("generator calls = %d, want 1", f.calls.Load())
	}
	if resp.Blocked || resp.Fallback || resp.Suggestion == nil {
		t.Errorf("resp = %+v, want fulfilled", resp)
	}
}

func TestSuggestion_MalformedBody(t *testing.T) {
	var seen suggest.Request
	f := newFixture(t, ledger.NewMemoryLedger(), func(_ context.Context, req suggest.Request) (*suggest.Suggestion, error) {
		seen = req
		return generated(context.Background(), req)
	})

	w, resp := f.post(t, `{"mood": `)

	if w.Code != http.StatusOK || resp.Suggestion == nil {
		t.Fatalf("got %d %+v, want fulfilled", w.Code, resp)
	}
	if seen.Mood != "" || seen.Locale != "pt-BR" {
		t.Errorf("request = %+v, want empty normalized request", seen)
	}
}

func TestSuggestion_MintsAnonymousCookie(t *testing.T) {
	f := newFixture(t, ledger.NewMemoryLedger(), generated)

	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/ai/suggestion", nil))

	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("cookies = %d, want 1", len(cookies))
	}
	c := cookies[0]
	if c.Name != identity.DefaultCookieName || !c.HttpOnly || c.Path != "/" || c.SameSite != http.SameSiteLaxMode {
		t.Errorf("cookie = %+v", c)
	}

	n, err := f.ledger.Usage(context.Background(), identity.Anonymous(c.Value).ActorID(), f.gate.Calendar().Today())
	if err != nil || n != 1 {
		t.Errorf("minted actor usage = %d, %v; want 1", n, err)
	}
}

func TestQuotaHandler(t *testing.T) {
	t.Run("reports remaining", func(t *testing.T) {
		f := newFixture(t, ledger.NewMemoryLedger(), generated)
		f.post(t, "")
		f.post(t, "")

		h := NewQuotaHandler(identity.NewResolver(nil, identity.CookieConfig{}, discardLogger()), f.gate, time.Second, discardLogger())
		req := httptest.NewRequest(http.MethodGet, "/api/ai/quota", nil)
		req.AddCookie(&http.Cookie{Name: identity.DefaultCookieName, Value: testToken})
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		var resp QuotaResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if resp.Limit != 5 || resp.Used != 2 || resp.Remaining != 3 || resp.Degraded {
			t.Errorf("resp = %+v, want 2 of 5 used", resp)
		}
		if used := f.used(t); used != 2 {
			t.Errorf("quota lookup consumed a unit: used = %d", used)
		}
	})

	t.Run("degrades on ledger error", func(t *testing.T) {
		f := newFixture(t, brokenLedger{Ledger: ledger.NewMemoryLedger()}, generated)

		h := NewQuotaHandler(identity.NewResolver(nil, identity.CookieConfig{}, discardLogger()), f.gate, time.Second, discardLogger())
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ai/quota", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		var resp QuotaResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if !resp.Degraded || resp.Remaining != 5 {
			t.Errorf("resp = %+v, want degraded full quota", resp)
		}
	})
}
