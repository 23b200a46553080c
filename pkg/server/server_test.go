package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"materna360/quotagate/pkg/config"
	"materna360/quotagate/pkg/server/middleware"
	"materna360/quotagate/pkg/telemetry/health"
)

func testConfig() *config.ServerConfig {
	cfg := config.Default().Server
	cfg.ListenAddress = "127.0.0.1:0"
	cfg.ShutdownTimeout = time.Second
	return &cfg
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServer_Routes(t *testing.T) {
	checker := health.New(time.Second)
	checker.Register("ledger", false, func(context.Context) error { return errors.New("down") })

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := New(testConfig(), Routes{
		Suggestion: ok,
		Quota:      ok,
		Health:     checker,
		Metrics:    ok,
	}, nil, discard())
	h := srv.Handler()

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodPost, "/api/ai/suggestion", http.StatusOK},
		{http.MethodGet, "/api/ai/suggestion", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/ai/quota", http.StatusOK},
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/ready", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/version", http.StatusNotFound},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if w.Header().Get(middleware.RequestIDHeader) == "" {
				t.Error("missing request ID header")
			}
		})
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	var report health.Report
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatalf("invalid readiness JSON: %v", err)
	}
	if report.Status != health.StatusDegraded {
		t.Errorf("readiness = %q, want degraded", report.Status)
	}
}

func TestServer_StartShutdown(t *testing.T) {
	checker := health.New(time.Second)
	srv := New(testConfig(), Routes{Health: checker}, nil, discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	var addr string
	deadline := time.Now().Add(2 * time.Second)
	for addr == "" && time.Now().Before(deadline) {
		addr = srv.Addr()
		time.Sleep(5 * time.Millisecond)
	}
	if addr == "" {
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + addr + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
