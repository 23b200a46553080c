package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestChecker_Readiness(t *testing.T) {
	failing := func(context.Context) error { return errors.New("down") }
	passing := func(context.Context) error { return nil }

	tests := []struct {
		name     string
		setup    func(c *Checker)
		want     string
		wantCode int
	}{
		{"no checks", func(c *Checker) {}, StatusReady, http.StatusOK},
		{"all passing", func(c *Checker) {
			c.Register("ledger", false, passing)
			c.Register("config", true, passing)
		}, StatusReady, http.StatusOK},
		{"advisory failing", func(c *Checker) {
			c.Register("ledger", false, failing)
			c.Register("config", true, passing)
		}, StatusDegraded, http.StatusOK},
		{"critical failing", func(c *Checker) {
			c.Register("ledger", false, failing)
			c.Register("config", true, failing)
		}, StatusUnhealthy, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(time.Second)
			tt.setup(c)

			if got := c.Readiness(context.Background()).Status; got != tt.want {
				t.Errorf("Readiness().Status = %q, want %q", got, tt.want)
			}

			rec := httptest.NewRecorder()
			c.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
			if rec.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantCode)
			}

			var report Report
			if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if report.Status != tt.want {
				t.Errorf("body status = %q, want %q", report.Status, tt.want)
			}
		})
	}
}

func TestChecker_Timeout(t *testing.T) {
	c := New(20 * time.Millisecond)
	c.Register("slow", true, func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return nil
	})

	report := c.Readiness(context.Background())
	if report.Status != StatusUnhealthy {
		t.Errorf("Status = %q, want %q", report.Status, StatusUnhealthy)
	}
	if report.Checks["slow"].Message != "health check timeout" {
		t.Errorf("Message = %q, want timeout", report.Checks["slow"].Message)
	}
}

func TestLivenessHandler(t *testing.T) {
	c := New(0)

	rec := httptest.NewRecorder()
	c.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status code = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	c.LivenessHandler()(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status code = %d, want 405", rec.Code)
	}
}

func TestVersionHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	VersionHandler("1.2.3", "abc", "today")(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	var info VersionInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if info.Version != "1.2.3" || info.GoVersion == "" {
		t.Errorf("VersionInfo = %+v", info)
	}
}
