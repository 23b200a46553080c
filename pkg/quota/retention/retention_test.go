package retention

import (
	"context"
	"testing"
	"time"

	"materna360/quotagate/pkg/quota"
	"materna360/quotagate/pkg/quota/ledger"
)

func testCalendar(t *testing.T) *quota.Calendar {
	t.Helper()
	cal, err := quota.NewCalendar(quota.DefaultTimezone)
	if err != nil {
		t.Fatalf("NewCalendar() error = %v", err)
	}
	return cal.WithClock(func() time.Time {
		return time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	})
}

func seed(t *testing.T, l ledger.Ledger, dateKeys ...string) {
	t.Helper()
	for _, dk := range dateKeys {
		if _, err := l.TryConsume(context.Background(), "user:1", dk, 5); err != nil {
			t.Fatalf("TryConsume(%s) error = %v", dk, err)
		}
	}
}

func TestPruner_Prune(t *testing.T) {
	tests := []struct {
		name        string
		days        int
		wantCutoff  string
		wantDeleted int
	}{
		{"keep today only", 1, "2025-03-10", 3},
		{"keep a week", 7, "2025-03-04", 2},
		{"disabled", 0, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := ledger.NewMemoryLedger()
			seed(t, mem, "2025-02-01", "2025-03-01", "2025-03-09", "2025-03-10")

			p, err := NewPruner(mem, testCalendar(t), Config{Days: tt.days})
			if err != nil {
				t.Fatalf("NewPruner() error = %v", err)
			}

			if got := p.Cutoff(); got != tt.wantCutoff {
				t.Errorf("Cutoff() = %q, want %q", got, tt.wantCutoff)
			}

			deleted, err := p.Prune(context.Background())
			if err != nil {
				t.Fatalf("Prune() error = %v", err)
			}
			if deleted != tt.wantDeleted {
				t.Errorf("Prune() = %d, want %d", deleted, tt.wantDeleted)
			}

			used, _ := mem.Usage(context.Background(), "user:1", "2025-03-10")
			if used != 1 {
				t.Errorf("today's count = %d, want 1", used)
			}
		})
	}
}

func TestNewPruner_Errors(t *testing.T) {
	cal := testCalendar(t)
	mem := ledger.NewMemoryLedger()

	if _, err := NewPruner(nil, cal, DefaultConfig()); err == nil {
		t.Error("NewPruner(nil ledger) error = nil, want error")
	}
	if _, err := NewPruner(mem, nil, DefaultConfig()); err == nil {
		t.Error("NewPruner(nil calendar) error = nil, want error")
	}
	if _, err := NewPruner(mem, cal, Config{Days: -1}); err == nil {
		t.Error("NewPruner(negative days) error = nil, want error")
	}
}

func TestScheduler_Start(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		wantRunning bool
		wantError   bool
	}{
		{"valid daily schedule", Config{Days: 30, Schedule: "30 3 * * *"}, true, false},
		{"valid hourly schedule", Config{Days: 30, Schedule: "0 * * * *"}, true, false},
		{"empty schedule", Config{Days: 30}, false, false},
		{"retention disabled", Config{Schedule: "0 3 * * *"}, false, false},
		{"invalid schedule", Config{Days: 30, Schedule: "invalid cron"}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPruner(ledger.NewMemoryLedger(), testCalendar(t), tt.config)
			if err != nil {
				t.Fatalf("NewPruner() error = %v", err)
			}
			s := NewScheduler(p)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			err = s.Start(ctx)
			if (err != nil) != tt.wantError {
				t.Fatalf("Start() error = %v, wantError %v", err, tt.wantError)
			}
			if s.IsRunning() != tt.wantRunning {
				t.Errorf("IsRunning() = %v, want %v", s.IsRunning(), tt.wantRunning)
			}
			if tt.wantRunning && s.NextRun() == nil {
				t.Error("NextRun() = nil, want scheduled time")
			}

			s.Stop()
			if s.IsRunning() {
				t.Error("IsRunning() after Stop() = true, want false")
			}
		})
	}
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	p, _ := NewPruner(ledger.NewMemoryLedger(), testCalendar(t), DefaultConfig())
	s := NewScheduler(p)

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for s.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.IsRunning() {
		t.Error("scheduler still running after context cancel")
	}
}
