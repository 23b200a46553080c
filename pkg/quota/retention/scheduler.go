package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs a Pruner on a cron schedule.
type Scheduler struct {
	pruner  *Pruner
	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
}

// NewScheduler creates a scheduler whose schedule is evaluated in the
// pruner's calendar timezone.
func NewScheduler(pruner *Pruner) *Scheduler {
	return &Scheduler{
		pruner: pruner,
		cron:   cron.New(cron.WithLocation(pruner.calendar.Location())),
		logger: slog.Default().With("component", "quota.scheduler"),
	}
}

// Start schedules pruning and returns immediately.
// The scheduler stops when ctx is cancelled. An empty schedule or a zero
// retention window leaves the scheduler idle.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.pruner.config
	if cfg.Schedule == "" || cfg.Days == 0 {
		s.logger.Info("ledger retention not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", cfg.Schedule, err)
	}

	if _, err := s.cron.AddFunc(cfg.Schedule, func() { s.runPruning(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("retention scheduler started",
		"schedule", cfg.Schedule,
		"retention_days", cfg.Days,
		"timezone", s.pruner.calendar.Location().String(),
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

func (s *Scheduler) runPruning(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.pruner.Prune(ctx); err != nil {
		s.logger.Error("scheduled pruning failed", "error", err)
	}
}

// Stop stops the scheduler and waits for a running job to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("retention scheduler stopped")
	}
}

// IsRunning reports whether the scheduler is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled pruning time, or nil when idle.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
