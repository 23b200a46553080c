package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"materna360/quotagate/pkg/quota"
	"materna360/quotagate/pkg/quota/ledger"
)

// Config contains configuration for the ledger pruner.
type Config struct {
	// Days is the number of past days to retain, including today.
	// 0 keeps every row.
	Days int

	// Schedule is a standard cron expression evaluated in the calendar
	// timezone. Example: "30 3 * * *" (daily at 03:30)
	Schedule string
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() Config {
	return Config{
		Days:     30,
		Schedule: "30 3 * * *",
	}
}

// Pruner deletes ledger rows older than the retention window.
type Pruner struct {
	ledger   ledger.Ledger
	calendar *quota.Calendar
	config   Config
	logger   *slog.Logger
}

// NewPruner creates a pruner for l.
func NewPruner(l ledger.Ledger, cal *quota.Calendar, cfg Config) (*Pruner, error) {
	if l == nil {
		return nil, errors.New("ledger is required")
	}
	if cal == nil {
		return nil, errors.New("calendar is required")
	}
	if cfg.Days < 0 {
		return nil, fmt.Errorf("retention days must not be negative, got %d", cfg.Days)
	}

	return &Pruner{
		ledger:   l,
		calendar: cal,
		config:   cfg,
		logger:   slog.Default().With("component", "quota.retention"),
	}, nil
}

// Cutoff returns the oldest date key that is retained.
// Rows with an earlier key are pruned. Empty when retention is disabled.
func (p *Pruner) Cutoff() string {
	if p.config.Days == 0 {
		return ""
	}
	return p.calendar.KeyDaysAgo(p.config.Days - 1)
}

// Prune deletes expired rows and returns how many were removed.
func (p *Pruner) Prune(ctx context.Context) (int, error) {
	cutoff := p.Cutoff()
	if cutoff == "" {
		p.logger.Debug("retention disabled, nothing to prune")
		return 0, nil
	}

	deleted, err := p.ledger.Prune(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune ledger before %s: %w", cutoff, err)
	}

	p.logger.Info("pruned quota ledger",
		"before", cutoff,
		"deleted_count", deleted,
	)
	return deleted, nil
}
