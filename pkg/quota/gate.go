package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"materna360/quotagate/pkg/quota/ledger"
)

// DefaultDailyLimit is the number of AI suggestions an actor gets per day.
const DefaultDailyLimit = 5

// Gate consumes and releases daily quota units on a Ledger.
type Gate struct {
	ledger   ledger.Ledger
	calendar *Calendar
	limit    atomic.Int64
	backend  string
	metrics  *Metrics
	tracer   trace.Tracer
	logger   *slog.Logger
}

// Config configures a Gate.
type Config struct {
	// Ledger is the counter store. Required.
	Ledger ledger.Ledger

	// Calendar computes date keys. Defaults to DefaultTimezone.
	Calendar *Calendar

	// DailyLimit is the per-actor daily quota. Default: DefaultDailyLimit
	DailyLimit int

	// Backend labels ledger metrics (memory, sqlite, postgres, rpc).
	Backend string

	// Metrics is optional.
	Metrics *Metrics

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Decision is the result of Check.
type Decision struct {
	// Allowed is true when the protected operation may run.
	Allowed bool

	// Consumed is true when a unit was actually recorded in the ledger.
	// Only consumed decisions are compensated by Release.
	Consumed bool

	// FailOpen is true when the ledger failed and the request was let
	// through by policy.
	FailOpen bool

	// ActorID and DateKey identify the ledger record for a later Release.
	ActorID string
	DateKey string

	// Count is the count after consumption (zero unless Consumed).
	Count int

	// Limit is the daily limit in effect for this decision.
	Limit int

	// Err holds the infrastructure error behind a fail-open decision.
	Err error
}

// Usage describes an actor's quota for today.
type Usage struct {
	ActorID   string    `json:"-"`
	DateKey   string    `json:"date_key"`
	Limit     int       `json:"limit"`
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	ResetsAt  time.Time `json:"resets_at"`
}

// NewGate creates a Gate.
func NewGate(cfg Config) (*Gate, error) {
	if cfg.Ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if cfg.Calendar == nil {
		cal, err := NewCalendar(DefaultTimezone)
		if err != nil {
			return nil, err
		}
		cfg.Calendar = cal
	}
	if cfg.DailyLimit == 0 {
		cfg.DailyLimit = DefaultDailyLimit
	}
	if cfg.DailyLimit < 0 {
		return nil, fmt.Errorf("daily limit must be positive, got %d", cfg.DailyLimit)
	}
	if cfg.Backend == "" {
		cfg.Backend = "unknown"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	g := &Gate{
		ledger:   cfg.Ledger,
		calendar: cfg.Calendar,
		backend:  cfg.Backend,
		metrics:  cfg.Metrics,
		tracer:   otel.Tracer("materna360/quotagate/quota"),
		logger:   cfg.Logger.With("component", "quota.gate"),
	}
	g.SetLimit(cfg.DailyLimit)

	return g, nil
}

// Limit returns the daily limit currently in effect.
func (g *Gate) Limit() int {
	return int(g.limit.Load())
}

// SetLimit replaces the daily limit. Values below one are ignored.
func (g *Gate) SetLimit(limit int) {
	if limit < 1 {
		return
	}
	old := g.limit.Swap(int64(limit))
	g.metrics.SetDailyLimit(limit)
	if old != 0 && old != int64(limit) {
		g.logger.Info("daily limit changed", "old", old, "new", limit)
	}
}

// Calendar returns the gate calendar.
func (g *Gate) Calendar() *Calendar {
	return g.calendar
}

// Check consumes one unit of today's quota for actorID.
func (g *Gate) Check(ctx context.Context, actorID string) Decision {
	dateKey := g.calendar.Today()
	limit := g.Limit()

	d := Decision{ActorID: actorID, DateKey: dateKey, Limit: limit}

	c, err := g.tryConsume(ctx, actorID, dateKey, limit)
	if err != nil {
		// Fail open: a ledger outage must never block the feature.
		d.Allowed = true
		d.FailOpen = true
		d.Err = err
		g.metrics.RecordDecision(OutcomeFailOpen)
		g.logger.WarnContext(ctx, "quota ledger unavailable, failing open",
			"actor_id", actorID,
			"date_key", dateKey,
			"error", err,
		)
		return d
	}

	if !c.Allowed {
		g.metrics.RecordDecision(OutcomeDeclined)
		g.logger.InfoContext(ctx, "daily quota exhausted",
			"actor_id", actorID,
			"date_key", dateKey,
			"limit", limit,
		)
		return d
	}

	d.Allowed = true
	d.Consumed = true
	d.Count = c.Count
	g.metrics.RecordDecision(OutcomeAllowed)
	g.logger.DebugContext(ctx, "quota unit consumed",
		"actor_id", actorID,
		"date_key", dateKey,
		"count", c.Count,
		"limit", limit,
	)
	return d
}

// Release gives back the unit consumed by d.
// It is a no-op unless d.Consumed. Failures are logged and swallowed since
// the caller has already chosen its response.
func (g *Gate) Release(ctx context.Context, d Decision) {
	if !d.Consumed {
		return
	}

	err := g.release(ctx, d.ActorID, d.DateKey)
	g.metrics.RecordRelease(err == nil)
	if err != nil {
		g.logger.ErrorContext(ctx, "failed to release quota unit",
			"actor_id", d.ActorID,
			"date_key", d.DateKey,
			"error", err,
		)
		return
	}

	g.logger.DebugContext(ctx, "quota unit released",
		"actor_id", d.ActorID,
		"date_key", d.DateKey,
	)
}

// Usage reports today's quota for actorID without consuming.
func (g *Gate) Usage(ctx context.Context, actorID string) (Usage, error) {
	now := g.calendar.Now()
	dateKey := g.calendar.DateKey(now)
	limit := g.Limit()

	start := time.Now()
	used, err := g.ledger.Usage(ctx, actorID, dateKey)
	g.metrics.RecordLedgerOperation(g.backend, "usage", time.Since(start).Seconds(), err)
	if err != nil {
		return Usage{}, fmt.Errorf("failed to load usage: %w", err)
	}

	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}

	return Usage{
		ActorID:   actorID,
		DateKey:   dateKey,
		Limit:     limit,
		Used:      used,
		Remaining: remaining,
		ResetsAt:  g.calendar.NextReset(now),
	}, nil
}

func (g *Gate) tryConsume(ctx context.Context, actorID, dateKey string, limit int) (ledger.Consumption, error) {
	ctx, span := g.tracer.Start(ctx, "quota.try_consume",
		trace.WithAttributes(
			attribute.String("quota.backend", g.backend),
			attribute.String("quota.date_key", dateKey),
			attribute.Int("quota.limit", limit),
		),
	)
	defer span.End()

	start := time.Now()
	c, err := g.ledger.TryConsume(ctx, actorID, dateKey, limit)
	g.metrics.RecordLedgerOperation(g.backend, "try_consume", time.Since(start).Seconds(), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return c, err
	}
	span.SetAttributes(
		attribute.Bool("quota.allowed", c.Allowed),
		attribute.Int("quota.count", c.Count),
	)
	return c, nil
}

func (g *Gate) release(ctx context.Context, actorID, dateKey string) error {
	ctx, span := g.tracer.Start(ctx, "quota.release",
		trace.WithAttributes(
			attribute.String("quota.backend", g.backend),
			attribute.String("quota.date_key", dateKey),
		),
	)
	defer span.End()

	start := time.Now()
	err := g.ledger.Release(ctx, actorID, dateKey)
	g.metrics.RecordLedgerOperation(g.backend, "release", time.Since(start).Seconds(), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
