package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"materna360/quotagate/pkg/identity"
	"materna360/quotagate/pkg/quota"
	"materna360/quotagate/pkg/telemetry/logging"
)

// QuotaHandler serves GET /api/ai/quota.
type QuotaHandler struct {
	resolver      *identity.Resolver
	gate          *quota.Gate
	ledgerTimeout time.Duration
	logger        *slog.Logger
}

// NewQuotaHandler creates a QuotaHandler.
func NewQuotaHandler(resolver *identity.Resolver, gate *quota.Gate, ledgerTimeout time.Duration, logger *slog.Logger) *QuotaHandler {
	if ledgerTimeout <= 0 {
		ledgerTimeout = 3 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QuotaHandler{
		resolver:      resolver,
		gate:          gate,
		ledgerTimeout: ledgerTimeout,
		logger:        logger.With("component", "handlers.quota"),
	}
}

// ServeHTTP implements http.Handler.
func (h *QuotaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resolution := h.resolver.Resolve(r)
	h.resolver.Persist(w, resolution)

	actorID := resolution.Identity.ActorID()
	ctx := logging.WithActorID(r.Context(), actorID)

	ctx, cancel := context.WithTimeout(ctx, h.ledgerTimeout)
	defer cancel()

	usage, err := h.gate.Usage(ctx, actorID)
	if err != nil {
		h.logger.WarnContext(ctx, "quota lookup failed", "error", err)

		cal := h.gate.Calendar()
		now := cal.Now()
		limit := h.gate.Limit()
		writeJSON(w, http.StatusOK, QuotaResponse{
			Limit:     limit,
			Remaining: limit,
			DateKey:   cal.DateKey(now),
			ResetsAt:  cal.NextReset(now),
			Degraded:  true,
		})
		return
	}

	writeJSON(w, http.StatusOK, QuotaResponse{
		Limit:     usage.Limit,
		Used:      usage.Used,
		Remaining: usage.Remaining,
		DateKey:   usage.DateKey,
		ResetsAt:  usage.ResetsAt,
	})
}
