package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"materna360/quotagate/pkg/identity"
	"materna360/quotagate/pkg/quota"
	"materna360/quotagate/pkg/suggest"
	"materna360/quotagate/pkg/telemetry/logging"
	"materna360/quotagate/pkg/telemetry/metrics"
)

// SuggestionConfig configures a SuggestionHandler.
type SuggestionConfig struct {
	Resolver  *identity.Resolver
	Gate      *quota.Gate
	Generator suggest.Generator

	// Provider labels generation metrics.
	Provider string

	// Fallback defaults to the built-in set.
	Fallback *suggest.Fallback

	// Metrics is optional.
	Metrics *metrics.Collector

	GenerationTimeout time.Duration
	LedgerTimeout     time.Duration
	DeclineMessage    string

	// RequestTimeout bounds the whole request, normally server.write_timeout.
	// Generation is cut short so the response is written before it expires.
	// Zero leaves only the per-call timeouts.
	RequestTimeout time.Duration

	Logger *slog.Logger
}

// SuggestionHandler serves POST /api/ai/suggestion.
type SuggestionHandler struct {
	resolver  *identity.Resolver
	gate      *quota.Gate
	generator suggest.Generator
	provider  string
	fallback  *suggest.Fallback
	metrics   *metrics.Collector

	generationTimeout time.Duration
	ledgerTimeout     time.Duration
	requestTimeout    time.Duration
	declineMessage    string

	logger *slog.Logger
}

var errNoBudget = errors.New("request budget exhausted before generation")

// NewSuggestionHandler creates a SuggestionHandler.
func NewSuggestionHandler(cfg SuggestionConfig) (*SuggestionHandler, error) {
	if cfg.Resolver == nil || cfg.Gate == nil || cfg.Generator == nil {
		return nil, errors.New("resolver, gate and generator are required")
	}
	if cfg.Fallback == nil {
		cfg.Fallback = suggest.NewFallback(nil)
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 20 * time.Second
	}
	if cfg.LedgerTimeout <= 0 {
		cfg.LedgerTimeout = 3 * time.Second
	}
	if cfg.DeclineMessage == "" {
		return nil, errors.New("decline message is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &SuggestionHandler{
		resolver:          cfg.Resolver,
		gate:              cfg.Gate,
		generator:         cfg.Generator,
		provider:          cfg.Provider,
		fallback:          cfg.Fallback,
		metrics:           cfg.Metrics,
		generationTimeout: cfg.GenerationTimeout,
		ledgerTimeout:     cfg.LedgerTimeout,
		requestTimeout:    cfg.RequestTimeout,
		declineMessage:    cfg.DeclineMessage,
		logger:            cfg.Logger.With("component", "handlers.suggestion"),
	}, nil
}

// ServeHTTP implements http.Handler.
func (h *SuggestionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	resolution := h.resolver.Resolve(r)
	h.resolver.Persist(w, resolution)

	actorID := resolution.Identity.ActorID()
	ctx := identity.WithIdentity(r.Context(), resolution.Identity)
	ctx = logging.WithActorID(ctx, actorID)

	ctx, cancel := h.withDeadline(ctx, start)
	defer cancel()

	req := h.decodeRequest(ctx, r)

	decision := h.check(ctx, actorID)
	if !decision.Allowed {
		h.metrics.RecordSuggestion(metrics.OutcomeDeclined)
		writeJSON(w, http.StatusOK, SuggestionResponse{
			Blocked: true,
			Message: h.declineMessage,
		})
		return
	}

	s, err := h.generate(ctx, req)
	if err != nil {
		h.logger.WarnContext(ctx, "generation failed, serving fallback",
			"error", err,
			"fail_open", decision.FailOpen,
		)
		h.release(ctx, decision)

		fb := h.fallback.Pick(actorID, decision.DateKey)
		h.metrics.RecordSuggestion(metrics.OutcomeFallback)
		writeJSON(w, http.StatusOK, SuggestionResponse{
			Suggestion: &fb,
			Fallback:   true,
		})
		return
	}

	h.metrics.RecordSuggestion(metrics.OutcomeFulfilled)
	writeJSON(w, http.StatusOK, SuggestionResponse{Suggestion: s})
}

// decodeRequest reads the optional JSON body. Anything unreadable yields
// an empty request.
func (h *SuggestionHandler) decodeRequest(ctx context.Context, r *http.Request) suggest.Request {
	var req suggest.Request
	if r.Body == nil {
		return req.Normalize()
	}

	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		h.logger.DebugContext(ctx, "ignoring malformed request body", "error", err)
		req = suggest.Request{}
	}
	return req.Normalize()
}

func (h *SuggestionHandler) check(ctx context.Context, actorID string) quota.Decision {
	ctx, cancel := context.WithTimeout(ctx, h.ledgerTimeout)
	defer cancel()
	return h.gate.Check(ctx, actorID)
}

// withDeadline bounds ctx by the request timeout, keeping a slice of it
// for writing the response.
func (h *SuggestionHandler) withDeadline(ctx context.Context, start time.Time) (context.Context, context.CancelFunc) {
	if h.requestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	reserve := min(h.requestTimeout/10, time.Second)
	return context.WithDeadline(ctx, start.Add(h.requestTimeout-reserve))
}

// release runs detached from request cancellation so a disconnected client
// still gets its unit back. It waits at most until the request deadline; a
// request already past it releases in the background.
func (h *SuggestionHandler) release(ctx context.Context, d quota.Decision) {
	if !d.Consumed {
		return
	}

	timeout := h.ledgerTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}
	detached := context.WithoutCancel(ctx)

	if timeout <= 0 {
		h.logger.WarnContext(ctx, "request budget exhausted, releasing quota in background")
		go func() {
			ctx, cancel := context.WithTimeout(detached, h.ledgerTimeout)
			defer cancel()
			h.gate.Release(ctx, d)
		}()
		return
	}

	ctx, cancel := context.WithTimeout(detached, timeout)
	defer cancel()
	h.gate.Release(ctx, d)
}

type generation struct {
	suggestion *suggest.Suggestion
	err        error
}

// generate runs the generator under the generation timeout, shortened so
// that a ledger timeout's worth of the request budget stays available for
// the compensating release. A panic, a nil suggestion or a generator that
// ignores its context all count as a failure.
func (h *SuggestionHandler) generate(ctx context.Context, req suggest.Request) (s *suggest.Suggestion, err error) {
	timeout := h.generationTimeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		timeout = min(timeout, remaining-min(h.ledgerTimeout, remaining/2))
	}
	if timeout <= 0 {
		return nil, errNoBudget
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		h.metrics.RecordGeneration(h.provider, time.Since(start), err)
	}()

	done := make(chan generation, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- generation{err: fmt.Errorf("generator panic: %v", rec)}
			}
		}()
		out, genErr := h.generator.Generate(ctx, req)
		done <- generation{suggestion: out, err: genErr}
	}()

	select {
	case res := <-done:
		s, err = res.suggestion, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err == nil && s == nil {
		err = &suggest.EmptyResponseError{Provider: h.provider}
	}
	return s, err
}
