// Package logging configures structured logging for quotagate.
//
// New builds a *slog.Logger that writes JSON or text, stamps request-scoped
// fields (request_id, actor_id, trace_id) from the context of every
// *Context call, and masks credentials before they reach the output.
//
// Typical setup at startup:
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json"})
//	if err != nil {
//		return err
//	}
//	slog.SetDefault(logger)
//
// Request-scoped fields are attached by the HTTP middleware:
//
//	ctx = logging.WithRequestID(ctx, id)
//	ctx = logging.WithActorID(ctx, "anon:...")
package logging
