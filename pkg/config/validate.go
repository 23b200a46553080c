package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "quota.daily_limit").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All field errors are collected and returned
// together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateQuota(&cfg.Quota)...)
	errs = append(errs, validateIdentity(&cfg.Identity)...)
	errs = append(errs, validateLedger(&cfg.Ledger)...)
	errs = append(errs, validateGenerator(&cfg.Generator)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if budget := SuggestionBudget(cfg); cfg.Server.WriteTimeout > 0 && budget >= cfg.Server.WriteTimeout {
		errs = append(errs, FieldError{
			Field: "quota.generation_timeout",
			Message: fmt.Sprintf("generation plus ledger and session timeouts (%s) must be shorter than server.write_timeout (%s)",
				budget, cfg.Server.WriteTimeout),
		})
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

// SuggestionBudget is the worst-case time a suggestion request spends before
// its response is written: session lookup, quota check, generation and the
// compensating release.
func SuggestionBudget(cfg *Config) time.Duration {
	budget := cfg.Quota.GenerationTimeout + 2*cfg.Quota.LedgerTimeout
	if cfg.Identity.Mode == "remote" {
		budget += cfg.Identity.Remote.Timeout
	}
	return budget
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{Field: "server.listen_address", Message: "must not be empty"})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{Field: "server.listen_address", Message: fmt.Sprintf("invalid address: %v", err)})
	}

	errs = appendNonNegative(errs, "server.read_timeout", cfg.ReadTimeout)
	errs = appendNonNegative(errs, "server.write_timeout", cfg.WriteTimeout)
	errs = appendNonNegative(errs, "server.idle_timeout", cfg.IdleTimeout)
	errs = appendNonNegative(errs, "server.shutdown_timeout", cfg.ShutdownTimeout)

	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{Field: "server.max_header_bytes", Message: "must not be negative"})
	}
	if cfg.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{Field: "server.max_body_bytes", Message: "must not be negative"})
	}
	if cfg.CORS.MaxAge < 0 {
		errs = append(errs, FieldError{Field: "server.cors.max_age", Message: "must not be negative"})
	}
	for i, origin := range cfg.CORS.AllowedOrigins {
		if origin == "*" {
			if cfg.CORS.AllowCredentials {
				errs = append(errs, FieldError{
					Field:   fmt.Sprintf("server.cors.allowed_origins[%d]", i),
					Message: "wildcard origin cannot be combined with allow_credentials",
				})
			}
			continue
		}
		if u, err := url.Parse(origin); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("server.cors.allowed_origins[%d]", i),
				Message: fmt.Sprintf("invalid origin %q", origin),
			})
		}
	}

	return errs
}

func validateQuota(cfg *QuotaConfig) []FieldError {
	var errs []FieldError

	if cfg.DailyLimit < 1 {
		errs = append(errs, FieldError{Field: "quota.daily_limit", Message: "must be at least 1"})
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		errs = append(errs, FieldError{Field: "quota.timezone", Message: fmt.Sprintf("unknown timezone %q", cfg.Timezone)})
	}
	if cfg.GenerationTimeout <= 0 {
		errs = append(errs, FieldError{Field: "quota.generation_timeout", Message: "must be positive"})
	}
	if cfg.LedgerTimeout <= 0 {
		errs = append(errs, FieldError{Field: "quota.ledger_timeout", Message: "must be positive"})
	}
	if strings.TrimSpace(cfg.DeclineMessage) == "" {
		errs = append(errs, FieldError{Field: "quota.decline_message", Message: "must not be empty"})
	}
	if cfg.Retention.Days < 0 {
		errs = append(errs, FieldError{Field: "quota.retention.days", Message: "must not be negative"})
	}
	if cfg.Retention.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Retention.Schedule); err != nil {
			errs = append(errs, FieldError{Field: "quota.retention.schedule", Message: fmt.Sprintf("invalid cron expression: %v", err)})
		}
	}

	return errs
}

func validateIdentity(cfg *IdentityConfig) []FieldError {
	var errs []FieldError

	switch cfg.Mode {
	case "none":
	case "jwt":
		if len(cfg.JWT.Secret) < 16 {
			errs = append(errs, FieldError{Field: "identity.jwt.secret", Message: "must be at least 16 characters"})
		}
	case "remote":
		errs = appendURL(errs, "identity.remote.base_url", cfg.Remote.BaseURL)
		errs = appendNonNegative(errs, "identity.remote.timeout", cfg.Remote.Timeout)
	default:
		errs = append(errs, FieldError{
			Field:   "identity.mode",
			Message: fmt.Sprintf("must be one of none, jwt, remote (got %q)", cfg.Mode),
		})
	}

	if cfg.Cookie.Name == "" || strings.ContainsAny(cfg.Cookie.Name, " ;,=") {
		errs = append(errs, FieldError{Field: "identity.cookie.name", Message: fmt.Sprintf("invalid cookie name %q", cfg.Cookie.Name)})
	}
	if cfg.Cookie.MaxAge <= 0 {
		errs = append(errs, FieldError{Field: "identity.cookie.max_age", Message: "must be positive"})
	}

	return errs
}

func validateLedger(cfg *LedgerConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "ledger.sqlite.path", Message: "must not be empty"})
		}
		if cfg.SQLite.Driver != "sqlite" && cfg.SQLite.Driver != "sqlite3" {
			errs = append(errs, FieldError{
				Field:   "ledger.sqlite.driver",
				Message: fmt.Sprintf("must be sqlite or sqlite3 (got %q)", cfg.SQLite.Driver),
			})
		}
		errs = appendNonNegative(errs, "ledger.sqlite.busy_timeout", cfg.SQLite.BusyTimeout)
		errs = appendNonNegative(errs, "ledger.sqlite.checkpoint_interval", cfg.SQLite.CheckpointInterval)
	case "postgres":
		if cfg.Postgres.DSN == "" {
			errs = append(errs, FieldError{Field: "ledger.postgres.dsn", Message: "must not be empty"})
		}
		if cfg.Postgres.MaxOpenConns < 0 {
			errs = append(errs, FieldError{Field: "ledger.postgres.max_open_conns", Message: "must not be negative"})
		}
		if cfg.Postgres.MaxIdleConns > cfg.Postgres.MaxOpenConns && cfg.Postgres.MaxOpenConns > 0 {
			errs = append(errs, FieldError{Field: "ledger.postgres.max_idle_conns", Message: "must not exceed max_open_conns"})
		}
	case "rpc":
		errs = appendURL(errs, "ledger.rpc.base_url", cfg.RPC.BaseURL)
		if cfg.RPC.APIKey == "" {
			errs = append(errs, FieldError{Field: "ledger.rpc.api_key", Message: "must not be empty"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "ledger.backend",
			Message: fmt.Sprintf("must be one of memory, sqlite, postgres, rpc (got %q)", cfg.Backend),
		})
	}

	return errs
}

func validateGenerator(cfg *GeneratorConfig) []FieldError {
	var errs []FieldError

	switch cfg.Provider {
	case "static":
	case "openai":
		errs = appendURL(errs, "generator.openai.base_url", cfg.OpenAI.BaseURL)
		if cfg.OpenAI.APIKey == "" {
			errs = append(errs, FieldError{Field: "generator.openai.api_key", Message: "must not be empty"})
		}
		if cfg.OpenAI.Temperature < 0 || cfg.OpenAI.Temperature > 2 {
			errs = append(errs, FieldError{Field: "generator.openai.temperature", Message: "must be between 0 and 2"})
		}
		if cfg.OpenAI.MaxRetries < 0 {
			errs = append(errs, FieldError{Field: "generator.openai.max_retries", Message: "must not be negative"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "generator.provider",
			Message: fmt.Sprintf("must be one of static, openai (got %q)", cfg.Provider),
		})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("must be one of debug, info, warn, error (got %q)", cfg.Logging.Level),
		})
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("must be json or text (got %q)", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "must start with /"})
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "required when tracing is enabled"})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "must be between 0 and 1"})
	}

	return errs
}

func appendNonNegative(errs []FieldError, field string, d time.Duration) []FieldError {
	if d < 0 {
		return append(errs, FieldError{Field: field, Message: "must not be negative"})
	}
	return errs
}

func appendURL(errs []FieldError, field, raw string) []FieldError {
	if raw == "" {
		return append(errs, FieldError{Field: field, Message: "must not be empty"})
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return append(errs, FieldError{Field: field, Message: fmt.Sprintf("invalid URL %q", raw)})
	}
	return errs
}
