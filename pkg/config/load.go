package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "QUOTAGATE_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values and validates the result. Environment variables
// are ignored; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	return load(path, false)
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention QUOTAGATE_SECTION_FIELD (e.g., QUOTAGATE_QUOTA_DAILY_LIMIT).
// An empty path loads defaults only.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	return load(path, true)
}

func load(path string, withEnv bool) (*Config, error) {
	cfg := &Config{}
	seedDefaults(cfg)

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	ApplyDefaults(cfg)

	if withEnv {
		if err := applyEnvOverrides(cfg); err != nil {
			return nil, fmt.Errorf("invalid environment overrides: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// decode parses YAML strictly so misspelled keys are reported.
func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnvOverrides applies QUOTAGATE_* environment variables.
// Malformed numeric, boolean or duration values are reported as errors.
func applyEnvOverrides(cfg *Config) error {
	e := &envReader{}

	// Server overrides
	e.str("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	e.duration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	e.duration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	e.duration("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	e.list("SERVER_CORS_ALLOWED_ORIGINS", &cfg.Server.CORS.AllowedOrigins)

	// Quota overrides
	e.integer("QUOTA_DAILY_LIMIT", &cfg.Quota.DailyLimit)
	e.str("QUOTA_TIMEZONE", &cfg.Quota.Timezone)
	e.duration("QUOTA_GENERATION_TIMEOUT", &cfg.Quota.GenerationTimeout)
	e.duration("QUOTA_LEDGER_TIMEOUT", &cfg.Quota.LedgerTimeout)
	e.str("QUOTA_DECLINE_MESSAGE", &cfg.Quota.DeclineMessage)
	e.integer("QUOTA_RETENTION_DAYS", &cfg.Quota.Retention.Days)
	e.str("QUOTA_RETENTION_SCHEDULE", &cfg.Quota.Retention.Schedule)

	// Identity overrides
	e.str("IDENTITY_MODE", &cfg.Identity.Mode)
	e.str("IDENTITY_COOKIE_NAME", &cfg.Identity.Cookie.Name)
	e.boolean("IDENTITY_COOKIE_SECURE", &cfg.Identity.Cookie.Secure)
	e.str("IDENTITY_COOKIE_DOMAIN", &cfg.Identity.Cookie.Domain)
	e.str("IDENTITY_JWT_SECRET", &cfg.Identity.JWT.Secret)
	e.str("IDENTITY_JWT_AUDIENCE", &cfg.Identity.JWT.Audience)
	e.str("IDENTITY_REMOTE_BASE_URL", &cfg.Identity.Remote.BaseURL)
	e.str("IDENTITY_REMOTE_API_KEY", &cfg.Identity.Remote.APIKey)

	// Ledger overrides
	e.str("LEDGER_BACKEND", &cfg.Ledger.Backend)
	e.str("LEDGER_SQLITE_PATH", &cfg.Ledger.SQLite.Path)
	e.str("LEDGER_SQLITE_DRIVER", &cfg.Ledger.SQLite.Driver)
	e.str("LEDGER_POSTGRES_DSN", &cfg.Ledger.Postgres.DSN)
	e.boolean("LEDGER_POSTGRES_AUTO_MIGRATE", &cfg.Ledger.Postgres.AutoMigrate)
	e.str("LEDGER_RPC_BASE_URL", &cfg.Ledger.RPC.BaseURL)
	e.str("LEDGER_RPC_API_KEY", &cfg.Ledger.RPC.APIKey)
	e.str("LEDGER_RPC_SERVICE_KEY", &cfg.Ledger.RPC.ServiceKey)

	// Generator overrides
	e.str("GENERATOR_PROVIDER", &cfg.Generator.Provider)
	e.str("GENERATOR_OPENAI_BASE_URL", &cfg.Generator.OpenAI.BaseURL)
	e.str("GENERATOR_OPENAI_API_KEY", &cfg.Generator.OpenAI.APIKey)
	e.str("GENERATOR_OPENAI_MODEL", &cfg.Generator.OpenAI.Model)
	e.integer("GENERATOR_OPENAI_MAX_RETRIES", &cfg.Generator.OpenAI.MaxRetries)

	// Telemetry overrides
	e.str("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	e.str("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	e.boolean("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	e.boolean("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	e.str("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	e.float("TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)

	if len(e.errs) > 0 {
		return ValidationError{Errors: e.errs}
	}
	return nil
}

// envReader reads typed overrides and collects parse failures.
type envReader struct {
	errs []FieldError
}

func (e *envReader) lookup(name string) (string, bool) {
	val, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || val == "" {
		return "", false
	}
	return val, true
}

func (e *envReader) fail(name, msg string) {
	e.errs = append(e.errs, FieldError{Field: EnvPrefix + name, Message: msg})
}

func (e *envReader) str(name string, dst *string) {
	if val, ok := e.lookup(name); ok {
		*dst = val
	}
}

func (e *envReader) list(name string, dst *[]string) {
	val, ok := e.lookup(name)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func (e *envReader) integer(name string, dst *int) {
	val, ok := e.lookup(name)
	if !ok {
		return
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		e.fail(name, fmt.Sprintf("invalid integer %q", val))
		return
	}
	*dst = i
}

func (e *envReader) float(name string, dst *float64) {
	val, ok := e.lookup(name)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		e.fail(name, fmt.Sprintf("invalid number %q", val))
		return
	}
	*dst = f
}

func (e *envReader) boolean(name string, dst *bool) {
	val, ok := e.lookup(name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		e.fail(name, fmt.Sprintf("invalid boolean %q", val))
		return
	}
	*dst = b
}

func (e *envReader) duration(name string, dst *time.Duration) {
	val, ok := e.lookup(name)
	if !ok {
		return
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		e.fail(name, fmt.Sprintf("invalid duration %q", val))
		return
	}
	*dst = d
}
