package config

import "time"

// Config is the root configuration structure for quotagate.
type Config struct {
	// Server contains HTTP server configuration.
	Server ServerConfig `yaml:"server"`

	// Quota contains the daily quota policy.
	Quota QuotaConfig `yaml:"quota"`

	// Identity controls how requests are attributed to actors.
	Identity IdentityConfig `yaml:"identity"`

	// Ledger selects and configures the quota counter store.
	Ledger LedgerConfig `yaml:"ledger"`

	// Generator configures the protected suggestion generator.
	Generator GeneratorConfig `yaml:"generator"`

	// Telemetry contains logging, metrics and tracing configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout must exceed quota.generation_timeout.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout for keep-alive connections.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits request header size.
	// Default: 65536
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// MaxBodyBytes limits the suggestion request body.
	// Default: 16384
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig contains CORS configuration.
type CORSConfig struct {
	// AllowedOrigins lists origins allowed to call the API.
	// Empty disables CORS headers entirely.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods default: ["GET", "POST", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders default: ["Authorization", "Content-Type", "X-Request-ID"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// MaxAge is the preflight cache duration in seconds.
	// Default: 600
	MaxAge int `yaml:"max_age"`

	// AllowCredentials must be true for the anonymous cookie to be sent
	// cross-origin.
	AllowCredentials bool `yaml:"allow_credentials"`
}

// QuotaConfig contains the daily quota policy.
type QuotaConfig struct {
	// DailyLimit is the number of suggestions per actor per day.
	// Hot-reloadable. Default: 5
	DailyLimit int `yaml:"daily_limit"`

	// Timezone whose midnight resets every quota.
	// Default: "America/Sao_Paulo"
	Timezone string `yaml:"timezone"`

	// GenerationTimeout bounds the protected generation.
	// Default: 20s
	GenerationTimeout time.Duration `yaml:"generation_timeout"`

	// LedgerTimeout bounds each ledger call made while serving a request.
	// Default: 3s
	LedgerTimeout time.Duration `yaml:"ledger_timeout"`

	// DeclineMessage is shown when the quota is exhausted.
	DeclineMessage string `yaml:"decline_message"`

	// Retention controls pruning of past days.
	Retention RetentionConfig `yaml:"retention"`
}

// RetentionConfig controls ledger pruning.
type RetentionConfig struct {
	// Days of history to keep, including today. 0 keeps everything.
	// Default: 30
	Days int `yaml:"days"`

	// Schedule is a cron expression in the quota timezone.
	// Default: "30 3 * * *"
	Schedule string `yaml:"schedule"`
}

// IdentityConfig controls actor resolution.
type IdentityConfig struct {
	// Mode selects the session verifier.
	// Options: "none", "jwt", "remote"
	// Default: "none"
	Mode string `yaml:"mode"`

	// Cookie configures the anonymous identity cookie.
	Cookie CookieConfig `yaml:"cookie"`

	// JWT configures local access token verification.
	JWT JWTConfig `yaml:"jwt"`

	// Remote configures lookups against a hosted auth service.
	Remote RemoteAuthConfig `yaml:"remote"`
}

// CookieConfig configures the anonymous identity cookie.
type CookieConfig struct {
	// Name default: "m360_anon"
	Name string `yaml:"name"`

	// MaxAge default: 8760h (365 days)
	MaxAge time.Duration `yaml:"max_age"`

	// Secure restricts the cookie to HTTPS.
	Secure bool `yaml:"secure"`

	// Domain optionally scopes the cookie to a parent domain.
	Domain string `yaml:"domain"`
}

// JWTConfig configures HS256 access token verification.
type JWTConfig struct {
	Secret     string `yaml:"secret"`
	Audience   string `yaml:"audience"`
	Issuer     string `yaml:"issuer"`
	CookieName string `yaml:"cookie_name"`
}

// RemoteAuthConfig configures the hosted auth service.
type RemoteAuthConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	CookieName string        `yaml:"cookie_name"`
	Timeout    time.Duration `yaml:"timeout"`
}

// LedgerConfig selects the quota counter store.
type LedgerConfig struct {
	// Backend options: "memory", "sqlite", "postgres", "rpc"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
	RPC      RPCConfig      `yaml:"rpc"`
}

// SQLiteConfig configures the SQLite ledger.
type SQLiteConfig struct {
	// Path default: "data/quota.db"
	Path string `yaml:"path"`

	// Driver options: "sqlite" (pure Go), "sqlite3" (cgo)
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// BusyTimeout default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// CheckpointInterval between WAL checkpoints. Default: 5m
	CheckpointInterval time.Duration `yaml:"checkpoint_interval"`
}

// PostgresConfig configures the Postgres ledger.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`

	// AutoMigrate applies embedded migrations at startup. Default: true
	AutoMigrate bool `yaml:"auto_migrate"`
}

// RPCConfig configures the hosted PostgREST ledger.
type RPCConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	ServiceKey string        `yaml:"service_key"`
	Timeout    time.Duration `yaml:"timeout"`
}

// GeneratorConfig configures the suggestion generator.
type GeneratorConfig struct {
	// Provider options: "openai", "static"
	// Default: "static"
	Provider string `yaml:"provider"`

	OpenAI OpenAIConfig `yaml:"openai"`
}

// OpenAIConfig configures an OpenAI-compatible endpoint.
type OpenAIConfig struct {
	BaseURL      string        `yaml:"base_url"`
	APIKey       string        `yaml:"api_key"`
	Model        string        `yaml:"model"`
	Temperature  float64       `yaml:"temperature"`
	MaxTokens    int           `yaml:"max_tokens"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line in log entries.
	AddSource bool `yaml:"add_source"`

	// RedactKeys lists additional attribute keys whose values are masked.
	RedactKeys []string `yaml:"redact_keys"`
}

// MetricsConfig contains Prometheus configuration.
type MetricsConfig struct {
	// Enabled default: true
	Enabled bool `yaml:"enabled"`

	// Path default: "/metrics"
	Path string `yaml:"path"`
}

// TracingConfig contains OpenTelemetry configuration.
type TracingConfig struct {
	// Enabled default: false
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector, e.g. "localhost:4317".
	Endpoint string `yaml:"endpoint"`

	// ServiceName default: "quotagate"
	ServiceName string `yaml:"service_name"`

	// SampleRatio between 0 and 1. Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Insecure disables TLS to the collector.
	Insecure bool `yaml:"insecure"`

	// Timeout for exports. Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}
