package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultMaxHeaderBytes  = 64 << 10
	DefaultMaxBodyBytes    = int64(16 << 10)
	DefaultCORSMaxAge      = 600

	// Quota defaults
	DefaultDailyLimit        = 5
	DefaultTimezone          = "America/Sao_Paulo"
	DefaultGenerationTimeout = 20 * time.Second
	DefaultLedgerTimeout     = 3 * time.Second
	DefaultDeclineMessage    = "Você já aproveitou todas as sugestões de hoje. Amanhã tem mais, com carinho!"
	DefaultRetentionDays     = 30
	DefaultRetentionSchedule = "30 3 * * *"

	// Identity defaults
	DefaultIdentityMode      = "none"
	DefaultCookieName        = "m360_anon"
	DefaultCookieMaxAge      = 365 * 24 * time.Hour
	DefaultRemoteAuthTimeout = 3 * time.Second
	DefaultAccessTokenCookie = "sb-access-token"
	DefaultJWTAudience       = "authenticated"

	// Ledger defaults
	DefaultLedgerBackend            = "sqlite"
	DefaultSQLitePath               = "data/quota.db"
	DefaultSQLiteDriver             = "sqlite"
	DefaultSQLiteBusyTimeout        = 5 * time.Second
	DefaultSQLiteCheckpointInterval = 5 * time.Minute
	DefaultPostgresMaxOpenConns     = 10
	DefaultPostgresMaxIdleConns     = 5
	DefaultPostgresConnMaxLifetime  = 30 * time.Minute
	DefaultRPCTimeout               = 3 * time.Second

	// Generator defaults
	DefaultGeneratorProvider  = "static"
	DefaultOpenAIBaseURL      = "https://api.openai.com/v1"
	DefaultOpenAIModel        = "gpt-4o-mini"
	DefaultOpenAIMaxRetries   = 2
	DefaultOpenAIRetryBackoff = 500 * time.Millisecond

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultMetricsPath        = "/metrics"
	DefaultTracingServiceName = "quotagate"
	DefaultTracingSampleRatio = 1.0
	DefaultTracingTimeout     = 10 * time.Second
)

// seedDefaults sets fields whose zero value is meaningful.
// It runs before YAML decoding so an explicit false or 0 in the file wins.
func seedDefaults(cfg *Config) {
	cfg.Telemetry.Metrics.Enabled = true
	cfg.Ledger.Postgres.AutoMigrate = true
	cfg.Quota.Retention.Days = DefaultRetentionDays
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
	applyCORSDefaults(&cfg.Server.CORS)

	// Quota defaults
	if cfg.Quota.DailyLimit == 0 {
		cfg.Quota.DailyLimit = DefaultDailyLimit
	}
	if cfg.Quota.Timezone == "" {
		cfg.Quota.Timezone = DefaultTimezone
	}
	if cfg.Quota.GenerationTimeout == 0 {
		cfg.Quota.GenerationTimeout = DefaultGenerationTimeout
	}
	if cfg.Quota.LedgerTimeout == 0 {
		cfg.Quota.LedgerTimeout = DefaultLedgerTimeout
	}
	if cfg.Quota.DeclineMessage == "" {
		cfg.Quota.DeclineMessage = DefaultDeclineMessage
	}
	if cfg.Quota.Retention.Schedule == "" {
		cfg.Quota.Retention.Schedule = DefaultRetentionSchedule
	}

	// Identity defaults
	if cfg.Identity.Mode == "" {
		cfg.Identity.Mode = DefaultIdentityMode
	}
	if cfg.Identity.Cookie.Name == "" {
		cfg.Identity.Cookie.Name = DefaultCookieName
	}
	if cfg.Identity.Cookie.MaxAge == 0 {
		cfg.Identity.Cookie.MaxAge = DefaultCookieMaxAge
	}
	if cfg.Identity.JWT.CookieName == "" {
		cfg.Identity.JWT.CookieName = DefaultAccessTokenCookie
	}
	if cfg.Identity.JWT.Audience == "" {
		cfg.Identity.JWT.Audience = DefaultJWTAudience
	}
	if cfg.Identity.Remote.CookieName == "" {
		cfg.Identity.Remote.CookieName = DefaultAccessTokenCookie
	}
	if cfg.Identity.Remote.Timeout == 0 {
		cfg.Identity.Remote.Timeout = DefaultRemoteAuthTimeout
	}

	// Ledger defaults
	if cfg.Ledger.Backend == "" {
		cfg.Ledger.Backend = DefaultLedgerBackend
	}
	if cfg.Ledger.SQLite.Path == "" {
		cfg.Ledger.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Ledger.SQLite.Driver == "" {
		cfg.Ledger.SQLite.Driver = DefaultSQLiteDriver
	}
	if cfg.Ledger.SQLite.BusyTimeout == 0 {
		cfg.Ledger.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Ledger.SQLite.CheckpointInterval == 0 {
		cfg.Ledger.SQLite.CheckpointInterval = DefaultSQLiteCheckpointInterval
	}
	if cfg.Ledger.Postgres.MaxOpenConns == 0 {
		cfg.Ledger.Postgres.MaxOpenConns = DefaultPostgresMaxOpenConns
	}
	if cfg.Ledger.Postgres.MaxIdleConns == 0 {
		cfg.Ledger.Postgres.MaxIdleConns = DefaultPostgresMaxIdleConns
	}
	if cfg.Ledger.Postgres.ConnMaxLifetime == 0 {
		cfg.Ledger.Postgres.ConnMaxLifetime = DefaultPostgresConnMaxLifetime
	}
	if cfg.Ledger.RPC.Timeout == 0 {
		cfg.Ledger.RPC.Timeout = DefaultRPCTimeout
	}

	// Generator defaults
	if cfg.Generator.Provider == "" {
		cfg.Generator.Provider = DefaultGeneratorProvider
	}
	if cfg.Generator.OpenAI.BaseURL == "" {
		cfg.Generator.OpenAI.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.Generator.OpenAI.Model == "" {
		cfg.Generator.OpenAI.Model = DefaultOpenAIModel
	}
	if cfg.Generator.OpenAI.MaxRetries == 0 {
		cfg.Generator.OpenAI.MaxRetries = DefaultOpenAIMaxRetries
	}
	if cfg.Generator.OpenAI.RetryBackoff == 0 {
		cfg.Generator.OpenAI.RetryBackoff = DefaultOpenAIRetryBackoff
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
}

func applyCORSDefaults(cors *CORSConfig) {
	if len(cors.AllowedMethods) == 0 {
		cors.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cors.AllowedHeaders) == 0 {
		cors.AllowedHeaders = []string{"Authorization", "Content-Type", "X-Request-ID"}
	}
	if cors.MaxAge == 0 {
		cors.MaxAge = DefaultCORSMaxAge
	}
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	seedDefaults(cfg)
	ApplyDefaults(cfg)
	return cfg
}
