package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidate_Fields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad listen address", func(c *Config) { c.Server.ListenAddress = "8080" }, "server.listen_address"},
		{"negative read timeout", func(c *Config) { c.Server.ReadTimeout = -time.Second }, "server.read_timeout"},
		{"wildcard with credentials", func(c *Config) {
			c.Server.CORS.AllowedOrigins = []string{"*"}
			c.Server.CORS.AllowCredentials = true
		}, "server.cors.allowed_origins[0]"},
		{"bad origin", func(c *Config) { c.Server.CORS.AllowedOrigins = []string{"materna360"} }, "server.cors.allowed_origins[0]"},
		{"zero limit", func(c *Config) { c.Quota.DailyLimit = 0 }, "quota.daily_limit"},
		{"unknown timezone", func(c *Config) { c.Quota.Timezone = "Mars/Base" }, "quota.timezone"},
		{"generation outlives write timeout", func(c *Config) { c.Quota.GenerationTimeout = time.Minute }, "quota.generation_timeout"},
		{"ledger round trips outlive write timeout", func(c *Config) {
			c.Server.WriteTimeout = 10 * time.Second
			c.Quota.GenerationTimeout = 8 * time.Second
			c.Quota.LedgerTimeout = time.Second
		}, "quota.generation_timeout"},
		{"remote session lookup outlives write timeout", func(c *Config) {
			c.Identity.Mode = "remote"
			c.Identity.Remote.BaseURL = "https://xyz.supabase.co"
			c.Identity.Remote.Timeout = 5 * time.Second
		}, "quota.generation_timeout"},
		{"bad cron", func(c *Config) { c.Quota.Retention.Schedule = "every day" }, "quota.retention.schedule"},
		{"negative retention", func(c *Config) { c.Quota.Retention.Days = -1 }, "quota.retention.days"},
		{"unknown identity mode", func(c *Config) { c.Identity.Mode = "oauth" }, "identity.mode"},
		{"short jwt secret", func(c *Config) { c.Identity.Mode = "jwt"; c.Identity.JWT.Secret = "short" }, "identity.jwt.secret"},
		{"remote without url", func(c *Config) { c.Identity.Mode = "remote" }, "identity.remote.base_url"},
		{"bad cookie name", func(c *Config) { c.Identity.Cookie.Name = "a b" }, "identity.cookie.name"},
		{"unknown backend", func(c *Config) { c.Ledger.Backend = "redis" }, "ledger.backend"},
		{"bad sqlite driver", func(c *Config) { c.Ledger.SQLite.Driver = "sqlite4" }, "ledger.sqlite.driver"},
		{"postgres without dsn", func(c *Config) { c.Ledger.Backend = "postgres" }, "ledger.postgres.dsn"},
		{"rpc without key", func(c *Config) {
			c.Ledger.Backend = "rpc"
			c.Ledger.RPC.BaseURL = "https://xyz.supabase.co"
		}, "ledger.rpc.api_key"},
		{"openai without key", func(c *Config) { c.Generator.Provider = "openai" }, "generator.openai.api_key"},
		{"unknown provider", func(c *Config) { c.Generator.Provider = "gemini" }, "generator.provider"},
		{"bad log level", func(c *Config) { c.Telemetry.Logging.Level = "verbose" }, "telemetry.logging.level"},
		{"tracing without endpoint", func(c *Config) { c.Telemetry.Tracing.Enabled = true }, "telemetry.tracing.endpoint"},
		{"bad sample ratio", func(c *Config) { c.Telemetry.Tracing.SampleRatio = 2 }, "telemetry.tracing.sample_ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Validate() error = nil, want error")
			}

			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %T, want ValidationError", err)
			}
			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("errors = %v, want field %q", verr.Errors, tt.field)
			}
		})
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := Default()
	cfg.Quota.DailyLimit = 0
	cfg.Ledger.Backend = "redis"

	err := Validate(cfg)
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %T, want ValidationError", err)
	}
	if len(verr.Errors) != 2 {
		t.Errorf("errors = %d, want 2", len(verr.Errors))
	}
	if !strings.Contains(verr.Error(), "2 errors") {
		t.Errorf("message = %q, want error count", verr.Error())
	}
}

func TestValidate_BackendsAccepted(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"memory", func(c *Config) { c.Ledger.Backend = "memory" }},
		{"sqlite cgo", func(c *Config) { c.Ledger.SQLite.Driver = "sqlite3" }},
		{"postgres", func(c *Config) {
			c.Ledger.Backend = "postgres"
			c.Ledger.Postgres.DSN = "postgres://localhost/quota"
		}},
		{"rpc", func(c *Config) {
			c.Ledger.Backend = "rpc"
			c.Ledger.RPC.BaseURL = "https://xyz.supabase.co"
			c.Ledger.RPC.APIKey = "anon"
		}},
		{"remote identity", func(c *Config) {
			c.Identity.Mode = "remote"
			c.Identity.Remote.BaseURL = "https://xyz.supabase.co"
		}},
		{"openai", func(c *Config) {
			c.Generator.Provider = "openai"
			c.Generator.OpenAI.APIKey = "sk-test"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := Validate(cfg); err != nil {
				t.Errorf("Validate() error = %v", err)
			}
		})
	}
}

func TestSuggestionBudget(t *testing.T) {
	cfg := Default()
	if got, want := SuggestionBudget(cfg), DefaultGenerationTimeout+2*DefaultLedgerTimeout; got != want {
		t.Errorf("budget = %v, want %v", got, want)
	}

	cfg.Identity.Mode = "remote"
	if got, want := SuggestionBudget(cfg), DefaultGenerationTimeout+2*DefaultLedgerTimeout+DefaultRemoteAuthTimeout; got != want {
		t.Errorf("remote budget = %v, want %v", got, want)
	}
	if got := SuggestionBudget(cfg); got >= DefaultWriteTimeout {
		t.Errorf("default budget %v does not fit write timeout %v", got, DefaultWriteTimeout)
	}
}
