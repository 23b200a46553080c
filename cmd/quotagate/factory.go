package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"materna360/quotagate/pkg/cli"
	"materna360/quotagate/pkg/config"
	"materna360/quotagate/pkg/identity"
	"materna360/quotagate/pkg/quota"
	"materna360/quotagate/pkg/quota/ledger"
	"materna360/quotagate/pkg/suggest"
	"materna360/quotagate/pkg/telemetry/logging"
)

// loadConfig initializes the global configuration from --config.
func loadConfig() (*config.Config, error) {
	if err := config.Initialize(cfgFile); err != nil {
		return nil, cli.NewConfigError("", err)
	}
	cfg := config.GetConfig()
	if cfg == nil {
		return nil, cli.NewConfigError("", errors.New("configuration not initialized"))
	}
	return cfg, nil
}

func newLogger(cfg *config.LoggingConfig) (*slog.Logger, error) {
	logger, err := logging.New(logging.Config{
		Level:      cfg.Level,
		Format:     cfg.Format,
		AddSource:  cfg.AddSource,
		RedactKeys: cfg.RedactKeys,
		Writer:     os.Stdout,
	})
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err)
	}
	return logger, nil
}

func newCalendar(cfg *config.QuotaConfig) (*quota.Calendar, error) {
	cal, err := quota.NewCalendar(cfg.Timezone)
	if err != nil {
		return nil, cli.NewConfigError("quota.timezone", err)
	}
	return cal, nil
}

// openLedger opens the configured ledger backend.
func openLedger(ctx context.Context, cfg *config.LedgerConfig) (ledger.Ledger, error) {
	var (
		l   ledger.Ledger
		err error
	)
	switch cfg.Backend {
	case "memory":
		l = ledger.NewMemoryLedger()

	case "sqlite":
		l, err = ledger.NewSQLiteLedger(ledger.SQLiteConfig{
			Path:             cfg.SQLite.Path,
			Driver:           cfg.SQLite.Driver,
			BusyTimeout:      cfg.SQLite.BusyTimeout,
			SnapshotInterval: cfg.SQLite.CheckpointInterval,
		})

	case "postgres":
		l, err = ledger.NewPostgresLedger(ctx, ledger.PostgresConfig{
			DSN:             cfg.Postgres.DSN,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
			AutoMigrate:     cfg.Postgres.AutoMigrate,
		})

	case "rpc":
		l, err = ledger.NewRPCLedger(ledger.RPCConfig{
			BaseURL:    cfg.RPC.BaseURL,
			APIKey:     cfg.RPC.APIKey,
			ServiceKey: cfg.RPC.ServiceKey,
			Timeout:    cfg.RPC.Timeout,
		})

	default:
		return nil, cli.NewConfigError("ledger.backend", fmt.Errorf("unsupported backend %q", cfg.Backend))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s ledger: %w", cfg.Backend, err)
	}
	return l, nil
}

// newVerifier builds the session verifier for the identity mode.
func newVerifier(cfg *config.IdentityConfig) (identity.SessionVerifier, error) {
	switch cfg.Mode {
	case "none":
		return identity.NoSession{}, nil

	case "jwt":
		v, err := identity.NewJWTVerifier(identity.JWTConfig{
			Secret:     []byte(cfg.JWT.Secret),
			Audience:   cfg.JWT.Audience,
			Issuer:     cfg.JWT.Issuer,
			CookieName: cfg.JWT.CookieName,
		})
		if err != nil {
			return nil, cli.NewConfigError("identity.jwt", err)
		}
		return v, nil

	case "remote":
		v, err := identity.NewRemoteVerifier(identity.RemoteConfig{
			BaseURL:    cfg.Remote.BaseURL,
			APIKey:     cfg.Remote.APIKey,
			CookieName: cfg.Remote.CookieName,
			Timeout:    cfg.Remote.Timeout,
		})
		if err != nil {
			return nil, cli.NewConfigError("identity.remote", err)
		}
		return v, nil

	default:
		return nil, cli.NewConfigError("identity.mode", fmt.Errorf("unsupported mode %q", cfg.Mode))
	}
}

// newGenerator builds the suggestion generator and returns its metric label.
func newGenerator(cfg *config.GeneratorConfig) (suggest.Generator, string, error) {
	switch cfg.Provider {
	case "static":
		return suggest.NewStaticGenerator(), "static", nil

	case "openai":
		gen, err := suggest.NewOpenAIGenerator(suggest.OpenAIConfig{
			BaseURL:      cfg.OpenAI.BaseURL,
			APIKey:       cfg.OpenAI.APIKey,
			Model:        cfg.OpenAI.Model,
			Temperature:  cfg.OpenAI.Temperature,
			MaxTokens:    cfg.OpenAI.MaxTokens,
			MaxRetries:   cfg.OpenAI.MaxRetries,
			RetryBackoff: cfg.OpenAI.RetryBackoff,
		})
		if err != nil {
			return nil, "", cli.NewConfigError("generator.openai", err)
		}
		return gen, "openai", nil

	default:
		return nil, "", cli.NewConfigError("generator.provider", fmt.Errorf("unsupported provider %q", cfg.Provider))
	}
}
