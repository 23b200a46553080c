// Package config provides configuration management for quotagate.
//
// Configuration is loaded from a YAML file, completed with defaults,
// overridden from the environment and validated as a whole.
//
// # Configuration Loading
//
//	cfg, err := config.LoadConfig("quotagate.yaml")
//	cfg, err := config.LoadConfigWithEnvOverrides("quotagate.yaml")
//
// Unknown keys are rejected so typos surface at startup.
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention QUOTAGATE_SECTION_FIELD:
//
//   - QUOTAGATE_QUOTA_DAILY_LIMIT overrides quota.daily_limit
//   - QUOTAGATE_LEDGER_POSTGRES_DSN overrides ledger.postgres.dsn
//   - QUOTAGATE_IDENTITY_JWT_SECRET overrides identity.jwt.secret
//
// Secrets are normally supplied this way rather than written to the file.
//
// # Configuration Precedence
//
//  1. Default values (defaults.go)
//  2. Values from the YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast, reporting every invalid field)
//
// # Hot Reload
//
// Watcher follows the file on disk. The running server applies
// quota.daily_limit from every reload that validates; other fields take
// effect on restart.
package config
