// Package migrations embeds the Postgres schema for the quota ledger,
// including the try_consume_quota and release_quota procedures.
package migrations

import "embed"

// Migrations holds the goose SQL files.
//
//go:embed *.sql
var Migrations embed.FS
