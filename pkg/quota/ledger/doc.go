// Package ledger provides the quota ledger: a per-actor, per-calendar-day
// counter that can only be mutated through two atomic operations.
//
// # Overview
//
// Every backend implements the Ledger interface:
//
//   - TryConsume: check-and-increment in a single atomic step
//   - Release: decrement floored at zero
//
// Callers never read a count and write it back. All mutation is delegated to
// the backing store so concurrent requests for the same actor (two browser
// tabs, a retried fetch) cannot double-spend a unit or lose an increment.
//
// # Backends
//
//   - Memory: mutex-guarded map, no persistence (development, tests)
//   - SQLite: conditional upsert with RETURNING, single writer, WAL mode
//   - Postgres: stored procedures installed by embedded goose migrations
//   - RPC: remote procedure calls against a hosted PostgREST endpoint
//
// # Usage
//
//	l, err := ledger.NewSQLiteLedger(ledger.SQLiteConfig{Path: "data/quota.db"})
//	if err != nil {
//	    return err
//	}
//	defer l.Close()
//
//	c, err := l.TryConsume(ctx, "anon:7f9c...", "2025-03-14", 5)
//	if err != nil {
//	    // infrastructure failure, the caller decides the policy
//	}
//	if !c.Allowed {
//	    // quota exhausted for today
//	}
//
// # Records
//
// A record is created implicitly by the first TryConsume for an
// (actor, date key) pair and is never deleted by the gate itself. Rows for
// past days roll over naturally and are removed by Prune.
package ledger
