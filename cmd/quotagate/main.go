// Quotagate is the daily AI-suggestion quota gate for Materna360.
//
// It resolves who is asking, atomically consumes one unit of a per-actor
// daily quota, runs the protected suggestion generation and gives the unit
// back when generation fails. Quota exhaustion is a soft decline and every
// infrastructure failure degrades to fallback content.
//
// Usage:
//
//	# Start the server with defaults (SQLite ledger, static generator)
//	quotagate run
//
//	# Start with a configuration file
//	quotagate run --config /etc/quotagate/config.yaml
//
//	# Check a configuration file
//	quotagate validate --config config.yaml
//
//	# Apply Postgres migrations
//	quotagate migrate up --config config.yaml
//
//	# Inspect or correct an actor's quota
//	quotagate quota usage user:42
//	quotagate quota release user:42
//
//	# Delete ledger rows outside the retention window
//	quotagate prune
package main

func main() {
	Execute()
}
