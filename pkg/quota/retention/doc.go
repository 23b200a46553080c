// Package retention prunes quota ledger rows for past days.
//
// Quota records are only meaningful for the current calendar day. Older rows
// are kept for a configurable number of days for support and analytics and
// then deleted on a cron schedule evaluated in the quota calendar timezone.
package retention
