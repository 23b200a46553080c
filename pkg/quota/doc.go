// Package quota implements the daily quota gate that protects AI suggestion
// generation.
//
// # Protocol
//
// A gated request follows reserve, act, compensate:
//
//	d := gate.Check(ctx, actorID)        // consume one unit
//	if !d.Allowed {
//	    // soft decline, not an error
//	}
//	if err := generate(ctx); err != nil {
//	    gate.Release(ctx, d)             // give the unit back
//	}
//
// # Fail-open
//
// When the ledger cannot be reached Check returns an allowed Decision with
// FailOpen set and the underlying error in Err. Availability of the feature
// wins over strict enforcement. Nothing was recorded in that case, so Release
// on a fail-open decision does nothing.
//
// # Calendar
//
// "Daily" means a calendar day in one fixed timezone (America/Sao_Paulo by
// default) so every client shares the same reset boundary regardless of
// where the request originates.
package quota
