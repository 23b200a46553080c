// Package handlers implements the quotagate HTTP endpoints.
//
// POST /api/ai/suggestion walks one request through the quota gate:
//
//	resolve actor -> Check
//	  declined          -> 200 {"blocked":true,"message":...,"suggestion":null}
//	  allowed           -> generate (bounded by the generation timeout)
//	    success         -> 200 {"blocked":false,"suggestion":{...}}
//	    error/timeout   -> Release -> 200 {"blocked":false,"suggestion":{...},"fallback":true}
//
// Every branch answers 200. Ledger outages fail open in the gate, generator
// failures (including panics) become fallback content, and a malformed
// request body is treated as an empty request.
//
// GET /api/ai/quota reports the resolved actor's remaining quota without
// consuming it.
package handlers
