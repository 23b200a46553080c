// Package health provides liveness and readiness probes.
//
// Components register checks as critical or advisory. A failing critical
// check makes the service unready (HTTP 503). A failing advisory check only
// marks the service degraded and keeps it in rotation; the quota ledger is
// registered this way because the gate fails open while it is unreachable.
package health
