// Package identity resolves the actor a quota is tracked against.
//
// Every request is attributed to exactly one Identity: an authenticated
// account when a session verifier recognises the caller, otherwise an
// anonymous browser identified by a UUID held in an HttpOnly cookie. When no
// anonymous cookie exists a new token is minted and the caller is expected to
// persist it on the response with Resolver.Persist.
//
// Resolution never fails. Session lookup errors are logged and the request
// continues anonymously.
package identity
