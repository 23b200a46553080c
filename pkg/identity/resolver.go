package identity

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// DefaultCookieName is the name of the anonymous identity cookie.
const DefaultCookieName = "m360_anon"

// DefaultCookieMaxAge bounds the lifetime of the anonymous identity cookie.
const DefaultCookieMaxAge = 365 * 24 * time.Hour

// SessionVerifier recognises authenticated sessions.
type SessionVerifier interface {
	// Subject returns the account ID of the request's session.
	// An empty subject with a nil error means the request has no session.
	// A non-nil error means the lookup itself failed.
	Subject(ctx context.Context, r *http.Request) (string, error)
}

// NoSession is a SessionVerifier that never finds a session.
type NoSession struct{}

// Subject always returns an empty subject.
func (NoSession) Subject(context.Context, *http.Request) (string, error) {
	return "", nil
}

// CookieConfig controls the anonymous identity cookie.
type CookieConfig struct {
	// Name of the cookie. Default: DefaultCookieName
	Name string

	// MaxAge is the cookie lifetime. Default: DefaultCookieMaxAge
	MaxAge time.Duration

	// Secure restricts the cookie to HTTPS.
	Secure bool

	// Domain optionally scopes the cookie to a parent domain.
	Domain string
}

// Resolution is the outcome of resolving a request.
type Resolution struct {
	Identity Identity

	// NewToken is set when an anonymous token was minted for this request
	// and must be persisted on the response.
	NewToken string
}

// Resolver derives the Identity of incoming requests.
type Resolver struct {
	verifier SessionVerifier
	cookie   CookieConfig
	newToken func() string
	logger   *slog.Logger
}

// NewResolver creates a Resolver. A nil verifier disables sessions.
func NewResolver(verifier SessionVerifier, cookie CookieConfig, logger *slog.Logger) *Resolver {
	if verifier == nil {
		verifier = NoSession{}
	}
	if cookie.Name == "" {
		cookie.Name = DefaultCookieName
	}
	if cookie.MaxAge <= 0 {
		cookie.MaxAge = DefaultCookieMaxAge
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{
		verifier: verifier,
		cookie:   cookie,
		newToken: func() string { return uuid.NewString() },
		logger:   logger.With("component", "identity.resolver"),
	}
}

// Resolve returns the identity of r.
// An authenticated session wins over the anonymous cookie. Without either a
// fresh anonymous token is minted.
func (res *Resolver) Resolve(r *http.Request) Resolution {
	ctx := r.Context()

	subject, err := res.verifier.Subject(ctx, r)
	switch {
	case err != nil:
		res.logger.WarnContext(ctx, "session lookup failed, continuing anonymously",
			"error", err,
		)
	case subject != "":
		return Resolution{Identity: Authenticated(subject)}
	}

	if token, ok := res.anonymousToken(r); ok {
		return Resolution{Identity: Anonymous(token)}
	}

	token := res.newToken()
	res.logger.DebugContext(ctx, "minted anonymous identity")
	return Resolution{Identity: Anonymous(token), NewToken: token}
}

// Persist writes the anonymous cookie when res minted a new token.
func (res *Resolver) Persist(w http.ResponseWriter, resolution Resolution) {
	if resolution.NewToken == "" {
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     res.cookie.Name,
		Value:    resolution.NewToken,
		Path:     "/",
		Domain:   res.cookie.Domain,
		MaxAge:   int(res.cookie.MaxAge / time.Second),
		Expires:  time.Now().Add(res.cookie.MaxAge),
		HttpOnly: true,
		Secure:   res.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// anonymousToken returns the cookie token if it is a well-formed UUID.
func (res *Resolver) anonymousToken(r *http.Request) (string, bool) {
	c, err := r.Cookie(res.cookie.Name)
	if err != nil || c.Value == "" {
		return "", false
	}

	parsed, err := uuid.Parse(c.Value)
	if err != nil {
		res.logger.DebugContext(r.Context(), "ignoring malformed anonymous cookie")
		return "", false
	}
	return parsed.String(), true
}
