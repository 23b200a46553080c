package identity

import "context"

// Kind distinguishes authenticated accounts from anonymous browsers.
type Kind int

const (
	// KindAnonymous is a browser identified by a cookie token.
	KindAnonymous Kind = iota

	// KindAuthenticated is a signed-in account.
	KindAuthenticated
)

// String returns the actor ID prefix for k.
func (k Kind) String() string {
	if k == KindAuthenticated {
		return "user"
	}
	return "anon"
}

// Identity is the resolved caller of a request.
// The zero value is an anonymous identity with an empty token and is not
// a usable actor.
type Identity struct {
	kind Kind
	id   string
}

// Authenticated returns the identity of a signed-in account.
func Authenticated(userID string) Identity {
	return Identity{kind: KindAuthenticated, id: userID}
}

// Anonymous returns the identity of an anonymous browser.
func Anonymous(token string) Identity {
	return Identity{kind: KindAnonymous, id: token}
}

// Kind returns the identity variant.
func (i Identity) Kind() Kind { return i.kind }

// ID returns the user ID or the anonymous token.
func (i Identity) ID() string { return i.id }

// IsAuthenticated reports whether i is a signed-in account.
func (i Identity) IsAuthenticated() bool { return i.kind == KindAuthenticated }

// IsZero reports whether i carries no identifier.
func (i Identity) IsZero() bool { return i.id == "" }

// ActorID returns the quota ledger key, "user:<id>" or "anon:<token>".
func (i Identity) ActorID() string {
	return i.kind.String() + ":" + i.id
}

// String implements fmt.Stringer.
func (i Identity) String() string { return i.ActorID() }

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored in ctx, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}
