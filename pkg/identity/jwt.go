package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig configures a JWTVerifier.
type JWTConfig struct {
	// Secret is the HS256 signing secret shared with the auth service.
	Secret []byte

	// Audience, when set, must be present in the token's aud claim.
	Audience string

	// Issuer, when set, must match the token's iss claim.
	Issuer string

	// CookieName is an optional cookie carrying the access token when no
	// Authorization header is present.
	CookieName string
}

// JWTVerifier recognises sessions carried as HS256 access tokens.
type JWTVerifier struct {
	secret     []byte
	cookieName string
	parser     *jwt.Parser
}

// NewJWTVerifier creates a verifier for tokens signed with cfg.Secret.
func NewJWTVerifier(cfg JWTConfig) (*JWTVerifier, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("jwt secret is required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return &JWTVerifier{
		secret:     cfg.Secret,
		cookieName: cfg.CookieName,
		parser:     jwt.NewParser(opts...),
	}, nil
}

// Subject returns the sub claim of a valid access token.
// Missing, expired or otherwise invalid tokens are treated as no session.
func (v *JWTVerifier) Subject(_ context.Context, r *http.Request) (string, error) {
	raw := accessToken(r, v.cookieName)
	if raw == "" {
		return "", nil
	}

	claims := &jwt.RegisteredClaims{}
	token, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return "", nil
	}

	return claims.Subject, nil
}

// IssueToken signs a token for subject. Used by tooling and tests.
func (v *JWTVerifier) IssueToken(claims jwt.RegisteredClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// accessToken extracts a bearer token from the Authorization header,
// falling back to cookieName.
func accessToken(r *http.Request, cookieName string) string {
	if h := r.Header.Get("Authorization"); h != "" {
		const prefix = "Bearer "
		if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
			return strings.TrimSpace(h[len(prefix):])
		}
	}
	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil {
			return c.Value
		}
	}
	return ""
}
