package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Access tokens are opaque bearer strings as far as the gateway is
// concerned: it holds no signing key and never vouches for their
// validity. When a token happens to be a JWT, though, we can read its
// exp claim without verification and refresh proactively instead of
// burning a round trip on a guaranteed 401.

var parser = jwt.NewParser()

// ExpiresAt returns the token's exp claim. The second result is false
// when the token is not a JWT or carries no exp claim.
func ExpiresAt(tokenStr string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := parser.ParseUnverified(tokenStr, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Expired reports whether the token is a JWT whose exp claim has
// passed. Opaque tokens and JWTs without exp are never considered
// expired here; the backend remains the authority and will 401 them.
func Expired(tokenStr string, now time.Time) bool {
	exp, ok := ExpiresAt(tokenStr)
	if !ok {
		return false
	}
	return !exp.After(now)
}
