// Package session owns the per-role token cookies. No other package
// constructs cookie names.
package session

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"market-gateway/domain"
)

// Kind selects one of the two cookies of a role's session.
type Kind string

const (
	Access  Kind = "accessToken"
	Refresh Kind = "refreshToken"
)

// Cookie lifetimes in seconds. The access token is short-lived; the
// refresh token carries the 30-day session.
const (
	AccessTokenMaxAge  = 900
	RefreshTokenMaxAge = 2592000
)

// TokenPair is one role's credentials as returned by the backend.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Store reads and writes the token cookies of a single request/response
// pair. It is created per request and injected into whatever needs
// cookie access, never reached through ambient state.
type Store struct {
	ctx    echo.Context
	secure bool
}

// NewStore binds a store to one echo context. secure controls the
// Secure cookie attribute and should be true outside development.
func NewStore(c echo.Context, secure bool) *Store {
	return &Store{ctx: c, secure: secure}
}

// Get returns the token of the given kind for a role. A missing or
// empty cookie reads as absent; Get never fails.
func (s *Store) Get(role domain.Role, kind Kind) (string, bool) {
	cookie, err := s.ctx.Cookie(cookieName(kind, role))
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// Set writes both cookies for a role onto the outgoing response.
func (s *Store) Set(role domain.Role, pair TokenPair) {
	s.ctx.SetCookie(s.cookie(cookieName(Access, role), pair.AccessToken, AccessTokenMaxAge))
	s.ctx.SetCookie(s.cookie(cookieName(Refresh, role), pair.RefreshToken, RefreshTokenMaxAge))
}

// Clear deletes both cookies for a role. Other roles' cookies are
// untouched.
func (s *Store) Clear(role domain.Role) {
	s.ctx.SetCookie(s.cookie(cookieName(Access, role), "", -1))
	s.ctx.SetCookie(s.cookie(cookieName(Refresh, role), "", -1))
}

func (s *Store) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func cookieName(kind Kind, role domain.Role) string {
	return fmt.Sprintf("%s_%s", kind, role)
}
