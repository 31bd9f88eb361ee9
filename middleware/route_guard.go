// Package middleware provides the gateway's request-interception
// layer: route guarding, rate limiting, and security headers.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"market-gateway/domain"
	"market-gateway/session"
	"market-gateway/token"
)

// Refresher exchanges a refresh token for a new token pair.
type Refresher interface {
	Refresh(ctx context.Context, role domain.Role, refreshToken string) (session.TokenPair, error)
}

// RouteGuard gates every request before it reaches a handler. Role
// rules are evaluated in order as a chain; the first rule that
// classifies the path decides the outcome, and unclassified requests
// pass through unmodified.
//
// By the time a protected request reaches its handler, it either
// carries a usable access token or it never got there: failure always
// resolves to a login redirect, never a rendered error.
type RouteGuard struct {
	rules     []domain.RoleRule
	refresher Refresher
	secure    bool
	now       func() time.Time
}

// NewRouteGuard builds a guard over the given ordered rule chain.
func NewRouteGuard(rules []domain.RoleRule, refresher Refresher, secureCookies bool) *RouteGuard {
	return &RouteGuard{
		rules:     rules,
		refresher: refresher,
		secure:    secureCookies,
		now:       time.Now,
	}
}

// Middleware returns the echo middleware enforcing the guard.
func (g *RouteGuard) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			store := session.NewStore(c, g.secure)

			for _, rule := range g.rules {
				switch rule.Classify(path) {
				case domain.ClassPublic:
					return g.handlePublic(c, next, store, rule)
				case domain.ClassProtected:
					return g.handleProtected(c, next, store, rule)
				}
			}

			return next(c)
		}
	}
}

// handlePublic bounces an already-authenticated principal away from
// the role's auth pages; everyone else passes through.
func (g *RouteGuard) handlePublic(c echo.Context, next echo.HandlerFunc, store *session.Store, rule domain.RoleRule) error {
	if access, ok := store.Get(rule.Role, session.Access); ok && !token.Expired(access, g.now()) {
		return c.Redirect(http.StatusFound, rule.HomePath)
	}
	return next(c)
}

// handleProtected enforces the protected-path state machine: a live
// access token passes, a refreshable session is refreshed in place,
// anything else redirects to the role's login. The refresh client is
// never called when no refresh token is present.
func (g *RouteGuard) handleProtected(c echo.Context, next echo.HandlerFunc, store *session.Store, rule domain.RoleRule) error {
	if access, ok := store.Get(rule.Role, session.Access); ok && !token.Expired(access, g.now()) {
		return next(c)
	}

	refreshToken, ok := store.Get(rule.Role, session.Refresh)
	if !ok {
		return c.Redirect(http.StatusFound, rule.LoginPath)
	}

	pair, err := g.refresher.Refresh(c.Request().Context(), rule.Role, refreshToken)
	if err != nil {
		slog.WarnContext(c.Request().Context(), "session refresh failed",
			"role", rule.Role,
			"path", c.Request().URL.Path,
			"error", err)
		return c.Redirect(http.StatusFound, rule.LoginPath)
	}

	store.Set(rule.Role, pair)
	return next(c)
}
