package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"market-gateway/domain"
	"market-gateway/session"
)

// LogoutHandler destroys one role's session. Only that role's cookies
// are deleted; a browser holding user and vendor sessions at once
// keeps the other intact.
type LogoutHandler struct {
	rules         []domain.RoleRule
	secureCookies bool
}

// NewLogoutHandler creates a logout handler.
func NewLogoutHandler(rules []domain.RoleRule, secureCookies bool) *LogoutHandler {
	return &LogoutHandler{rules: rules, secureCookies: secureCookies}
}

// Handle processes POST /gateway/logout/:role.
func (h *LogoutHandler) Handle(c echo.Context) error {
	role, ok := domain.ParseRole(c.Param("role"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown role")
	}

	store := session.NewStore(c, h.secureCookies)
	store.Clear(role)

	rule, ok := domain.RuleFor(h.rules, role)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "role has no route rule")
	}
	return c.Redirect(http.StatusSeeOther, rule.LoginPath)
}
