package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"market-gateway/domain"
	"market-gateway/session"
	"market-gateway/token"
)

// SessionHandler reports the session state of one role so client code
// can render auth-dependent UI without a backend round trip.
type SessionHandler struct {
	secureCookies bool
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(secureCookies bool) *SessionHandler {
	return &SessionHandler{secureCookies: secureCookies}
}

// SessionResponse is the JSON shape returned for a role's session.
type SessionResponse struct {
	Role          domain.Role `json:"role"`
	Authenticated bool        `json:"authenticated"`
	Refreshable   bool        `json:"refreshable"`
	ExpiresAt     *time.Time  `json:"expiresAt,omitempty"`
}

// Handle processes GET /gateway/session/:role.
func (h *SessionHandler) Handle(c echo.Context) error {
	role, ok := domain.ParseRole(c.Param("role"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown role")
	}

	store := session.NewStore(c, h.secureCookies)
	resp := SessionResponse{Role: role}

	if access, found := store.Get(role, session.Access); found && !token.Expired(access, time.Now()) {
		resp.Authenticated = true
		if exp, hasExp := token.ExpiresAt(access); hasExp {
			resp.ExpiresAt = &exp
		}
	}
	if _, found := store.Get(role, session.Refresh); found {
		resp.Refreshable = true
	}

	c.Response().Header().Set("Cache-Control", "no-store")
	return c.JSON(http.StatusOK, resp)
}
