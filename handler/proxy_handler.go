// Package handler provides the gateway's HTTP surface.
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"market-gateway/client"
	"market-gateway/domain"
	"market-gateway/session"
)

// BackendFetcher is the dual-mode fetch client the proxy delegates to.
type BackendFetcher interface {
	Public(ctx context.Context, req client.PublicRequest) (*client.Result, error)
	Authenticated(ctx context.Context, store client.TokenStore, req client.AuthRequest) (*client.Result, error)
}

// ProxyHandler exposes the backend fetch client over HTTP:
// /api/public/* maps to the public mode, /api/{role}/* to the
// authenticated mode for that role.
type ProxyHandler struct {
	backend       BackendFetcher
	secureCookies bool
}

// NewProxyHandler creates a proxy handler over the backend client.
func NewProxyHandler(backend BackendFetcher, secureCookies bool) *ProxyHandler {
	return &ProxyHandler{
		backend:       backend,
		secureCookies: secureCookies,
	}
}

// HandlePublic proxies an unauthenticated request to the backend.
func (h *ProxyHandler) HandlePublic(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
	}

	res, err := h.backend.Public(c.Request().Context(), client.PublicRequest{
		Path:       backendPath(c),
		Method:     c.Request().Method,
		Header:     outboundHeader(c),
		Body:       body,
		Revalidate: c.Request().Header.Get("Cache-Control") == "no-cache",
	})
	if err != nil {
		return writeFetchError(c, err)
	}

	return c.JSONBlob(res.Status, res.Body)
}

// HandleAuthenticated proxies a credentialed request for the role in
// the URL. The caller may set "X-Auth-Redirect: none" to receive a
// structured 401 instead of a login redirect.
func (h *ProxyHandler) HandleAuthenticated(c echo.Context) error {
	role, ok := domain.ParseRole(c.Param("role"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown role")
	}

	body, err := readBody(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
	}

	store := session.NewStore(c, h.secureCookies)
	res, err := h.backend.Authenticated(c.Request().Context(), store, client.AuthRequest{
		Role:                role,
		Path:                backendPath(c),
		Method:              c.Request().Method,
		Header:              outboundHeader(c),
		Body:                body,
		DisableAuthRedirect: c.Request().Header.Get("X-Auth-Redirect") == "none",
	})
	if err != nil {
		return writeFetchError(c, err)
	}

	c.Response().Header().Set("Cache-Control", "no-store")
	return c.JSONBlob(res.Status, res.Body)
}

// backendPath rebuilds the backend-relative path from the wildcard
// segment, preserving the query string.
func backendPath(c echo.Context) string {
	path := "/" + c.Param("*")
	if q := c.Request().URL.RawQuery; q != "" {
		path += "?" + q
	}
	return path
}

// outboundHeader selects the inbound headers forwarded to the backend
// and guarantees a request ID for correlation.
func outboundHeader(c echo.Context) http.Header {
	h := make(http.Header)
	for _, name := range []string{"Content-Type", "Accept", "Accept-Language", "X-Request-Id"} {
		if v := c.Request().Header.Get(name); v != "" {
			h.Set(name, v)
		}
	}
	if h.Get("X-Request-Id") == "" {
		h.Set("X-Request-Id", uuid.NewString())
	}
	return h
}

func readBody(c echo.Context) ([]byte, error) {
	if c.Request().Body == nil {
		return nil, nil
	}
	defer c.Request().Body.Close()
	return io.ReadAll(c.Request().Body)
}

// writeFetchError maps the fetch failure taxonomy onto HTTP responses.
func writeFetchError(c echo.Context, err error) error {
	var redirect *domain.RedirectError
	if errors.As(err, &redirect) {
		return c.Redirect(http.StatusSeeOther, redirect.Location)
	}

	var reqErr *domain.RequestError
	if errors.As(err, &reqErr) {
		return c.JSON(reqErr.Status, map[string]string{"error": reqErr.Message})
	}

	if errors.Is(err, domain.ErrAuthExpired) {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "authentication expired"})
	}

	var netErr *domain.NetworkError
	if errors.As(err, &netErr) {
		slog.ErrorContext(c.Request().Context(), "backend request failed", "error", err)
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "backend unavailable"})
	}

	slog.ErrorContext(c.Request().Context(), "unexpected proxy error", "error", err)
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
}
