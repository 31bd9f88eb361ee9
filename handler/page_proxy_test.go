package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageProxyHandler(t *testing.T) {
	t.Run("forwards navigations to the frontend origin", func(t *testing.T) {
		var gotPath, gotHost string
		frontend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotHost = r.Host
			w.Write([]byte("<html>dashboard</html>"))
		}))
		defer frontend.Close()

		h, err := NewPageProxyHandler(frontend.URL)
		require.NoError(t, err)

		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/vendor/dashboard", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		require.NoError(t, h.Handle(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "/vendor/dashboard", gotPath)
		assert.Equal(t, frontend.Listener.Addr().String(), gotHost)
		assert.Contains(t, rec.Body.String(), "dashboard")
	})

	t.Run("unreachable frontend is a JSON 502", func(t *testing.T) {
		frontend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		frontend.Close()

		h, err := NewPageProxyHandler(frontend.URL)
		require.NoError(t, err)

		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		require.NoError(t, h.Handle(c))
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.JSONEq(t, `{"error":"frontend unavailable"}`, rec.Body.String())
	})

	t.Run("rejects an unparseable frontend URL", func(t *testing.T) {
		_, err := NewPageProxyHandler("://bad")
		assert.Error(t, err)
	})
}
