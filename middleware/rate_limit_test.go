package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func doRateLimited(rl *RateLimiter, ip string) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/vendors", nil)
	req.RemoteAddr = ip + ":1234"
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := rl.Middleware()(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	return rec, handler(c)
}

func TestRateLimiter(t *testing.T) {
	t.Run("allows requests within the burst", func(t *testing.T) {
		rl := NewRateLimiter(rate.Limit(1), 3)

		for i := 0; i < 3; i++ {
			rec, err := doRateLimited(rl, "10.0.0.1")
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, rec.Code)
		}
	})

	t.Run("rejects requests over the burst with Retry-After", func(t *testing.T) {
		rl := NewRateLimiter(rate.Limit(1), 2)

		for i := 0; i < 2; i++ {
			_, err := doRateLimited(rl, "10.0.0.2")
			require.NoError(t, err)
		}

		rec, err := doRateLimited(rl, "10.0.0.2")
		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusTooManyRequests, httpErr.Code)
		assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	})

	t.Run("limits are tracked per IP", func(t *testing.T) {
		rl := NewRateLimiter(rate.Limit(1), 1)

		_, err := doRateLimited(rl, "10.0.0.3")
		require.NoError(t, err)
		_, err = doRateLimited(rl, "10.0.0.3")
		require.Error(t, err)

		rec, err := doRateLimited(rl, "10.0.0.4")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
