package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"market-gateway/domain"
	"market-gateway/session"
)

// MockRefresher is a mock implementation of Refresher.
type MockRefresher struct {
	mock.Mock
}

func (m *MockRefresher) Refresh(ctx context.Context, role domain.Role, refreshToken string) (session.TokenPair, error) {
	args := m.Called(ctx, role, refreshToken)
	return args.Get(0).(session.TokenPair), args.Error(1)
}

func guardJWT(t *testing.T, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(expiresAt)}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

type guardResult struct {
	rec         *httptest.ResponseRecorder
	nextReached bool
}

func runGuard(t *testing.T, refresher Refresher, path string, cookies ...*http.Cookie) guardResult {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	result := guardResult{rec: rec}
	next := func(c echo.Context) error {
		result.nextReached = true
		return c.NoContent(http.StatusOK)
	}

	guard := NewRouteGuard(domain.DefaultRules(), refresher, false)
	err := guard.Middleware()(next)(c)
	require.NoError(t, err)
	return result
}

func TestRouteGuard_Protected(t *testing.T) {
	t.Run("valid access token passes through", func(t *testing.T) {
		refresher := new(MockRefresher)

		res := runGuard(t, refresher, "/vendor/dashboard",
			&http.Cookie{Name: "accessToken_vendor", Value: "at-live"})

		assert.True(t, res.nextReached)
		refresher.AssertNotCalled(t, "Refresh")
	})

	t.Run("missing access token with refresh token recovers in place", func(t *testing.T) {
		refresher := new(MockRefresher)
		refresher.On("Refresh", mock.Anything, domain.RoleAdmin, "rt-123").
			Return(session.TokenPair{AccessToken: "at-new", RefreshToken: "rt-new"}, nil)

		res := runGuard(t, refresher, "/admin/dashboard",
			&http.Cookie{Name: "refreshToken_admin", Value: "rt-123"})

		assert.True(t, res.nextReached)
		refresher.AssertExpectations(t)

		cookies := make(map[string]*http.Cookie)
		for _, c := range res.rec.Result().Cookies() {
			cookies[c.Name] = c
		}
		access := cookies["accessToken_admin"]
		require.NotNil(t, access)
		assert.Equal(t, "at-new", access.Value)
		assert.Equal(t, session.AccessTokenMaxAge, access.MaxAge)
		assert.True(t, access.HttpOnly)

		refresh := cookies["refreshToken_admin"]
		require.NotNil(t, refresh)
		assert.Equal(t, "rt-new", refresh.Value)
		assert.Equal(t, session.RefreshTokenMaxAge, refresh.MaxAge)
	})

	t.Run("expired JWT access token is treated as absent", func(t *testing.T) {
		refresher := new(MockRefresher)
		refresher.On("Refresh", mock.Anything, domain.RoleVendor, "rt-55").
			Return(session.TokenPair{AccessToken: "at-new", RefreshToken: "rt-new"}, nil)

		res := runGuard(t, refresher, "/vendor/orders",
			&http.Cookie{Name: "accessToken_vendor", Value: guardJWT(t, time.Now().Add(-time.Minute))},
			&http.Cookie{Name: "refreshToken_vendor", Value: "rt-55"})

		assert.True(t, res.nextReached)
		refresher.AssertExpectations(t)
	})

	t.Run("failed refresh redirects to login", func(t *testing.T) {
		refresher := new(MockRefresher)
		refresher.On("Refresh", mock.Anything, domain.RoleVendor, "rt-revoked").
			Return(session.TokenPair{}, errors.New("refresh rejected with status 401"))

		res := runGuard(t, refresher, "/vendor/dashboard",
			&http.Cookie{Name: "refreshToken_vendor", Value: "rt-revoked"})

		assert.False(t, res.nextReached)
		assert.Equal(t, http.StatusFound, res.rec.Code)
		assert.Equal(t, "/auth/vendor/login", res.rec.Header().Get(echo.HeaderLocation))
	})

	t.Run("no tokens at all redirects without calling the refresher", func(t *testing.T) {
		refresher := new(MockRefresher)

		res := runGuard(t, refresher, "/admin/complaints")

		assert.False(t, res.nextReached)
		assert.Equal(t, http.StatusFound, res.rec.Code)
		assert.Equal(t, "/auth/admin/login", res.rec.Header().Get(echo.HeaderLocation))
		refresher.AssertNotCalled(t, "Refresh")
	})

	t.Run("another role's tokens do not satisfy the guard", func(t *testing.T) {
		refresher := new(MockRefresher)

		res := runGuard(t, refresher, "/admin/dashboard",
			&http.Cookie{Name: "accessToken_user", Value: "at-user"},
			&http.Cookie{Name: "refreshToken_user", Value: "rt-user"})

		assert.False(t, res.nextReached)
		assert.Equal(t, "/auth/admin/login", res.rec.Header().Get(echo.HeaderLocation))
		refresher.AssertNotCalled(t, "Refresh")
	})
}

func TestRouteGuard_Public(t *testing.T) {
	t.Run("authenticated principal is bounced to the role home", func(t *testing.T) {
		refresher := new(MockRefresher)

		res := runGuard(t, refresher, "/auth/vendor/login",
			&http.Cookie{Name: "accessToken_vendor", Value: "at-live"})

		assert.False(t, res.nextReached)
		assert.Equal(t, http.StatusFound, res.rec.Code)
		assert.Equal(t, "/vendor/dashboard", res.rec.Header().Get(echo.HeaderLocation))
	})

	t.Run("anonymous visitor reaches the auth page", func(t *testing.T) {
		res := runGuard(t, new(MockRefresher), "/auth/login")

		assert.True(t, res.nextReached)
	})

	t.Run("expired access token does not bounce", func(t *testing.T) {
		res := runGuard(t, new(MockRefresher), "/auth/login",
			&http.Cookie{Name: "accessToken_user", Value: guardJWT(t, time.Now().Add(-time.Minute))})

		assert.True(t, res.nextReached)
	})

	t.Run("refresh token alone never bounces and never refreshes", func(t *testing.T) {
		refresher := new(MockRefresher)

		res := runGuard(t, refresher, "/auth/login",
			&http.Cookie{Name: "refreshToken_user", Value: "rt-1"})

		assert.True(t, res.nextReached)
		refresher.AssertNotCalled(t, "Refresh")
	})
}

func TestRouteGuard_Unclassified(t *testing.T) {
	t.Run("unmatched paths pass through untouched", func(t *testing.T) {
		refresher := new(MockRefresher)

		res := runGuard(t, refresher, "/pricing")

		assert.True(t, res.nextReached)
		assert.Empty(t, res.rec.Result().Cookies())
		refresher.AssertNotCalled(t, "Refresh")
	})

	t.Run("sibling of a protected prefix is not guarded", func(t *testing.T) {
		res := runGuard(t, new(MockRefresher), "/vendors/gallery")

		assert.True(t, res.nextReached)
	})
}
