package session

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-gateway/domain"
)

func newTestContext(cookies ...*http.Cookie) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func responseCookies(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := make(map[string]*http.Cookie)
	for _, c := range rec.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func TestStore_Get(t *testing.T) {
	t.Run("returns token when cookie present", func(t *testing.T) {
		c, _ := newTestContext(&http.Cookie{Name: "accessToken_vendor", Value: "at-1"})
		store := NewStore(c, false)

		got, ok := store.Get(domain.RoleVendor, Access)
		assert.True(t, ok)
		assert.Equal(t, "at-1", got)
	})

	t.Run("absent cookie reads as absent", func(t *testing.T) {
		c, _ := newTestContext()
		store := NewStore(c, false)

		_, ok := store.Get(domain.RoleVendor, Access)
		assert.False(t, ok)
	})

	t.Run("empty cookie reads as absent", func(t *testing.T) {
		c, _ := newTestContext(&http.Cookie{Name: "refreshToken_user", Value: ""})
		store := NewStore(c, false)

		_, ok := store.Get(domain.RoleUser, Refresh)
		assert.False(t, ok)
	})

	t.Run("roles never read each other's cookies", func(t *testing.T) {
		c, _ := newTestContext(&http.Cookie{Name: "accessToken_user", Value: "at-user"})
		store := NewStore(c, false)

		_, ok := store.Get(domain.RoleVendor, Access)
		assert.False(t, ok)
		_, ok = store.Get(domain.RoleAdmin, Access)
		assert.False(t, ok)
	})
}

func TestStore_Set(t *testing.T) {
	t.Run("writes both cookies with correct attributes", func(t *testing.T) {
		c, rec := newTestContext()
		store := NewStore(c, false)

		store.Set(domain.RoleAdmin, TokenPair{AccessToken: "at-new", RefreshToken: "rt-new"})

		cookies := responseCookies(rec)
		access := cookies["accessToken_admin"]
		require.NotNil(t, access)
		assert.Equal(t, "at-new", access.Value)
		assert.Equal(t, AccessTokenMaxAge, access.MaxAge)
		assert.True(t, access.HttpOnly)
		assert.Equal(t, "/", access.Path)
		assert.Equal(t, http.SameSiteLaxMode, access.SameSite)
		assert.False(t, access.Secure)

		refresh := cookies["refreshToken_admin"]
		require.NotNil(t, refresh)
		assert.Equal(t, "rt-new", refresh.Value)
		assert.Equal(t, RefreshTokenMaxAge, refresh.MaxAge)
		assert.True(t, refresh.HttpOnly)
	})

	t.Run("secure store marks cookies secure", func(t *testing.T) {
		c, rec := newTestContext()
		store := NewStore(c, true)

		store.Set(domain.RoleUser, TokenPair{AccessToken: "a", RefreshToken: "r"})

		cookies := responseCookies(rec)
		assert.True(t, cookies["accessToken_user"].Secure)
		assert.True(t, cookies["refreshToken_user"].Secure)
	})

	t.Run("setting one role leaves others untouched", func(t *testing.T) {
		c, rec := newTestContext()
		store := NewStore(c, false)

		store.Set(domain.RoleVendor, TokenPair{AccessToken: "a", RefreshToken: "r"})

		cookies := responseCookies(rec)
		assert.Len(t, cookies, 2)
		assert.Contains(t, cookies, "accessToken_vendor")
		assert.Contains(t, cookies, "refreshToken_vendor")
		assert.NotContains(t, cookies, "accessToken_user")
		assert.NotContains(t, cookies, "accessToken_admin")
	})
}

func TestStore_Clear(t *testing.T) {
	c, rec := newTestContext(
		&http.Cookie{Name: "accessToken_vendor", Value: "at"},
		&http.Cookie{Name: "refreshToken_vendor", Value: "rt"},
	)
	store := NewStore(c, false)

	store.Clear(domain.RoleVendor)

	cookies := responseCookies(rec)
	require.Contains(t, cookies, "accessToken_vendor")
	require.Contains(t, cookies, "refreshToken_vendor")
	assert.Equal(t, -1, cookies["accessToken_vendor"].MaxAge)
	assert.Equal(t, -1, cookies["refreshToken_vendor"].MaxAge)
	assert.Empty(t, cookies["accessToken_vendor"].Value)
	assert.NotContains(t, cookies, "accessToken_user")
	assert.NotContains(t, cookies, "accessToken_admin")
}
