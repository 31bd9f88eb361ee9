package handler

import (
	"io"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
)

// PageProxyHandler forwards page navigations that survived the route
// guard to the frontend rendering origin. By this point a protected
// page either carries a live access token or was already redirected,
// so the frontend never sees an expired-but-refreshable session.
type PageProxyHandler struct {
	proxy *httputil.ReverseProxy
}

// NewPageProxyHandler creates a reverse proxy to the frontend origin.
func NewPageProxyHandler(frontendURL string) (*PageProxyHandler, error) {
	target, err := url.Parse(frontendURL)
	if err != nil {
		return nil, err
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.Transport = &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        256,
		MaxIdleConnsPerHost: 256,
		IdleConnTimeout:     90 * time.Second,
	}

	director := proxy.Director
	proxy.Director = func(req *http.Request) {
		director(req)
		req.Host = target.Host
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, `{"error":"frontend unavailable"}`)
	}

	return &PageProxyHandler{proxy: proxy}, nil
}

// Handle forwards the request to the frontend.
func (h *PageProxyHandler) Handle(c echo.Context) error {
	h.proxy.ServeHTTP(c.Response(), c.Request())
	return nil
}
