package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/net/http2"

	"market-gateway/domain"
	"market-gateway/resilience"
	"market-gateway/session"
)

// TokenStore is the cookie-backed credential store one request carries.
type TokenStore interface {
	Get(role domain.Role, kind session.Kind) (string, bool)
	Set(role domain.Role, pair session.TokenPair)
	Clear(role domain.Role)
}

// Refresher exchanges a refresh token for a new token pair.
type Refresher interface {
	Refresh(ctx context.Context, role domain.Role, refreshToken string) (session.TokenPair, error)
}

// Result is a backend response surfaced to handlers.
type Result struct {
	Status int
	Header http.Header
	Body   []byte
}

// PublicRequest describes an unauthenticated backend call. It never
// carries credentials and its GET responses may be served from cache.
type PublicRequest struct {
	Path   string
	Method string // defaults to GET
	Header http.Header
	Body   []byte
	// Revalidate bypasses the cache and repopulates it from the
	// backend response.
	Revalidate bool
}

// AuthRequest describes a credentialed backend call for one role.
type AuthRequest struct {
	Role   domain.Role
	Path   string
	Method string // defaults to GET
	Header http.Header
	Body   []byte
	// DisableAuthRedirect makes terminal auth failures surface as
	// ErrAuthExpired instead of a RedirectError, for callers that want
	// to render an inline error rather than navigate.
	DisableAuthRedirect bool
}

// BackendClientConfig holds construction parameters for BackendClient.
type BackendClientConfig struct {
	BaseURL     string
	Timeout     time.Duration
	Retries     int           // transient-failure retries on top of the first attempt
	BackoffStep time.Duration // linear backoff unit, defaults to 300ms
	CacheSize   int
	CacheTTL    time.Duration
	Breaker     resilience.Config
	Rules       []domain.RoleRule
	// Transport overrides the HTTP transport. Nil uses the default;
	// NewH2CTransport enables HTTP/2 cleartext against in-cluster
	// backends.
	Transport http.RoundTripper
}

type cachedResponse struct {
	status int
	header http.Header
	body   []byte
}

// successBody is returned for 2xx responses whose body is empty or not
// JSON, so handlers always have a well-formed payload to forward.
var successBody = []byte(`{"success":true}`)

// BackendClient is the dual-mode fetch client for the marketplace
// backend. Public and Authenticated are deliberately separate entry
// points: whether a call carries credentials is decided by the call
// site's type, not a runtime flag.
type BackendClient struct {
	baseURL     string
	httpClient  *http.Client
	refresher   Refresher
	cache       *expirable.LRU[string, cachedResponse]
	breaker     *resilience.CircuitBreaker
	rules       []domain.RoleRule
	retries     int
	backoffStep time.Duration
}

// NewBackendClient creates a backend client.
func NewBackendClient(cfg BackendClientConfig, refresher Refresher) *BackendClient {
	if cfg.BackoffStep <= 0 {
		cfg.BackoffStep = 300 * time.Millisecond
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	rules := cfg.Rules
	if rules == nil {
		rules = domain.DefaultRules()
	}

	return &BackendClient{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Transport: cfg.Transport,
			Timeout:   cfg.Timeout,
		},
		refresher:   refresher,
		cache:       expirable.NewLRU[string, cachedResponse](cfg.CacheSize, nil, cfg.CacheTTL),
		breaker:     resilience.NewCircuitBreaker(cfg.Breaker),
		rules:       rules,
		retries:     cfg.Retries,
		backoffStep: cfg.BackoffStep,
	}
}

// NewH2CTransport returns an HTTP/2 cleartext transport for backends
// that speak h2c behind the cluster boundary.
func NewH2CTransport() http.RoundTripper {
	return &http2.Transport{
		AllowHTTP: true,
		DialTLSContext: func(ctx context.Context, network, addr string, cfg *tls.Config) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
	}
}

// Public performs an unauthenticated backend call. Cookies are never
// read and Authorization is never attached, whatever the response
// status. GET responses are cached until TTL unless Revalidate is set.
func (c *BackendClient) Public(ctx context.Context, req PublicRequest) (*Result, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	cacheable := method == http.MethodGet
	key := method + " " + req.Path
	if cacheable && !req.Revalidate {
		if entry, ok := c.cache.Get(key); ok {
			return &Result{Status: entry.status, Header: entry.header, Body: entry.body}, nil
		}
	}

	res, err := c.send(ctx, method, req.Path, req.Header, req.Body, "")
	if err != nil {
		return nil, err
	}
	if !is2xx(res.Status) {
		return nil, &domain.RequestError{Status: res.Status, Message: errorMessage(res.Body, res.Status)}
	}

	res.Body = normalizeBody(res.Body)
	if cacheable {
		c.cache.Add(key, cachedResponse{status: res.Status, header: res.Header, body: res.Body})
	}
	return res, nil
}

// Authenticated performs a credentialed backend call for one role. A
// 401 triggers the refresh-and-retry protocol: refresh the session,
// persist the new pair onto the response cookies, and retry the
// original request exactly once. Terminal failure clears the role's
// cookies and resolves to a login redirect (or ErrAuthExpired when the
// caller opted out). Responses are never cached.
func (c *BackendClient) Authenticated(ctx context.Context, store TokenStore, req AuthRequest) (*Result, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	access, _ := store.Get(req.Role, session.Access)

	res, err := c.send(ctx, method, req.Path, req.Header, req.Body, access)
	if err != nil {
		return nil, err
	}
	if res.Status == http.StatusUnauthorized {
		return c.recoverUnauthorized(ctx, store, req, method, errorMessage(res.Body, res.Status))
	}
	if !is2xx(res.Status) {
		return nil, &domain.RequestError{Status: res.Status, Message: errorMessage(res.Body, res.Status)}
	}

	res.Body = normalizeBody(res.Body)
	return res, nil
}

// recoverUnauthorized runs the refresh-and-retry protocol after a 401.
// The retry happens at most once; a second 401 is terminal. The retry
// bypasses the transient-retry loop on purpose: by this point the
// backend is demonstrably reachable.
func (c *BackendClient) recoverUnauthorized(ctx context.Context, store TokenStore, req AuthRequest, method, origMsg string) (*Result, error) {
	refreshToken, ok := store.Get(req.Role, session.Refresh)
	if !ok {
		return nil, c.authFailure(store, req, origMsg)
	}

	pair, err := c.refresher.Refresh(ctx, req.Role, refreshToken)
	if err != nil {
		return nil, c.authFailure(store, req, origMsg)
	}
	store.Set(req.Role, pair)

	res, err := c.roundTrip(ctx, method, req.Path, req.Header, req.Body, pair.AccessToken)
	if err != nil {
		return nil, &domain.NetworkError{Cause: err}
	}
	if res.Status == http.StatusUnauthorized {
		return nil, c.authFailure(store, req, origMsg)
	}
	if !is2xx(res.Status) {
		return nil, &domain.RequestError{Status: res.Status, Message: errorMessage(res.Body, res.Status)}
	}

	res.Body = normalizeBody(res.Body)
	return res, nil
}

// authFailure clears the role's session and resolves to either a
// redirect signal or a structured failure, never both.
func (c *BackendClient) authFailure(store TokenStore, req AuthRequest, msg string) error {
	store.Clear(req.Role)

	if req.DisableAuthRedirect {
		return fmt.Errorf("%w: %s", domain.ErrAuthExpired, msg)
	}

	rule, ok := domain.RuleFor(c.rules, req.Role)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrAuthExpired, msg)
	}
	return &domain.RedirectError{Location: rule.LoginPath}
}

// send performs one backend call with bounded linear-backoff retries
// for transport failures. HTTP error statuses are not retried here;
// 401 handling belongs to Authenticated.
func (c *BackendClient) send(ctx context.Context, method, path string, header http.Header, body []byte, bearer string) (*Result, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, &domain.NetworkError{Cause: ctx.Err()}
			case <-time.After(c.backoffStep * time.Duration(attempt)):
			}
		}

		res, err := c.roundTrip(ctx, method, path, header, body, bearer)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if errors.Is(err, resilience.ErrCircuitOpen) {
			// The circuit will not close within our backoff window.
			break
		}
	}

	if errors.Is(lastErr, resilience.ErrCircuitOpen) {
		return nil, &domain.NetworkError{Cause: domain.ErrBackendUnavailable}
	}
	return nil, &domain.NetworkError{Cause: lastErr}
}

// roundTrip performs exactly one HTTP exchange through the circuit
// breaker and drains the response.
func (c *BackendClient) roundTrip(ctx context.Context, method, path string, header http.Header, body []byte, bearer string) (*Result, error) {
	return resilience.Execute(c.breaker, func() (*Result, error) {
		var reader io.Reader
		if len(body) > 0 {
			reader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), reader)
		if err != nil {
			return nil, err
		}

		copyForwardHeaders(header, req.Header)
		req.Header.Set("Cache-Control", "no-store")
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		return &Result{Status: resp.StatusCode, Header: resp.Header.Clone(), Body: b}, nil
	})
}

func (c *BackendClient) buildURL(path string) string {
	if strings.HasPrefix(path, "/") {
		return c.baseURL + path
	}
	return c.baseURL + "/" + path
}

// copyForwardHeaders copies caller headers onto the backend request,
// excluding credentials and hop-by-hop headers. Cookies stay at the
// edge; the backend sees only the bearer token.
func copyForwardHeaders(src, dst http.Header) {
	skip := map[string]bool{
		"Authorization":   true,
		"Cookie":          true,
		"Connection":      true,
		"Host":            true,
		"Accept-Encoding": true,
	}
	for name, values := range src {
		if skip[http.CanonicalHeaderKey(name)] {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}

func is2xx(status int) bool {
	return status >= 200 && status < 300
}

// errorMessage extracts a human-readable message from an error body,
// falling back to a generic status-coded message.
func errorMessage(body []byte, status int) string {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	return fmt.Sprintf("request failed with status %d", status)
}

// normalizeBody replaces empty or non-JSON success bodies with a
// generic success payload.
func normalizeBody(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return successBody
	}
	return body
}
