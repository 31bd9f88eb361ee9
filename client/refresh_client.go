// Package client provides the HTTP clients used to talk to the
// marketplace backend API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"market-gateway/domain"
	"market-gateway/session"
)

// refreshPath is the backend's single token-refresh endpoint.
const refreshPath = "/auth/refresh-token"

// RefreshClient exchanges a refresh token for a new token pair. It is
// pure request/response: cookie persistence is the caller's job.
type RefreshClient struct {
	endpoint   string
	httpClient *http.Client
	group      singleflight.Group
}

// NewRefreshClient creates a refresh client against the given backend
// base URL.
func NewRefreshClient(backendURL string, timeout time.Duration) *RefreshClient {
	return &RefreshClient{
		endpoint: backendURL + refreshPath,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Refresh performs a single POST to the refresh endpoint and returns
// the new token pair. Any non-2xx status, transport failure, or
// malformed body reads the same to the caller: the session cannot
// continue as authenticated.
//
// Concurrent calls for the same role and refresh token are coalesced
// behind one in-flight request, so a burst of requests arriving with
// the same expired access token produces a single upstream refresh.
func (c *RefreshClient) Refresh(ctx context.Context, role domain.Role, refreshToken string) (session.TokenPair, error) {
	if refreshToken == "" {
		return session.TokenPair{}, fmt.Errorf("refresh token cannot be empty")
	}

	key := string(role) + ":" + refreshToken
	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.refresh(ctx, refreshToken)
	})
	if err != nil {
		return session.TokenPair{}, err
	}
	return v.(session.TokenPair), nil
}

func (c *RefreshClient) refresh(ctx context.Context, refreshToken string) (session.TokenPair, error) {
	payload, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return session.TokenPair{}, fmt.Errorf("failed to encode refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return session.TokenPair{}, fmt.Errorf("failed to build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-store")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return session.TokenPair{}, fmt.Errorf("refresh call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return session.TokenPair{}, fmt.Errorf("refresh rejected with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return session.TokenPair{}, fmt.Errorf("failed to read refresh response: %w", err)
	}

	var pair session.TokenPair
	if err := json.Unmarshal(body, &pair); err != nil {
		return session.TokenPair{}, fmt.Errorf("malformed refresh response: %w", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return session.TokenPair{}, fmt.Errorf("refresh response missing tokens")
	}

	return pair, nil
}
