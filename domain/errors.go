package domain

import (
	"errors"
	"fmt"
)

// ErrAuthExpired marks a terminal authentication failure: tokens have
// already been cleared and no refresh is possible. Callers that opted
// out of the automatic redirect receive this instead.
var ErrAuthExpired = errors.New("authentication expired")

// ErrBackendUnavailable is returned when the backend cannot be reached
// and the circuit breaker is refusing calls.
var ErrBackendUnavailable = errors.New("backend unavailable")

// RequestError is a non-2xx backend response, with the human-readable
// message extracted from the response body when one was present.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Message)
}

// NetworkError is a transport-level failure that survived the bounded
// retry policy.
type NetworkError struct {
	Cause error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Cause)
}

func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// RedirectError is the internal redirect signal produced by the
// authenticated fetch path. It must propagate immediately: retry loops
// never catch it, and the HTTP layer converts it into a real redirect.
type RedirectError struct {
	Location string
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("redirect to %s", e.Location)
}
