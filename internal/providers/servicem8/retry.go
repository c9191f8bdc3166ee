package servicem8

import (
	"context"
	"errors"
	"net/http"
	"time"

	"jobnotify/internal/oauth"
)

// ShouldRetry reports whether a send error is transient. Transport failures
// and 408/429/5xx responses are retried; other upstream answers are final,
// as is a missing OAuth authorization.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, oauth.ErrUnauthenticated) {
		return false
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return true
	}
	switch {
	case apiErr.StatusCode == http.StatusTooManyRequests, apiErr.StatusCode == http.StatusRequestTimeout:
		return true
	case apiErr.StatusCode >= 500 && apiErr.StatusCode <= 599:
		return true
	}
	return false
}

// Backoff is the wait after the given failed attempt (1-based): 2s, 4s, 8s...
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 10 {
		attempt = 10
	}
	return time.Duration(1<<attempt) * time.Second
}
