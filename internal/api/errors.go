package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/c1advanced/c1prep/internal/domain"
)

// StatusError is a non-2xx response from the practice server.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: API error (status %d): %s", e.Op, e.StatusCode, e.Body)
}

// Is lets errors.Is match entitlement sentinels against a status.
func (e *StatusError) Is(target error) bool {
	switch target {
	case domain.ErrLimitReached:
		return e.StatusCode == http.StatusTooManyRequests
	case domain.ErrPremiumRequired:
		return e.StatusCode == http.StatusPaymentRequired
	case domain.ErrNotAuthenticated:
		return e.StatusCode == http.StatusUnauthorized
	}
	return false
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// isServerError reports whether a status should count against the
// circuit breaker.
func isServerError(code int) bool {
	return code >= http.StatusInternalServerError
}

// isRetryable reports whether a failed idempotent read may be retried.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch StatusCode(err) {
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	case 0:
		// transport failure
		return !errors.Is(err, errRateLimited)
	}
	return false
}
