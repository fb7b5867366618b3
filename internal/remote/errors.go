package remote

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// QuotaMessage is shown when the upstream API rejects a call for quota.
const QuotaMessage = "API quota reached (HTTP 429). The provider limits generations per minute; wait 1 to 2 minutes before retrying."

const excerptLen = 100

// FetchError is a non-2xx response from a remote media endpoint.
type FetchError struct {
	StatusCode int
	Body       string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("remote fetch failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for rate limiting and server errors (5xx).
// Other client errors (4xx) are considered permanent.
func (e *FetchError) IsRetryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsQuota reports whether err is an upstream rate-limit or quota rejection.
func IsQuota(err error) bool {
	if err == nil {
		return false
	}
	var fe *FetchError
	if errors.As(err, &fe) && fe.StatusCode == http.StatusTooManyRequests {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

// UserMessage turns any failure into one human-readable status line: a
// retry hint for quota errors, otherwise fallback plus a short excerpt.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	if IsQuota(err) {
		return QuotaMessage
	}
	msg := []rune(err.Error())
	if len(msg) > excerptLen {
		msg = msg[:excerptLen]
	}
	return fallback + ": " + string(msg) + "..."
}
