package upstream

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	backoffStep    = 650 * time.Millisecond
	maxBackoff     = 5 * time.Second
	MaxJitter      = 250 * time.Millisecond
	maxRetryAfter  = 30 * time.Second
	defaultTimeout = 12 * time.Second
)

type RetryPolicy struct {
	// Total number of attempts, including the first
	MaxAttempts int
	// Bounds a single attempt, including reading the body
	AttemptTimeout time.Duration
}

func (p RetryPolicy) maxAttempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p RetryPolicy) attemptTimeout() time.Duration {
	if p.AttemptTimeout <= 0 {
		return defaultTimeout
	}
	return p.AttemptTimeout
}

func IsRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// ParseRetryAfter reads a Retry-After header given as delta-seconds or an http date.
// Returns 0 when absent or unparseable.
func ParseRetryAfter(header string, now time.Time) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(header); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}

	at, err := http.ParseTime(header)
	if err != nil {
		return 0
	}
	if wait := at.Sub(now); wait > 0 {
		return wait
	}
	return 0
}

// BackoffDelay computes the wait before the attempt following attempt (zero-indexed).
// retryAfter is a floor on the result.
func BackoffDelay(attempt int, retryAfter time.Duration, jitter time.Duration) time.Duration {
	backoff := min(maxBackoff, backoffStep*time.Duration(attempt+1)) + jitter
	return max(retryAfter, backoff)
}
