package upstream

import (
	"fmt"
	"net/http"

	"github.com/Amund211/mediagate/internal/domain"
)

// ErrorForStatus maps an unsuccessful upstream status to the matching domain error
func ErrorForStatus(upstreamName string, statusCode int, message string) error {
	var sentinel error
	switch {
	case statusCode == http.StatusNotFound:
		sentinel = domain.ErrNotFound
	case statusCode == http.StatusBadRequest:
		sentinel = domain.ErrInvalidQuery
	case statusCode == http.StatusTooManyRequests || statusCode >= 500:
		sentinel = domain.ErrTemporarilyUnavailable
	default:
		sentinel = domain.ErrUpstreamFailure
	}

	if message == "" {
		return fmt.Errorf("%w: %s returned status %d", sentinel, upstreamName, statusCode)
	}
	return fmt.Errorf("%w: %s returned status %d: %.200s", sentinel, upstreamName, statusCode, message)
}
