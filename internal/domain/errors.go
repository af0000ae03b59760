package domain

import "errors"

var (
	// The upstream failed in a way believed to be intermittent (timeouts, 429/502/503/504).
	// The call may be retried later.
	ErrTemporarilyUnavailable = errors.New("temporarily unavailable")
	ErrNotFound               = errors.New("not found")
	ErrInvalidQuery           = errors.New("invalid query")
	// The upstream rejected the request or returned something we could not understand.
	// Retrying will not help.
	ErrUpstreamFailure = errors.New("upstream failure")
)
