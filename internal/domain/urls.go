package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseAllowedURL accepts only https urls on exactly the allowed host, without credentials.
// The returned url has a lower-case host and no fragment.
func ParseAllowedURL(rawURL string, allowedHost string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid url", ErrInvalidQuery)
	}
	if parsed.Scheme != "https" || parsed.User != nil || !strings.EqualFold(parsed.Host, allowedHost) {
		return nil, fmt.Errorf("%w: url must be https://%s/...", ErrInvalidQuery, allowedHost)
	}

	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.RawFragment = ""
	return parsed, nil
}
