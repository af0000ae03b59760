package upstream

import (
	"fmt"
	"net/http"
	"strings"
)

const maxRedirects = 5

// SameHostRedirects is an http.Client CheckRedirect that only follows https hops on the host of the
// original request. Any other hop hands the redirect response itself back to the caller.
func SameHostRedirects(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}

	original := via[0].URL
	if req.URL.Scheme != "https" || req.URL.User != nil || !strings.EqualFold(req.URL.Host, original.Host) {
		return http.ErrUseLastResponse
	}

	return nil
}
