package ports

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// DomainSuffixes matches browser origins against a list of allowed registrable domains
type DomainSuffixes struct {
	suffixes []string
}

func NewDomainSuffixes(suffixes ...string) (*DomainSuffixes, error) {
	normalized := make([]string, 0, len(suffixes))
	for _, suffix := range suffixes {
		if strings.HasPrefix(suffix, ".") {
			return nil, fmt.Errorf("domain suffix %s should not start with a dot", suffix)
		}
		if strings.Contains(suffix, "://") {
			return nil, fmt.Errorf("domain suffix %s should not contain a scheme", suffix)
		}
		if strings.ContainsAny(suffix, "/:") {
			return nil, fmt.Errorf("domain suffix %s should be a bare host", suffix)
		}
		normalized = append(normalized, strings.ToLower(suffix))
	}
	return &DomainSuffixes{
		suffixes: normalized,
	}, nil
}

func (suffixes *DomainSuffixes) AnyMatch(origin string) bool {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" || parsed.User != nil {
		return false
	}
	if parsed.Path != "" || parsed.RawQuery != "" || parsed.Fragment != "" {
		return false
	}

	host := strings.ToLower(parsed.Hostname())
	for _, suffix := range suffixes.suffixes {
		if originMatchesSuffix(parsed.Scheme, host, suffix) {
			return true
		}
	}
	return false
}

func originMatchesSuffix(scheme string, host string, suffix string) bool {
	// Local frontends are served over plain http on arbitrary ports
	if suffix == "localhost" && host == "localhost" {
		return scheme == "http" || scheme == "https"
	}

	if scheme != "https" {
		return false
	}

	return host == suffix || strings.HasSuffix(host, "."+suffix)
}

func BuildCORSMiddleware(allowedSuffixes *DomainSuffixes) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if allowedSuffixes.AnyMatch(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Expose-Headers", cacheStatusHeader)
				w.Header().Add("Vary", "Origin")

				if r.Method == http.MethodOptions {
					w.Header().Set("Access-Control-Allow-Methods", "GET")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-Id")
					w.Header().Set("Access-Control-Max-Age", "3600")
					w.WriteHeader(http.StatusNoContent)
					return
				}
			}

			next(w, r)
		}
	}
}

// BuildCORSHandler answers preflight requests for a route
func BuildCORSHandler(allowedSuffixes *DomainSuffixes) http.HandlerFunc {
	return BuildCORSMiddleware(allowedSuffixes)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}
