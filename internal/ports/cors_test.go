package ports_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Amund211/mediagate/internal/ports"
	"github.com/stretchr/testify/require"
)

const PROD_DOMAIN_SUFFIX = "mediagate.app"
const STAGING_DOMAIN_SUFFIX = "mediagate-web.pages.dev"

type originRule struct {
	origin  string
	allowed bool
}

func TestCORS(t *testing.T) {
	t.Parallel()
	allowedOrigins, err := ports.NewDomainSuffixes(
		PROD_DOMAIN_SUFFIX,
		STAGING_DOMAIN_SUFFIX,
	)
	require.NoError(t, err)

	cases := []originRule{
		// Prod
		{
			origin: "https://mediagate.app",

			allowed: true,
		},
		{
			origin:  "https://www.mediagate.app",
			allowed: true,
		},
		// Staging
		{
			origin:  "https://53bcd591.mediagate-web.pages.dev",
			allowed: true,
		},
		{
			origin:  "https://new-api.mediagate-web.pages.dev",
			allowed: true,
		},
		{
			origin:  "https://mediagate-web.pages.dev",
			allowed: true,
		},
		// Other pages
		{
			origin:  "example.com",
			allowed: false,
		},
		{
			origin:  "https://example.com",
			allowed: false,
		},
		{
			origin:  "https://www.example.com",
			allowed: false,
		},
		{
			origin:  "https://www.google.com",
			allowed: false,
		},
		{
			origin:  "https://myanimelist.net",
			allowed: false,
		},
		// Similar-looking domains
		{
			origin: "https://media-gate.app",

			allowed: false,
		},
		{
			origin:  "https://www.media-gate.app",
			allowed: false,
		},
		{
			origin: "https://mymediagate.app",

			allowed: false,
		},
		{
			origin:  "https://www.mymediagate.app",
			allowed: false,
		},
		{
			origin:  "https://supermediagate-web.pages.dev",
			allowed: false,
		},
		{
			origin:  "https://something.othermediagate-web.pages.dev",
			allowed: false,
		},
		// Weird cases
		{
			origin:  "",
			allowed: false,
		},
		{
			origin:  "mediagate",
			allowed: false,
		},
		{
			origin:  "gate.app",
			allowed: false,
		},
		{
			origin:  "media.gate.app",
			allowed: false,
		},
		{
			origin:  "media-gate.app",
			allowed: false,
		},
		{
			origin:  "pages.dev",
			allowed: false,
		},
		{
			origin:  "supermediagate-web.pages.dev",
			allowed: false,
		},
	}

	runCORSTest := func(t *testing.T, handler http.HandlerFunc, method string, c originRule, handlerStatusCode int, handlerBody []byte) {
		req := httptest.NewRequest(method, "https://api-url.com", nil)
		req.Header.Set("Origin", c.origin)
		w := httptest.NewRecorder()

		handler(w, req)

		resp := w.Result()

		// The handler is allowed to run when the method is not OPTIONS
		if method != "OPTIONS" {
			require.Equal(t, handlerStatusCode, resp.StatusCode)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			require.Equal(t, handlerBody, body)
		}

		// CORS
		if c.allowed {
			require.Equal(t, c.origin, resp.Header.Get("Access-Control-Allow-Origin"))
			require.Equal(t, "X-Cache-Status", resp.Header.Get("Access-Control-Expose-Headers"))

			if method == "OPTIONS" {
				require.Equal(t, "GET", resp.Header.Get("Access-Control-Allow-Methods"))
				require.Equal(t, "Content-Type, X-User-Id", resp.Header.Get("Access-Control-Allow-Headers"))
				require.Equal(t, "3600", resp.Header.Get("Access-Control-Max-Age"))
			} else {
				require.Empty(t, resp.Header.Get("Access-Control-Allow-Methods"))
				require.Empty(t, resp.Header.Get("Access-Control-Allow-Headers"))
			}
		} else {
			require.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
			require.Empty(t, resp.Header.Get("Access-Control-Allow-Methods"))
			require.Empty(t, resp.Header.Get("Access-Control-Allow-Headers"))
		}
	}

	t.Run("BuildCORSMiddleware", func(t *testing.T) {
		middleware := ports.BuildCORSMiddleware(allowedOrigins)

		handler := middleware(
			func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("Hello, world!"))
				w.WriteHeader(200)
			},
		)

		for _, c := range cases {
			t.Run(fmt.Sprintf("Origin:'%s'", c.origin), func(t *testing.T) {
				t.Parallel()
				for _, method := range []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"} {
					t.Run(method, func(t *testing.T) {
						t.Parallel()

						runCORSTest(t, handler, method, c, 200, []byte("Hello, world!"))
					})
				}
			})
		}
	})

	t.Run("BuildCORSHandler", func(t *testing.T) {
		handler := ports.BuildCORSHandler(allowedOrigins)

		for _, c := range cases {
			t.Run(fmt.Sprintf("Origin:'%s'", c.origin), func(t *testing.T) {
				t.Parallel()
				for _, method := range []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"} {
					t.Run(method, func(t *testing.T) {
						t.Parallel()

						runCORSTest(t, handler, method, c, 204, []byte{})
					})
				}
			})
		}
	})
}

func TestDomainSuffixes(t *testing.T) {
	t.Parallel()

	allowedOrigins, err := ports.NewDomainSuffixes("mediagate.app", "localhost")
	require.NoError(t, err)

	for origin, allowed := range map[string]bool{
		"https://mediagate.app":          true,
		"https://MediaGate.app":          true,
		"https://mediagate.app:8443":     true,
		"http://localhost:5173":          true,
		"https://localhost":              true,
		"http://mediagate.app":           false,
		"https://mediagate.app/path":     false,
		"https://user@mediagate.app":     false,
		"ftp://localhost":                false,
		"http://evil.localhost.attacker": false,
	} {
		require.Equal(t, allowed, allowedOrigins.AnyMatch(origin), origin)
	}

	for _, suffix := range []string{".mediagate.app", "https://mediagate.app", "mediagate.app/v1", "localhost:5173"} {
		_, err := ports.NewDomainSuffixes(suffix)
		require.Error(t, err, suffix)
	}
}
