package ports_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/Amund211/mediagate/internal/adapters/cache"
	"github.com/Amund211/mediagate/internal/domain"
	"github.com/Amund211/mediagate/internal/ports"
	"github.com/stretchr/testify/require"
)

func TestNewsHandler(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		allowedOrigins, logger := testDeps(t)
		handler := ports.MakeNewsHandler(
			func(ctx context.Context, limit int) ([]domain.NewsItem, cache.Status, error) {
				require.Equal(t, 2, limit)
				return []domain.NewsItem{{
					ID:          "https://news.example.com/news/1",
					Title:       "Bleach Part 3 Dated",
					Link:        "https://news.example.com/news/1",
					PublishedAt: time.Date(2024, time.July, 15, 14, 0, 0, 0, time.UTC),
					Categories:  []string{"Anime"},
				}}, cache.StatusStale, nil
			},
			allowedOrigins, logger, noopMiddleware,
		)

		w := serve(t, "GET /v1/news", handler, "/v1/news?limit=2")
		require.Equal(t, http.StatusOK, w.Code)
		require.JSONEq(t, `{
			"success": true,
			"cacheStatus": "stale",
			"data": [{
				"id": "https://news.example.com/news/1",
				"title": "Bleach Part 3 Dated",
				"link": "https://news.example.com/news/1",
				"publishedAt": "2024-07-15T14:00:00Z",
				"categories": ["Anime"]
			}]
		}`, w.Body.String())
	})

	t.Run("invalid limit", func(t *testing.T) {
		t.Parallel()

		allowedOrigins, logger := testDeps(t)
		handler := ports.MakeNewsHandler(
			func(ctx context.Context, limit int) ([]domain.NewsItem, cache.Status, error) {
				return nil, "", fmt.Errorf("%w: limit too large", domain.ErrInvalidQuery)
			},
			allowedOrigins, logger, noopMiddleware,
		)

		for _, target := range []string{"/v1/news?limit=abc", "/v1/news?limit=0", "/v1/news?limit=-1"} {
			w := serve(t, "GET /v1/news", handler, target)
			require.Equal(t, http.StatusBadRequest, w.Code, target)
			require.JSONEq(t, `{"success":false,"cause":"invalid limit"}`, w.Body.String())
		}

		w := serve(t, "GET /v1/news", handler, "/v1/news?limit=1000")
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.JSONEq(t, `{"success":false,"cause":"invalid query"}`, w.Body.String())
	})
}

func TestArticleHandler(t *testing.T) {
	t.Parallel()

	allowedOrigins, logger := testDeps(t)
	handler := ports.MakeArticleHandler(
		func(ctx context.Context, articleURL string) (domain.Article, cache.Status, error) {
			if articleURL != "https://news.example.com/news/1" {
				return domain.Article{}, "", fmt.Errorf("%w: wrong host", domain.ErrInvalidQuery)
			}
			return domain.Article{
				URL:      articleURL,
				Title:    "Bleach Part 3 Dated",
				BodyHTML: "<p>October</p>",
				Images:   []string{},
			}, cache.StatusMiss, nil
		},
		allowedOrigins, logger, noopMiddleware,
	)

	w := serve(t, "GET /v1/news/article", handler, "/v1/news/article?url=https%3A%2F%2Fnews.example.com%2Fnews%2F1")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{
		"success": true,
		"cacheStatus": "miss",
		"data": {"url": "https://news.example.com/news/1", "title": "Bleach Part 3 Dated", "bodyHtml": "<p>October</p>", "images": []}
	}`, w.Body.String())

	w = serve(t, "GET /v1/news/article", handler, "/v1/news/article")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.JSONEq(t, `{"success":false,"cause":"missing url"}`, w.Body.String())

	w = serve(t, "GET /v1/news/article", handler, "/v1/news/article?url=https%3A%2F%2Fevil.example.com%2F")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImageHandler(t *testing.T) {
	t.Parallel()

	allowedOrigins, logger := testDeps(t)
	handler := ports.MakeImageHandler(
		func(ctx context.Context, imageURL string) (domain.Image, cache.Status, error) {
			switch imageURL {
			case "https://cdn.example.com/1.jpg":
				return domain.Image{ContentType: "image/jpeg", Data: []byte("jpeg bytes")}, cache.StatusFresh, nil
			case "https://cdn.example.com/huge.jpg":
				return domain.Image{}, cache.StatusMiss, fmt.Errorf("%w: body too large", domain.ErrUpstreamFailure)
			default:
				return domain.Image{}, "", fmt.Errorf("%w: wrong host", domain.ErrInvalidQuery)
			}
		},
		allowedOrigins, logger, noopMiddleware,
	)

	w := serve(t, "GET /v1/image", handler, "/v1/image?url=https://cdn.example.com/1.jpg")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	require.Equal(t, "public, max-age=86400", w.Header().Get("Cache-Control"))
	require.Equal(t, "fresh", w.Header().Get("X-Cache-Status"))
	require.Equal(t, "jpeg bytes", w.Body.String())

	w = serve(t, "GET /v1/image", handler, "/v1/image?url=https://cdn.example.com/huge.jpg")
	require.Equal(t, http.StatusBadGateway, w.Code)
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))
	require.JSONEq(t, `{"success":false,"cause":"upstream failure"}`, w.Body.String())

	w = serve(t, "GET /v1/image", handler, "/v1/image?url=https://evil.example.com/1.jpg")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthHandler(t *testing.T) {
	t.Parallel()

	w := serve(t, "GET /healthz", ports.HealthHandler, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"success":true}`, w.Body.String())
}

func TestRateLimitedHandler(t *testing.T) {
	t.Parallel()

	allowedOrigins, logger := testDeps(t)
	handler := ports.MakeNewsHandler(
		func(ctx context.Context, limit int) ([]domain.NewsItem, cache.Status, error) {
			return []domain.NewsItem{}, cache.StatusFresh, nil
		},
		allowedOrigins, logger, noopMiddleware,
	)

	limited := false
	for range 200 {
		w := serve(t, "GET /v1/news", handler, "/v1/news")
		if w.Code == http.StatusTooManyRequests {
			require.JSONEq(t, `{"success":false,"cause":"rate limit exceeded"}`, w.Body.String())
			limited = true
			break
		}
		require.Equal(t, http.StatusOK, w.Code)
	}
	require.True(t, limited)
}
