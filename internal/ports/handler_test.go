package ports_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Amund211/mediagate/internal/adapters/cache"
	"github.com/Amund211/mediagate/internal/domain"
	"github.com/Amund211/mediagate/internal/ports"
	"github.com/stretchr/testify/require"
)

func noopMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return next
}

func testDeps(t *testing.T) (*ports.DomainSuffixes, *slog.Logger) {
	t.Helper()

	allowedOrigins, err := ports.NewDomainSuffixes("mediagate.app")
	require.NoError(t, err)
	return allowedOrigins, slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// serve routes a single request through a mux so path values are populated
func serve(t *testing.T, pattern string, handler http.HandlerFunc, target string) *httptest.ResponseRecorder {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc(pattern, handler)

	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = "203.0.113.7:51234"
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestSearchHandler(t *testing.T) {
	t.Parallel()

	score := 7.9
	page := domain.MediaPage{
		Items: []domain.Media{{
			ID:     269,
			Type:   domain.MediaTypeAnime,
			Title:  "Bleach",
			Genres: []string{"Action"},
			Score:  &score,
		}},
		Pagination: domain.NewPagination(1, 3, 20, 60, nil),
	}

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		allowedOrigins, logger := testDeps(t)
		handler := ports.MakeSearchHandler(
			func(ctx context.Context, query domain.SearchQuery) (domain.MediaPage, cache.Status, error) {
				require.Equal(t, domain.SearchQuery{
					Type:  domain.MediaTypeAnime,
					Query: "bleach tybw",
					Filters: domain.SearchFilters{
						Genres: []string{"Action", "Drama"},
						Format: domain.FormatTV,
						Status: "",
						Year:   2022,
					},
					Paging: domain.Paging{Page: 2, PerPage: 10},
				}, query)
				return page, cache.StatusMiss, nil
			},
			allowedOrigins, logger, noopMiddleware,
		)

		w := serve(t, "GET /v1/catalog/{type}/search", handler,
			"/v1/catalog/anime/search?q=bleach%20%20tybw&genres=Drama,Action&format=tv&year=2022&page=2&perPage=10")

		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "application/json", w.Header().Get("Content-Type"))
		require.Equal(t, "miss", w.Header().Get("X-Cache-Status"))
		require.JSONEq(t, `{
			"success": true,
			"cacheStatus": "miss",
			"data": {
				"items": [{
					"id": 269,
					"type": "anime",
					"title": "Bleach",
					"genres": ["Action"],
					"score": 7.9
				}],
				"pagination": {"currentPage": 1, "lastPage": 3, "hasNextPage": true, "perPage": 20, "total": 60}
			}
		}`, w.Body.String())
	})

	t.Run("bad paging", func(t *testing.T) {
		t.Parallel()

		allowedOrigins, logger := testDeps(t)
		handler := ports.MakeSearchHandler(
			func(ctx context.Context, query domain.SearchQuery) (domain.MediaPage, cache.Status, error) {
				t.Fatal("should not be called")
				return domain.MediaPage{}, "", nil
			},
			allowedOrigins, logger, noopMiddleware,
		)

		w := serve(t, "GET /v1/catalog/{type}/search", handler, "/v1/catalog/anime/search?q=bleach&page=two")
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.JSONEq(t, `{"success":false,"cause":"invalid paging"}`, w.Body.String())

		w = serve(t, "GET /v1/catalog/{type}/search", handler, "/v1/catalog/novel/search?q=bleach")
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.JSONEq(t, `{"success":false,"cause":"invalid media type"}`, w.Body.String())
	})
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err    error
		status int
		cause  string
	}{
		{err: fmt.Errorf("%w: empty search", domain.ErrInvalidQuery), status: http.StatusBadRequest, cause: "invalid query"},
		{err: fmt.Errorf("wrapped: %w", domain.ErrNotFound), status: http.StatusNotFound, cause: "not found"},
		{err: fmt.Errorf("%w: 503", domain.ErrTemporarilyUnavailable), status: http.StatusServiceUnavailable, cause: "temporarily unavailable"},
		{err: context.DeadlineExceeded, status: http.StatusServiceUnavailable, cause: "temporarily unavailable"},
		{err: fmt.Errorf("%w: missing data", domain.ErrUpstreamFailure), status: http.StatusBadGateway, cause: "upstream failure"},
		{err: fmt.Errorf("something else"), status: http.StatusInternalServerError, cause: "internal server error"},
	}

	for _, c := range cases {
		t.Run(c.cause, func(t *testing.T) {
			t.Parallel()

			allowedOrigins, logger := testDeps(t)
			handler := ports.MakeDetailHandler(
				func(ctx context.Context, query domain.DetailQuery) (domain.Media, cache.Status, error) {
					require.Equal(t, domain.DetailQuery{Type: domain.MediaTypeManga, ID: 12}, query)
					return domain.Media{}, cache.StatusMiss, c.err
				},
				allowedOrigins, logger, noopMiddleware,
			)

			w := serve(t, "GET /v1/catalog/{type}/media/{id}", handler, "/v1/catalog/manga/media/12")
			require.Equal(t, c.status, w.Code)
			require.JSONEq(t, fmt.Sprintf(`{"success":false,"cause":%q}`, c.cause), w.Body.String())
			require.Empty(t, w.Header().Get("X-Cache-Status"))
		})
	}
}

func TestDetailHandlers(t *testing.T) {
	t.Parallel()

	media := domain.Media{ID: 41467, AniListID: 116674, Type: domain.MediaTypeAnime, Title: "Bleach: Sennen Kessen-hen", Genres: []string{}}

	t.Run("by anilist id", func(t *testing.T) {
		t.Parallel()

		allowedOrigins, logger := testDeps(t)
		handler := ports.MakeDetailByAniListIDHandler(
			func(ctx context.Context, query domain.DetailQuery) (domain.Media, cache.Status, error) {
				require.Equal(t, domain.DetailQuery{Type: domain.MediaTypeAnime, ID: 116674}, query)
				return media, cache.StatusStale, nil
			},
			allowedOrigins, logger, noopMiddleware,
		)

		w := serve(t, "GET /v1/catalog/{type}/anilist/{id}", handler, "/v1/catalog/ANIME/anilist/116674")
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "stale", w.Header().Get("X-Cache-Status"))
		require.JSONEq(t, `{
			"success": true,
			"cacheStatus": "stale",
			"data": {"id": 41467, "anilistId": 116674, "type": "anime", "title": "Bleach: Sennen Kessen-hen", "genres": [], "score": null}
		}`, w.Body.String())
	})

	t.Run("invalid id", func(t *testing.T) {
		t.Parallel()

		allowedOrigins, logger := testDeps(t)
		handler := ports.MakeDetailHandler(
			func(ctx context.Context, query domain.DetailQuery) (domain.Media, cache.Status, error) {
				t.Fatal("should not be called")
				return domain.Media{}, "", nil
			},
			allowedOrigins, logger, noopMiddleware,
		)

		for _, id := range []string{"abc", "0", "-4"} {
			w := serve(t, "GET /v1/catalog/{type}/media/{id}", handler, "/v1/catalog/anime/media/"+id)
			require.Equal(t, http.StatusBadRequest, w.Code)
			require.JSONEq(t, `{"success":false,"cause":"invalid id"}`, w.Body.String())
		}
	})

	t.Run("characters", func(t *testing.T) {
		t.Parallel()

		allowedOrigins, logger := testDeps(t)
		handler := ports.MakeCharactersHandler(
			func(ctx context.Context, query domain.CharactersQuery) (domain.CharacterPage, cache.Status, error) {
				require.Equal(t, domain.CharactersQuery{Type: domain.MediaTypeAnime, ID: 269, Paging: domain.Paging{Page: 1, PerPage: 20}}, query)
				return domain.CharacterPage{
					Items:      []domain.Character{{ID: 5, Name: "Kurosaki, Ichigo", Role: "MAIN"}},
					Pagination: domain.NewPagination(1, 1, 20, 1, nil),
				}, cache.StatusFresh, nil
			},
			allowedOrigins, logger, noopMiddleware,
		)

		w := serve(t, "GET /v1/catalog/{type}/media/{id}/characters", handler, "/v1/catalog/anime/media/269/characters")
		require.Equal(t, http.StatusOK, w.Code)
		require.JSONEq(t, `{
			"success": true,
			"cacheStatus": "fresh",
			"data": {
				"items": [{"id": 5, "name": "Kurosaki, Ichigo", "role": "MAIN"}],
				"pagination": {"currentPage": 1, "lastPage": 1, "hasNextPage": false, "perPage": 20, "total": 1}
			}
		}`, w.Body.String())
	})
}

func TestSeasonAndTopHandlers(t *testing.T) {
	t.Parallel()

	empty := domain.MediaPage{Items: []domain.Media{}, Pagination: domain.NewPagination(1, 1, 20, 0, nil)}

	t.Run("season", func(t *testing.T) {
		t.Parallel()

		allowedOrigins, logger := testDeps(t)
		handler := ports.MakeSeasonHandler(
			func(ctx context.Context, query domain.SeasonQuery) (domain.MediaPage, cache.Status, error) {
				require.Equal(t, domain.SeasonQuery{
					Type:   domain.MediaTypeManga,
					Year:   2024,
					Season: domain.SeasonFall,
					Paging: domain.Paging{Page: 3, PerPage: 20},
				}, query)
				return empty, cache.StatusMiss, nil
			},
			allowedOrigins, logger, noopMiddleware,
		)

		w := serve(t, "GET /v1/catalog/{type}/season/{year}/{season}", handler, "/v1/catalog/manga/season/2024/autumn?page=3")
		require.Equal(t, http.StatusOK, w.Code)

		w = serve(t, "GET /v1/catalog/{type}/season/{year}/{season}", handler, "/v1/catalog/manga/season/2024/monsoon")
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.JSONEq(t, `{"success":false,"cause":"invalid season"}`, w.Body.String())

		w = serve(t, "GET /v1/catalog/{type}/season/{year}/{season}", handler, "/v1/catalog/manga/season/twenty/fall")
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.JSONEq(t, `{"success":false,"cause":"invalid year"}`, w.Body.String())
	})

	t.Run("top", func(t *testing.T) {
		t.Parallel()

		allowedOrigins, logger := testDeps(t)
		handler := ports.MakeTopHandler(
			func(ctx context.Context, query domain.TopQuery) (domain.MediaPage, cache.Status, error) {
				require.Equal(t, domain.TopQuery{Type: domain.MediaTypeAnime, Paging: domain.Paging{Page: 1, PerPage: 50}}, query)
				return empty, cache.StatusFresh, nil
			},
			allowedOrigins, logger, noopMiddleware,
		)

		w := serve(t, "GET /v1/catalog/{type}/top", handler, "/v1/catalog/anime/top?perPage=50")
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "fresh", w.Header().Get("X-Cache-Status"))
	})
}
