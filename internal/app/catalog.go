package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Amund211/mediagate/internal/adapters/cache"
	"github.com/Amund211/mediagate/internal/domain"
	"github.com/Amund211/mediagate/internal/logging"
	"github.com/Amund211/mediagate/internal/strutils"
)

// Bounds one refresh, including queueing behind other requests to the same upstream
const catalogFetchTimeout = 90 * time.Second

type SearchCatalog func(ctx context.Context, query domain.SearchQuery) (domain.MediaPage, cache.Status, error)
type TopCatalog func(ctx context.Context, query domain.TopQuery) (domain.MediaPage, cache.Status, error)
type SeasonCatalog func(ctx context.Context, query domain.SeasonQuery) (domain.MediaPage, cache.Status, error)
type GetDetail func(ctx context.Context, query domain.DetailQuery) (domain.Media, cache.Status, error)
type GetDetailByAniListID func(ctx context.Context, query domain.DetailQuery) (domain.Media, cache.Status, error)
type GetCharacters func(ctx context.Context, query domain.CharactersQuery) (domain.CharacterPage, cache.Status, error)

type malIDResolver interface {
	MALID(ctx context.Context, mediaType domain.MediaType, aniListID int) (int, error)
}

func lowerAll(values []string) []string {
	lowered := make([]string, 0, len(values))
	for _, value := range values {
		lowered = append(lowered, strings.ToLower(value))
	}
	return lowered
}

func BuildSearchWithCache(searchCache *cache.Cache[domain.MediaPage], router *Router) SearchCatalog {
	return func(ctx context.Context, query domain.SearchQuery) (domain.MediaPage, cache.Status, error) {
		query.Query = strutils.CollapseWhitespace(query.Query)
		query.Filters.Genres = strutils.NormalizeList(query.Filters.Genres)
		query.Paging = query.Paging.Normalized()
		if err := query.Validate(); err != nil {
			return domain.MediaPage{}, "", err
		}

		key := cache.BuildKey(string(domain.OperationSearch), map[string]any{
			"source":  router.PrimaryName(),
			"type":    query.Type,
			"q":       strings.ToLower(query.Query),
			"genres":  lowerAll(query.Filters.Genres),
			"format":  query.Filters.Format,
			"status":  query.Filters.Status,
			"year":    query.Filters.Year,
			"page":    query.Page,
			"perPage": query.PerPage,
		})

		return cache.GetOrRefresh(ctx, searchCache, key, func(ctx context.Context) (domain.MediaPage, error) {
			ctx, cancel := context.WithTimeout(ctx, catalogFetchTimeout)
			defer cancel()

			page, _, err := router.Search(ctx, query)
			if err != nil {
				// NOTE: catalog implementations handle their own error reporting
				return domain.MediaPage{}, fmt.Errorf("could not search catalog: %w", err)
			}
			return page, nil
		})
	}
}

func BuildTopWithCache(topCache *cache.Cache[domain.MediaPage], router *Router) TopCatalog {
	return func(ctx context.Context, query domain.TopQuery) (domain.MediaPage, cache.Status, error) {
		query.Paging = query.Paging.Normalized()
		if err := query.Validate(); err != nil {
			return domain.MediaPage{}, "", err
		}

		key := cache.BuildKey(string(domain.OperationTop), map[string]any{
			"source":  router.PrimaryName(),
			"type":    query.Type,
			"page":    query.Page,
			"perPage": query.PerPage,
		})

		return cache.GetOrRefresh(ctx, topCache, key, func(ctx context.Context) (domain.MediaPage, error) {
			ctx, cancel := context.WithTimeout(ctx, catalogFetchTimeout)
			defer cancel()

			page, _, err := router.Top(ctx, query)
			if err != nil {
				return domain.MediaPage{}, fmt.Errorf("could not get top listing: %w", err)
			}
			return page, nil
		})
	}
}

// BuildSeasonWithCache serves season listings.
// Listings with estimated totals get their last page probed, and the probe result is cached separately.
func BuildSeasonWithCache(
	seasonCache *cache.Cache[domain.MediaPage],
	lastPageCache *cache.Cache[int],
	router *Router,
) SeasonCatalog {
	return func(ctx context.Context, query domain.SeasonQuery) (domain.MediaPage, cache.Status, error) {
		query.Paging = query.Paging.Normalized()
		if season, err := domain.ParseSeason(string(query.Season)); err == nil {
			query.Season = season
		}
		if err := query.Validate(); err != nil {
			return domain.MediaPage{}, "", err
		}

		key := cache.BuildKey(string(domain.OperationSeason), map[string]any{
			"source":  router.PrimaryName(),
			"type":    query.Type,
			"year":    query.Year,
			"season":  query.Season,
			"page":    query.Page,
			"perPage": query.PerPage,
		})

		return cache.GetOrRefresh(ctx, seasonCache, key, func(ctx context.Context) (domain.MediaPage, error) {
			ctx, cancel := context.WithTimeout(ctx, catalogFetchTimeout)
			defer cancel()

			page, source, err := router.Season(ctx, query)
			if err != nil {
				return domain.MediaPage{}, fmt.Errorf("could not get season listing: %w", err)
			}

			if page.EstimatedTotals {
				lastPage, err := seasonLastPage(ctx, lastPageCache, router, source, query)
				if err != nil {
					logging.FromContext(ctx).WarnContext(ctx, "Failed to probe last page, keeping reported totals",
						"source", source,
						"error", err.Error(),
					)
				} else {
					page.Pagination = page.Pagination.WithLastPage(lastPage)
				}
			}

			return page, nil
		})
	}
}

func seasonLastPage(
	ctx context.Context,
	lastPageCache *cache.Cache[int],
	router *Router,
	source string,
	query domain.SeasonQuery,
) (int, error) {
	c, ok := router.byName(source)
	if !ok {
		return 0, fmt.Errorf("unknown catalog %s", source)
	}

	key := cache.BuildKey("lastPage", map[string]any{
		"source":  source,
		"type":    query.Type,
		"year":    query.Year,
		"season":  query.Season,
		"perPage": query.PerPage,
	})

	lastPage, _, err := cache.GetOrRefresh(ctx, lastPageCache, key, func(ctx context.Context) (int, error) {
		return FindLastPage(ctx, DefaultPageCeiling, func(ctx context.Context, page int) (bool, error) {
			probe := query
			probe.Page = page
			result, err := c.Season(ctx, probe)
			if err != nil {
				return false, err
			}
			return len(result.Items) > 0, nil
		})
	})
	return lastPage, err
}

func BuildDetailWithCache(detailCache *cache.Cache[domain.Media], router *Router) GetDetail {
	return func(ctx context.Context, query domain.DetailQuery) (domain.Media, cache.Status, error) {
		if err := query.Validate(); err != nil {
			return domain.Media{}, "", err
		}

		key := cache.BuildKey(string(domain.OperationDetail), map[string]any{
			"source": router.PrimaryName(),
			"type":   query.Type,
			"id":     query.ID,
		})

		return cache.GetOrRefresh(ctx, detailCache, key, func(ctx context.Context) (domain.Media, error) {
			ctx, cancel := context.WithTimeout(ctx, catalogFetchTimeout)
			defer cancel()

			media, _, err := router.Detail(ctx, query)
			if err != nil {
				return domain.Media{}, fmt.Errorf("could not get media detail: %w", err)
			}
			return media, nil
		})
	}
}

// BuildDetailByAniListIDWithCache resolves an AniList id to the MyAnimeList id and serves the detail for it
func BuildDetailByAniListIDWithCache(
	crossRefCache *cache.Cache[int],
	resolver malIDResolver,
	getDetail GetDetail,
) GetDetailByAniListID {
	return func(ctx context.Context, query domain.DetailQuery) (domain.Media, cache.Status, error) {
		if err := query.Validate(); err != nil {
			return domain.Media{}, "", err
		}

		key := cache.BuildKey("crossref", map[string]any{
			"type": query.Type,
			"id":   query.ID,
		})

		malID, _, err := cache.GetOrRefresh(ctx, crossRefCache, key, func(ctx context.Context) (int, error) {
			ctx, cancel := context.WithTimeout(ctx, catalogFetchTimeout)
			defer cancel()

			return resolver.MALID(ctx, query.Type, query.ID)
		})
		if err != nil {
			return domain.Media{}, "", fmt.Errorf("could not resolve anilist id: %w", err)
		}

		return getDetail(ctx, domain.DetailQuery{Type: query.Type, ID: malID})
	}
}

func BuildCharactersWithCache(charactersCache *cache.Cache[domain.CharacterPage], router *Router) GetCharacters {
	return func(ctx context.Context, query domain.CharactersQuery) (domain.CharacterPage, cache.Status, error) {
		query.Paging = query.Paging.Normalized()
		if err := query.Validate(); err != nil {
			return domain.CharacterPage{}, "", err
		}

		key := cache.BuildKey(string(domain.OperationCharacters), map[string]any{
			"source":  router.PrimaryName(),
			"type":    query.Type,
			"id":      query.ID,
			"page":    query.Page,
			"perPage": query.PerPage,
		})

		return cache.GetOrRefresh(ctx, charactersCache, key, func(ctx context.Context) (domain.CharacterPage, error) {
			ctx, cancel := context.WithTimeout(ctx, catalogFetchTimeout)
			defer cancel()

			page, _, err := router.Characters(ctx, query)
			if err != nil {
				return domain.CharacterPage{}, fmt.Errorf("could not get characters: %w", err)
			}
			return page, nil
		})
	}
}
