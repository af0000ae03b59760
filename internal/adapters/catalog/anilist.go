package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Amund211/mediagate/internal/adapters/upstream"
	"github.com/Amund211/mediagate/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const AniListName = "anilist"

const aniListMediaFields = `
fragment mediaFields on Media {
  id
  idMal
  type
  title { romaji english native }
  coverImage { extraLarge large }
  bannerImage
  genres
  averageScore
  format
  episodes
  chapters
  volumes
  status
  season
  seasonYear
  startDate { year }
  description(asHtml: false)
  trailer { id site }
}
`

const aniListPageInfo = `pageInfo { total perPage currentPage lastPage hasNextPage }`

const aniListSearchQuery = `
query ($page: Int, $perPage: Int, $type: MediaType, $search: String, $genres: [String], $format: MediaFormat, $status: MediaStatus, $startFrom: FuzzyDateInt, $startTo: FuzzyDateInt, $sort: [MediaSort]) {
  Page(page: $page, perPage: $perPage) {
    ` + aniListPageInfo + `
    media(type: $type, search: $search, genre_in: $genres, format: $format, status: $status, startDate_greater: $startFrom, startDate_lesser: $startTo, sort: $sort, isAdult: false) {
      ...mediaFields
    }
  }
}
` + aniListMediaFields

const aniListTopQuery = `
query ($page: Int, $perPage: Int, $type: MediaType) {
  Page(page: $page, perPage: $perPage) {
    ` + aniListPageInfo + `
    media(type: $type, sort: [SCORE_DESC], isAdult: false) {
      ...mediaFields
    }
  }
}
` + aniListMediaFields

const aniListAnimeSeasonQuery = `
query ($page: Int, $perPage: Int, $season: MediaSeason, $seasonYear: Int) {
  Page(page: $page, perPage: $perPage) {
    ` + aniListPageInfo + `
    media(type: ANIME, season: $season, seasonYear: $seasonYear, sort: [POPULARITY_DESC], isAdult: false) {
      ...mediaFields
    }
  }
}
` + aniListMediaFields

const aniListMangaSeasonQuery = `
query ($page: Int, $perPage: Int, $startFrom: FuzzyDateInt, $startTo: FuzzyDateInt) {
  Page(page: $page, perPage: $perPage) {
    ` + aniListPageInfo + `
    media(type: MANGA, startDate_greater: $startFrom, startDate_lesser: $startTo, sort: [POPULARITY_DESC], isAdult: false) {
      ...mediaFields
    }
  }
}
` + aniListMediaFields

const aniListDetailQuery = `
query ($idMal: Int, $type: MediaType) {
  Media(idMal: $idMal, type: $type) {
    ...mediaFields
  }
}
` + aniListMediaFields

const aniListCharactersQuery = `
query ($idMal: Int, $type: MediaType, $page: Int, $perPage: Int) {
  Media(idMal: $idMal, type: $type) {
    characters(page: $page, perPage: $perPage, sort: [ROLE, RELEVANCE, ID]) {
      ` + aniListPageInfo + `
      edges {
        role
        node { id name { full } image { large } }
      }
    }
  }
}
`

const aniListCrossRefQuery = `
query ($id: Int, $type: MediaType) {
  Media(id: $id, type: $type) {
    id
    idMal
  }
}
`

type aniList struct {
	dispatcher Dispatcher
	url        string

	tracer trace.Tracer
}

type AniList interface {
	Catalog
	// MALID resolves an AniList id to the shared MyAnimeList id
	MALID(ctx context.Context, mediaType domain.MediaType, aniListID int) (int, error)
}

func NewAniList(dispatcher Dispatcher, url string) AniList {
	return &aniList{
		dispatcher: dispatcher,
		url:        url,
		tracer:     otel.Tracer("mediagate/catalog/anilist"),
	}
}

func (a *aniList) Name() string {
	return AniListName
}

func aniListType(mediaType domain.MediaType) string {
	return strings.ToUpper(string(mediaType))
}

// fuzzyDate encodes a date the way AniList compares start dates (YYYYMMDD)
func fuzzyDate(year, month, day int) int {
	return year*10000 + month*100 + day
}

func (a *aniList) Search(ctx context.Context, query domain.SearchQuery) (domain.MediaPage, error) {
	ctx, span := a.tracer.Start(ctx, "AniList.Search")
	defer span.End()

	variables := map[string]any{
		"page":    query.Page,
		"perPage": query.PerPage,
		"type":    aniListType(query.Type),
		"sort":    []string{"POPULARITY_DESC"},
	}
	if query.Query != "" {
		variables["search"] = query.Query
		variables["sort"] = []string{"SEARCH_MATCH", "POPULARITY_DESC"}
	}
	if len(query.Filters.Genres) > 0 {
		variables["genres"] = query.Filters.Genres
	}
	if query.Filters.Format != "" {
		variables["format"] = query.Filters.Format
	}
	if query.Filters.Status != "" {
		variables["status"] = query.Filters.Status
	}
	if query.Filters.Year != 0 {
		// Both bounds are exclusive
		variables["startFrom"] = fuzzyDate(query.Filters.Year, 0, 0)
		variables["startTo"] = fuzzyDate(query.Filters.Year+1, 0, 0)
	}

	return a.page(ctx, aniListSearchQuery, variables, query.Type)
}

func (a *aniList) Top(ctx context.Context, query domain.TopQuery) (domain.MediaPage, error) {
	ctx, span := a.tracer.Start(ctx, "AniList.Top")
	defer span.End()

	return a.page(ctx, aniListTopQuery, map[string]any{
		"page":    query.Page,
		"perPage": query.PerPage,
		"type":    aniListType(query.Type),
	}, query.Type)
}

func (a *aniList) Season(ctx context.Context, query domain.SeasonQuery) (domain.MediaPage, error) {
	ctx, span := a.tracer.Start(ctx, "AniList.Season", trace.WithAttributes(
		attribute.Int("year", query.Year),
		attribute.String("season", string(query.Season)),
	))
	defer span.End()

	var page domain.MediaPage
	var err error
	switch query.Type {
	case domain.MediaTypeAnime:
		page, err = a.page(ctx, aniListAnimeSeasonQuery, map[string]any{
			"page":       query.Page,
			"perPage":    query.PerPage,
			"season":     string(query.Season),
			"seasonYear": query.Year,
		}, query.Type)
	default:
		firstMonth, lastMonth := query.Season.Months()
		page, err = a.page(ctx, aniListMangaSeasonQuery, map[string]any{
			"page":      query.Page,
			"perPage":   query.PerPage,
			"startFrom": fuzzyDate(query.Year, firstMonth, 0),
			"startTo":   fuzzyDate(query.Year, lastMonth, 32),
		}, query.Type)
	}
	if err != nil {
		return domain.MediaPage{}, err
	}

	// The reported totals for these listings drift far past the real last page
	page.EstimatedTotals = true
	return page, nil
}

func (a *aniList) Detail(ctx context.Context, query domain.DetailQuery) (domain.Media, error) {
	ctx, span := a.tracer.Start(ctx, "AniList.Detail", trace.WithAttributes(attribute.Int("id", query.ID)))
	defer span.End()

	var data struct {
		Media *aniListMedia `json:"Media"`
	}
	err := a.query(ctx, aniListDetailQuery, map[string]any{
		"idMal": query.ID,
		"type":  aniListType(query.Type),
	}, &data)
	if err != nil {
		return domain.Media{}, err
	}
	if data.Media == nil {
		return domain.Media{}, fmt.Errorf("%w: %s has no %s with id %d", domain.ErrNotFound, AniListName, query.Type, query.ID)
	}

	return data.Media.toDomain(query.Type), nil
}

func (a *aniList) Characters(ctx context.Context, query domain.CharactersQuery) (domain.CharacterPage, error) {
	ctx, span := a.tracer.Start(ctx, "AniList.Characters", trace.WithAttributes(attribute.Int("id", query.ID)))
	defer span.End()

	var data struct {
		Media *struct {
			Characters struct {
				PageInfo aniListPageInfoResponse `json:"pageInfo"`
				Edges    []aniListCharacterEdge  `json:"edges"`
			} `json:"characters"`
		} `json:"Media"`
	}
	err := a.query(ctx, aniListCharactersQuery, map[string]any{
		"idMal":   query.ID,
		"type":    aniListType(query.Type),
		"page":    query.Page,
		"perPage": query.PerPage,
	}, &data)
	if err != nil {
		return domain.CharacterPage{}, err
	}
	if data.Media == nil {
		return domain.CharacterPage{}, fmt.Errorf("%w: %s has no %s with id %d", domain.ErrNotFound, AniListName, query.Type, query.ID)
	}

	characters := make([]domain.Character, 0, len(data.Media.Characters.Edges))
	for _, edge := range data.Media.Characters.Edges {
		characters = append(characters, edge.toDomain())
	}

	return domain.CharacterPage{
		Items:      characters,
		Pagination: data.Media.Characters.PageInfo.toDomain(query.Paging),
	}, nil
}

func (a *aniList) MALID(ctx context.Context, mediaType domain.MediaType, aniListID int) (int, error) {
	ctx, span := a.tracer.Start(ctx, "AniList.MALID", trace.WithAttributes(attribute.Int("id", aniListID)))
	defer span.End()

	var data struct {
		Media *struct {
			ID    int  `json:"id"`
			IDMal *int `json:"idMal"`
		} `json:"Media"`
	}
	err := a.query(ctx, aniListCrossRefQuery, map[string]any{
		"id":   aniListID,
		"type": aniListType(mediaType),
	}, &data)
	if err != nil {
		return 0, err
	}
	if data.Media == nil || data.Media.IDMal == nil || *data.Media.IDMal < 1 {
		return 0, fmt.Errorf("%w: %s %s %d has no MyAnimeList id", domain.ErrNotFound, AniListName, mediaType, aniListID)
	}

	return *data.Media.IDMal, nil
}

func (a *aniList) page(ctx context.Context, query string, variables map[string]any, mediaType domain.MediaType) (domain.MediaPage, error) {
	var data struct {
		Page *struct {
			PageInfo aniListPageInfoResponse `json:"pageInfo"`
			Media    []aniListMedia          `json:"media"`
		} `json:"Page"`
	}
	if err := a.query(ctx, query, variables, &data); err != nil {
		return domain.MediaPage{}, err
	}
	if data.Page == nil {
		return domain.MediaPage{}, fmt.Errorf("%w: %s response is missing Page", domain.ErrUpstreamFailure, AniListName)
	}

	items := make([]domain.Media, 0, len(data.Page.Media))
	for _, media := range data.Page.Media {
		items = append(items, media.toDomain(mediaType))
	}

	page, _ := variables["page"].(int)
	perPage, _ := variables["perPage"].(int)

	return domain.MediaPage{
		Items:      items,
		Pagination: data.Page.PageInfo.toDomain(domain.Paging{Page: page, PerPage: perPage}),
	}, nil
}

func (a *aniList) query(ctx context.Context, query string, variables map[string]any, target any) error {
	body, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s query: %w", AniListName, err)
	}

	response, err := a.dispatcher.Dispatch(ctx, upstream.Request{
		Method: http.MethodPost,
		URL:    a.url,
		Header: http.Header{
			"Content-Type": []string{"application/json"},
			"Accept":       []string{"application/json"},
		},
		Body:            body,
		EffectiveStatus: aniListStatus,
	})
	if err != nil {
		return err
	}

	data, err := checkAniListResponse(response)
	if err != nil {
		if isMalformed(err) {
			reportMalformed(ctx, err, response)
		}
		return err
	}

	if err := json.Unmarshal(data, target); err != nil {
		err := fmt.Errorf("%w: failed to parse %s data: %w", domain.ErrUpstreamFailure, AniListName, err)
		reportMalformed(ctx, err, response)
		return err
	}

	return nil
}
