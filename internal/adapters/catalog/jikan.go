package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Amund211/mediagate/internal/adapters/upstream"
	"github.com/Amund211/mediagate/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const JikanName = "jikan"

// MyAnimeList genre ids, which are shared between anime and manga
var jikanGenreIDs = map[string]int{
	"action":        1,
	"adventure":     2,
	"comedy":        4,
	"mystery":       7,
	"drama":         8,
	"ecchi":         9,
	"fantasy":       10,
	"horror":        14,
	"mecha":         18,
	"music":         19,
	"romance":       22,
	"sci-fi":        24,
	"sports":        30,
	"slice of life": 36,
	"supernatural":  37,
	"psychological": 40,
	"suspense":      41,
	"thriller":      41,
	"mahou shoujo":  66,
}

var jikanAnimeFormats = map[string]string{
	domain.FormatTV:      "tv",
	domain.FormatTVShort: "tv",
	domain.FormatMovie:   "movie",
	domain.FormatSpecial: "special",
	domain.FormatOVA:     "ova",
	domain.FormatONA:     "ona",
	domain.FormatMusic:   "music",
}

var jikanMangaFormats = map[string]string{
	domain.FormatManga:   "manga",
	domain.FormatNovel:   "novel",
	domain.FormatOneShot: "oneshot",
}

var jikanAnimeStatuses = map[string]string{
	domain.StatusFinished:       "complete",
	domain.StatusReleasing:      "airing",
	domain.StatusNotYetReleased: "upcoming",
}

var jikanMangaStatuses = map[string]string{
	domain.StatusFinished:       "complete",
	domain.StatusReleasing:      "publishing",
	domain.StatusNotYetReleased: "upcoming",
	domain.StatusCancelled:      "discontinued",
	domain.StatusHiatus:         "hiatus",
}

type jikan struct {
	dispatcher Dispatcher
	baseURL    string

	tracer trace.Tracer
}

func NewJikan(dispatcher Dispatcher, baseURL string) Catalog {
	return &jikan{
		dispatcher: dispatcher,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		tracer:     otel.Tracer("mediagate/catalog/jikan"),
	}
}

func (j *jikan) Name() string {
	return JikanName
}

// Jikan rejects larger pages with a 400
const jikanMaxPerPage = 25

func jikanPaging(paging domain.Paging) domain.Paging {
	paging.PerPage = min(paging.PerPage, jikanMaxPerPage)
	return paging
}

func pagingParams(paging domain.Paging) url.Values {
	paging = jikanPaging(paging)
	return url.Values{
		"page":  []string{strconv.Itoa(paging.Page)},
		"limit": []string{strconv.Itoa(paging.PerPage)},
	}
}

func (j *jikan) Search(ctx context.Context, query domain.SearchQuery) (domain.MediaPage, error) {
	ctx, span := j.tracer.Start(ctx, "Jikan.Search")
	defer span.End()

	params := pagingParams(query.Paging)
	params.Set("sfw", "true")
	if query.Query != "" {
		params.Set("q", query.Query)
	} else {
		params.Set("order_by", "members")
		params.Set("sort", "desc")
	}

	if len(query.Filters.Genres) > 0 {
		ids := make([]string, 0, len(query.Filters.Genres))
		for _, genre := range query.Filters.Genres {
			id, ok := jikanGenreIDs[strings.ToLower(genre)]
			if !ok {
				return domain.MediaPage{}, fmt.Errorf("%w: genre '%.30s' is not supported by %s", domain.ErrInvalidQuery, genre, JikanName)
			}
			ids = append(ids, strconv.Itoa(id))
		}
		params.Set("genres", strings.Join(ids, ","))
	}

	if query.Filters.Format != "" {
		formats := jikanAnimeFormats
		if query.Type == domain.MediaTypeManga {
			formats = jikanMangaFormats
		}
		format, ok := formats[query.Filters.Format]
		if !ok {
			return domain.MediaPage{}, fmt.Errorf("%w: format %s does not apply to %s", domain.ErrInvalidQuery, query.Filters.Format, query.Type)
		}
		params.Set("type", format)
	}

	if query.Filters.Status != "" {
		statuses := jikanAnimeStatuses
		if query.Type == domain.MediaTypeManga {
			statuses = jikanMangaStatuses
		}
		status, ok := statuses[query.Filters.Status]
		if !ok {
			return domain.MediaPage{}, fmt.Errorf("%w: status %s does not apply to %s", domain.ErrInvalidQuery, query.Filters.Status, query.Type)
		}
		params.Set("status", status)
	}

	if query.Filters.Year != 0 {
		params.Set("start_date", fmt.Sprintf("%04d-01-01", query.Filters.Year))
		params.Set("end_date", fmt.Sprintf("%04d-12-31", query.Filters.Year))
	}

	return j.page(ctx, fmt.Sprintf("/%s", query.Type), params, query.Type, query.Paging)
}

func (j *jikan) Top(ctx context.Context, query domain.TopQuery) (domain.MediaPage, error) {
	ctx, span := j.tracer.Start(ctx, "Jikan.Top")
	defer span.End()

	return j.page(ctx, fmt.Sprintf("/top/%s", query.Type), pagingParams(query.Paging), query.Type, query.Paging)
}

func (j *jikan) Season(ctx context.Context, query domain.SeasonQuery) (domain.MediaPage, error) {
	ctx, span := j.tracer.Start(ctx, "Jikan.Season", trace.WithAttributes(
		attribute.Int("year", query.Year),
		attribute.String("season", string(query.Season)),
	))
	defer span.End()

	if query.Type == domain.MediaTypeAnime {
		path := fmt.Sprintf("/seasons/%d/%s", query.Year, strings.ToLower(string(query.Season)))
		return j.page(ctx, path, pagingParams(query.Paging), query.Type, query.Paging)
	}

	// Manga has no seasons upstream, so list by publication start date instead
	firstMonth, lastMonth := query.Season.Months()
	lastDay := time.Date(query.Year, time.Month(lastMonth)+1, 0, 0, 0, 0, 0, time.UTC)

	params := pagingParams(query.Paging)
	params.Set("start_date", fmt.Sprintf("%04d-%02d-01", query.Year, firstMonth))
	params.Set("end_date", lastDay.Format(time.DateOnly))
	params.Set("order_by", "members")
	params.Set("sort", "desc")
	params.Set("sfw", "true")

	return j.page(ctx, "/manga", params, query.Type, query.Paging)
}

func (j *jikan) Detail(ctx context.Context, query domain.DetailQuery) (domain.Media, error) {
	ctx, span := j.tracer.Start(ctx, "Jikan.Detail", trace.WithAttributes(attribute.Int("id", query.ID)))
	defer span.End()

	var data *jikanMedia
	_, err := j.get(ctx, fmt.Sprintf("/%s/%d/full", query.Type, query.ID), nil, &data)
	if err != nil {
		return domain.Media{}, err
	}
	if data == nil {
		return domain.Media{}, fmt.Errorf("%w: %s response is missing data", domain.ErrUpstreamFailure, JikanName)
	}

	return data.toDomain(query.Type), nil
}

func (j *jikan) Characters(ctx context.Context, query domain.CharactersQuery) (domain.CharacterPage, error) {
	ctx, span := j.tracer.Start(ctx, "Jikan.Characters", trace.WithAttributes(attribute.Int("id", query.ID)))
	defer span.End()

	var data []jikanCharacterEntry
	_, err := j.get(ctx, fmt.Sprintf("/%s/%d/characters", query.Type, query.ID), nil, &data)
	if err != nil {
		return domain.CharacterPage{}, err
	}

	// The upstream returns every character at once
	total := len(data)
	start := min((query.Page-1)*query.PerPage, total)
	end := min(start+query.PerPage, total)

	characters := make([]domain.Character, 0, end-start)
	for _, entry := range data[start:end] {
		characters = append(characters, entry.toDomain())
	}

	lastPage := (total + query.PerPage - 1) / query.PerPage

	return domain.CharacterPage{
		Items:      characters,
		Pagination: domain.NewPagination(query.Page, lastPage, query.PerPage, total, nil),
	}, nil
}

func (j *jikan) page(ctx context.Context, path string, params url.Values, mediaType domain.MediaType, requested domain.Paging) (domain.MediaPage, error) {
	var data []jikanMedia
	pagination, err := j.get(ctx, path, params, &data)
	if err != nil {
		return domain.MediaPage{}, err
	}

	items := make([]domain.Media, 0, len(data))
	for _, media := range data {
		items = append(items, media.toDomain(mediaType))
	}

	return domain.MediaPage{
		Items:      items,
		Pagination: pagination.toDomain(jikanPaging(requested)),
	}, nil
}

func (j *jikan) get(ctx context.Context, path string, params url.Values, target any) (jikanPagination, error) {
	requestURL := j.baseURL + path
	if len(params) > 0 {
		requestURL += "?" + params.Encode()
	}

	response, err := j.dispatcher.Dispatch(ctx, upstream.Request{
		Method: http.MethodGet,
		URL:    requestURL,
		Header: http.Header{"Accept": []string{"application/json"}},
	})
	if err != nil {
		return jikanPagination{}, err
	}

	if !response.IsSuccess() {
		var body jikanErrorResponse
		_ = json.Unmarshal(response.Body, &body)
		err := upstream.ErrorForStatus(JikanName, response.StatusCode, body.Message)
		if isMalformed(err) {
			reportMalformed(ctx, err, response)
		}
		return jikanPagination{}, err
	}

	var envelope jikanEnvelope
	if err := json.Unmarshal(response.Body, &envelope); err != nil {
		err := fmt.Errorf("%w: failed to parse %s response: %w", domain.ErrUpstreamFailure, JikanName, err)
		reportMalformed(ctx, err, response)
		return jikanPagination{}, err
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		err := fmt.Errorf("%w: %s response is missing data", domain.ErrUpstreamFailure, JikanName)
		reportMalformed(ctx, err, response)
		return jikanPagination{}, err
	}

	if err := json.Unmarshal(envelope.Data, target); err != nil {
		err := fmt.Errorf("%w: failed to parse %s data: %w", domain.ErrUpstreamFailure, JikanName, err)
		reportMalformed(ctx, err, response)
		return jikanPagination{}, err
	}

	return envelope.Pagination, nil
}
