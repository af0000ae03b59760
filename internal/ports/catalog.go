package ports

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/Amund211/mediagate/internal/app"
	"github.com/Amund211/mediagate/internal/domain"
	"github.com/Amund211/mediagate/internal/logging"
	"github.com/Amund211/mediagate/internal/reporting"
	"github.com/Amund211/mediagate/internal/strutils"
)

func MakeSearchHandler(
	search app.SearchCatalog,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildHandlerMiddleware("search", catalogLimits, allowedOrigins, rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		mediaType, err := pathMediaType(r)
		if err != nil {
			writeError(ctx, w, "invalid media type", http.StatusBadRequest)
			return
		}
		paging, err := parsePaging(r)
		if err != nil {
			writeError(ctx, w, "invalid paging", http.StatusBadRequest)
			return
		}
		year, err := optionalInt(r, "year")
		if err != nil {
			writeError(ctx, w, "invalid year", http.StatusBadRequest)
			return
		}

		params := r.URL.Query()
		query := domain.SearchQuery{
			Type:  mediaType,
			Query: strutils.CollapseWhitespace(params.Get("q")),
			Filters: domain.SearchFilters{
				Genres: strutils.SplitList(params.Get("genres")),
				Format: strings.ToUpper(strings.TrimSpace(params.Get("format"))),
				Status: strings.ToUpper(strings.TrimSpace(params.Get("status"))),
				Year:   year,
			},
			Paging: paging,
		}

		ctx = logging.AddMetaToContext(ctx,
			slog.String("type", string(mediaType)),
			slog.String("query", query.Query),
		)
		ctx = reporting.AddExtrasToContext(ctx, map[string]string{
			"type":  string(mediaType),
			"query": query.Query,
		})

		page, status, err := search(ctx, query)
		if err != nil {
			handleAppError(ctx, w, err)
			return
		}

		writeSuccess(ctx, w, page, status)
	}

	return middleware(handler)
}

func MakeTopHandler(
	top app.TopCatalog,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildHandlerMiddleware("top", catalogLimits, allowedOrigins, rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		mediaType, err := pathMediaType(r)
		if err != nil {
			writeError(ctx, w, "invalid media type", http.StatusBadRequest)
			return
		}
		paging, err := parsePaging(r)
		if err != nil {
			writeError(ctx, w, "invalid paging", http.StatusBadRequest)
			return
		}

		page, status, err := top(ctx, domain.TopQuery{Type: mediaType, Paging: paging})
		if err != nil {
			handleAppError(ctx, w, err)
			return
		}

		writeSuccess(ctx, w, page, status)
	}

	return middleware(handler)
}

func MakeSeasonHandler(
	season app.SeasonCatalog,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildHandlerMiddleware("season", catalogLimits, allowedOrigins, rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		mediaType, err := pathMediaType(r)
		if err != nil {
			writeError(ctx, w, "invalid media type", http.StatusBadRequest)
			return
		}
		year, err := pathInt(r, "year")
		if err != nil {
			writeError(ctx, w, "invalid year", http.StatusBadRequest)
			return
		}
		parsedSeason, err := domain.ParseSeason(r.PathValue("season"))
		if err != nil {
			writeError(ctx, w, "invalid season", http.StatusBadRequest)
			return
		}
		paging, err := parsePaging(r)
		if err != nil {
			writeError(ctx, w, "invalid paging", http.StatusBadRequest)
			return
		}

		ctx = logging.AddMetaToContext(ctx,
			slog.String("type", string(mediaType)),
			slog.Int("year", year),
			slog.String("season", string(parsedSeason)),
		)

		page, status, err := season(ctx, domain.SeasonQuery{
			Type:   mediaType,
			Year:   year,
			Season: parsedSeason,
			Paging: paging,
		})
		if err != nil {
			handleAppError(ctx, w, err)
			return
		}

		writeSuccess(ctx, w, page, status)
	}

	return middleware(handler)
}

// MakeDetailHandler serves the detail of a MyAnimeList id
func MakeDetailHandler(
	getDetail app.GetDetail,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildHandlerMiddleware("detail", catalogLimits, allowedOrigins, rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		query, ok := parseDetailQuery(w, r)
		if !ok {
			return
		}
		ctx = reporting.AddExtrasToContext(ctx, map[string]string{"id": strconv.Itoa(query.ID)})

		media, status, err := getDetail(ctx, query)
		if err != nil {
			handleAppError(ctx, w, err)
			return
		}

		writeSuccess(ctx, w, media, status)
	}

	return middleware(handler)
}

func MakeDetailByAniListIDHandler(
	getDetail app.GetDetailByAniListID,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildHandlerMiddleware("detail_by_anilist_id", catalogLimits, allowedOrigins, rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		query, ok := parseDetailQuery(w, r)
		if !ok {
			return
		}
		ctx = reporting.AddExtrasToContext(ctx, map[string]string{"anilistId": strconv.Itoa(query.ID)})

		media, status, err := getDetail(ctx, query)
		if err != nil {
			handleAppError(ctx, w, err)
			return
		}

		writeSuccess(ctx, w, media, status)
	}

	return middleware(handler)
}

func MakeCharactersHandler(
	getCharacters app.GetCharacters,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildHandlerMiddleware("characters", catalogLimits, allowedOrigins, rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		detailQuery, ok := parseDetailQuery(w, r)
		if !ok {
			return
		}
		paging, err := parsePaging(r)
		if err != nil {
			writeError(ctx, w, "invalid paging", http.StatusBadRequest)
			return
		}

		page, status, err := getCharacters(ctx, domain.CharactersQuery{
			Type:   detailQuery.Type,
			ID:     detailQuery.ID,
			Paging: paging,
		})
		if err != nil {
			handleAppError(ctx, w, err)
			return
		}

		writeSuccess(ctx, w, page, status)
	}

	return middleware(handler)
}

func parseDetailQuery(w http.ResponseWriter, r *http.Request) (domain.DetailQuery, bool) {
	ctx := r.Context()

	mediaType, err := pathMediaType(r)
	if err != nil {
		writeError(ctx, w, "invalid media type", http.StatusBadRequest)
		return domain.DetailQuery{}, false
	}
	id, err := pathInt(r, "id")
	if err != nil || id < 1 {
		writeError(ctx, w, "invalid id", http.StatusBadRequest)
		return domain.DetailQuery{}, false
	}

	return domain.DetailQuery{Type: mediaType, ID: id}, true
}
